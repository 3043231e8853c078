package schema

import (
	"encoding/json"
	"fmt"
	"math"
)

// constraint keys understood by Parse, per declared type.
var allowedKeys = map[Type]map[string]struct{}{
	TypeInteger: keySet("type", "minimum", "maximum", "enum"),
	TypeNumber:  keySet("type", "minimum", "maximum", "enum"),
	TypeBoolean: keySet("type"),
	TypeString:  keySet("type", "enum"),
	TypeObject:  keySet("type", "properties", "required", "additionalProperties"),
	TypeArray:   keySet("type", "items"),
}

func keySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// ParseJSON parses a JSON schema definition document.
func ParseJSON(data []byte) (*Schema, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return Parse(doc)
}

// Parse builds a schema tree from a declarative definition map.
//
// It fails with ErrUnknownType on unrecognised type names, ErrMalformed on
// structurally invalid documents, and ErrInvalidConstraint when a constraint
// value is malformed or incompatible with the declared type. A failed Parse
// returns no partially-built schema.
func Parse(doc map[string]any) (*Schema, error) {
	return parseNode(doc, "")
}

// parseNode parses one schema node. The path parameter locates the node in
// the definition document for diagnostics.
func parseNode(doc map[string]any, path string) (*Schema, error) {
	rawType, ok := doc["type"]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q at %q", ErrMalformed, "type", path)
	}
	typeName, ok := rawType.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a string at %q", ErrMalformed, "type", path)
	}

	typ := Type(typeName)
	allowed, known := allowedKeys[typ]
	if !known {
		return nil, fmt.Errorf("%w: %q at %q", ErrUnknownType, typeName, path)
	}

	for key := range doc {
		if _, ok := allowed[key]; !ok {
			return nil, fmt.Errorf("%w: %q not applicable to type %q at %q",
				ErrInvalidConstraint, key, typeName, path)
		}
	}

	s := &Schema{typ: typ}

	if err := parseBounds(s, doc, path); err != nil {
		return nil, err
	}
	if err := parseEnum(s, doc, path); err != nil {
		return nil, err
	}
	if typ == TypeObject {
		if err := parseObject(s, doc, path); err != nil {
			return nil, err
		}
	}
	if typ == TypeArray {
		if err := parseItems(s, doc, path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// parseBounds extracts the inclusive minimum/maximum constraints.
func parseBounds(s *Schema, doc map[string]any, path string) error {
	for _, key := range []string{"minimum", "maximum"} {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		n, ok := numericValue(raw)
		if !ok {
			return fmt.Errorf("%w: %q must be numeric at %q", ErrInvalidConstraint, key, path)
		}
		if s.typ == TypeInteger && n != math.Trunc(n) {
			return fmt.Errorf("%w: %q must be an integer at %q", ErrInvalidConstraint, key, path)
		}
		bound := n
		if key == "minimum" {
			s.min = &bound
		} else {
			s.max = &bound
		}
	}
	if s.min != nil && s.max != nil && *s.min > *s.max {
		return fmt.Errorf("%w: minimum %v exceeds maximum %v at %q",
			ErrInvalidConstraint, *s.min, *s.max, path)
	}
	return nil
}

// parseEnum extracts the enum constraint and checks every member against the
// declared type.
func parseEnum(s *Schema, doc map[string]any, path string) error {
	raw, ok := doc["enum"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%w: %q must be an array at %q", ErrInvalidConstraint, "enum", path)
	}
	if len(list) == 0 {
		return fmt.Errorf("%w: %q must not be empty at %q", ErrInvalidConstraint, "enum", path)
	}
	for i, member := range list {
		if !typeMatches(s.typ, member) {
			return fmt.Errorf("%w: enum member %d is not a valid %s at %q",
				ErrInvalidConstraint, i, s.typ, path)
		}
	}
	s.enum = make([]any, len(list))
	copy(s.enum, list)
	return nil
}

// parseObject extracts properties, required and additionalProperties.
func parseObject(s *Schema, doc map[string]any, path string) error {
	s.properties = make(map[string]*Schema)

	if raw, ok := doc["properties"]; ok {
		props, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q must be an object at %q", ErrMalformed, "properties", path)
		}
		for name, rawProp := range props {
			propDoc, ok := rawProp.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: property %q must be an object at %q", ErrMalformed, name, path)
			}
			child, err := parseNode(propDoc, joinPath(path, name))
			if err != nil {
				return err
			}
			s.properties[name] = child
		}
	}

	if raw, ok := doc["required"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("%w: %q must be an array at %q", ErrMalformed, "required", path)
		}
		for _, member := range list {
			name, ok := member.(string)
			if !ok {
				return fmt.Errorf("%w: %q members must be strings at %q", ErrMalformed, "required", path)
			}
			if _, declared := s.properties[name]; !declared {
				return fmt.Errorf("%w: required property %q is not declared at %q",
					ErrInvalidConstraint, name, path)
			}
			s.required = append(s.required, name)
		}
	}

	if raw, ok := doc["additionalProperties"]; ok {
		flag, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("%w: %q must be a boolean at %q",
				ErrInvalidConstraint, "additionalProperties", path)
		}
		s.additionalProperties = flag
	}
	return nil
}

// parseItems extracts the array element schema.
func parseItems(s *Schema, doc map[string]any, path string) error {
	raw, ok := doc["items"]
	if !ok {
		return fmt.Errorf("%w: array type requires %q at %q", ErrInvalidConstraint, "items", path)
	}
	itemDoc, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %q must be an object at %q", ErrMalformed, "items", path)
	}
	child, err := parseNode(itemDoc, joinPath(path, "items"))
	if err != nil {
		return err
	}
	s.items = child
	return nil
}

// joinPath appends a property name to a dotted path.
func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
