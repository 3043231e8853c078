package schema

import (
	"fmt"
	"math"
)

// Validate checks a value against the schema tree.
//
// The check is recursive and side-effect-free:
//   - the value's type must match the declared type (integers accept any
//     numeric representation with an integral value)
//   - numeric range bounds are inclusive
//   - enum membership is checked for scalar types
//   - every required object property must be present, every present property
//     must validate, and unknown properties are rejected unless the node
//     declares additionalProperties
//   - every array element must validate against the item schema
//
// It returns the first violation found as a *ValidationError carrying the
// offending property path, or nil if the value is valid.
func (s *Schema) Validate(value any) error {
	if verr := s.validate(value, ""); verr != nil {
		return verr
	}
	return nil
}

func (s *Schema) validate(value any, path string) *ValidationError {
	if !typeMatches(s.typ, value) {
		return newViolation(path, CodeTypeMismatch, "expected %s, got %s", s.typ, describeValue(value))
	}

	switch s.typ {
	case TypeInteger, TypeNumber:
		n, _ := numericValue(value)
		if s.min != nil && n < *s.min {
			return newViolation(path, CodeOutOfRange, "%v is below minimum %v", n, *s.min)
		}
		if s.max != nil && n > *s.max {
			return newViolation(path, CodeOutOfRange, "%v is above maximum %v", n, *s.max)
		}
		return s.validateEnum(value, path)
	case TypeString:
		return s.validateEnum(value, path)
	case TypeBoolean:
		return nil
	case TypeObject:
		return s.validateObject(value.(map[string]any), path)
	case TypeArray:
		return s.validateArray(value.([]any), path)
	}
	return nil
}

func (s *Schema) validateEnum(value any, path string) *ValidationError {
	if len(s.enum) == 0 {
		return nil
	}
	for _, member := range s.enum {
		if valueEqual(member, value) {
			return nil
		}
	}
	return newViolation(path, CodeNotInEnum, "%v is not an allowed value", value)
}

func (s *Schema) validateObject(obj map[string]any, path string) *ValidationError {
	for _, name := range s.required {
		if _, ok := obj[name]; !ok {
			return newViolation(joinPath(path, name), CodeMissingProperty,
				"required property %q is missing", name)
		}
	}
	for name, val := range obj {
		prop, declared := s.properties[name]
		if !declared {
			if s.additionalProperties {
				continue
			}
			return newViolation(joinPath(path, name), CodeUnknownProperty,
				"property %q is not declared", name)
		}
		if verr := prop.validate(val, joinPath(path, name)); verr != nil {
			return verr
		}
	}
	return nil
}

func (s *Schema) validateArray(list []any, path string) *ValidationError {
	if s.items == nil {
		return nil
	}
	for i, elem := range list {
		if verr := s.items.validate(elem, fmt.Sprintf("%s[%d]", path, i)); verr != nil {
			return verr
		}
	}
	return nil
}

// typeMatches reports whether a Go value is an acceptable representation of
// the declared schema type. JSON decoding produces float64, bool, string,
// map[string]any and []any; programmatic callers may also pass Go ints.
func typeMatches(typ Type, value any) bool {
	switch typ {
	case TypeInteger:
		n, ok := numericValue(value)
		return ok && n == math.Trunc(n)
	case TypeNumber:
		_, ok := numericValue(value)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeArray:
		_, ok := value.([]any)
		return ok
	}
	return false
}

// describeValue names a value's dynamic type for diagnostics.
func describeValue(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case float64, float32, int, int32, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", value)
	}
}
