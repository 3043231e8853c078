package schema

// Type identifies the declared value type of a schema node.
type Type string

// Supported schema types.
const (
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeString  Type = "string"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// AllTypes returns all valid schema type values.
func AllTypes() []Type {
	return []Type{TypeInteger, TypeNumber, TypeBoolean, TypeString, TypeObject, TypeArray}
}

// Schema is a single node in a schema tree.
//
// A node's declared type is fixed at Parse time and its constraint set is
// guaranteed to be compatible with that type. Child property and item
// schemas are exclusively owned by their parent; schema trees are strictly
// hierarchical with no sharing and no cycles.
type Schema struct {
	typ Type

	// Numeric constraints (integer, number). Bounds are inclusive.
	min *float64
	max *float64

	// Enum of allowed values (integer, number, string).
	enum []any

	// Object constraints.
	properties           map[string]*Schema
	required             []string
	additionalProperties bool

	// Array constraints.
	items *Schema
}

// Type returns the declared type of this node.
func (s *Schema) Type() Type {
	return s.typ
}

// Property returns the schema for a named object property.
func (s *Schema) Property(name string) (*Schema, bool) {
	p, ok := s.properties[name]
	return p, ok
}

// PropertyNames returns the declared property names of an object node.
// Returns nil for non-object nodes.
func (s *Schema) PropertyNames() []string {
	if len(s.properties) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.properties))
	for name := range s.properties {
		names = append(names, name)
	}
	return names
}

// Items returns the element schema of an array node, or nil.
func (s *Schema) Items() *Schema {
	return s.items
}

// Equal reports whether two schema trees are structurally identical.
//
// It is used to detect whether a command dictionary actually changed before
// firing change notifications, avoiding redundant broadcasts. Enum values
// are compared in declaration order.
func Equal(a, b *Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.typ != b.typ {
		return false
	}
	if !floatPtrEqual(a.min, b.min) || !floatPtrEqual(a.max, b.max) {
		return false
	}
	if len(a.enum) != len(b.enum) {
		return false
	}
	for i := range a.enum {
		if !valueEqual(a.enum[i], b.enum[i]) {
			return false
		}
	}
	if a.additionalProperties != b.additionalProperties {
		return false
	}
	if len(a.properties) != len(b.properties) {
		return false
	}
	for name, pa := range a.properties {
		pb, ok := b.properties[name]
		if !ok || !Equal(pa, pb) {
			return false
		}
	}
	if len(a.required) != len(b.required) {
		return false
	}
	reqB := make(map[string]struct{}, len(b.required))
	for _, r := range b.required {
		reqB[r] = struct{}{}
	}
	for _, r := range a.required {
		if _, ok := reqB[r]; !ok {
			return false
		}
	}
	return Equal(a.items, b.items)
}

// ToMap serializes the schema back into its declarative map form.
//
// The output round-trips through Parse. Used when publishing command
// dictionaries to the controller.
func (s *Schema) ToMap() map[string]any {
	out := map[string]any{"type": string(s.typ)}
	if s.min != nil {
		out["minimum"] = *s.min
	}
	if s.max != nil {
		out["maximum"] = *s.max
	}
	if len(s.enum) > 0 {
		enum := make([]any, len(s.enum))
		copy(enum, s.enum)
		out["enum"] = enum
	}
	if s.typ == TypeObject {
		props := make(map[string]any, len(s.properties))
		for name, p := range s.properties {
			props[name] = p.ToMap()
		}
		out["properties"] = props
		if len(s.required) > 0 {
			req := make([]any, len(s.required))
			for i, r := range s.required {
				req[i] = r
			}
			out["required"] = req
		}
		if s.additionalProperties {
			out["additionalProperties"] = true
		}
	}
	if s.typ == TypeArray && s.items != nil {
		out["items"] = s.items.ToMap()
	}
	return out
}

// floatPtrEqual compares two optional bounds.
func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// valueEqual compares two enum members, treating all numeric
// representations as equivalent.
func valueEqual(a, b any) bool {
	na, aNum := numericValue(a)
	nb, bNum := numericValue(b)
	if aNum && bNum {
		return na == nb
	}
	return a == b
}

// numericValue extracts a float64 from any supported numeric representation.
// JSON decoding produces float64; programmatic callers may pass Go ints.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
