package command

import (
	"github.com/lattice-home/lattice-agent/internal/schema"
)

// Definition binds a command to its parameter and result schemas.
//
// The category records which definition source owns the command ("base" for
// built-in definitions, "test" for runtime overrides, or a vendor name).
// Definitions are immutable after construction; reloading a category builds
// new Definition values rather than mutating existing ones.
type Definition struct {
	category   string
	parameters *schema.Schema
	results    *schema.Schema
}

// NewDefinition creates a command definition. Nil schemas are replaced with
// an empty object schema so validation always has a node to work against.
func NewDefinition(category string, parameters, results *schema.Schema) *Definition {
	if parameters == nil {
		parameters = emptyObjectSchema()
	}
	if results == nil {
		results = emptyObjectSchema()
	}
	return &Definition{
		category:   category,
		parameters: parameters,
		results:    results,
	}
}

// Category returns the definition source this command belongs to.
func (d *Definition) Category() string {
	return d.category
}

// Parameters returns the schema for command parameters.
func (d *Definition) Parameters() *schema.Schema {
	return d.parameters
}

// Results returns the schema for command results.
func (d *Definition) Results() *schema.Schema {
	return d.results
}

// Equal reports whether two definitions carry the same category and schemas.
func (d *Definition) Equal(o *Definition) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.category == o.category &&
		schema.Equal(d.parameters, o.parameters) &&
		schema.Equal(d.results, o.results)
}

// emptyObjectSchema builds the schema accepting exactly the empty object.
func emptyObjectSchema() *schema.Schema {
	s, err := schema.Parse(map[string]any{"type": "object"})
	if err != nil {
		// The literal above is a valid definition; Parse cannot fail on it.
		panic(err)
	}
	return s
}
