package command

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lattice-home/lattice-agent/internal/schema"
)

// Dictionary is the registry mapping fully-qualified command names
// ("robot.jump") to their definitions, partitioned by category so an entire
// category can be replaced atomically.
//
// Readers never observe a partially-loaded category: LoadCommands parses the
// whole document into a staging set first and swaps it in only after every
// definition parsed and no name conflicts were found. A failed load leaves
// the previous contents intact.
type Dictionary struct {
	mu         sync.RWMutex
	categories map[string]map[string]*Definition
	byName     map[string]*Definition
}

// NewDictionary creates an empty command dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{
		categories: make(map[string]map[string]*Definition),
		byName:     make(map[string]*Definition),
	}
}

// LoadCommandsJSON parses a JSON definition document and loads it as one
// category. See LoadCommands.
func (d *Dictionary) LoadCommandsJSON(data []byte, category string) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedDefinition, err)
	}
	return d.LoadCommands(doc, category)
}

// LoadCommands replaces one category's entries with the definitions in doc.
//
// The document maps package names to command names to definition bodies with
// optional "parameters" and "results" schema documents. Command names are
// unique across all categories: a name owned by a different category fails
// the whole load with ErrDuplicateName and no changes are applied.
func (d *Dictionary) LoadCommands(doc map[string]any, category string) error {
	staged, err := parseDefinitionDoc(doc, category)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Names must not collide with any other category.
	for name := range staged {
		if existing, ok := d.byName[name]; ok && existing.Category() != category {
			return fmt.Errorf("%w: %q already registered by category %q",
				ErrDuplicateName, name, existing.Category())
		}
	}

	// Atomic swap: drop the category's old entries, install the staged set.
	for name := range d.categories[category] {
		delete(d.byName, name)
	}
	d.categories[category] = staged
	for name, def := range staged {
		d.byName[name] = def
	}
	return nil
}

// RemoveCategory drops all of a category's definitions.
// Returns true if the category existed.
func (d *Dictionary) RemoveCategory(category string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, ok := d.categories[category]
	if !ok {
		return false
	}
	for name := range entries {
		delete(d.byName, name)
	}
	delete(d.categories, category)
	return true
}

// FindCommand looks up a definition by fully-qualified name.
func (d *Dictionary) FindCommand(name string) (*Definition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	def, ok := d.byName[name]
	return def, ok
}

// Size returns the number of registered commands across all categories.
func (d *Dictionary) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byName)
}

// CommandsAsMap serializes the full dictionary for publication to the
// controller, grouped by package:
//
//	{"robot": {"jump": {"parameters": {...}, "results": {...}}}}
//
// When fullSchema is false only the parameter schemas are included; this is
// the minimal form published on the wire, where result shapes are of no use
// to the issuer until the command completes.
func (d *Dictionary) CommandsAsMap(fullSchema bool) map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]any)
	for name, def := range d.byName {
		pkg, cmd := splitName(name)
		pkgMap, ok := out[pkg].(map[string]any)
		if !ok {
			pkgMap = make(map[string]any)
			out[pkg] = pkgMap
		}
		body := map[string]any{"parameters": def.Parameters().ToMap()}
		if fullSchema {
			body["results"] = def.Results().ToMap()
		}
		pkgMap[cmd] = body
	}
	return out
}

// snapshot returns a copy of the name index for change detection.
func (d *Dictionary) snapshot() map[string]*Definition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*Definition, len(d.byName))
	for name, def := range d.byName {
		out[name] = def
	}
	return out
}

// snapshotsEqual reports whether two name-index snapshots hold structurally
// identical definitions.
func snapshotsEqual(a, b map[string]*Definition) bool {
	if len(a) != len(b) {
		return false
	}
	for name, da := range a {
		db, ok := b[name]
		if !ok || !da.Equal(db) {
			return false
		}
	}
	return true
}

// parseDefinitionDoc parses a category document into a staged name index.
func parseDefinitionDoc(doc map[string]any, category string) (map[string]*Definition, error) {
	staged := make(map[string]*Definition)
	for pkg, rawCmds := range doc {
		cmds, ok := rawCmds.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: package %q must be an object", ErrMalformedDefinition, pkg)
		}
		for cmd, rawBody := range cmds {
			body, ok := rawBody.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: command %q.%q must be an object",
					ErrMalformedDefinition, pkg, cmd)
			}
			def, err := parseDefinitionBody(body, category, pkg, cmd)
			if err != nil {
				return nil, err
			}
			staged[pkg+"."+cmd] = def
		}
	}
	return staged, nil
}

// parseDefinitionBody parses one command body ({"parameters":..., "results":...}).
func parseDefinitionBody(body map[string]any, category, pkg, cmd string) (*Definition, error) {
	var params, results *schema.Schema
	for key, raw := range body {
		switch key {
		case "parameters", "results":
			schemaDoc, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q of %q.%q must be an object",
					ErrMalformedDefinition, key, pkg, cmd)
			}
			parsed, err := schema.Parse(schemaDoc)
			if err != nil {
				return nil, fmt.Errorf("parsing %s of %q.%q: %w", key, pkg, cmd, err)
			}
			if key == "parameters" {
				params = parsed
			} else {
				results = parsed
			}
		default:
			return nil, fmt.Errorf("%w: unknown key %q in %q.%q",
				ErrMalformedDefinition, key, pkg, cmd)
		}
	}
	return NewDefinition(category, params, results), nil
}

// splitName splits "robot.jump" into its package and command parts.
// A name without a dot lands in the "" package; the dictionary does not
// require package qualification, the loader document shape provides it.
func splitName(name string) (pkg, cmd string) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
