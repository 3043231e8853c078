package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sync"

	"github.com/lattice-home/lattice-agent/internal/schema"
)

// snapshotWriteTimeout bounds the fire-and-forget snapshot writes.
const snapshotWriteTimeout = 5 * time.Second

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PropertyValue is the current value of one state property.
type PropertyValue struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager owns the current state property values.
//
// Every write is validated against the property's declared schema; accepted
// writes update the value map and append a change record to the queue. A
// failed write commits nothing.
//
// All public methods are thread-safe.
type Manager struct {
	mu      sync.RWMutex
	queue   *Queue
	schemas map[string]*schema.Schema
	values  map[string]PropertyValue

	snapshots SnapshotRepository
	logger    Logger
}

// NewManager creates a state manager appending accepted writes to queue.
func NewManager(queue *Queue) *Manager {
	return &Manager{
		queue:   queue,
		schemas: make(map[string]*schema.Schema),
		values:  make(map[string]PropertyValue),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetSnapshots enables persistence of current property values, restored on
// the next Startup.
func (m *Manager) SetSnapshots(repo SnapshotRepository) {
	m.snapshots = repo
}

// Queue returns the change queue the manager appends to.
func (m *Manager) Queue() *Queue {
	return m.queue
}

// Startup loads the property definitions from defsDir and, when a snapshot
// repository is configured, restores persisted values over the declared
// defaults.
//
// Each *.json file declares packages of properties:
//
//	{"power": {"batteryLevel": {"type": "integer", ..., "default": 100}}}
//
// Defaults are validated against their own schema and committed without
// queueing a change record; restored snapshot values that no longer
// validate are skipped with a warning.
func (m *Manager) Startup(defsDir string) error {
	entries, err := filepath.Glob(filepath.Join(defsDir, "*.json"))
	if err != nil {
		return fmt.Errorf("scanning state definitions: %w", err)
	}
	sort.Strings(entries)

	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading state definitions %q: %w", path, err)
		}
		if err := m.LoadDefinitionsJSON(data); err != nil {
			return fmt.Errorf("loading state definitions %q: %w", path, err)
		}
		m.logger.Info("state definitions loaded", "path", path)
	}

	if m.snapshots != nil {
		if err := m.restoreSnapshots(); err != nil {
			return err
		}
	}

	m.logger.Info("state manager ready", "properties", len(m.PropertyNames()))
	return nil
}

// LoadDefinitionsJSON registers the properties declared by one definition
// document. Registration is all-or-nothing per document.
func (m *Manager) LoadDefinitionsJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedDefinition, err)
	}
	return m.LoadDefinitions(doc)
}

// LoadDefinitions registers the properties declared by a definition map.
func (m *Manager) LoadDefinitions(doc map[string]any) error {
	type staged struct {
		name       string
		sch        *schema.Schema
		def        any
		hasDefault bool
	}
	var all []staged

	for pkg, rawProps := range doc {
		props, ok := rawProps.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: package %q must be an object", ErrMalformedDefinition, pkg)
		}
		for prop, rawBody := range props {
			body, ok := rawBody.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: property %q.%q must be an object", ErrMalformedDefinition, pkg, prop)
			}

			schemaDoc := make(map[string]any, len(body))
			var def any
			hasDefault := false
			for k, v := range body {
				if k == "default" {
					def = v
					hasDefault = true
					continue
				}
				schemaDoc[k] = v
			}

			name := pkg + "." + prop
			sch, err := schema.Parse(schemaDoc)
			if err != nil {
				return fmt.Errorf("parsing schema of %q: %w", name, err)
			}
			if hasDefault {
				if err := sch.Validate(def); err != nil {
					return fmt.Errorf("default of %q: %w", name, err)
				}
			}
			all = append(all, staged{name: name, sch: sch, def: def, hasDefault: hasDefault})
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range all {
		if _, exists := m.schemas[s.name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateProperty, s.name)
		}
	}
	now := time.Now().UTC()
	for _, s := range all {
		m.schemas[s.name] = s.sch
		if s.hasDefault {
			m.values[s.name] = PropertyValue{Value: s.def, Timestamp: now}
		}
	}
	return nil
}

// SetPropertyValue validates and commits one property write, appending a
// single-property change record to the queue.
func (m *Manager) SetPropertyValue(name string, value any, timestamp time.Time) error {
	m.mu.Lock()
	sch, ok := m.schemas[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if err := sch.Validate(value); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("property %q: %w", name, err)
	}
	m.values[name] = PropertyValue{Value: value, Timestamp: timestamp}
	m.mu.Unlock()

	m.queue.NotifyPropertiesUpdated(timestamp, map[string]any{name: value})
	m.persistSnapshot(name, value, timestamp)
	return nil
}

// UpdateProperties applies a batch of property writes sharing one timestamp.
//
// Per-property failures are collected but do not abort the rest of the
// batch: successful properties commit and are queued as one change record,
// and the caller receives the joined error for the failures.
func (m *Manager) UpdateProperties(values map[string]any, timestamp time.Time) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	committed := make(map[string]any)
	var errs []error

	m.mu.Lock()
	for _, name := range names {
		value := values[name]
		sch, ok := m.schemas[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProperty, name))
			continue
		}
		if err := sch.Validate(value); err != nil {
			errs = append(errs, fmt.Errorf("property %q: %w", name, err))
			continue
		}
		m.values[name] = PropertyValue{Value: value, Timestamp: timestamp}
		committed[name] = value
	}
	m.mu.Unlock()

	if len(committed) > 0 {
		m.queue.NotifyPropertiesUpdated(timestamp, committed)
		for name, value := range committed {
			m.persistSnapshot(name, value, timestamp)
		}
	}
	return errors.Join(errs...)
}

// GetPropertyValue returns the current value of one property.
func (m *Manager) GetPropertyValue(name string) (PropertyValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.schemas[name]; !ok {
		return PropertyValue{}, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	return m.values[name], nil
}

// GetStateValuesAsMap serializes all current values grouped by package:
//
//	{"power": {"batteryLevel": 87}}
func (m *Manager) GetStateValuesAsMap() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]any)
	for name, pv := range m.values {
		pkg, prop := splitPropertyName(name)
		pkgMap, ok := out[pkg].(map[string]any)
		if !ok {
			pkgMap = make(map[string]any)
			out[pkg] = pkgMap
		}
		pkgMap[prop] = pv.Value
	}
	return out
}

// PropertyNames returns the declared property names, sorted.
func (m *Manager) PropertyNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.schemas))
	for name := range m.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// restoreSnapshots loads persisted values over the declared defaults.
func (m *Manager) restoreSnapshots() error {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotWriteTimeout)
	defer cancel()

	entries, err := m.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("restoring state snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	restored := 0
	for name, entry := range entries {
		sch, ok := m.schemas[name]
		if !ok {
			m.logger.Warn("snapshot names undeclared property", "property", name)
			continue
		}
		if err := sch.Validate(entry.Value); err != nil {
			m.logger.Warn("snapshot value no longer validates", "property", name, "error", err)
			continue
		}
		m.values[name] = PropertyValue{Value: entry.Value, Timestamp: entry.Timestamp}
		restored++
	}
	m.logger.Info("state snapshot restored", "properties", restored)
	return nil
}

// persistSnapshot writes one accepted value without blocking the caller.
func (m *Manager) persistSnapshot(name string, value any, timestamp time.Time) {
	if m.snapshots == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotWriteTimeout)
		defer cancel()
		if err := m.snapshots.Save(ctx, name, value, timestamp); err != nil {
			m.logger.Error("persisting state snapshot", "property", name, "error", err)
		}
	}()
}

// splitPropertyName splits "power.batteryLevel" into package and property.
func splitPropertyName(name string) (pkg, prop string) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
