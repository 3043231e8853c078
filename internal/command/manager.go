package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TestCategory is the category used for runtime test-definition overrides.
const TestCategory = "test"

// historyWriteTimeout bounds the fire-and-forget audit writes so a stuck
// database cannot leak goroutines indefinitely.
const historyWriteTimeout = 5 * time.Second

// Logger defines the logging interface used by the Manager.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TransitionWriter receives one sample per accepted lifecycle transition for
// time-series storage. *influxdb.Client satisfies it. Implementations must
// not block; writes happen on the transitioning goroutine.
type TransitionWriter interface {
	WriteCommandTransition(deviceID, name, state string)
}

// Manager owns the command dictionary and the live set of command instances.
//
// It assigns manager-scoped UUID ids (never process-wide counters, so
// multiple managers in one process do not interfere), notifies a single
// registered observer when the dictionary logically changes, and optionally
// records every instance transition to a HistoryRepository.
//
// All public methods are thread-safe.
type Manager struct {
	dict *Dictionary

	mu        sync.RWMutex
	instances map[string]*Instance

	cbMu           sync.RWMutex
	onDefChanged   func()
	onStateChanged func(inst *Instance, from, to State)

	history  HistoryRepository
	histMu   sync.Mutex
	histDone chan struct{}

	metrics  TransitionWriter
	deviceID string

	logger Logger
}

// NewManager creates a command manager with an empty dictionary.
func NewManager() *Manager {
	return &Manager{
		dict:      NewDictionary(),
		instances: make(map[string]*Instance),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetHistory enables persistent auditing of command lifecycle transitions.
func (m *Manager) SetHistory(repo HistoryRepository) {
	m.history = repo
}

// SetMetrics mirrors every accepted transition to a time-series sink, tagged
// with the owning device's id.
func (m *Manager) SetMetrics(w TransitionWriter, deviceID string) {
	m.metrics = w
	m.deviceID = deviceID
}

// Dictionary returns the manager-owned command dictionary.
func (m *Manager) Dictionary() *Dictionary {
	return m.dict
}

// SetOnCommandDefChanged registers the single observer invoked after every
// logical change to the command dictionary. The callback runs synchronously
// once per change, after the mutation is fully applied; loads that leave the
// dictionary structurally identical do not fire it.
func (m *Manager) SetOnCommandDefChanged(fn func()) {
	m.cbMu.Lock()
	m.onDefChanged = fn
	m.cbMu.Unlock()
}

// SetOnCommandStateChanged registers the single observer invoked after every
// accepted instance transition, after history recording is scheduled. The
// callback runs synchronously on the transitioning goroutine and must not
// block.
func (m *Manager) SetOnCommandStateChanged(fn func(inst *Instance, from, to State)) {
	m.cbMu.Lock()
	m.onStateChanged = fn
	m.cbMu.Unlock()
}

// LoadCommands loads one category of definitions into the dictionary and
// fires the def-changed callback if the dictionary actually changed.
func (m *Manager) LoadCommands(doc map[string]any, category string) error {
	before := m.dict.snapshot()
	if err := m.dict.LoadCommands(doc, category); err != nil {
		return err
	}
	m.notifyIfChanged(before)
	return nil
}

// LoadCommandsJSON is LoadCommands for a raw JSON document.
func (m *Manager) LoadCommandsJSON(data []byte, category string) error {
	before := m.dict.snapshot()
	if err := m.dict.LoadCommandsJSON(data, category); err != nil {
		return err
	}
	m.notifyIfChanged(before)
	return nil
}

// RemoveCategory drops a category's definitions, firing the def-changed
// callback if anything was removed.
func (m *Manager) RemoveCategory(category string) bool {
	before := m.dict.snapshot()
	removed := m.dict.RemoveCategory(category)
	if removed {
		m.notifyIfChanged(before)
	}
	return removed
}

// Startup loads the built-in command definitions and the optional runtime
// test overrides, in that order.
//
// Every *.json file in baseDefsDir is loaded as its own category named after
// the file stem ("base.json" becomes category "base"). testDefsPath, when
// non-empty, is a single file loaded as the "test" category; it can extend
// the built-in set but a duplicate name remains a hard failure.
func (m *Manager) Startup(baseDefsDir, testDefsPath string) error {
	entries, err := filepath.Glob(filepath.Join(baseDefsDir, "*.json"))
	if err != nil {
		return fmt.Errorf("scanning command definitions: %w", err)
	}
	sort.Strings(entries)

	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading command definitions %q: %w", path, err)
		}
		category := strings.TrimSuffix(filepath.Base(path), ".json")
		if err := m.LoadCommandsJSON(data, category); err != nil {
			return fmt.Errorf("loading command definitions %q: %w", path, err)
		}
		m.logger.Info("command definitions loaded", "category", category, "path", path)
	}

	if testDefsPath != "" {
		data, err := os.ReadFile(testDefsPath)
		if err != nil {
			return fmt.Errorf("reading test definitions %q: %w", testDefsPath, err)
		}
		if err := m.LoadCommandsJSON(data, TestCategory); err != nil {
			return fmt.Errorf("loading test definitions %q: %w", testDefsPath, err)
		}
		m.logger.Info("test command definitions loaded", "path", testDefsPath)
	}

	m.logger.Info("command dictionary ready", "commands", m.dict.Size())
	return nil
}

// NewCommand validates a payload, constructs an instance and adds it to the
// live set in one step, returning the tracked instance.
func (m *Manager) NewCommand(payload map[string]any) (*Instance, error) {
	inst, err := FromPayload(payload, m.dict)
	if err != nil {
		return nil, err
	}
	if err := m.AddCommand(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// NewCommandJSON is NewCommand for a raw JSON payload.
func (m *Manager) NewCommandJSON(data []byte) (*Instance, error) {
	inst, err := FromPayloadJSON(data, m.dict)
	if err != nil {
		return nil, err
	}
	if err := m.AddCommand(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// AddCommand inserts an instance into the live set, assigning a UUID if the
// instance does not yet carry an id.
func (m *Manager) AddCommand(inst *Instance) error {
	if inst.ID() == "" {
		inst.setID(uuid.New().String())
	}

	m.mu.Lock()
	if _, exists := m.instances[inst.ID()]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateID, inst.ID())
	}
	m.instances[inst.ID()] = inst
	m.mu.Unlock()

	inst.setOnStateChange(m.handleTransition)
	m.logger.Info("command queued",
		"id", inst.ID(), "name", inst.Name(), "origin", string(inst.Origin()))
	m.recordHistory(inst, string(StateQueued), "")
	m.recordMetric(inst, StateQueued)
	return nil
}

// FindCommand retrieves a live instance by id.
func (m *Manager) FindCommand(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// Commands returns the live instances in no particular order.
func (m *Manager) Commands() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	return out
}

// RemoveCommand retires a terminal instance from the live set after the
// issuer has acknowledged its outcome.
func (m *Manager) RemoveCommand(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if !inst.State().Terminal() {
		return fmt.Errorf("%w: cannot retire %q in state %q", ErrInvalidState, id, inst.State())
	}
	delete(m.instances, id)
	return nil
}

// handleTransition observes every accepted instance transition.
func (m *Manager) handleTransition(inst *Instance, from, to State) {
	m.logger.Info("command state changed",
		"id", inst.ID(), "name", inst.Name(), "from", string(from), "to", string(to))

	detail := ""
	if code, msg := inst.ErrorDetail(); code != "" || msg != "" {
		detail = code + ": " + msg
	}
	m.recordHistory(inst, string(to), detail)
	m.recordMetric(inst, to)

	m.cbMu.RLock()
	cb := m.onStateChanged
	m.cbMu.RUnlock()
	if cb != nil {
		cb(inst, from, to)
	}
}

// recordHistory writes an audit row without blocking the caller. Command
// transitions must stay non-blocking, so persistence happens off the
// transitioning goroutine and failures are only logged.
//
// Writes land in the order they were scheduled: each write waits for its
// predecessor's completion channel before touching the repository, so the
// audit trail always reads queued → inProgress → ... even though no writer
// goroutine outlives its row.
func (m *Manager) recordHistory(inst *Instance, state, detail string) {
	if m.history == nil {
		return
	}
	id, name := inst.ID(), inst.Name()

	m.histMu.Lock()
	prev := m.histDone
	done := make(chan struct{})
	m.histDone = done
	m.histMu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := m.history.RecordTransition(ctx, id, name, state, detail); err != nil {
			m.logger.Error("recording command history", "id", id, "error", err)
		}
	}()
}

// recordMetric mirrors one transition to the telemetry sink.
func (m *Manager) recordMetric(inst *Instance, state State) {
	if m.metrics == nil {
		return
	}
	m.metrics.WriteCommandTransition(m.deviceID, inst.Name(), string(state))
}

// notifyIfChanged fires the def-changed callback when the dictionary content
// differs from the before snapshot.
func (m *Manager) notifyIfChanged(before map[string]*Definition) {
	if snapshotsEqual(before, m.dict.snapshot()) {
		return
	}
	m.cbMu.RLock()
	cb := m.onDefChanged
	m.cbMu.RUnlock()
	if cb != nil {
		cb()
	}
}
