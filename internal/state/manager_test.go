package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lattice-home/lattice-agent/internal/schema"
)

// MockSnapshotRepository holds persisted values in memory.
type MockSnapshotRepository struct {
	mu      sync.Mutex
	entries map[string]SnapshotEntry
	saveErr error
}

func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{entries: make(map[string]SnapshotEntry)}
}

func (m *MockSnapshotRepository) Save(_ context.Context, name string, value any, timestamp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[name] = SnapshotEntry{Value: value, Timestamp: timestamp}
	return nil
}

func (m *MockSnapshotRepository) Load(_ context.Context) (map[string]SnapshotEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]SnapshotEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

// waitForEntry polls until the async snapshot writer has persisted name.
func (m *MockSnapshotRepository) waitForEntry(t *testing.T, name string) SnapshotEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		entry, ok := m.entries[name]
		m.mu.Unlock()
		if ok {
			return entry
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("snapshot for %q never persisted", name)
	return SnapshotEntry{}
}

func testDefs() map[string]any {
	return map[string]any{
		"base": map[string]any{
			"height": map[string]any{
				"type":    "integer",
				"minimum": float64(0),
				"maximum": float64(300),
				"default": float64(0),
			},
			"firmwareVersion": map[string]any{
				"type":    "string",
				"default": "0.0.1",
			},
		},
		"power": map[string]any{
			"batteryLevel": map[string]any{
				"type":    "integer",
				"minimum": float64(0),
				"maximum": float64(100),
			},
		},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(NewQueue(10))
	if err := m.LoadDefinitions(testDefs()); err != nil {
		t.Fatalf("LoadDefinitions() error = %v", err)
	}
	return m
}

func TestManager_DefaultsCommittedWithoutQueueing(t *testing.T) {
	m := newTestManager(t)

	pv, err := m.GetPropertyValue("base.height")
	if err != nil {
		t.Fatalf("GetPropertyValue() error = %v", err)
	}
	if pv.Value != float64(0) {
		t.Errorf("default height = %v, want 0", pv.Value)
	}
	if m.Queue().Len() != 0 {
		t.Errorf("Queue().Len() = %d after defaults, want 0", m.Queue().Len())
	}

	// Properties without a default have no value yet.
	pv, err = m.GetPropertyValue("power.batteryLevel")
	if err != nil {
		t.Fatalf("GetPropertyValue() error = %v", err)
	}
	if pv.Value != nil {
		t.Errorf("batteryLevel = %v before any write, want nil", pv.Value)
	}
}

func TestManager_SetPropertyValue(t *testing.T) {
	m := newTestManager(t)
	ts := time.Now().UTC()

	if err := m.SetPropertyValue("base.height", float64(120), ts); err != nil {
		t.Fatalf("SetPropertyValue() error = %v", err)
	}

	pv, err := m.GetPropertyValue("base.height")
	if err != nil {
		t.Fatalf("GetPropertyValue() error = %v", err)
	}
	if pv.Value != float64(120) {
		t.Errorf("height = %v, want 120", pv.Value)
	}
	if !pv.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", pv.Timestamp, ts)
	}

	records := m.Queue().GetAllChanges()
	if len(records) != 1 {
		t.Fatalf("queue = %d records, want 1", len(records))
	}
	if records[0].Changes["base.height"] != float64(120) {
		t.Errorf("queued change = %v, want 120", records[0].Changes["base.height"])
	}
}

func TestManager_SetPropertyValueRejectsBadType(t *testing.T) {
	m := newTestManager(t)

	err := m.SetPropertyValue("base.height", "oops", time.Now())
	if !errors.Is(err, schema.ErrValidation) {
		t.Fatalf("SetPropertyValue() error = %v, want %v", err, schema.ErrValidation)
	}
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("SetPropertyValue() error does not carry *schema.ValidationError")
	}
	if verr.Code != schema.CodeTypeMismatch {
		t.Errorf("Code = %q, want %q", verr.Code, schema.CodeTypeMismatch)
	}

	// Failed write commits nothing.
	pv, _ := m.GetPropertyValue("base.height")
	if pv.Value != float64(0) {
		t.Errorf("height = %v after rejected write, want untouched default 0", pv.Value)
	}
	if m.Queue().Len() != 0 {
		t.Errorf("Queue().Len() = %d after rejected write, want 0", m.Queue().Len())
	}
}

func TestManager_SetPropertyValueRejectsOutOfRange(t *testing.T) {
	m := newTestManager(t)

	err := m.SetPropertyValue("power.batteryLevel", float64(150), time.Now())
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("SetPropertyValue() error = %v, want ValidationError", err)
	}
	if verr.Code != schema.CodeOutOfRange {
		t.Errorf("Code = %q, want %q", verr.Code, schema.CodeOutOfRange)
	}
}

func TestManager_SetPropertyValueUnknownProperty(t *testing.T) {
	m := newTestManager(t)
	if err := m.SetPropertyValue("base.bogus", 1, time.Now()); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("SetPropertyValue() error = %v, want %v", err, ErrUnknownProperty)
	}
}

func TestManager_UpdatePropertiesPartialCommit(t *testing.T) {
	m := newTestManager(t)
	ts := time.Now().UTC()

	err := m.UpdateProperties(map[string]any{
		"base.height":        float64(42),
		"power.batteryLevel": "low", // wrong type
		"base.bogus":         1,     // undeclared
	}, ts)
	if err == nil {
		t.Fatal("UpdateProperties() error = nil, want aggregate error")
	}
	if !errors.Is(err, schema.ErrValidation) {
		t.Errorf("aggregate error does not wrap %v", schema.ErrValidation)
	}
	if !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("aggregate error does not wrap %v", ErrUnknownProperty)
	}
	if !strings.Contains(err.Error(), "power.batteryLevel") {
		t.Errorf("aggregate error %q does not name the failing property", err)
	}

	// The valid property still committed and queued.
	pv, _ := m.GetPropertyValue("base.height")
	if pv.Value != float64(42) {
		t.Errorf("height = %v, want 42", pv.Value)
	}
	records := m.Queue().GetAllChanges()
	if len(records) != 1 {
		t.Fatalf("queue = %d records, want 1", len(records))
	}
	if len(records[0].Changes) != 1 || records[0].Changes["base.height"] != float64(42) {
		t.Errorf("queued changes = %v, want only base.height", records[0].Changes)
	}
}

func TestManager_UpdatePropertiesAllValid(t *testing.T) {
	m := newTestManager(t)

	if err := m.UpdateProperties(map[string]any{
		"base.height":        float64(10),
		"power.batteryLevel": float64(87),
	}, time.Now()); err != nil {
		t.Fatalf("UpdateProperties() error = %v", err)
	}

	records := m.Queue().GetAllChanges()
	if len(records) != 1 {
		t.Fatalf("queue = %d records, want a single batched record", len(records))
	}
	if len(records[0].Changes) != 2 {
		t.Errorf("batched changes = %d properties, want 2", len(records[0].Changes))
	}
}

func TestManager_GetStateValuesAsMap(t *testing.T) {
	m := newTestManager(t)
	if err := m.SetPropertyValue("power.batteryLevel", float64(87), time.Now()); err != nil {
		t.Fatalf("SetPropertyValue() error = %v", err)
	}

	got := m.GetStateValuesAsMap()
	power, ok := got["power"].(map[string]any)
	if !ok {
		t.Fatalf("power package missing from %v", got)
	}
	if power["batteryLevel"] != float64(87) {
		t.Errorf("power.batteryLevel = %v, want 87", power["batteryLevel"])
	}
	base, ok := got["base"].(map[string]any)
	if !ok {
		t.Fatalf("base package missing from %v", got)
	}
	if base["firmwareVersion"] != "0.0.1" {
		t.Errorf("base.firmwareVersion = %v, want 0.0.1", base["firmwareVersion"])
	}
}

func TestManager_LoadDefinitionsRejectsDuplicates(t *testing.T) {
	m := newTestManager(t)

	err := m.LoadDefinitions(map[string]any{
		"base": map[string]any{
			"height": map[string]any{"type": "integer"},
		},
	})
	if !errors.Is(err, ErrDuplicateProperty) {
		t.Errorf("LoadDefinitions() error = %v, want %v", err, ErrDuplicateProperty)
	}
}

func TestManager_LoadDefinitionsRejectsBadDefault(t *testing.T) {
	m := NewManager(NewQueue(10))
	err := m.LoadDefinitions(map[string]any{
		"power": map[string]any{
			"batteryLevel": map[string]any{
				"type":    "integer",
				"maximum": float64(100),
				"default": float64(250),
			},
		},
	})
	if !errors.Is(err, schema.ErrValidation) {
		t.Errorf("LoadDefinitions() error = %v, want %v", err, schema.ErrValidation)
	}
}

func TestManager_Startup(t *testing.T) {
	dir := t.TempDir()
	defs := `{"power": {"batteryLevel": {"type": "integer", "minimum": 0, "maximum": 100, "default": 100}}}`
	if err := os.WriteFile(filepath.Join(dir, "power.json"), []byte(defs), 0o600); err != nil {
		t.Fatalf("writing defs: %v", err)
	}

	m := NewManager(NewQueue(10))
	if err := m.Startup(dir); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	pv, err := m.GetPropertyValue("power.batteryLevel")
	if err != nil {
		t.Fatalf("GetPropertyValue() error = %v", err)
	}
	if pv.Value != float64(100) {
		t.Errorf("batteryLevel = %v, want default 100", pv.Value)
	}
}

func TestManager_SnapshotRoundTrip(t *testing.T) {
	repo := NewMockSnapshotRepository()

	m := NewManager(NewQueue(10))
	m.SetSnapshots(repo)
	if err := m.LoadDefinitions(testDefs()); err != nil {
		t.Fatalf("LoadDefinitions() error = %v", err)
	}
	if err := m.SetPropertyValue("base.height", float64(55), time.Now().UTC()); err != nil {
		t.Fatalf("SetPropertyValue() error = %v", err)
	}
	repo.waitForEntry(t, "base.height")

	// A fresh manager restores the persisted value over the default.
	restored := NewManager(NewQueue(10))
	restored.SetSnapshots(repo)
	if err := restored.LoadDefinitions(testDefs()); err != nil {
		t.Fatalf("LoadDefinitions() error = %v", err)
	}
	if err := restored.restoreSnapshots(); err != nil {
		t.Fatalf("restoreSnapshots() error = %v", err)
	}

	pv, _ := restored.GetPropertyValue("base.height")
	if pv.Value != float64(55) {
		t.Errorf("restored height = %v, want 55", pv.Value)
	}
}

func TestManager_SnapshotSkipsInvalidValues(t *testing.T) {
	repo := NewMockSnapshotRepository()
	repo.entries["base.height"] = SnapshotEntry{Value: "corrupt", Timestamp: time.Now()}
	repo.entries["base.ghost"] = SnapshotEntry{Value: 1, Timestamp: time.Now()}

	m := NewManager(NewQueue(10))
	m.SetSnapshots(repo)
	if err := m.LoadDefinitions(testDefs()); err != nil {
		t.Fatalf("LoadDefinitions() error = %v", err)
	}
	if err := m.restoreSnapshots(); err != nil {
		t.Fatalf("restoreSnapshots() error = %v", err)
	}

	pv, _ := m.GetPropertyValue("base.height")
	if pv.Value != float64(0) {
		t.Errorf("height = %v after corrupt snapshot, want default 0", pv.Value)
	}
}
