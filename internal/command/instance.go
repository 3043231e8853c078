package command

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Origin identifies who issued a command.
type Origin string

// Origin values.
const (
	OriginLocal Origin = "local"
	OriginCloud Origin = "cloud"
)

// State is the lifecycle state of a command instance.
type State string

// Instance lifecycle states.
const (
	StateQueued     State = "queued"
	StateInProgress State = "inProgress"
	StatePaused     State = "paused"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
	StateAborted    State = "aborted"
	StateError      State = "error"
)

// Terminal reports whether no further transitions are accepted from s.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateCancelled, StateAborted, StateError:
		return true
	}
	return false
}

// Instance is a validated, in-flight occurrence of a command.
//
// Instances are created by FromPayload, which guarantees the parameter map
// satisfies the definition's parameter schema. Progress and results are
// mutated by the executing agent; Cancel comes from the issuer. Once a
// terminal state is reached every further mutation fails with
// ErrInvalidState.
type Instance struct {
	mu sync.Mutex

	id        string
	name      string
	component string
	origin    Origin
	def       *Definition

	parameters map[string]any
	progress   map[string]any
	results    map[string]any
	state      State

	errorCode    string
	errorMessage string

	// onStateChange is invoked after each accepted transition, outside the
	// instance lock. Set by the owning manager.
	onStateChange func(inst *Instance, from, to State)
}

// FromPayloadJSON parses a JSON command payload and constructs an instance.
// See FromPayload.
func FromPayloadJSON(data []byte, dict *Dictionary) (*Instance, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return FromPayload(payload, dict)
}

// FromPayload validates an inbound command payload against the dictionary
// and constructs a queued instance.
//
// The payload carries "name" (required), "component", "origin" ("local" or
// "cloud", defaulting to cloud since commands normally arrive from the
// controller) and "parameters" (object, defaulting to empty). The operation
// is all-or-nothing: on any failure no instance exists and nothing has been
// mutated.
func FromPayload(payload map[string]any, dict *Dictionary) (*Instance, error) {
	name, err := stringField(payload, "name", true)
	if err != nil {
		return nil, err
	}
	component, err := stringField(payload, "component", false)
	if err != nil {
		return nil, err
	}

	origin := OriginCloud
	if rawOrigin, ok := payload["origin"]; ok {
		s, ok := rawOrigin.(string)
		if !ok || (Origin(s) != OriginLocal && Origin(s) != OriginCloud) {
			return nil, fmt.Errorf("%w: origin must be %q or %q",
				ErrMalformedPayload, OriginLocal, OriginCloud)
		}
		origin = Origin(s)
	}

	params := map[string]any{}
	if rawParams, ok := payload["parameters"]; ok {
		params, ok = rawParams.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: parameters must be an object", ErrMalformedPayload)
		}
	}

	def, ok := dict.FindCommand(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrNotFound, name)
	}
	if err := def.Parameters().Validate(params); err != nil {
		return nil, err
	}

	return &Instance{
		name:       name,
		component:  component,
		origin:     origin,
		def:        def,
		parameters: copyMap(params),
		progress:   map[string]any{},
		results:    map[string]any{},
		state:      StateQueued,
	}, nil
}

// ID returns the instance id assigned by the manager.
func (c *Instance) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// setID assigns the manager-issued id. Called once by Manager.AddCommand.
func (c *Instance) setID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

// Name returns the fully-qualified command name.
func (c *Instance) Name() string {
	return c.name
}

// Component returns the device component the command targets.
func (c *Instance) Component() string {
	return c.component
}

// Origin returns who issued the command.
func (c *Instance) Origin() Origin {
	return c.origin
}

// Definition returns the definition the instance was validated against.
func (c *Instance) Definition() *Definition {
	return c.def
}

// State returns the current lifecycle state.
func (c *Instance) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Parameters returns a copy of the validated parameter map.
func (c *Instance) Parameters() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.parameters)
}

// Progress returns a copy of the current progress map.
func (c *Instance) Progress() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.progress)
}

// Results returns a copy of the results map.
func (c *Instance) Results() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.results)
}

// Start moves a queued command into execution.
func (c *Instance) Start() error {
	return c.transition(StateInProgress, StateQueued)
}

// Pause suspends a running command.
func (c *Instance) Pause() error {
	return c.transition(StatePaused, StateInProgress)
}

// Resume continues a paused command.
func (c *Instance) Resume() error {
	return c.transition(StateInProgress, StatePaused)
}

// SetProgress replaces the progress map.
//
// Accepted only while inProgress or paused. Progress is free-form diagnostic
// data; no schema is enforced.
func (c *Instance) SetProgress(progress map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress && c.state != StatePaused {
		return fmt.Errorf("%w: cannot report progress in state %q", ErrInvalidState, c.state)
	}
	c.progress = copyMap(progress)
	return nil
}

// Complete validates the results against the result schema and, on success,
// transitions to done and freezes the results.
//
// On validation failure the state and results are unchanged.
func (c *Instance) Complete(results map[string]any) error {
	c.mu.Lock()
	if c.state != StateInProgress && c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot complete in state %q", ErrInvalidState, state)
	}
	if results == nil {
		results = map[string]any{}
	}
	if err := c.def.Results().Validate(results); err != nil {
		c.mu.Unlock()
		return err
	}
	from := c.state
	c.results = copyMap(results)
	c.state = StateDone
	cb := c.onStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(c, from, StateDone)
	}
	return nil
}

// Abort marks the command as aborted by the executing agent, recording the
// machine-readable code and message. Fails on terminal instances.
func (c *Instance) Abort(errorCode, errorMessage string) error {
	return c.fail(StateAborted, errorCode, errorMessage)
}

// Fail marks the command as failed during execution. Like Abort but lands
// in the error state, distinguishing execution faults from deliberate
// agent-side aborts.
func (c *Instance) Fail(errorCode, errorMessage string) error {
	return c.fail(StateError, errorCode, errorMessage)
}

// Cancel marks the command as cancelled by its issuer.
// Fails on terminal instances.
func (c *Instance) Cancel() error {
	return c.transition(StateCancelled,
		StateQueued, StateInProgress, StatePaused)
}

// ErrorDetail returns the error code and message recorded by Abort or Fail.
func (c *Instance) ErrorDetail() (code, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorCode, c.errorMessage
}

// ToMap serializes the full instance for status queries.
func (c *Instance) ToMap() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := map[string]any{
		"id":         c.id,
		"name":       c.name,
		"component":  c.component,
		"origin":     string(c.origin),
		"state":      string(c.state),
		"parameters": copyMap(c.parameters),
		"progress":   copyMap(c.progress),
		"results":    copyMap(c.results),
	}
	if c.errorCode != "" || c.errorMessage != "" {
		out["error"] = map[string]any{
			"code":    c.errorCode,
			"message": c.errorMessage,
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler using the ToMap representation.
func (c *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToMap())
}

// transition moves to target if the current state is one of from.
func (c *Instance) transition(target State, from ...State) error {
	c.mu.Lock()
	current := c.state
	allowed := false
	for _, f := range from {
		if current == f {
			allowed = true
			break
		}
	}
	if !allowed {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q -> %q", ErrInvalidState, current, target)
	}
	c.state = target
	cb := c.onStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(c, current, target)
	}
	return nil
}

// fail transitions to aborted or error from any non-terminal state.
func (c *Instance) fail(target State, errorCode, errorMessage string) error {
	c.mu.Lock()
	current := c.state
	if current.Terminal() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q -> %q", ErrInvalidState, current, target)
	}
	c.state = target
	c.errorCode = errorCode
	c.errorMessage = errorMessage
	cb := c.onStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(c, current, target)
	}
	return nil
}

// setOnStateChange registers the manager's transition observer.
func (c *Instance) setOnStateChange(fn func(inst *Instance, from, to State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// stringField extracts an optional or required string field from a payload.
func stringField(payload map[string]any, key string, required bool) (string, error) {
	raw, ok := payload[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%w: missing %q", ErrMalformedPayload, key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrMalformedPayload, key)
	}
	if required && s == "" {
		return "", fmt.Errorf("%w: %q must not be empty", ErrMalformedPayload, key)
	}
	return s, nil
}

// copyMap shallow-plus-nested copies a JSON-shaped value map.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue recursively copies nested maps and slices; primitives are safe
// to share.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyValue(elem)
		}
		return out
	default:
		return v
	}
}
