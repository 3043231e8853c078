package transport

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/lattice-home/lattice-agent/internal/command"
	"github.com/lattice-home/lattice-agent/internal/infrastructure/mqtt"
)

// MockPublisher records publishes and subscriptions in memory.
type MockPublisher struct {
	mu         sync.Mutex
	published  []publishedMessage
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

type publishedMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *MockPublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedMessage{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *MockPublisher) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

// deliver simulates a broker delivery to a subscribed handler.
func (m *MockPublisher) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed on %q", topic)
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

// messagesOn returns all publishes to one topic.
func (m *MockPublisher) messagesOn(topic string) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMessage
	for _, msg := range m.published {
		if msg.topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func newTestAdapter(t *testing.T) (*CloudAdapter, *command.Manager, *MockPublisher, mqtt.Topics) {
	t.Helper()

	mgr := command.NewManager()
	defs := map[string]any{
		"robot": map[string]any{
			"jump": map[string]any{
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"height": map[string]any{
							"type":    "integer",
							"minimum": float64(0),
							"maximum": float64(100),
						},
					},
				},
			},
		},
	}
	if err := mgr.LoadCommands(defs, "base"); err != nil {
		t.Fatalf("LoadCommands() error = %v", err)
	}

	pub := NewMockPublisher()
	topics := mqtt.NewTopics("dev-42")
	adapter := NewCloudAdapter(mgr, pub, topics, 1)
	if err := adapter.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return adapter, mgr, pub, topics
}

func TestCloudAdapter_AcceptsCommand(t *testing.T) {
	_, mgr, pub, topics := newTestAdapter(t)

	pub.deliver(t, topics.CommandInbox(),
		[]byte(`{"name": "robot.jump", "parameters": {"height": 50}}`))

	acks := pub.messagesOn(topics.CommandAck())
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}

	var ack ackMessage
	if err := json.Unmarshal(acks[0].payload, &ack); err != nil {
		t.Fatalf("decoding ack: %v", err)
	}
	if !ack.Accepted {
		t.Fatalf("ack.Accepted = false, reason %q", ack.Reason)
	}
	if ack.CommandID == "" {
		t.Error("ack carries no command id")
	}

	if _, ok := mgr.FindCommand(ack.CommandID); !ok {
		t.Error("accepted command not in live set")
	}
}

func TestCloudAdapter_RejectsInvalidCommand(t *testing.T) {
	_, mgr, pub, topics := newTestAdapter(t)

	tests := []struct {
		name    string
		payload string
	}{
		{"unknown command", `{"name": "robot.fly"}`},
		{"bad parameter type", `{"name": "robot.jump", "parameters": {"height": "high"}}`},
		{"out of range", `{"name": "robot.jump", "parameters": {"height": 500}}`},
		{"not json", `{{{`},
		{"missing name", `{"parameters": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(pub.messagesOn(topics.CommandAck()))
			pub.deliver(t, topics.CommandInbox(), []byte(tt.payload))

			acks := pub.messagesOn(topics.CommandAck())
			if len(acks) != before+1 {
				t.Fatalf("acks = %d, want %d", len(acks), before+1)
			}

			var ack ackMessage
			if err := json.Unmarshal(acks[len(acks)-1].payload, &ack); err != nil {
				t.Fatalf("decoding ack: %v", err)
			}
			if ack.Accepted {
				t.Error("ack.Accepted = true for invalid payload")
			}
			if ack.Reason == "" {
				t.Error("rejection carries no reason")
			}
		})
	}

	if got := len(mgr.Commands()); got != 0 {
		t.Errorf("live set = %d instances after rejections, want 0", got)
	}
}

func TestCloudAdapter_PublishesStatusOnTransitions(t *testing.T) {
	_, mgr, pub, topics := newTestAdapter(t)

	pub.deliver(t, topics.CommandInbox(), []byte(`{"name": "robot.jump"}`))

	insts := mgr.Commands()
	if len(insts) != 1 {
		t.Fatalf("live set = %d, want 1", len(insts))
	}
	inst := insts[0]

	if err := inst.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := inst.Complete(map[string]any{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	statuses := pub.messagesOn(topics.CommandStatus())
	if len(statuses) != 2 {
		t.Fatalf("status messages = %d, want 2", len(statuses))
	}

	var last map[string]any
	if err := json.Unmarshal(statuses[1].payload, &last); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if last["state"] != "done" {
		t.Errorf("state = %v, want done", last["state"])
	}
	if last["previous_state"] != "inProgress" {
		t.Errorf("previous_state = %v, want inProgress", last["previous_state"])
	}
	if last["id"] != inst.ID() {
		t.Errorf("id = %v, want %v", last["id"], inst.ID())
	}
}

func TestCloudAdapter_PublishesDefinitionsRetained(t *testing.T) {
	_, mgr, pub, topics := newTestAdapter(t)

	// Start seeds the retained definitions document.
	defs := pub.messagesOn(topics.Definitions())
	if len(defs) != 1 {
		t.Fatalf("definition publishes = %d after Start, want 1", len(defs))
	}
	if !defs[0].retained {
		t.Error("definitions not published retained")
	}

	var doc map[string]any
	if err := json.Unmarshal(defs[0].payload, &doc); err != nil {
		t.Fatalf("decoding definitions: %v", err)
	}
	robot, ok := doc["robot"].(map[string]any)
	if !ok {
		t.Fatalf("robot package missing from %v", doc)
	}
	if _, ok := robot["jump"]; !ok {
		t.Error("robot.jump missing from published definitions")
	}

	// A logical dictionary change republishes.
	extra := map[string]any{"robot": map[string]any{"speak": map[string]any{}}}
	if err := mgr.LoadCommands(extra, "extras"); err != nil {
		t.Fatalf("LoadCommands() error = %v", err)
	}
	if got := len(pub.messagesOn(topics.Definitions())); got != 2 {
		t.Errorf("definition publishes = %d after change, want 2", got)
	}

	// An identical reload must not republish.
	if err := mgr.LoadCommands(extra, "extras"); err != nil {
		t.Fatalf("LoadCommands() error = %v", err)
	}
	if got := len(pub.messagesOn(topics.Definitions())); got != 2 {
		t.Errorf("definition publishes = %d after no-op reload, want 2", got)
	}
}
