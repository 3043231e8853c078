package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lattice-home/lattice-agent/internal/command"
	"github.com/lattice-home/lattice-agent/internal/infrastructure/mqtt"
)

// Publisher is the outbound MQTT surface the adapter needs.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the adapter.
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

// CloudAdapter wires the command engine to the broker: inbound command
// payloads become queued instances, lifecycle transitions and dictionary
// changes flow back out.
type CloudAdapter struct {
	commands *command.Manager
	pub      Publisher
	topics   mqtt.Topics
	qos      byte
	logger   Logger
}

// NewCloudAdapter creates an adapter for one device's topic subtree.
func NewCloudAdapter(commands *command.Manager, pub Publisher, topics mqtt.Topics, qos byte) *CloudAdapter {
	return &CloudAdapter{
		commands: commands,
		pub:      pub,
		topics:   topics,
		qos:      qos,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the adapter.
func (a *CloudAdapter) SetLogger(logger Logger) {
	a.logger = logger
}

// Start subscribes to the inbound command topic and registers the outbound
// observers. Call once after the command manager has loaded its definitions.
func (a *CloudAdapter) Start() error {
	a.commands.SetOnCommandDefChanged(a.publishDefinitions)
	a.commands.SetOnCommandStateChanged(a.publishStatus)

	if err := a.pub.Subscribe(a.topics.CommandInbox(), a.qos, a.handleInbound); err != nil {
		return fmt.Errorf("subscribing to command inbox: %w", err)
	}

	// Seed the retained definitions document so a freshly connected
	// controller sees the capability set immediately.
	a.publishDefinitions()
	return nil
}

// handleInbound processes one payload from the command inbox.
//
// Every payload is acknowledged: accepted commands with their assigned id,
// rejected ones with the reason. A malformed payload never mutates the
// live set.
func (a *CloudAdapter) handleInbound(_ string, payload []byte) error {
	inst, err := a.commands.NewCommandJSON(payload)
	if err != nil {
		a.logger.Warn("command rejected", "error", err)
		a.publishAck(ackMessage{
			Accepted: false,
			Reason:   err.Error(),
		})
		return nil // Rejection is answered on the ack topic, not re-logged.
	}

	a.logger.Info("command accepted", "id", inst.ID(), "name", inst.Name())
	a.publishAck(ackMessage{
		Accepted:  true,
		CommandID: inst.ID(),
		Name:      inst.Name(),
	})
	return nil
}

// ackMessage is the wire form of a command acknowledgement.
type ackMessage struct {
	Accepted  bool   `json:"accepted"`
	CommandID string `json:"command_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (a *CloudAdapter) publishAck(msg ackMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		a.logger.Error("encoding command ack", "error", err)
		return
	}
	if err := a.pub.Publish(a.topics.CommandAck(), data, a.qos, false); err != nil {
		a.logger.Error("publishing command ack", "error", err)
	}
}

// publishStatus emits one lifecycle update on the status topic.
func (a *CloudAdapter) publishStatus(inst *command.Instance, from, to command.State) {
	doc := inst.ToMap()
	doc["previous_state"] = string(from)
	doc["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(doc)
	if err != nil {
		a.logger.Error("encoding command status", "id", inst.ID(), "error", err)
		return
	}
	if err := a.pub.Publish(a.topics.CommandStatus(), data, a.qos, false); err != nil {
		a.logger.Error("publishing command status", "id", inst.ID(), "error", err)
	}
}

// publishDefinitions publishes the full dictionary retained, so the
// controller always holds the current capability set.
func (a *CloudAdapter) publishDefinitions() {
	doc := a.commands.Dictionary().CommandsAsMap(true)
	data, err := json.Marshal(doc)
	if err != nil {
		a.logger.Error("encoding command definitions", "error", err)
		return
	}
	if err := a.pub.Publish(a.topics.Definitions(), data, a.qos, true); err != nil {
		a.logger.Error("publishing command definitions", "error", err)
	}
}
