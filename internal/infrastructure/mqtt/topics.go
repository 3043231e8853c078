package mqtt

import "fmt"

// TopicPrefix is the base for all Lattice MQTT topics.
//
// All device topics use the scheme: lattice/{device_id}/{channel...}
const TopicPrefix = "lattice"

// Topics builds the MQTT topics for one device.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("dev-42")
//	topics.CommandInbox() // "lattice/dev-42/commands/inbox"
type Topics struct {
	deviceID string
}

// NewTopics creates a topic builder scoped to deviceID.
func NewTopics(deviceID string) Topics {
	return Topics{deviceID: deviceID}
}

// CommandInbox returns the topic carrying inbound command payloads from the
// cloud controller.
//
// Example: lattice/dev-42/commands/inbox
func (t Topics) CommandInbox() string {
	return fmt.Sprintf("%s/%s/commands/inbox", TopicPrefix, t.deviceID)
}

// CommandAck returns the topic for command acceptance and rejection
// acknowledgements.
//
// Example: lattice/dev-42/commands/ack
func (t Topics) CommandAck() string {
	return fmt.Sprintf("%s/%s/commands/ack", TopicPrefix, t.deviceID)
}

// CommandStatus returns the topic for command lifecycle updates (state
// transitions, progress, results).
//
// Example: lattice/dev-42/commands/status
func (t Topics) CommandStatus() string {
	return fmt.Sprintf("%s/%s/commands/status", TopicPrefix, t.deviceID)
}

// Definitions returns the topic carrying the device's current command
// dictionary, published retained whenever the dictionary logically changes.
//
// Example: lattice/dev-42/definitions
func (t Topics) Definitions() string {
	return fmt.Sprintf("%s/%s/definitions", TopicPrefix, t.deviceID)
}

// StateDelta returns the topic for incremental state-change batches.
//
// Example: lattice/dev-42/state/delta
func (t Topics) StateDelta() string {
	return fmt.Sprintf("%s/%s/state/delta", TopicPrefix, t.deviceID)
}

// StateFull returns the topic for full state documents, published retained
// so late subscribers see the current state without waiting for a delta.
//
// Example: lattice/dev-42/state/full
func (t Topics) StateFull() string {
	return fmt.Sprintf("%s/%s/state/full", TopicPrefix, t.deviceID)
}

// SystemStatus returns the device availability topic, used for both the
// online announcement and the Last Will offline message.
//
// Example: lattice/dev-42/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/%s/system/status", TopicPrefix, t.deviceID)
}

// AllDeviceTopics returns a pattern matching every topic of this device.
// Use with caution - this receives ALL traffic for the device.
//
// Pattern: lattice/dev-42/#
func (t Topics) AllDeviceTopics() string {
	return fmt.Sprintf("%s/%s/#", TopicPrefix, t.deviceID)
}
