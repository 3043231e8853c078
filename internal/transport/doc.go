// Package transport bridges the command engine to the cloud controller
// over MQTT.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                        Cloud Adapter                             │
//	│                                                                  │
//	│  commands/inbox ──▶ parse payload ──▶ command.Manager            │
//	│                          │                   │                   │
//	│  commands/ack   ◀── accept/reject            │ transitions       │
//	│  commands/status ◀───────────────────────────┘                   │
//	│                                                                  │
//	│  definitions    ◀── dictionary change (retained)                 │
//	└──────────────────────────────────────────────────────────────────┘
//
// Inbound payloads on commands/inbox are validated and enqueued; every
// payload is answered on commands/ack with either the assigned command id
// or a rejection reason. Accepted commands then stream their lifecycle
// transitions on commands/status.
//
// The command dictionary is published retained on the definitions topic
// whenever it logically changes, so the controller always has the current
// capability set without polling.
//
// # Thread Safety
//
// The adapter is safe for concurrent use; inbound message handling and
// outbound publications synchronise only inside the underlying components.
package transport
