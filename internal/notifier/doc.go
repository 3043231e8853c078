// Package notifier drains buffered state changes to the cloud controller.
//
// # Architecture
//
//	┌────────────┐   drain tick / kick   ┌───────────────────────────────┐
//	│ state.Queue│ ────────────────────▶ │           Notifier            │
//	└────────────┘                       │                               │
//	                                     │  state/delta ◀── change batch │
//	                                     │  state/full  ◀── snapshot     │
//	                                     │  (retained)      on reconnect │
//	                                     │                               │
//	                                     │  InfluxDB    ◀── numeric      │
//	                                     │                  samples      │
//	                                     └───────────────────────────────┘
//
// The notifier is the queue's single consumer. On a fixed cadence (or when
// kicked after a broker reconnect) it drains every buffered change record
// and publishes them as one delta document. After each reconnect kick it
// additionally publishes the complete state document retained, so a
// controller that missed deltas while the device was offline resynchronises
// from the full snapshot.
//
// Numeric property values are mirrored to InfluxDB as time-series samples
// when a metrics client is attached.
//
// # Thread Safety
//
// Start and Stop must be paired from a single owner. Kick is safe from any
// goroutine.
package notifier
