// Package state maintains the queryable device-state document and the
// bounded change log that feeds the upstream notifier.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                         State Engine                              │
//	│                                                                   │
//	│  ┌──────────────────┐        ┌──────────────────┐                 │
//	│  │     Manager      │        │      Queue       │                 │
//	│  │   (manager.go)   │───────▶│    (queue.go)    │                 │
//	│  │                  │ append │                  │                 │
//	│  │ • current values │        │ • bounded FIFO   │                 │
//	│  │ • schema checks  │        │ • coalescing     │                 │
//	│  │ • batch updates  │        │ • single drainer │                 │
//	│  └──────────────────┘        └──────────────────┘                 │
//	│          │                            │                           │
//	└──────────│────────────────────────────│───────────────────────────┘
//	           ▼                            ▼
//	┌──────────────────────┐     ┌──────────────────────┐
//	│ SnapshotRepository   │     │  upstream notifier   │
//	│  (state_snapshot)    │     │  (GetAllChanges)     │
//	└──────────────────────┘     └──────────────────────┘
//
// Property definitions are loaded from package-scoped JSON documents:
//
//	{
//	  "power": {
//	    "batteryLevel": {"type": "integer", "minimum": 0, "maximum": 100, "default": 100}
//	  }
//	}
//
// declaring the fully-qualified property "power.batteryLevel". Every write
// is validated against the property's schema before it is committed and
// queued; a failed write changes nothing.
//
// # Overflow Coalescing
//
// The queue is bounded (default 100 records). When full, the oldest record
// is merged into its successor before the new record is appended: newer
// values win per property, so intermediate snapshots collapse but the
// latest value of every property survives arbitrary overflow. This bounds
// memory while the upstream channel is disconnected without ever silently
// dropping a property mutation.
//
// # Thread Safety
//
// Manager and Queue are mutex-guarded and safe for concurrent use, with one
// restriction inherited from the delivery contract: the queue supports
// exactly one draining consumer, which the host must not run concurrently
// with itself.
package state
