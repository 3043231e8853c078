// Package command implements the device-side command engine: declarative
// command definitions, the runtime dictionary they are registered in, and the
// lifecycle of individual command instances issued by a controller.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                          Command Engine                              │
//	│                                                                      │
//	│  ┌────────────────┐   ┌────────────────┐   ┌────────────────────┐   │
//	│  │    Manager     │   │   Dictionary   │   │      Instance      │   │
//	│  │  (manager.go)  │──▶│ (dictionary.go)│   │   (instance.go)    │   │
//	│  │                │   │                │   │                    │   │
//	│  │ • live set     │   │ • name lookup  │   │ • state machine    │   │
//	│  │ • UUID ids     │   │ • categories   │   │ • progress/results │   │
//	│  │ • def-changed  │   │ • atomic swap  │   │ • result schema    │   │
//	│  │   callback     │   │                │   │   enforcement      │   │
//	│  └────────────────┘   └────────────────┘   └────────────────────┘   │
//	│          │                                                           │
//	└──────────│───────────────────────────────────────────────────────────┘
//	           ▼
//	┌──────────────────────┐
//	│  HistoryRepository   │
//	│  (command_history)   │
//	└──────────────────────┘
//
// Definitions are loaded from category-scoped JSON documents of the form
//
//	{
//	  "robot": {
//	    "jump": {
//	      "parameters": {"type": "object", "properties": {...}},
//	      "results":    {"type": "object", "properties": {...}}
//	    }
//	  }
//	}
//
// where the fully-qualified command name is "robot.jump". Loading a category
// atomically replaces only that category's entries, so built-in definitions
// and runtime test overrides coexist; a duplicate name across categories is
// a hard failure that leaves the dictionary untouched.
//
// # Instance Lifecycle
//
//	queued ──▶ inProgress ◀──▶ paused
//	   │            │             │
//	   └──────┬─────┴─────┬───────┘
//	          ▼           ▼
//	 cancelled/aborted   done / error
//
// Terminal states (done, cancelled, aborted, error) are sticky: any further
// mutation fails with ErrInvalidState.
//
// # Thread Safety
//
// Manager, Dictionary and Instance each guard their state with a mutex and
// are safe for concurrent use.
package command
