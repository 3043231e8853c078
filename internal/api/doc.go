// Package api provides the local HTTP REST API and WebSocket server for the
// Lattice device agent.
//
// It exposes the command engine and state store to on-device tooling and
// local controllers: commands can be issued, inspected and cancelled, state
// can be read and patched, and a WebSocket stream relays state deltas and
// command status updates in real time.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
