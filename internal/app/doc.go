// Package app is the composition root of clanboard.
//
// # Overview
//
// Open wires configuration, logging, key-value storage, the RPC transport
// and client, the toast center and the clan store into a Stack. Run builds
// a Stack, starts the background poller and the optional metrics endpoint,
// and blocks in the TUI until the user quits or the context is cancelled.
// The CLI subcommands in cmd/clanboard use Open directly.
//
// # Startup
//
//  1. Load ~/.config/clanboard/config.toml and apply flag overrides
//  2. Build the zap logger (JSON file for the TUI, console for CLI commands)
//  3. Open the storage backend (badger, file or memory)
//  4. Dial the host over NATS, or serve the in-memory demo host
//  5. Build the RPC client reporting to the toast center and Prometheus
//  6. Restore the clan list from storage and load the active clan
//  7. Start the poller and hand over to the UI
//
// # Components
//
//   - app.go: Options, Stack, Open and Run
//   - metrics.go: /metrics endpoint for the RPC call metrics
//   - poller.go: background refresh of the active clan with backoff
//
// # Polling
//
// The poller refreshes machine statuses of the active clan every
// refresh_every. Failed refreshes back off exponentially up to 30s and are
// logged; the UI keeps showing the last known state.
package app
