// Package config loads the clanboard configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/clanboard/config.toml
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing or empty, keep the defaults
//
// # Default Values
//
//   - NATS server: nats://127.0.0.1:4222, subjects under "clan.api"
//   - Request timeout: 30s; status refresh every 10s
//   - Storage: badger in ~/.local/share/clanboard
//   - Log file: <data_dir>/clanboard.log at level info
//   - Theme: Nightfox; metrics endpoint disabled
//
// # TOML Format
//
//	nats_url = "nats://10.0.0.5:4222"
//	subject_prefix = "clan.api"
//	request_timeout = "30s"
//	refresh_every = "10s"
//	storage = "badger"          # badger, file or memory
//	data_dir = "~/.local/share/clanboard"
//	log_level = "info"
//	log_file = "~/.local/share/clanboard/clanboard.log"
//	theme = "Nightfox"
//	metrics_addr = "127.0.0.1:9102"
//
// Every field is optional. Values are trimmed, storage and log_level are
// lower-cased, and paths get tilde expansion. Durations must be positive.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, TOML syntax errors and invalid durations. A missing file
// is not an error.
//
// Command-line flags are applied by cmd/clanboard on top of the loaded
// Config; this package keeps no global state.
package config
