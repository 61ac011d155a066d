// Package kv stores small string values that must survive restarts.
//
// Three backends implement Backend:
//
//   - Badger: an embedded Badger database under <data_dir>/state (default)
//   - File: a single TOML table in <data_dir>/state.toml
//   - Memory: a map, for tests and --storage=memory
//
// Values are opaque to this package. The persist package decides which
// keys exist and how their values are encoded. Paths accept a leading ~.
package kv
