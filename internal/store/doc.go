// Package store owns the clan tree shown by clanboard.
//
// # Overview
//
// Clans holds every known clan, the machines and service instances of the
// loaded ones, and the machine grid positions. It is the coordination point
// between the host API (clanapi), local persistence (persist) and the UI,
// which renders copies and subscribes to changes.
//
// # Architecture
//
//	UI / workflows                 Clans                     host
//	┌──────────────┐   handle   ┌──────────────┐   Backend   ┌──────┐
//	│ clan.Machines│──────────→ │ view/update  │───────────→ │ RPC  │
//	│   .Create()  │            │  (RWMutex)   │             └──────┘
//	│ Subscribe()  │←────────── │      ↓       │
//	└──────────────┘  notify    │ persist.Save │──→ kv.Backend
//	                            └──────────────┘
//
// # Handles
//
// Nested entities are reached through small handles that carry ids, never
// pointers into the tree:
//
//   - Clan: one clan (Clans.Clan)
//   - Machines: the machine collection of a clan (Clan.Machines)
//   - Machine: one machine (Machines.Machine)
//   - ServiceInstances: the instances of a clan (Clan.ServiceInstances)
//
// A handle outlives the entity it names. Once the clan or machine is gone
// every method reports ErrNotFound or ErrNotMember instead of acting on
// stale data.
//
// # Concurrency Model
//
// All state sits in one tree behind a sync.RWMutex:
//
//   - view: read lock, used by queries; results are deep copies
//   - update: write lock, used by mutations
//
// The lock is never held across a host call. Mutations that need the host
// read what they need, release the lock, call the host, then take the write
// lock again and look the entity up by id. Concurrent updates of the same
// entity are last write wins.
//
// # Persistence
//
// Mutations mark which stored keys they invalidate (persist.Dirty). When
// update returns, the marked keys are recomputed from the whole tree and
// written. Writes are full rewrites, so saving twice is harmless. A storage
// failure is logged and the in-memory change stands.
//
// # Subscriptions
//
// Subscribe returns a channel with a buffer of one. Changes that arrive
// while the reader is busy coalesce into a single pending notification, so
// a slow UI never blocks a mutation.
//
// # Activation
//
// Activating returns the activated entity, or nil, nil when it already was
// active. Callers use the nil result to skip redundant work such as
// re-rendering the grid.
package store
