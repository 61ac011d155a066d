// Package model defines the clan entity tree and the queries over it.
//
// Entities are plain values built from backend output by the New* factories.
// They hold no references to the collection that owns them; relationships
// such as "is this clan active", "which machines carry this tag" or "which
// service instances apply to this machine" are answered by query methods on
// the owning collection, which take an id and return an (value, ok) pair.
// An entity that has been removed from its collection therefore simply
// reports ok == false.
//
// The tree is:
//
//	Clans
//	 └── ClanEntry (*Clan | *ClanMeta)
//	      ├── Machines (by id, active id, highlighted set)
//	      ├── Services
//	      └── ServiceInstances (identity: name; linked to a service by id)
//
// Positions allocates grid cells for machines. Allocation walks a spiral
// outwards from the origin and skips cells already taken, so a new machine
// never lands on another machine and re-querying a machine returns the cell
// it already holds. An explicit move may share a cell; the cell stays taken
// until its last holder leaves.
//
// Values in this package are not safe for concurrent mutation; the store
// package serializes access and hands out deep copies via the Clone methods.
package model
