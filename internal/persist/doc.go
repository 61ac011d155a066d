// Package persist saves and restores the UI state that outlives a session:
// the list of known clans, the active clan and the machine grid positions.
//
// Store mutations record what they changed as Dirty flags. Save recomputes
// only the flagged keys, each in full from a State snapshot:
//
//	clanIds           JSON array of clan ids, in list order
//	activeClanIndex   decimal index, -1 when no clan is active
//	activeClanId      id of the active clan, empty when none
//	machinePositions  JSON object clan id -> machine id -> [x, y]
//
// Flags cascade: a changed clan list implies a changed machine set, and a
// changed machine set implies changed positions.
//
// Load never fails on bad data. Missing keys give an empty list and index
// -1; malformed values are logged and ignored.
package persist
