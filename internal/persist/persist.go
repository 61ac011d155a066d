package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/kv"
	"github.com/five82/clanboard/internal/model"
)

// Storage keys.
const (
	KeyClanIDs          = "clanIds"
	KeyActiveClanIndex  = "activeClanIndex"
	KeyActiveClanID     = "activeClanId"
	KeyMachinePositions = "machinePositions"
	KeyTheme            = "theme"
)

// Dirty marks the slices of state that changed since the last save.
type Dirty uint8

const (
	DirtyClanIDs Dirty = 1 << iota
	DirtyActiveClan
	DirtyMachines
	DirtyPositions
)

// Has reports whether every flag in f is set.
func (d Dirty) Has(f Dirty) bool { return d&f == f }

// Expand applies the cascade: a changed clan list changes the machine set,
// and a changed machine set changes the stored positions.
func (d Dirty) Expand() Dirty {
	if d.Has(DirtyClanIDs) {
		d |= DirtyMachines
	}
	if d.Has(DirtyMachines) {
		d |= DirtyPositions
	}
	return d
}

func (d Dirty) String() string {
	if d == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		flag Dirty
		name string
	}{
		{DirtyClanIDs, "clanIds"},
		{DirtyActiveClan, "activeClan"},
		{DirtyMachines, "machines"},
		{DirtyPositions, "positions"},
	} {
		if d.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// State is the persisted subset of UI state.
type State struct {
	ClanIDs     []string
	ActiveIndex int
	ActiveID    string
	Positions   map[string]map[string]model.Position
}

// Snapshot extracts the persisted state from clans. Positions come from the
// machines of loaded clans; for clans that are listed but not loaded the
// positions held in book are kept.
func Snapshot(clans model.Clans, book model.PositionBook) State {
	s := State{
		ClanIDs:     clans.IDs(),
		ActiveIndex: -1,
		Positions:   make(map[string]map[string]model.Position),
	}
	if active, ok := clans.ActiveClan(); ok {
		s.ActiveIndex = clans.ActiveIndex
		s.ActiveID = active.ID
	}
	for _, e := range clans.All {
		if c, ok := model.AsClan(e); ok {
			s.Positions[c.ID] = c.Machines.PositionMap()
			continue
		}
		if p, ok := book[e.ClanID()]; ok {
			s.Positions[e.ClanID()] = p.All()
		}
	}
	return s
}

// Save rewrites every key selected by dirty from s. Each key is written in
// full, so repeating a save is harmless.
func Save(store kv.Backend, s State, dirty Dirty) error {
	dirty = dirty.Expand()
	var errs []error

	if dirty.Has(DirtyClanIDs) {
		ids := s.ClanIDs
		if ids == nil {
			ids = []string{}
		}
		if err := setJSON(store, KeyClanIDs, ids); err != nil {
			errs = append(errs, err)
		}
	}
	if dirty.Has(DirtyActiveClan) || dirty.Has(DirtyClanIDs) {
		if err := store.Set(KeyActiveClanIndex, strconv.Itoa(s.ActiveIndex)); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", KeyActiveClanIndex, err))
		}
		if err := store.Set(KeyActiveClanID, s.ActiveID); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", KeyActiveClanID, err))
		}
	}
	if dirty.Has(DirtyPositions) {
		positions := s.Positions
		if positions == nil {
			positions = map[string]map[string]model.Position{}
		}
		if err := setJSON(store, KeyMachinePositions, positions); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setJSON(store kv.Backend, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Load reads the persisted state. Missing keys yield empty values and an
// active index of -1. Malformed values are logged and treated as missing.
// The returned error only reports backend failures.
func Load(store kv.Backend, logger *zap.Logger) (State, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := State{
		ClanIDs:     []string{},
		ActiveIndex: -1,
		Positions:   map[string]map[string]model.Position{},
	}

	raw, ok, err := get(store, KeyClanIDs)
	if err != nil {
		return s, err
	}
	if ok {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			logger.Warn("ignore malformed stored value", zap.String("key", KeyClanIDs), zap.Error(err))
		} else if ids != nil {
			s.ClanIDs = ids
		}
	}

	raw, ok, err = get(store, KeyActiveClanIndex)
	if err != nil {
		return s, err
	}
	if ok {
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		switch {
		case err != nil:
			logger.Warn("ignore malformed stored value", zap.String("key", KeyActiveClanIndex), zap.Error(err))
		case idx < -1 || idx >= len(s.ClanIDs):
			logger.Warn("ignore out of range active clan index", zap.Int("index", idx), zap.Int("clans", len(s.ClanIDs)))
		default:
			s.ActiveIndex = idx
		}
	}

	raw, ok, err = get(store, KeyActiveClanID)
	if err != nil {
		return s, err
	}
	if ok {
		s.ActiveID = raw
	}
	s.reconcileActive(logger)

	raw, ok, err = get(store, KeyMachinePositions)
	if err != nil {
		return s, err
	}
	if ok {
		var positions map[string]map[string]model.Position
		if err := json.Unmarshal([]byte(raw), &positions); err != nil {
			logger.Warn("ignore malformed stored value", zap.String("key", KeyMachinePositions), zap.Error(err))
		} else if positions != nil {
			s.Positions = positions
		}
	}
	return s, nil
}

// reconcileActive prefers the stored id over the index when both exist and
// disagree, since the id survives reordering.
func (s *State) reconcileActive(logger *zap.Logger) {
	if s.ActiveID == "" {
		if s.ActiveIndex >= 0 {
			s.ActiveID = s.ClanIDs[s.ActiveIndex]
		}
		return
	}
	for i, id := range s.ClanIDs {
		if id == s.ActiveID {
			if i != s.ActiveIndex {
				logger.Info("active clan index follows stored id", zap.String("id", id), zap.Int("index", i))
			}
			s.ActiveIndex = i
			return
		}
	}
	logger.Warn("stored active clan is not listed", zap.String("id", s.ActiveID))
	s.ActiveID = ""
	s.ActiveIndex = -1
}

func get(store kv.Backend, key string) (string, bool, error) {
	v, err := store.Get(key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

// LoadTheme returns the stored UI theme name, or "" when none was saved.
func LoadTheme(store kv.Backend) (string, error) {
	v, _, err := get(store, KeyTheme)
	return strings.TrimSpace(v), err
}

// SaveTheme stores the UI theme name.
func SaveTheme(store kv.Backend, name string) error {
	if err := store.Set(KeyTheme, name); err != nil {
		return fmt.Errorf("write %s: %w", KeyTheme, err)
	}
	return nil
}
