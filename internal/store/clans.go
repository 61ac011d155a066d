package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/persist"
)

// PickClanDir lets the user choose a clan directory on the host. An empty
// result means the picker was dismissed.
func (s *Clans) PickClanDir(ctx context.Context) (string, error) {
	return s.api.PickClanDir(ctx)
}

// ClanIndex returns the list position of a clan.
func (s *Clans) ClanIndex(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.clans.Index(id)
}

// ActivateClan makes the clan with the given id active. See ActivateClanAt.
func (s *Clans) ActivateClan(ctx context.Context, id string) (*model.Clan, error) {
	i, ok := s.ClanIndex(id)
	if !ok {
		return nil, fmt.Errorf("clan %s: %w", id, ErrNotFound)
	}
	return s.ActivateClanAt(ctx, i)
}

// ActivateClanAt makes the clan at index i active and returns it. A clan
// that is only known by metadata is fetched and replaced by the loaded
// clan first. It returns nil, nil when the clan is already active.
func (s *Clans) ActivateClanAt(ctx context.Context, i int) (*model.Clan, error) {
	var (
		id     string
		result *model.Clan
		done   bool
	)
	err := s.update(func(t *tree) error {
		if i < 0 || i >= len(t.clans.All) {
			return fmt.Errorf("index %d of %d: %w", i, len(t.clans.All), ErrIndexOutOfRange)
		}
		if t.clans.ActiveIndex == i {
			done = true
			return nil
		}
		e := t.clans.All[i]
		id = e.ClanID()
		if c, ok := model.AsClan(e); ok {
			t.clans.ActiveIndex = i
			t.mark(persist.DirtyActiveClan)
			result, done = c.Clone(), true
		}
		return nil
	})
	if err != nil || done {
		return result, err
	}

	out, err := s.api.LoadClan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load clan %s: %w", id, err)
	}

	err = s.update(func(t *tree) error {
		// The list may have changed while the clan was fetched.
		idx, ok := t.clans.Index(id)
		if !ok {
			return fmt.Errorf("clan %s: %w", id, ErrNotFound)
		}
		c, loaded := model.AsClan(t.clans.All[idx])
		if !loaded {
			c = s.newClan(out, t.positions.For(id))
			t.clans.All[idx] = c
			t.mark(persist.DirtyMachines)
		}
		if t.clans.ActiveIndex != idx {
			t.clans.ActiveIndex = idx
			t.mark(persist.DirtyActiveClan)
		}
		result = c.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("clan activated", zap.String("clan", id))
	return result, nil
}

// DeactivateClan clears the active clan. With a non-empty id it only does
// so when that clan is the active one.
func (s *Clans) DeactivateClan(id string) {
	_ = s.update(func(t *tree) error {
		if t.clans.ActiveIndex < 0 {
			return nil
		}
		if id != "" && !t.clans.IsActive(id) {
			return nil
		}
		t.clans.ActiveIndex = -1
		t.mark(persist.DirtyActiveClan)
		return nil
	})
}

// LoadClan activates the clan with the given id, fetching and appending it
// when it is not listed yet. Like ActivateClanAt it returns nil, nil when
// the clan is already active.
func (s *Clans) LoadClan(ctx context.Context, id string) (*model.Clan, error) {
	if i, ok := s.ClanIndex(id); ok {
		return s.ActivateClanAt(ctx, i)
	}

	out, err := s.api.LoadClan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load clan %s: %w", id, err)
	}
	return s.appendActive(id, func(t *tree) *model.Clan {
		return s.newClan(out, t.positions.For(id))
	})
}

// CreateClan creates a clan directory on the host, appends the new clan and
// activates it.
func (s *Clans) CreateClan(ctx context.Context, id string, data model.ClanData) (*model.Clan, error) {
	if _, exists := s.ClanIndex(id); exists {
		return nil, fmt.Errorf("clan %s: %w", id, ErrDuplicateClan)
	}
	meta := model.ClanMetaData{Name: data.Name, Description: data.Description}
	if err := s.api.CreateClan(ctx, id, meta); err != nil {
		return nil, fmt.Errorf("create clan %s: %w", id, err)
	}
	return s.appendActive(id, func(t *tree) *model.Clan {
		return s.newClan(model.ClanOutput{
			ID:         id,
			Data:       data,
			DataSchema: json.RawMessage(`{}`),
			GlobalTags: model.Tags{Regular: []string{}},
		}, t.positions.For(id))
	})
}

func (s *Clans) newClan(out model.ClanOutput, positions *model.Positions) *model.Clan {
	clan, unplaced := model.NewClanPlaced(out, positions)
	for _, id := range unplaced {
		s.logger.Warn("no free position, using origin", zap.String("clan", out.ID), zap.String("machine", id))
	}
	return clan
}

func (s *Clans) appendActive(id string, build func(t *tree) *model.Clan) (*model.Clan, error) {
	var result *model.Clan
	err := s.update(func(t *tree) error {
		if idx, ok := t.clans.Index(id); ok {
			// Added concurrently; activate what is there.
			if c, loaded := model.AsClan(t.clans.All[idx]); loaded {
				t.clans.ActiveIndex = idx
				t.mark(persist.DirtyActiveClan)
				result = c.Clone()
				return nil
			}
			c := build(t)
			t.clans.All[idx] = c
			t.clans.ActiveIndex = idx
			t.mark(persist.DirtyActiveClan | persist.DirtyMachines)
			result = c.Clone()
			return nil
		}
		c := build(t)
		t.clans.All = append(t.clans.All, c)
		t.clans.ActiveIndex = len(t.clans.All) - 1
		t.mark(persist.DirtyClanIDs | persist.DirtyActiveClan)
		result = c.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("clan added", zap.String("clan", id))
	return result, nil
}

// RemoveClan removes the clan with the given id from the list. See
// RemoveClanAt.
func (s *Clans) RemoveClan(id string) (model.ClanEntry, error) {
	i, ok := s.ClanIndex(id)
	if !ok {
		return nil, fmt.Errorf("clan %s: %w", id, ErrNotFound)
	}
	return s.RemoveClanAt(i)
}

// RemoveClanAt removes the entry at index i and returns it. Only the list
// entry is removed; the clan directory is left alone. Removing the active
// clan leaves no clan active.
func (s *Clans) RemoveClanAt(i int) (model.ClanEntry, error) {
	var removed model.ClanEntry
	err := s.update(func(t *tree) error {
		if i < 0 || i >= len(t.clans.All) {
			return fmt.Errorf("index %d of %d: %w", i, len(t.clans.All), ErrIndexOutOfRange)
		}
		removed = t.clans.All[i]
		t.clans.All = append(t.clans.All[:i:i], t.clans.All[i+1:]...)
		switch {
		case t.clans.ActiveIndex == i:
			t.clans.ActiveIndex = -1
		case t.clans.ActiveIndex > i:
			t.clans.ActiveIndex--
		}
		delete(t.positions, removed.ClanID())
		t.mark(persist.DirtyClanIDs | persist.DirtyActiveClan)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("clan removed", zap.String("clan", removed.ClanID()))
	return removed, nil
}
