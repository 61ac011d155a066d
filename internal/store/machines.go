package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/persist"
)

// Machines is a handle on the machine collection of one clan.
type Machines struct {
	root   *Clans
	clanID string
}

// Machine returns the handle for one machine of the clan.
func (m *Machines) Machine(id string) *Machine {
	return &Machine{machines: m, id: id}
}

// List returns copies of the machines ordered by id.
func (m *Machines) List() ([]*model.Machine, error) {
	var out []*model.Machine
	err := m.root.view(func(t *tree) error {
		clan, err := t.loaded(m.clanID)
		if err != nil {
			return err
		}
		for _, machine := range clan.Machines.Sorted() {
			out = append(out, machine.Clone())
		}
		return nil
	})
	return out, err
}

// ByTag returns copies of the machines carrying tag, ordered by id.
func (m *Machines) ByTag(tag string) ([]*model.Machine, error) {
	var out []*model.Machine
	err := m.root.view(func(t *tree) error {
		clan, err := t.loaded(m.clanID)
		if err != nil {
			return err
		}
		out = make([]*model.Machine, 0)
		for _, machine := range clan.Machines.ByTag(tag) {
			out = append(out, machine.Clone())
		}
		return nil
	})
	return out, err
}

// Activate makes the machine active and returns it. It returns nil, nil
// when the machine already is the active one.
func (m *Machines) Activate(id string) (*model.Machine, error) {
	var out *model.Machine
	err := m.root.update(func(t *tree) error {
		clan, machine, err := t.machine(m.clanID, id)
		if err != nil {
			return err
		}
		if clan.Machines.IsActive(id) {
			return nil
		}
		clan.Machines.Active = id
		t.touch()
		out = machine.Clone()
		return nil
	})
	return out, err
}

// Deactivate clears the active machine.
func (m *Machines) Deactivate() error {
	return m.root.update(func(t *tree) error {
		clan, err := t.loaded(m.clanID)
		if err != nil {
			return err
		}
		if clan.Machines.Active != "" {
			clan.Machines.Active = ""
			t.touch()
		}
		return nil
	})
}

// DeactivateMachine clears the active machine if it is id.
func (m *Machines) DeactivateMachine(id string) error {
	return m.root.update(func(t *tree) error {
		clan, _, err := t.machine(m.clanID, id)
		if err != nil {
			return err
		}
		if clan.Machines.IsActive(id) {
			clan.Machines.Active = ""
			t.touch()
		}
		return nil
	})
}

// Create creates a machine on the host and adds it to the clan. The machine
// is placed at change.Position when given, otherwise on the next free grid
// cell.
func (m *Machines) Create(ctx context.Context, id string, change model.MachineDataChange) (*model.Machine, error) {
	err := m.root.view(func(t *tree) error {
		clan, err := t.loaded(m.clanID)
		if err != nil {
			return err
		}
		if _, exists := clan.Machines.Get(id); exists {
			return fmt.Errorf("machine %s: %w", id, ErrDuplicateMachine)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	data := change.Apply(model.MachineData{MachineClass: model.ClassNixOS})
	created, err := m.root.api.CreateMachine(ctx, m.clanID, id, data)
	if err != nil {
		return nil, fmt.Errorf("create machine %s: %w", id, err)
	}

	var out *model.Machine
	err = m.root.update(func(t *tree) error {
		clan, err := t.loaded(m.clanID)
		if err != nil {
			return err
		}
		positions := t.positions.For(m.clanID)
		if change.Position != nil {
			created.Position = positions.Set(id, *change.Position)
		} else {
			pos, ok := positions.GetOrSet(id)
			if !ok {
				m.root.logger.Warn("no free position, using origin", zap.String("clan", m.clanID), zap.String("machine", id))
			}
			created.Position = pos
		}
		machine := model.NewMachine(id, model.MachineOutput{
			Data:       created,
			DataSchema: json.RawMessage(`{}`),
			Status:     model.StatusNotInstalled,
		})
		clan.Machines.All[id] = machine
		t.mark(persist.DirtyMachines)
		out = machine.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.root.logger.Info("machine created", zap.String("clan", m.clanID), zap.String("machine", id),
		zap.Stringer("position", out.Data.Position))
	return out, nil
}

// UpdateData applies change to a machine. A change that only moves the
// machine is applied and persisted locally without calling the host.
// Otherwise the merged data is sent to the host and, on success, becomes
// the local data. A move that came with the failed update is undone.
func (m *Machines) UpdateData(ctx context.Context, id string, change model.MachineDataChange) error {
	var merged model.MachineData
	var before model.Position
	err := m.root.update(func(t *tree) error {
		_, machine, err := t.machine(m.clanID, id)
		if err != nil {
			return err
		}
		before = machine.Data.Position
		if change.Position != nil {
			machine.Data.Position = t.positions.For(m.clanID).Set(id, *change.Position)
			t.mark(persist.DirtyPositions)
		}
		merged = change.Apply(machine.Data)
		return nil
	})
	if err != nil || change.OnlyPosition() {
		return err
	}

	if err := m.root.api.SetMachine(ctx, m.clanID, id, merged); err != nil {
		if change.Position != nil {
			m.undoMove(id, merged.Position, before)
		}
		return fmt.Errorf("update machine %s: %w", id, err)
	}

	return m.root.update(func(t *tree) error {
		_, machine, err := t.machine(m.clanID, id)
		if err != nil {
			return err
		}
		// Keep a position set by a concurrent move.
		merged.Position = machine.Data.Position
		machine.Data = merged
		t.touch()
		return nil
	})
}

// undoMove puts a machine back on before unless it was moved again since.
func (m *Machines) undoMove(id string, moved, before model.Position) {
	_ = m.root.update(func(t *tree) error {
		_, machine, err := t.machine(m.clanID, id)
		if err != nil || machine.Data.Position != moved {
			return nil
		}
		machine.Data.Position = t.positions.For(m.clanID).Set(id, before)
		t.mark(persist.DirtyPositions)
		return nil
	})
}

// Delete removes the machine on the host and from the clan.
func (m *Machines) Delete(ctx context.Context, id string) error {
	err := m.root.view(func(t *tree) error {
		_, _, err := t.machine(m.clanID, id)
		return err
	})
	if err != nil {
		return err
	}

	if err := m.root.api.DeleteMachine(ctx, m.clanID, id); err != nil {
		return fmt.Errorf("delete machine %s: %w", id, err)
	}

	err = m.root.update(func(t *tree) error {
		clan, err := t.loaded(m.clanID)
		if err != nil {
			return err
		}
		if _, ok := clan.Machines.All[id]; !ok {
			return nil
		}
		if clan.Machines.IsActive(id) {
			clan.Machines.Active = ""
		}
		delete(clan.Machines.Highlighted, id)
		delete(clan.Machines.All, id)
		t.positions.For(m.clanID).Delete(id)
		t.mark(persist.DirtyMachines)
		return nil
	})
	if err != nil {
		return err
	}
	m.root.logger.Info("machine deleted", zap.String("clan", m.clanID), zap.String("machine", id))
	return nil
}

// ToggleHighlighted flips the highlight of each given machine.
func (m *Machines) ToggleHighlighted(ids ...string) error {
	return m.root.update(func(t *tree) error {
		clan, err := m.members(t, ids)
		if err != nil {
			return err
		}
		toggled := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			toggled[id] = struct{}{}
		}
		for id := range toggled {
			if clan.Machines.IsHighlighted(id) {
				delete(clan.Machines.Highlighted, id)
			} else {
				clan.Machines.Highlighted[id] = struct{}{}
			}
		}
		t.touch()
		return nil
	})
}

// SetHighlighted replaces the highlighted set with ids.
func (m *Machines) SetHighlighted(ids ...string) error {
	return m.root.update(func(t *tree) error {
		clan, err := m.members(t, ids)
		if err != nil {
			return err
		}
		clan.Machines.Highlighted = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			clan.Machines.Highlighted[id] = struct{}{}
		}
		t.touch()
		return nil
	})
}

// Unhighlight clears the highlighted set.
func (m *Machines) Unhighlight() error {
	return m.SetHighlighted()
}

// members resolves the clan and checks that every id belongs to it.
func (m *Machines) members(t *tree, ids []string) (*model.Clan, error) {
	clan, err := t.loaded(m.clanID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := clan.Machines.Get(id); !ok {
			return nil, fmt.Errorf("machine %s: %w", id, ErrNotMember)
		}
	}
	return clan, nil
}

// RefreshStatuses fetches the deployment status of every machine and
// applies it. Machines the host no longer reports keep their status.
func (m *Machines) RefreshStatuses(ctx context.Context) error {
	err := m.root.view(func(t *tree) error {
		_, err := t.loaded(m.clanID)
		return err
	})
	if err != nil {
		return err
	}

	states, err := m.root.api.MachineStates(ctx, m.clanID)
	if err != nil {
		return fmt.Errorf("machine states %s: %w", m.clanID, err)
	}

	return m.root.update(func(t *tree) error {
		clan, err := t.loaded(m.clanID)
		if err != nil {
			return err
		}
		for id, status := range states {
			machine, ok := clan.Machines.Get(id)
			if !ok || !status.Valid() || machine.Status == status {
				continue
			}
			machine.Status = status
			t.touch()
		}
		return nil
	})
}
