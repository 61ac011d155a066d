package store

import (
	"context"
	"fmt"

	"github.com/five82/clanboard/internal/model"
)

// Clan is a handle on one clan of the tree. Handles hold ids only, so they
// stay valid across reloads and report ErrNotFound once the clan is gone.
type Clan struct {
	root *Clans
	id   string
}

// Clan returns the handle for the clan with the given id.
func (s *Clans) Clan(id string) *Clan {
	return &Clan{root: s, id: id}
}

// ID returns the clan id the handle is bound to.
func (c *Clan) ID() string { return c.id }

// Get returns a copy of the loaded clan.
func (c *Clan) Get() (*model.Clan, error) {
	var out *model.Clan
	err := c.root.view(func(t *tree) error {
		clan, err := t.loaded(c.id)
		if err != nil {
			return err
		}
		out = clan.Clone()
		return nil
	})
	return out, err
}

// Index returns the list position of the clan.
func (c *Clan) Index() (int, bool) {
	return c.root.ClanIndex(c.id)
}

// IsActive reports whether the clan is the active one.
func (c *Clan) IsActive() bool {
	c.root.mu.RLock()
	defer c.root.mu.RUnlock()
	return c.root.t.clans.IsActive(c.id)
}

// Activate makes this the active clan, loading it first when needed.
func (c *Clan) Activate(ctx context.Context) (*model.Clan, error) {
	return c.root.ActivateClan(ctx, c.id)
}

// Deactivate clears the active clan if it is this one.
func (c *Clan) Deactivate() {
	c.root.DeactivateClan(c.id)
}

// UpdateData merges change into the clan data and sends the merged data to
// the host. On success the local data becomes exactly what was sent.
func (c *Clan) UpdateData(ctx context.Context, change model.ClanDataChange) error {
	var merged model.ClanData
	err := c.root.view(func(t *tree) error {
		clan, err := t.loaded(c.id)
		if err != nil {
			return err
		}
		merged = change.Apply(clan.Data)
		return nil
	})
	if err != nil {
		return err
	}

	if err := c.root.api.SetClanDetails(ctx, c.id, merged); err != nil {
		return fmt.Errorf("update clan %s: %w", c.id, err)
	}

	return c.root.update(func(t *tree) error {
		clan, err := t.loaded(c.id)
		if err != nil {
			return err
		}
		clan.Data = merged
		t.touch()
		return nil
	})
}

// Remove drops the clan from the list.
func (c *Clan) Remove() error {
	_, err := c.root.RemoveClan(c.id)
	return err
}

// Machines returns the machine collection handle of the clan.
func (c *Clan) Machines() *Machines {
	return &Machines{root: c.root, clanID: c.id}
}

// ServiceInstances returns the service instance handle of the clan.
func (c *Clan) ServiceInstances() *ServiceInstances {
	return &ServiceInstances{root: c.root, clanID: c.id}
}
