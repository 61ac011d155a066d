package model

// Clans is the ordered collection of known clans with at most one active
// entry. ActiveIndex is -1 when no clan is active.
type Clans struct {
	All         []ClanEntry
	ActiveIndex int
}

// NewClans returns an empty collection with no active clan.
func NewClans() Clans {
	return Clans{ActiveIndex: -1}
}

// Index returns the position of the clan with the given id.
func (c Clans) Index(id string) (int, bool) {
	for i, e := range c.All {
		if e.ClanID() == id {
			return i, true
		}
	}
	return -1, false
}

// Get returns the entry with the given id.
func (c Clans) Get(id string) (ClanEntry, bool) {
	i, ok := c.Index(id)
	if !ok {
		return nil, false
	}
	return c.All[i], true
}

// Loaded returns the loaded clan with the given id.
func (c Clans) Loaded(id string) (*Clan, bool) {
	e, ok := c.Get(id)
	if !ok {
		return nil, false
	}
	return AsClan(e)
}

// ActiveClan returns the active clan. An active index pointing at an
// unloaded entry is reported as no active clan.
func (c Clans) ActiveClan() (*Clan, bool) {
	if c.ActiveIndex < 0 || c.ActiveIndex >= len(c.All) {
		return nil, false
	}
	return AsClan(c.All[c.ActiveIndex])
}

// IsActive reports whether the clan with the given id is the active one.
func (c Clans) IsActive(id string) bool {
	active, ok := c.ActiveClan()
	return ok && active.ID == id
}

// IDs returns the clan ids in collection order.
func (c Clans) IDs() []string {
	ids := make([]string, len(c.All))
	for i, e := range c.All {
		ids[i] = e.ClanID()
	}
	return ids
}

// Clone returns a deep copy of the collection.
func (c Clans) Clone() Clans {
	dup := Clans{ActiveIndex: c.ActiveIndex}
	if c.All == nil {
		return dup
	}
	dup.All = make([]ClanEntry, len(c.All))
	for i, e := range c.All {
		switch v := e.(type) {
		case *Clan:
			dup.All[i] = v.Clone()
		case *ClanMeta:
			meta := *v
			dup.All[i] = &meta
		}
	}
	return dup
}
