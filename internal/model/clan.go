package model

import (
	"encoding/json"
	"sort"
)

// ClanMetaData is the minimal metadata known for a clan before it is loaded.
type ClanMetaData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ClanData is the editable metadata of a loaded clan.
type ClanData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// ClanDataChange is a partial update of ClanData. Nil fields are left as-is.
type ClanDataChange struct {
	Name        *string
	Description *string
	Domain      *string
}

// Apply merges the change over d and returns the result.
func (c ClanDataChange) Apply(d ClanData) ClanData {
	if c.Name != nil {
		d.Name = *c.Name
	}
	if c.Description != nil {
		d.Description = *c.Description
	}
	if c.Domain != nil {
		d.Domain = *c.Domain
	}
	return d
}

// Tags groups the tags available in a clan.
type Tags struct {
	Regular []string `json:"regular"`
	Special []string `json:"special"`
}

// DefaultSpecialTags are the tags every clan provides.
var DefaultSpecialTags = []string{"all", "nixos", "darwin"}

// ClanOutput is a fully fetched clan as returned by the backend.
type ClanOutput struct {
	ID         string
	Data       ClanData
	DataSchema json.RawMessage
	Machines   map[string]MachineOutput
	Services   []ServiceOutput
	Instances  []ServiceInstanceOutput
	GlobalTags Tags
}

// ClanMetaOutput is the lightweight form of a clan that has not been loaded.
type ClanMetaOutput struct {
	ID   string
	Data ClanMetaData
}

// ClanEntry is an element of the clans collection: a *Clan or a *ClanMeta.
type ClanEntry interface {
	ClanID() string
	// Meta returns the metadata available for the entry regardless of its
	// load state.
	Meta() ClanMetaData
	isClanEntry()
}

// Clan is a loaded clan with its machines, services and service instances.
type Clan struct {
	ID         string
	Data       ClanData
	DataSchema json.RawMessage
	Machines   Machines
	Services   []*Service
	Instances  []*ServiceInstance
	GlobalTags Tags

	// ActiveInstance holds the name of the active service instance, or "".
	ActiveInstance string
}

// ClanMeta is a clan that is known by id but has not been fetched yet.
type ClanMeta struct {
	ID   string
	Data ClanMetaData
}

func (c *Clan) ClanID() string { return c.ID }

func (c *Clan) Meta() ClanMetaData {
	return ClanMetaData{Name: c.Data.Name, Description: c.Data.Description}
}

func (*Clan) isClanEntry() {}

func (m *ClanMeta) ClanID() string { return m.ID }

func (m *ClanMeta) Meta() ClanMetaData { return m.Data }

func (*ClanMeta) isClanEntry() {}

// AsClan reports whether the entry is a loaded clan.
func AsClan(e ClanEntry) (*Clan, bool) {
	c, ok := e.(*Clan)
	return c, ok && c != nil
}

// NewClan builds a loaded clan from backend output. The host never sends
// positions, so with a non-nil allocator every machine gets the position
// stored in it, or a newly allocated one.
func NewClan(out ClanOutput, positions *Positions) *Clan {
	clan, _ := NewClanPlaced(out, positions)
	return clan
}

// NewClanPlaced is NewClan that also returns the ids of machines put on the
// origin because the allocator ran out of cells.
func NewClanPlaced(out ClanOutput, positions *Positions) (*Clan, []string) {
	clan := &Clan{
		ID:         out.ID,
		Data:       out.Data,
		DataSchema: cloneRaw(out.DataSchema),
		Machines:   NewMachines(nil),
		GlobalTags: Tags{
			Regular: cloneStrings(out.GlobalTags.Regular),
			Special: cloneStrings(out.GlobalTags.Special),
		},
	}
	if len(clan.GlobalTags.Special) == 0 {
		clan.GlobalTags.Special = cloneStrings(DefaultSpecialTags)
	}

	var unplaced []string
	ids := make([]string, 0, len(out.Machines))
	for id := range out.Machines {
		ids = append(ids, id)
	}
	// Deterministic allocation order for machines without a stored position.
	sort.Strings(ids)
	for _, id := range ids {
		m := NewMachine(id, out.Machines[id])
		if positions != nil {
			pos, ok := positions.GetOrSet(id)
			if !ok {
				unplaced = append(unplaced, id)
			}
			m.Data.Position = pos
		}
		clan.Machines.All[id] = m
	}

	for _, s := range out.Services {
		clan.Services = append(clan.Services, NewService(s))
	}
	for _, i := range out.Instances {
		clan.Instances = append(clan.Instances, NewServiceInstance(i))
	}
	return clan, unplaced
}

// NewClanMeta builds an unloaded clan entry.
func NewClanMeta(out ClanMetaOutput) *ClanMeta {
	return &ClanMeta{ID: out.ID, Data: out.Data}
}

// Service returns the service with the given id.
func (c *Clan) Service(id string) (*Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Instance returns the service instance with the given name.
func (c *Clan) Instance(name string) (*ServiceInstance, bool) {
	for _, i := range c.Instances {
		if i.Name == name {
			return i, true
		}
	}
	return nil, false
}

// ServiceInstances returns all instances of the clan sorted by name.
func (c *Clan) ServiceInstances() []*ServiceInstance {
	out := make([]*ServiceInstance, len(c.Instances))
	copy(out, c.Instances)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// InstancesOfService returns the instances that belong to the given service,
// sorted by name.
func (c *Clan) InstancesOfService(serviceID string) []*ServiceInstance {
	var out []*ServiceInstance
	for _, i := range c.ServiceInstances() {
		if i.ServiceID == serviceID {
			out = append(out, i)
		}
	}
	return out
}

// MachineInstances returns the service instances that apply to a machine.
func (c *Clan) MachineInstances(machineID string) ([]*ServiceInstance, bool) {
	m, ok := c.Machines.Get(machineID)
	if !ok {
		return nil, false
	}
	var out []*ServiceInstance
	for _, i := range c.ServiceInstances() {
		if i.AppliesTo(m) {
			out = append(out, i)
		}
	}
	return out, true
}

// ActiveServiceInstance returns the active service instance, if any.
func (c *Clan) ActiveServiceInstance() (*ServiceInstance, bool) {
	if c.ActiveInstance == "" {
		return nil, false
	}
	return c.Instance(c.ActiveInstance)
}

// Clone returns a deep copy of the clan.
func (c *Clan) Clone() *Clan {
	if c == nil {
		return nil
	}
	dup := *c
	dup.DataSchema = cloneRaw(c.DataSchema)
	dup.Machines = c.Machines.Clone()
	dup.GlobalTags = Tags{
		Regular: cloneStrings(c.GlobalTags.Regular),
		Special: cloneStrings(c.GlobalTags.Special),
	}
	dup.Services = make([]*Service, len(c.Services))
	for i, s := range c.Services {
		dup.Services[i] = s.Clone()
	}
	dup.Instances = make([]*ServiceInstance, len(c.Instances))
	for i, inst := range c.Instances {
		dup.Instances[i] = inst.Clone()
	}
	return &dup
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(json.RawMessage, len(in))
	copy(out, in)
	return out
}
