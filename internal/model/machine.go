package model

import (
	"encoding/json"
	"sort"
	"strconv"
)

// MachineStatus is the deployment status reported for a machine.
type MachineStatus string

const (
	StatusNotInstalled MachineStatus = "not_installed"
	StatusOffline      MachineStatus = "offline"
	StatusOutOfSync    MachineStatus = "out_of_sync"
	StatusOnline       MachineStatus = "online"
)

// Valid reports whether s is one of the known statuses.
func (s MachineStatus) Valid() bool {
	switch s {
	case StatusNotInstalled, StatusOffline, StatusOutOfSync, StatusOnline:
		return true
	}
	return false
}

// MachineClass is the operating system family of a machine.
type MachineClass string

const (
	ClassNixOS  MachineClass = "nixos"
	ClassDarwin MachineClass = "darwin"
)

// Position is a cell on the integer machine grid.
type Position [2]int

func (p Position) String() string {
	return strconv.Itoa(p[0]) + "," + strconv.Itoa(p[1])
}

// Deploy holds the deployment targets of a machine.
type Deploy struct {
	BuildHost  string `json:"buildHost,omitempty" yaml:"buildHost,omitempty"`
	TargetHost string `json:"targetHost,omitempty" yaml:"targetHost,omitempty"`
}

// DeployChange is a partial update of Deploy.
type DeployChange struct {
	BuildHost  *string
	TargetHost *string
}

// MachineData is the editable data of a machine.
type MachineData struct {
	Deploy       Deploy       `json:"deploy" yaml:"deploy"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	MachineClass MachineClass `json:"machineClass" yaml:"machineClass"`
	Tags         []string     `json:"tags" yaml:"tags"`
	Position     Position     `json:"position" yaml:"position,flow"`
}

// MachineDataChange is a partial update of MachineData. Nil fields are left
// unchanged; Deploy is merged field by field.
type MachineDataChange struct {
	Deploy       *DeployChange
	Description  *string
	MachineClass *MachineClass
	Tags         *[]string
	Position     *Position
}

// OnlyPosition reports whether the change touches nothing but the position.
func (c MachineDataChange) OnlyPosition() bool {
	return c.Position != nil && c.Deploy == nil && c.Description == nil &&
		c.MachineClass == nil && c.Tags == nil
}

// Apply merges the change over d and returns the result.
func (c MachineDataChange) Apply(d MachineData) MachineData {
	d.Tags = cloneStrings(d.Tags)
	if c.Deploy != nil {
		if c.Deploy.BuildHost != nil {
			d.Deploy.BuildHost = *c.Deploy.BuildHost
		}
		if c.Deploy.TargetHost != nil {
			d.Deploy.TargetHost = *c.Deploy.TargetHost
		}
	}
	if c.Description != nil {
		d.Description = *c.Description
	}
	if c.MachineClass != nil {
		d.MachineClass = *c.MachineClass
	}
	if c.Tags != nil {
		d.Tags = cloneStrings(*c.Tags)
	}
	if c.Position != nil {
		d.Position = *c.Position
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return d
}

// MachineOutput is a machine as returned by the backend.
type MachineOutput struct {
	Data       MachineData
	DataSchema json.RawMessage
	Status     MachineStatus
}

// Machine is a single deployable node owned by one clan.
type Machine struct {
	ID         string
	Data       MachineData
	DataSchema json.RawMessage
	Status     MachineStatus
}

// NewMachine builds a machine from backend output.
func NewMachine(id string, out MachineOutput) *Machine {
	data := out.Data
	data.Tags = cloneStrings(data.Tags)
	if data.Tags == nil {
		data.Tags = []string{}
	}
	status := out.Status
	if !status.Valid() {
		status = StatusNotInstalled
	}
	return &Machine{
		ID:         id,
		Data:       data,
		DataSchema: cloneRaw(out.DataSchema),
		Status:     status,
	}
}

// HasTag reports whether the machine carries the given tag.
func (m *Machine) HasTag(tag string) bool {
	for _, t := range m.Data.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the machine.
func (m *Machine) Clone() *Machine {
	if m == nil {
		return nil
	}
	dup := *m
	dup.Data.Tags = cloneStrings(m.Data.Tags)
	dup.DataSchema = cloneRaw(m.DataSchema)
	return &dup
}

// Machines is the machine collection of a clan.
type Machines struct {
	All         map[string]*Machine
	Active      string // id of the active machine, "" when none
	Highlighted map[string]struct{}
}

// NewMachines wraps the given machines into a collection.
func NewMachines(all map[string]*Machine) Machines {
	if all == nil {
		all = make(map[string]*Machine)
	}
	return Machines{All: all, Highlighted: make(map[string]struct{})}
}

// Get returns the machine with the given id.
func (m Machines) Get(id string) (*Machine, bool) {
	machine, ok := m.All[id]
	return machine, ok
}

// Sorted returns the machines ordered by id.
func (m Machines) Sorted() []*Machine {
	out := make([]*Machine, 0, len(m.All))
	for _, machine := range m.All {
		out = append(out, machine)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveMachine returns the active machine, if any.
func (m Machines) ActiveMachine() (*Machine, bool) {
	if m.Active == "" {
		return nil, false
	}
	return m.Get(m.Active)
}

// IsActive reports whether the machine with the given id is active.
func (m Machines) IsActive(id string) bool {
	return id != "" && m.Active == id
}

// IsHighlighted reports whether the machine with the given id is highlighted.
func (m Machines) IsHighlighted(id string) bool {
	_, ok := m.Highlighted[id]
	return ok
}

// HighlightedIDs returns the highlighted machine ids in sorted order.
func (m Machines) HighlightedIDs() []string {
	ids := make([]string, 0, len(m.Highlighted))
	for id := range m.Highlighted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ByTag returns the machines carrying the tag, ordered by id.
func (m Machines) ByTag(tag string) []*Machine {
	out := []*Machine{}
	for _, machine := range m.Sorted() {
		if machine.HasTag(tag) {
			out = append(out, machine)
		}
	}
	return out
}

// PositionMap returns the grid position of every machine.
func (m Machines) PositionMap() map[string]Position {
	out := make(map[string]Position, len(m.All))
	for id, machine := range m.All {
		out[id] = machine.Data.Position
	}
	return out
}

// Clone returns a deep copy of the collection.
func (m Machines) Clone() Machines {
	dup := Machines{
		All:         make(map[string]*Machine, len(m.All)),
		Active:      m.Active,
		Highlighted: make(map[string]struct{}, len(m.Highlighted)),
	}
	for id, machine := range m.All {
		dup.All[id] = machine.Clone()
	}
	for id := range m.Highlighted {
		dup.Highlighted[id] = struct{}{}
	}
	return dup
}
