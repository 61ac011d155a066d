package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleClan() *Clan {
	return NewClan(ClanOutput{
		ID:   "home",
		Data: ClanData{Name: "Home", Description: "lab", Domain: "home.arpa"},
		Machines: map[string]MachineOutput{
			"web": {Data: MachineData{MachineClass: ClassNixOS, Tags: []string{"edge"}}, Status: StatusOnline},
			"db":  {Data: MachineData{MachineClass: ClassNixOS, Tags: []string{"storage"}}},
			"mac": {Data: MachineData{MachineClass: ClassDarwin}},
		},
		Services: []ServiceOutput{{ID: "borgbackup", Roles: []Role{{ID: "server"}, {ID: "client"}}}},
		Instances: []ServiceInstanceOutput{
			{
				Name:      "backups",
				ServiceID: "borgbackup",
				Roles: map[string]InstanceRole{
					"server": {Machines: []string{"db"}},
					"client": {Tags: []string{"edge"}},
				},
			},
			{
				Name:      "admin",
				ServiceID: "admin",
				Roles:     map[string]InstanceRole{"default": {Tags: []string{"all"}}},
			},
		},
	}, NewPositions(nil))
}

func TestNewClan_AllocatesPositionsAndDefaults(t *testing.T) {
	clan := sampleClan()

	require.Len(t, clan.Machines.All, 3)
	assert.Equal(t, DefaultSpecialTags, clan.GlobalTags.Special)

	seen := map[Position]bool{}
	for _, m := range clan.Machines.All {
		assert.False(t, seen[m.Data.Position], "duplicate position %v", m.Data.Position)
		seen[m.Data.Position] = true
	}
	db, _ := clan.Machines.Get("db")
	assert.Equal(t, Position{0, 0}, db.Data.Position, "sorted ids allocate first")
	mac, _ := clan.Machines.Get("mac")
	assert.Equal(t, StatusNotInstalled, mac.Status)
	assert.NotNil(t, mac.Data.Tags)
}

func TestMachines_ByTag(t *testing.T) {
	clan := sampleClan()

	edge := clan.Machines.ByTag("edge")
	require.Len(t, edge, 1)
	assert.Equal(t, "web", edge[0].ID)

	none := clan.Machines.ByTag("anything")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestClan_InstanceQueries(t *testing.T) {
	clan := sampleClan()

	sorted := clan.ServiceInstances()
	require.Len(t, sorted, 2)
	assert.Equal(t, "admin", sorted[0].Name)
	assert.Equal(t, "backups", sorted[1].Name)

	borg := clan.InstancesOfService("borgbackup")
	require.Len(t, borg, 1)
	assert.Equal(t, "backups", borg[0].Name)

	tests := []struct {
		machine string
		want    []string
	}{
		{"db", []string{"admin", "backups"}},
		{"web", []string{"admin", "backups"}},
		{"mac", []string{"admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.machine, func(t *testing.T) {
			got, ok := clan.MachineInstances(tt.machine)
			require.True(t, ok)
			var names []string
			for _, i := range got {
				names = append(names, i.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, ok := clan.MachineInstances("gone")
	assert.False(t, ok)
}

func TestInstanceRole_MembersSorted(t *testing.T) {
	role := InstanceRole{Machines: []string{"zeta", "alpha"}, Tags: []string{"mid"}}

	assert.Equal(t, []Member{
		{Type: MemberMachine, Name: "alpha"},
		{Type: MemberTag, Name: "mid"},
		{Type: MemberMachine, Name: "zeta"},
	}, role.Members())
}

func TestClans_ActiveClanNeverMeta(t *testing.T) {
	clans := NewClans()
	clans.All = []ClanEntry{
		NewClanMeta(ClanMetaOutput{ID: "lazy", Data: ClanMetaData{Name: "Lazy"}}),
		sampleClan(),
	}

	_, ok := clans.ActiveClan()
	assert.False(t, ok)

	clans.ActiveIndex = 0
	_, ok = clans.ActiveClan()
	assert.False(t, ok, "meta entries are never reported active")

	clans.ActiveIndex = 1
	active, ok := clans.ActiveClan()
	require.True(t, ok)
	assert.Equal(t, "home", active.ID)
	assert.True(t, clans.IsActive("home"))
	assert.False(t, clans.IsActive("lazy"))

	i, ok := clans.Index("missing")
	assert.False(t, ok)
	assert.Equal(t, -1, i)
}

func TestClans_CloneIsIndependent(t *testing.T) {
	clans := NewClans()
	clans.All = []ClanEntry{sampleClan()}
	clans.ActiveIndex = 0

	dup := clans.Clone()
	c, _ := AsClan(dup.All[0])
	c.Data.Name = "changed"
	c.Machines.All["web"].Data.Tags[0] = "changed"

	orig, _ := AsClan(clans.All[0])
	assert.Equal(t, "Home", orig.Data.Name)
	assert.Equal(t, "edge", orig.Machines.All["web"].Data.Tags[0])
}

func TestMachineDataChange_Apply(t *testing.T) {
	base := MachineData{
		Deploy:       Deploy{BuildHost: "builder", TargetHost: "old"},
		Description:  "desc",
		MachineClass: ClassNixOS,
		Tags:         []string{"a"},
		Position:     Position{1, 2},
	}
	target := "new"
	tags := []string{"b", "c"}

	got := MachineDataChange{
		Deploy: &DeployChange{TargetHost: &target},
		Tags:   &tags,
	}.Apply(base)

	assert.Equal(t, Deploy{BuildHost: "builder", TargetHost: "new"}, got.Deploy)
	assert.Equal(t, "desc", got.Description)
	assert.Equal(t, []string{"b", "c"}, got.Tags)
	assert.Equal(t, []string{"a"}, base.Tags, "base not mutated")

	pos := Position{9, 9}
	assert.True(t, MachineDataChange{Position: &pos}.OnlyPosition())
	assert.False(t, MachineDataChange{Position: &pos, Tags: &tags}.OnlyPosition())
}

func TestClanDataChange_Apply(t *testing.T) {
	name := "X"
	got := ClanDataChange{Name: &name}.Apply(ClanData{Name: "old", Description: "keep", Domain: "d"})
	assert.Equal(t, ClanData{Name: "X", Description: "keep", Domain: "d"}, got)
}
