package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/clanboard/internal/clanapi"
	"github.com/five82/clanboard/internal/demohost"
	"github.com/five82/clanboard/internal/kv"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/persist"
	"github.com/five82/clanboard/internal/rpc"
)

const (
	demoDir  = "/srv/clans/demo"
	otherDir = "/srv/clans/lab"
)

type fixture struct {
	host    *demohost.Host
	storage *kv.Memory
	api     *clanapi.API
	store   *Clans
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := demohost.New(nil)
	host.Seed(demoDir)
	host.AddClan(otherDir, clanapi.ClanDetails{Name: "lab", Description: "Test bench"})

	tr := rpc.NewHostTransport()
	host.Serve(tr)
	client, err := rpc.NewClient(tr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{host: host, storage: kv.NewMemory(), api: clanapi.New(client)}
	f.store = f.open(t)
	return f
}

// open builds a fresh store over the fixture storage.
func (f *fixture) open(t *testing.T) *Clans {
	t.Helper()
	s, err := New(Options{API: f.api, Storage: f.storage})
	require.NoError(t, err)
	return s
}

func (f *fixture) stored(t *testing.T) persist.State {
	t.Helper()
	state, err := persist.Load(f.storage, nil)
	require.NoError(t, err)
	return state
}

func loadDemo(t *testing.T, f *fixture) *model.Clan {
	t.Helper()
	c, err := f.store.LoadClan(context.Background(), demoDir)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func strp(s string) *string { return &s }

func TestNew_RequiresAPI(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestInit_EmptyStorage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Init(context.Background()))

	snap := f.store.Snapshot()
	assert.Empty(t, snap.All)
	assert.Equal(t, -1, snap.ActiveIndex)
	_, ok := f.store.ActiveClan()
	assert.False(t, ok)
}

func TestLoadClan_AppendsActivatesAndPersists(t *testing.T) {
	f := newFixture(t)
	c := loadDemo(t, f)

	assert.Equal(t, demoDir, c.ID)
	assert.Equal(t, "demo", c.Data.Name)
	assert.Len(t, c.Machines.All, 3)
	assert.Len(t, c.Instances, 2)
	assert.Equal(t, model.StatusOnline, c.Machines.All["gateway"].Status)

	seen := map[model.Position]string{}
	for id, m := range c.Machines.All {
		if other, dup := seen[m.Data.Position]; dup {
			t.Fatalf("machines %s and %s share position %v", id, other, m.Data.Position)
		}
		seen[m.Data.Position] = id
	}

	state := f.stored(t)
	assert.Equal(t, []string{demoDir}, state.ClanIDs)
	assert.Equal(t, 0, state.ActiveIndex)
	assert.Equal(t, demoDir, state.ActiveID)
	assert.Equal(t, c.Machines.PositionMap(), state.Positions[demoDir])
}

func TestLoadClan_AlreadyActiveReturnsNil(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)
	calls := f.host.Calls(rpc.OpGetClanDetails)

	c, err := f.store.LoadClan(context.Background(), demoDir)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, calls, f.host.Calls(rpc.OpGetClanDetails), "no refetch for the active clan")
}

func TestLoadClan_HostFailureLeavesListUnchanged(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.LoadClan(context.Background(), "/nowhere")

	var apiErr *rpc.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Empty(t, f.store.Snapshot().All)
	assert.Empty(t, f.storage.Snapshot())
}

func TestInit_RestoresActiveAndMetaEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	demo := loadDemo(t, f)
	_, err := f.store.LoadClan(ctx, otherDir)
	require.NoError(t, err)
	_, err = f.store.ActivateClanAt(ctx, 0)
	require.NoError(t, err)

	restored := f.open(t)
	require.NoError(t, restored.Init(ctx))

	snap := restored.Snapshot()
	require.Len(t, snap.All, 2)
	assert.Equal(t, 0, snap.ActiveIndex)

	active, ok := restored.ActiveClan()
	require.True(t, ok)
	assert.Equal(t, demoDir, active.ID)
	assert.Equal(t, demo.Machines.PositionMap(), active.Machines.PositionMap(), "positions survive a restart")

	meta, loaded := model.AsClan(snap.All[1])
	assert.False(t, loaded)
	assert.Nil(t, meta)
	assert.Equal(t, model.ClanMetaData{Name: "lab", Description: "Test bench"}, snap.All[1].Meta())
}

func TestInit_UnreachableClanKeepsIDAsName(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.storage.Set(persist.KeyClanIDs, `["/gone"]`))
	require.NoError(t, f.storage.Set(persist.KeyActiveClanIndex, "-1"))

	require.NoError(t, f.store.Init(context.Background()))
	snap := f.store.Snapshot()
	require.Len(t, snap.All, 1)
	assert.Equal(t, "/gone", snap.All[0].ClanID())
	assert.Equal(t, "/gone", snap.All[0].Meta().Name)
}

func TestActivateClanAt_PromotesMetaAndValidatesIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.storage.Set(persist.KeyClanIDs, `["`+demoDir+`","`+otherDir+`"]`))
	require.NoError(t, f.store.Init(ctx))

	_, err := f.store.ActivateClanAt(ctx, 2)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = f.store.ActivateClanAt(ctx, -1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = f.store.Clan(otherDir).Get()
	require.ErrorIs(t, err, ErrNotLoaded)

	c, err := f.store.ActivateClanAt(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "lab", c.Data.Name)

	snap := f.store.Snapshot()
	_, loaded := model.AsClan(snap.All[1])
	assert.True(t, loaded)
	assert.Equal(t, 1, snap.ActiveIndex)
	assert.Equal(t, otherDir, f.stored(t).ActiveID)

	c, err = f.store.ActivateClan(ctx, otherDir)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = f.store.ActivateClan(ctx, "/missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeactivateClan(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)

	f.store.DeactivateClan(otherDir)
	assert.True(t, f.store.Clan(demoDir).IsActive(), "deactivating another clan is a no-op")

	f.store.Clan(demoDir).Deactivate()
	assert.False(t, f.store.Clan(demoDir).IsActive())
	assert.Equal(t, -1, f.stored(t).ActiveIndex)
	assert.Equal(t, "", f.stored(t).ActiveID)
}

func TestRemoveClan_ShiftsActiveIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	_, err := f.store.LoadClan(ctx, otherDir)
	require.NoError(t, err)

	removed, err := f.store.RemoveClanAt(0)
	require.NoError(t, err)
	assert.Equal(t, demoDir, removed.ClanID())

	snap := f.store.Snapshot()
	require.Len(t, snap.All, 1)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.True(t, f.store.Clan(otherDir).IsActive())

	state := f.stored(t)
	assert.Equal(t, []string{otherDir}, state.ClanIDs)
	assert.NotContains(t, state.Positions, demoDir)

	require.NoError(t, f.store.Clan(otherDir).Remove())
	assert.Equal(t, -1, f.store.Snapshot().ActiveIndex)

	_, err = f.store.RemoveClanAt(0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = f.store.RemoveClan(otherDir)
	require.ErrorIs(t, err, ErrNotFound)

	_, ok := f.host.Details(demoDir)
	assert.True(t, ok, "removing a clan from the list keeps its directory")
}

func TestCreateClan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.store.CreateClan(ctx, "/srv/clans/new", model.ClanData{Name: "new", Description: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, "new", c.Data.Name)
	assert.Empty(t, c.Machines.All)
	assert.Equal(t, model.DefaultSpecialTags, c.GlobalTags.Special)
	assert.True(t, f.store.Clan("/srv/clans/new").IsActive())

	details, ok := f.host.Details("/srv/clans/new")
	require.True(t, ok)
	assert.Equal(t, "fresh", details.Description)

	_, err = f.store.CreateClan(ctx, "/srv/clans/new", model.ClanData{Name: "again"})
	require.ErrorIs(t, err, ErrDuplicateClan)
}

func TestClanUpdateData_MergesAndSendsMergedValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	clan := f.store.Clan(demoDir)

	require.NoError(t, clan.UpdateData(ctx, model.ClanDataChange{Description: strp("Home lab")}))

	got, err := clan.Get()
	require.NoError(t, err)
	assert.Equal(t, model.ClanData{Name: "demo", Description: "Home lab", Domain: "demo.lan"}, got.Data)

	details, _ := f.host.Details(demoDir)
	assert.Equal(t, "demo", details.Name, "unchanged fields are sent too")
	assert.Equal(t, "Home lab", details.Description)

	f.host.FailNext(rpc.OpSetClanDetails, "read only")
	err = clan.UpdateData(ctx, model.ClanDataChange{Name: strp("renamed")})
	require.Error(t, err)
	got, _ = clan.Get()
	assert.Equal(t, "demo", got.Data.Name, "failed update leaves local data alone")
}

func TestMachinesCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	demo := loadDemo(t, f)
	machines := f.store.Clan(demoDir).Machines()

	m, err := machines.Create(ctx, "printer", model.MachineDataChange{Tags: &[]string{"office"}})
	require.NoError(t, err)
	assert.Equal(t, model.ClassNixOS, m.Data.MachineClass)
	assert.Equal(t, model.StatusNotInstalled, m.Status)
	assert.Equal(t, []string{"office"}, m.Data.Tags)
	for id, other := range demo.Machines.All {
		assert.NotEqual(t, other.Data.Position, m.Data.Position, "collides with %s", id)
	}

	pos := model.Position{40, 40}
	m, err = machines.Create(ctx, "sensor", model.MachineDataChange{Position: &pos})
	require.NoError(t, err)
	assert.Equal(t, pos, m.Data.Position)
	assert.Equal(t, pos, f.stored(t).Positions[demoDir]["sensor"])

	_, ok := f.host.Machine(demoDir, "sensor")
	assert.True(t, ok)

	_, err = machines.Create(ctx, "sensor", model.MachineDataChange{})
	require.ErrorIs(t, err, ErrDuplicateMachine)
}

func TestMachinesUpdateData_PositionOnlyStaysLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	machines := f.store.Clan(demoDir).Machines()
	before := f.host.Calls(rpc.OpSetMachine)

	pos := model.Position{-60, 20}
	require.NoError(t, machines.UpdateData(ctx, "nas", model.MachineDataChange{Position: &pos}))

	assert.Equal(t, before, f.host.Calls(rpc.OpSetMachine))
	m, err := machines.Machine("nas").Get()
	require.NoError(t, err)
	assert.Equal(t, pos, m.Data.Position)
	assert.Equal(t, pos, f.stored(t).Positions[demoDir]["nas"])
}

func TestMachinesUpdateData_SendsMergedData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	nas := f.store.Clan(demoDir).Machines().Machine("nas")

	err := nas.UpdateData(ctx, model.MachineDataChange{
		Deploy: &model.DeployChange{BuildHost: strp("builder")},
		Tags:   &[]string{"storage"},
	})
	require.NoError(t, err)

	stored, ok := f.host.Machine(demoDir, "nas")
	require.True(t, ok)
	assert.Equal(t, "root@192.168.1.10", stored.Fields.Deploy.TargetHost, "deploy is merged field by field")
	assert.Equal(t, "builder", stored.Fields.Deploy.BuildHost)
	assert.Equal(t, []string{"storage"}, stored.Fields.Tags)

	m, err := nas.Get()
	require.NoError(t, err)
	assert.Equal(t, "builder", m.Data.Deploy.BuildHost)
	assert.Equal(t, []string{"storage"}, m.Data.Tags)

	f.host.FailNext(rpc.OpSetMachine, "locked")
	err = nas.UpdateData(ctx, model.MachineDataChange{Description: strp("changed")})
	require.Error(t, err)
	m, _ = nas.Get()
	assert.Empty(t, m.Data.Description)
}

func TestMachinesUpdateData_FailedUpdateUndoesMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	demo := loadDemo(t, f)
	nas := f.store.Clan(demoDir).Machines().Machine("nas")
	before := demo.Machines.All["nas"].Data.Position

	f.host.FailNext(rpc.OpSetMachine, "locked")
	pos := model.Position{42, 42}
	err := nas.UpdateData(ctx, model.MachineDataChange{Position: &pos, Description: strp("moved")})
	require.Error(t, err)

	m, err := nas.Get()
	require.NoError(t, err)
	assert.Equal(t, before, m.Data.Position)
	assert.Equal(t, before, f.stored(t).Positions[demoDir]["nas"])
}

func TestMachinesCreate_SkipsCellStillHeldAfterMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	demo := loadDemo(t, f)
	machines := f.store.Clan(demoDir).Machines()
	gateway := demo.Machines.All["gateway"].Data.Position

	require.NoError(t, machines.UpdateData(ctx, "laptop", model.MachineDataChange{Position: &gateway}))
	away := model.Position{50, 50}
	require.NoError(t, machines.UpdateData(ctx, "laptop", model.MachineDataChange{Position: &away}))

	m, err := machines.Create(ctx, "printer", model.MachineDataChange{})
	require.NoError(t, err)
	snap, err := f.store.Clan(demoDir).Get()
	require.NoError(t, err)
	for id, other := range snap.Machines.All {
		if id != "printer" {
			assert.NotEqual(t, other.Data.Position, m.Data.Position, "collides with %s", id)
		}
	}
}

func TestMachinesDelete_ClearsSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	machines := f.store.Clan(demoDir).Machines()

	_, err := machines.Activate("laptop")
	require.NoError(t, err)
	require.NoError(t, machines.SetHighlighted("laptop", "nas"))

	require.NoError(t, machines.Delete(ctx, "laptop"))

	c, err := f.store.Clan(demoDir).Get()
	require.NoError(t, err)
	_, ok := c.Machines.ActiveMachine()
	assert.False(t, ok)
	assert.Equal(t, []string{"nas"}, c.Machines.HighlightedIDs())
	assert.NotContains(t, f.stored(t).Positions[demoDir], "laptop")

	_, ok = f.host.Machine(demoDir, "laptop")
	assert.False(t, ok)

	_, err = machines.Machine("laptop").Get()
	require.ErrorIs(t, err, ErrNotMember)
	require.ErrorIs(t, machines.Delete(ctx, "laptop"), ErrNotMember)
}

func TestMachinesActivate(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)
	machines := f.store.Clan(demoDir).Machines()

	m, err := machines.Activate("nas")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "nas", m.ID)

	m, err = machines.Activate("nas")
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = machines.Activate("toaster")
	require.ErrorIs(t, err, ErrNotMember)

	require.NoError(t, machines.DeactivateMachine("gateway"))
	c, _ := f.store.Clan(demoDir).Get()
	assert.True(t, c.Machines.IsActive("nas"))

	require.NoError(t, machines.Machine("nas").Deactivate())
	c, _ = f.store.Clan(demoDir).Get()
	assert.False(t, c.Machines.IsActive("nas"))
}

func TestMachinesHighlight(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)
	machines := f.store.Clan(demoDir).Machines()
	highlighted := func() []string {
		c, err := f.store.Clan(demoDir).Get()
		require.NoError(t, err)
		return c.Machines.HighlightedIDs()
	}

	require.NoError(t, machines.ToggleHighlighted("nas", "gateway"))
	assert.Equal(t, []string{"gateway", "nas"}, highlighted())

	require.NoError(t, machines.ToggleHighlighted("nas", "laptop"))
	assert.Equal(t, []string{"gateway", "laptop"}, highlighted())

	require.NoError(t, machines.SetHighlighted("nas"))
	assert.Equal(t, []string{"nas"}, highlighted())

	require.ErrorIs(t, machines.ToggleHighlighted("nas", "toaster"), ErrNotMember)
	assert.Equal(t, []string{"nas"}, highlighted(), "a bad id rejects the whole toggle")

	require.NoError(t, machines.Unhighlight())
	assert.Empty(t, highlighted())
}

func TestMachinesByTag(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)

	got, err := f.store.Clan(demoDir).Machines().ByTag("backup")
	require.NoError(t, err)
	var ids []string
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"laptop", "nas"}, ids)

	got, err = f.store.Clan(demoDir).Machines().ByTag("nothing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHandles_ReportRemovedEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	clan := f.store.Clan(demoDir)
	nas := clan.Machines().Machine("nas")

	_, err := f.store.RemoveClan(demoDir)
	require.NoError(t, err)

	_, err = clan.Get()
	require.ErrorIs(t, err, ErrNotFound)
	_, err = nas.Get()
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, nas.UpdateData(ctx, model.MachineDataChange{Description: strp("x")}), ErrNotFound)
	_, err = clan.ServiceInstances().List()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMachineInstances(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)

	names := func(machineID string) []string {
		insts, err := f.store.Clan(demoDir).Machines().Machine(machineID).Instances()
		require.NoError(t, err)
		var out []string
		for _, i := range insts {
			out = append(out, i.Name)
		}
		return out
	}
	assert.Equal(t, []string{"admin", "backups"}, names("nas"))
	assert.Equal(t, []string{"admin"}, names("gateway"))
}

func TestServiceInstances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	instances := f.store.Clan(demoDir).ServiceInstances()

	mesh := model.ServiceInstanceOutput{
		Name:      "mesh",
		ServiceID: "zerotier",
		Roles: map[string]model.InstanceRole{
			"controller": {Machines: []string{"gateway"}},
			"peer":       {Tags: []string{"all"}},
		},
	}

	detached, err := instances.Create(ctx, mesh)
	require.NoError(t, err)
	assert.Equal(t, "mesh", detached.Name)
	_, err = instances.Get("mesh")
	require.ErrorIs(t, err, ErrNotFound, "Create does not add to the clan")

	added, err := instances.Add(ctx, model.ServiceInstanceOutput{Name: "vpn", ServiceID: "zerotier"})
	require.NoError(t, err)
	assert.Equal(t, "zerotier", added.ServiceID)

	got, err := instances.OfService("zerotier")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "vpn", got[0].Name)

	_, err = instances.Add(ctx, model.ServiceInstanceOutput{Name: "vpn", ServiceID: "zerotier"})
	require.ErrorIs(t, err, ErrDuplicateInstance)
	_, err = instances.Add(ctx, model.ServiceInstanceOutput{Name: "x", ServiceID: "nope"})
	require.ErrorIs(t, err, ErrUnknownService)

	inst, err := instances.Activate("vpn")
	require.NoError(t, err)
	require.NotNil(t, inst)
	inst, err = instances.Activate("vpn")
	require.NoError(t, err)
	assert.Nil(t, inst)
	_, err = instances.Activate("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, instances.Deactivate())
	c, _ := f.store.Clan(demoDir).Get()
	_, ok := c.ActiveServiceInstance()
	assert.False(t, ok)
}

func TestMachineInstall_ReportsProgressInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	laptop := f.store.Clan(demoDir).Machines().Machine("laptop")

	var (
		mu    sync.Mutex
		steps []model.InstallProgress
		task  string
	)
	err := laptop.Install(ctx, InstallOptions{
		SSH:          model.SSH{Address: "192.168.1.20"},
		DiskPath:     "/dev/nvme0n1",
		PromptValues: model.PromptValues{"root-password": {"password": "hunter2"}},
		OnTask:       func(id string) { task = id },
		OnProgress: func(p model.InstallProgress) {
			mu.Lock()
			steps = append(steps, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.InstallProgress{
		model.ProgressDisk,
		model.ProgressVarsPrompts,
		model.ProgressGenerators,
		model.ProgressUploadSecrets,
		model.ProgressNixosAnywhere,
		model.ProgressFormatting,
		model.ProgressInstalling,
		model.ProgressRebooting,
	}, steps)

	stored, _ := f.host.Machine(demoDir, "laptop")
	assert.Equal(t, model.StatusOnline, stored.Status)
}

func TestMachineInstall_StopsAtFailedStep(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)
	laptop := f.store.Clan(demoDir).Machines().Machine("laptop")

	var steps []model.InstallProgress
	err := laptop.Install(context.Background(), InstallOptions{
		SSH:        model.SSH{Address: "192.168.1.20"},
		OnProgress: func(p model.InstallProgress) { steps = append(steps, p) },
	})
	var apiErr *rpc.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, rpc.OpSetDiskSchema, apiErr.Op)
	assert.Empty(t, steps)
	assert.Zero(t, f.host.Calls(rpc.OpRunGenerators))
}

func TestMachineUpdate(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)
	nas := f.store.Clan(demoDir).Machines().Machine("nas")

	var steps []model.InstallProgress
	err := nas.Update(context.Background(), UpdateOptions{
		SSH:        model.SSH{Address: "192.168.1.10"},
		OnProgress: func(p model.InstallProgress) { steps = append(steps, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, []model.InstallProgress{model.ProgressGenerators, model.ProgressUploadSecrets}, steps)
}

func TestMachineIsSSHable(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)
	nas := f.store.Clan(demoDir).Machines().Machine("nas")

	assert.True(t, nas.IsSSHable(context.Background(), model.SSH{Address: "192.168.1.10"}))
	assert.False(t, nas.IsSSHable(context.Background(), model.SSH{Address: "nas.invalid"}))
}

func TestMachineHardwareReport_GeneratesWhenMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	nas := f.store.Clan(demoDir).Machines().Machine("nas")

	report, err := nas.HardwareReport(ctx, model.SSH{Address: "192.168.1.10"})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, model.HardwareFacter, report.Type)
	assert.Equal(t, 1, f.host.Calls(rpc.OpRunHardwareInfoInit))

	_, err = nas.HardwareReport(ctx, model.SSH{Address: "192.168.1.10"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.host.Calls(rpc.OpRunHardwareInfoInit), "stored report is reused")
}

func TestMachineDiskTemplatesAndPrompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadDemo(t, f)
	laptop := f.store.Clan(demoDir).Machines().Machine("laptop")

	templates, err := laptop.DiskTemplates(ctx)
	require.NoError(t, err)
	require.Contains(t, templates.All, "single-disk")
	assert.True(t, templates.All["single-disk"].Placeholders["mainDisk"].Required)

	require.NoError(t, f.api.RunGenerators(ctx, demoDir, "laptop", model.PromptValues{"wifi": {"ssid": "home"}}))

	groups, err := laptop.VarsPromptGroups(ctx)
	require.NoError(t, err)
	var network model.VarsPromptGroup
	for _, g := range groups {
		if g.ID == "Network" {
			network = g
		}
	}
	ssid, ok := network.Prompt("ssid")
	require.True(t, ok)
	assert.Equal(t, "home", ssid.Value, "persisted prompts carry their previous value")
}

func TestSubscribe_CoalescesNotifications(t *testing.T) {
	f := newFixture(t)
	ch, unsubscribe := f.store.Subscribe()
	defer unsubscribe()

	loadDemo(t, f)
	require.NoError(t, f.store.Clan(demoDir).Machines().SetHighlighted("nas"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	select {
	case <-ch:
		t.Fatal("notifications should coalesce")
	default:
	}

	unsubscribe()
	require.NoError(t, f.store.Clan(demoDir).Machines().Unhighlight())
	select {
	case <-ch:
		t.Fatal("notified after unsubscribe")
	default:
	}
}

func TestSnapshot_IsIndependent(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)

	snap := f.store.Snapshot()
	c, _ := model.AsClan(snap.All[0])
	c.Machines.All["nas"].Data.Tags[0] = "mutated"
	delete(c.Machines.All, "gateway")

	again, err := f.store.Clan(demoDir).Get()
	require.NoError(t, err)
	assert.Equal(t, "storage", again.Machines.All["nas"].Data.Tags[0])
	assert.Contains(t, again.Machines.All, "gateway")
}

type failingStorage struct{ kv.Backend }

func (failingStorage) Set(string, string) error { return errors.New("disk full") }

func TestUpdate_StorageFailureKeepsChange(t *testing.T) {
	f := newFixture(t)
	s, err := New(Options{API: f.api, Storage: failingStorage{kv.NewMemory()}})
	require.NoError(t, err)

	c, err := s.LoadClan(context.Background(), demoDir)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, s.Clan(demoDir).IsActive())
}

func TestPersistedPositions_AreJSONPairs(t *testing.T) {
	f := newFixture(t)
	loadDemo(t, f)

	raw, err := f.storage.Get(persist.KeyMachinePositions)
	require.NoError(t, err)
	var decoded map[string]map[string][2]int
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Len(t, decoded[demoDir], 3)
}

func TestRefreshActive_UpdatesStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.RefreshActive(ctx), "no active clan is fine")
	loadDemo(t, f)

	laptop := f.store.Clan(demoDir).Machines().Machine("laptop")
	require.NoError(t, laptop.Update(ctx, UpdateOptions{SSH: model.SSH{Address: "10.0.0.3"}}))

	ch, unsubscribe := f.store.Subscribe()
	defer unsubscribe()
	require.NoError(t, f.store.RefreshActive(ctx))

	m, err := laptop.Get()
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, m.Status)
	select {
	case <-ch:
	default:
		t.Fatal("status change should notify")
	}

	require.NoError(t, f.store.RefreshActive(ctx))
	select {
	case <-ch:
		t.Fatal("unchanged statuses should not notify")
	default:
	}
}
