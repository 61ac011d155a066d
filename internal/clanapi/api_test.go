package clanapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/clanboard/internal/clanapi"
	"github.com/five82/clanboard/internal/demohost"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/rpc"
)

const clanDir = "/srv/clans/demo"

func newAPI(t *testing.T) (*clanapi.API, *demohost.Host) {
	t.Helper()
	host := demohost.New(nil)
	host.Seed(clanDir)
	tr := rpc.NewHostTransport()
	host.Serve(tr)
	client, err := rpc.NewClient(tr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return clanapi.New(client), host
}

func TestLoadClan(t *testing.T) {
	api, _ := newAPI(t)

	out, err := api.LoadClan(context.Background(), clanDir)
	require.NoError(t, err)

	assert.Equal(t, clanDir, out.ID)
	assert.Equal(t, model.ClanData{Name: "demo", Description: "Example clan", Domain: "demo.lan"}, out.Data)

	require.Len(t, out.Machines, 3)
	assert.Equal(t, model.StatusOnline, out.Machines["gateway"].Status)
	assert.Equal(t, model.StatusOutOfSync, out.Machines["nas"].Status)
	assert.Equal(t, model.ClassDarwin, out.Machines["laptop"].Data.MachineClass)
	assert.Equal(t, "root@192.168.1.1", out.Machines["gateway"].Data.Deploy.TargetHost)

	require.Len(t, out.Instances, 2)
	assert.Equal(t, "admin", out.Instances[0].Name)
	backups := out.Instances[1]
	assert.Equal(t, "borgbackup", backups.ServiceID)
	assert.Equal(t, []string{"nas"}, backups.Roles["server"].Machines)
	assert.Equal(t, []string{"backup"}, backups.Roles["client"].Tags)

	assert.Equal(t, []string{"backup", "network", "storage"}, out.GlobalTags.Regular)
	assert.Equal(t, model.DefaultSpecialTags, out.GlobalTags.Special)
	assert.NotEmpty(t, out.Services)
}

func TestLoadClan_UnknownClan(t *testing.T) {
	api, _ := newAPI(t)
	_, err := api.LoadClan(context.Background(), "/srv/clans/missing")

	var apiErr *rpc.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, rpc.OpGetClanDetails, apiErr.Op)
}

func TestMachineLifecycle(t *testing.T) {
	api, host := newAPI(t)
	ctx := context.Background()

	data, err := api.CreateMachine(ctx, clanDir, "printer", model.MachineData{Description: "Office printer"})
	require.NoError(t, err)
	assert.Equal(t, model.ClassNixOS, data.MachineClass, "class defaults to nixos")
	assert.Equal(t, []string{}, data.Tags)
	assert.Equal(t, "Office printer", data.Description)

	data.Tags = []string{"office"}
	require.NoError(t, api.SetMachine(ctx, clanDir, "printer", data))
	stored, ok := host.Machine(clanDir, "printer")
	require.True(t, ok)
	assert.Equal(t, []string{"office"}, stored.Fields.Tags)

	require.NoError(t, api.DeleteMachine(ctx, clanDir, "printer"))
	_, ok = host.Machine(clanDir, "printer")
	assert.False(t, ok)
}

func TestClanDetails_RoundTrip(t *testing.T) {
	api, _ := newAPI(t)
	ctx := context.Background()

	want := model.ClanData{Name: "lab", Description: "Home lab", Domain: "lab.lan"}
	require.NoError(t, api.SetClanDetails(ctx, clanDir, want))
	got, err := api.ClanDetails(ctx, clanDir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPickClanDir(t *testing.T) {
	api, host := newAPI(t)
	ctx := context.Background()

	dir, err := api.PickClanDir(ctx)
	require.NoError(t, err)
	assert.Empty(t, dir, "dismissed picker")

	host.SetPickDir(clanDir)
	dir, err = api.PickClanDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, clanDir, dir)
}

func TestHardwareReport(t *testing.T) {
	api, _ := newAPI(t)
	ctx := context.Background()

	report, err := api.HardwareReport(ctx, clanDir, "gateway")
	require.NoError(t, err)
	assert.Nil(t, report)

	report, err = api.GenerateHardwareReport(ctx, clanDir, "gateway", model.SSH{Address: "192.168.1.1"})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, model.HardwareFacter, report.Type)

	report, err = api.HardwareReport(ctx, clanDir, "gateway")
	require.NoError(t, err)
	require.NotNil(t, report)
}

func TestCheckSSH(t *testing.T) {
	api, _ := newAPI(t)
	ctx := context.Background()

	require.NoError(t, api.CheckSSH(ctx, model.SSH{Address: "192.168.1.1"}))

	err := api.CheckSSH(ctx, model.SSH{Address: "gone.invalid"})
	var apiErr *rpc.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ssh login failed", apiErr.Message())
}

func TestVarsPromptGroups_PrefillsPersistedValues(t *testing.T) {
	api, _ := newAPI(t)
	ctx := context.Background()

	require.NoError(t, api.RunGenerators(ctx, clanDir, "laptop", model.PromptValues{
		"wifi": {"ssid": "home", "psk": "secret"},
	}))

	groups, err := api.VarsPromptGroups(ctx, clanDir, "laptop")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Network", groups[0].ID)
	assert.Equal(t, "User", groups[1].ID)

	ssid, ok := groups[0].Prompt("ssid")
	require.True(t, ok)
	assert.Equal(t, "home", ssid.Value)
	assert.Equal(t, "wifi", ssid.Generator)

	psk, ok := groups[0].Prompt("psk")
	require.True(t, ok)
	assert.Empty(t, psk.Value, "prompts that do not persist are never prefilled")
	assert.Equal(t, "Passphrase", psk.Name)

	password, ok := groups[1].Prompt("password")
	require.True(t, ok)
	assert.True(t, password.Required)
	assert.Equal(t, "Root password", password.Name)
}

func TestDiskTemplates(t *testing.T) {
	api, _ := newAPI(t)
	templates, err := api.DiskTemplates(context.Background(), clanDir, "nas")
	require.NoError(t, err)

	tpl, ok := templates.All["single-disk"]
	require.True(t, ok)
	assert.Equal(t, []string{"/dev/sda", "/dev/nvme0n1"}, tpl.Placeholders["mainDisk"].Values)
	assert.True(t, tpl.Placeholders["mainDisk"].Required)
}

// recorder is a Caller that keeps the encoded request bodies.
type recorder struct {
	ops    []rpc.Operation
	bodies []json.RawMessage
	listen map[rpc.Operation]func(rpc.Event)
}

func (r *recorder) Call(_ context.Context, op rpc.Operation, body, _ any, _ ...rpc.CallOption) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	r.ops = append(r.ops, op)
	r.bodies = append(r.bodies, raw)
	return nil
}

func (r *recorder) Subscribe(op rpc.Operation, fn func(rpc.Event)) (func(), error) {
	if r.listen == nil {
		r.listen = make(map[rpc.Operation]func(rpc.Event))
	}
	r.listen[op] = fn
	return func() { delete(r.listen, op) }, nil
}

func TestRequestBodies(t *testing.T) {
	rec := &recorder{}
	api := clanapi.New(rec)
	ctx := context.Background()

	require.NoError(t, api.CheckSSH(ctx, model.SSH{Address: "10.0.0.2", Port: 2222}))
	require.NoError(t, api.SetDiskSchema(ctx, clanDir, "nas", "/dev/sda"))
	require.NoError(t, api.RunGenerators(ctx, clanDir, "nas", model.PromptValues{"wifi": {}, "root-password": {}}))

	require.Equal(t, []rpc.Operation{rpc.OpCheckMachineSSH, rpc.OpSetDiskSchema, rpc.OpRunGenerators}, rec.ops)

	var ssh clanapi.CheckSSHBody
	require.NoError(t, json.Unmarshal(rec.bodies[0], &ssh))
	assert.Equal(t, 2222, ssh.Remote.Port)
	assert.Equal(t, "no", ssh.Remote.SSHOptions["StrictHostKeyChecking"])

	var disk clanapi.SetDiskSchemaBody
	require.NoError(t, json.Unmarshal(rec.bodies[1], &disk))
	assert.Equal(t, "single-disk", disk.SchemaName)
	assert.Equal(t, map[string]string{"mainDisk": "/dev/sda"}, disk.Placeholders)
	assert.True(t, disk.Force)

	var gens clanapi.RunGeneratorsBody
	require.NoError(t, json.Unmarshal(rec.bodies[2], &gens))
	assert.Equal(t, []string{"root-password", "wifi"}, gens.Generators)
}

func TestOnProgress_FiltersByTask(t *testing.T) {
	rec := &recorder{}
	api := clanapi.New(rec)

	var got []model.InstallProgress
	unsubscribe, err := api.OnProgress(rpc.OpRunMachineInstall, "task-1", func(p model.InstallProgress) {
		got = append(got, p)
	})
	require.NoError(t, err)

	relay := rec.listen[rpc.OpRunMachineInstall]
	require.NotNil(t, relay)
	relay(rpc.Event{OpKey: "task-1", Type: "disk"})
	relay(rpc.Event{OpKey: "task-2", Type: "nixos"})
	relay(rpc.Event{OpKey: "task-1"})
	relay(rpc.Event{Type: "done"})

	assert.Equal(t, []model.InstallProgress{"disk", "done"}, got)

	unsubscribe()
	assert.Empty(t, rec.listen)
}

func TestCreateClan_Duplicate(t *testing.T) {
	api, _ := newAPI(t)
	err := api.CreateClan(context.Background(), clanDir, model.ClanMetaData{Name: "again"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, rpc.ErrUnknownOperation))
}
