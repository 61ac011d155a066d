package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/clanboard/internal/clanapi"
	"github.com/five82/clanboard/internal/demohost"
	"github.com/five82/clanboard/internal/kv"
	"github.com/five82/clanboard/internal/notify"
	"github.com/five82/clanboard/internal/persist"
	"github.com/five82/clanboard/internal/rpc"
	"github.com/five82/clanboard/internal/store"
)

const clanDir = "/srv/clans/demo"

type harness struct {
	host    *demohost.Host
	clans   *store.Clans
	toasts  *notify.Center
	storage *kv.Memory
}

func newHarness(t *testing.T) (*harness, Model) {
	t.Helper()
	host := demohost.New(nil)
	host.Seed(clanDir)
	tr := rpc.NewHostTransport()
	host.Serve(tr)

	toasts := notify.New(nil, 0, nil)
	client, err := rpc.NewClient(tr, rpc.WithObserver(toasts))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	toasts.SetCanceller(client)

	storage := kv.NewMemory()
	clans, err := store.New(store.Options{API: clanapi.New(client), Storage: storage})
	require.NoError(t, err)
	_, err = clans.LoadClan(context.Background(), clanDir)
	require.NoError(t, err)

	m := New(Options{Clans: clans, Toasts: toasts, Canceller: client, Storage: storage})
	t.Cleanup(m.unsubscribe)
	m = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return &harness{host: host, clans: clans, toasts: toasts, storage: storage}, m
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

// exec runs cmd and feeds the resulting messages back. Only commands that
// return at once may be passed; batches are expanded one level.
func exec(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if inner := c(); inner != nil {
				m = send(t, m, inner)
			}
		}
		return m
	}
	if msg == nil {
		return m
	}
	return send(t, m, msg)
}

func TestModel_StartsOnMachinesOfActiveClan(t *testing.T) {
	_, m := newHarness(t)
	assert.Equal(t, ViewMachines, m.currentView)

	view := m.View()
	for _, id := range []string{"gateway", "laptop", "nas"} {
		assert.Contains(t, view, id)
	}

	m, _ = press(t, m, runes("c"))
	assert.Equal(t, ViewClans, m.currentView)
	assert.Contains(t, m.View(), clanDir)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ViewMachines, m.currentView)
}

func TestModel_HighlightAndActivateMachine(t *testing.T) {
	h, m := newHarness(t)

	m, _ = press(t, m, space)
	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, enter)
	assert.Empty(t, m.status)

	active, ok := h.clans.ActiveClan()
	require.True(t, ok)
	assert.Equal(t, []string{"gateway"}, active.Machines.HighlightedIDs())
	assert.Equal(t, "laptop", active.Machines.Active)
}

func TestModel_StoreChangesRefreshSnapshot(t *testing.T) {
	h, m := newHarness(t)
	require.NoError(t, h.clans.Clan(clanDir).Machines().SetHighlighted("nas"))

	m = send(t, m, storeChangedMsg{})
	active, ok := m.snapshot.ActiveClan()
	require.True(t, ok)
	assert.True(t, active.Machines.IsHighlighted("nas"))
}

func TestModel_AddMachineWizard(t *testing.T) {
	h, m := newHarness(t)

	m, await := press(t, m, runes("a"))
	require.NotNil(t, m.modal)
	require.NotNil(t, await)

	m, _ = press(t, m, runes("printer"))
	m, cmd := press(t, m, enter)
	m = exec(t, m, cmd)
	assert.Nil(t, m.modal, "wizard closes after create")

	_, ok := h.host.Machine(clanDir, "printer")
	assert.True(t, ok)

	m = exec(t, m, await)
	var titles []string
	for _, toast := range h.toasts.List() {
		titles = append(titles, toast.Title)
	}
	assert.Contains(t, titles, "Machine printer created")
}

func TestModel_AddMachineRejectsBadName(t *testing.T) {
	_, m := newHarness(t)

	m, _ = press(t, m, runes("a"))
	m, _ = press(t, m, runes("bad name"))
	m, cmd := press(t, m, enter)
	assert.Nil(t, cmd)
	require.NotNil(t, m.modal)
	assert.Contains(t, m.View(), "invalid input")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.modal)
}

func TestModel_DeleteFailureShowsStatus(t *testing.T) {
	h, m := newHarness(t)
	h.host.FailNext(rpc.OpDeleteMachine, "machine is locked")

	m, cmd := press(t, m, runes("D"))
	m = exec(t, m, cmd)
	assert.True(t, strings.Contains(m.status, "machine is locked"), "status = %q", m.status)

	_, ok := h.host.Machine(clanDir, "gateway")
	assert.True(t, ok)
}

func TestModel_UpdateWizard(t *testing.T) {
	h, m := newHarness(t)

	m, _ = press(t, m, runes("G"))
	m, await := press(t, m, runes("U"))
	require.NotNil(t, m.modal)

	m, cmd := press(t, m, enter)
	m = exec(t, m, cmd)
	require.NotNil(t, m.modal)
	assert.Contains(t, m.View(), "Updated")

	m, _ = press(t, m, enter)
	assert.Nil(t, m.modal)
	_ = exec(t, m, await)
	assert.Equal(t, 1, h.host.Calls(rpc.OpRunMachineUpdate))
}

func TestModel_CycleThemeIsSaved(t *testing.T) {
	h, m := newHarness(t)
	m, _ = press(t, m, runes("T"))
	assert.Equal(t, "Kanagawa", m.theme.Name)

	name, err := persist.LoadTheme(h.storage)
	require.NoError(t, err)
	assert.Equal(t, "Kanagawa", name)
}

func TestModel_HelpOverlay(t *testing.T) {
	_, m := newHarness(t)
	m, _ = press(t, m, runes("?"))
	assert.Contains(t, m.View(), "Keyboard Shortcuts")
	m, _ = press(t, m, runes("j"))
	assert.False(t, m.showHelp)
}
