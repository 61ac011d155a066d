package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/kv"
	"github.com/five82/clanboard/internal/modal"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/notify"
	"github.com/five82/clanboard/internal/persist"
	"github.com/five82/clanboard/internal/store"
	"github.com/five82/clanboard/internal/workflow"
)

// View represents the current active view.
type View int

const (
	ViewClans View = iota
	ViewMachines
	ViewServices
)

func (v View) String() string {
	switch v {
	case ViewMachines:
		return "Machines"
	case ViewServices:
		return "Services"
	default:
		return "Clans"
	}
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Clans     *store.Clans
	Modals    *modal.Controller
	Toasts    *notify.Center
	Canceller workflow.Canceller
	// Storage keeps the chosen theme; nil disables saving it.
	Storage   kv.Backend
	ThemeName string
	Logger    *zap.Logger
	// Tick is the cadence of toast expiry; zero uses one second.
	Tick time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	clans     *store.Clans
	modals    *modal.Controller
	toasts    *notify.Center
	canceller workflow.Canceller
	storage   kv.Backend
	logger    *zap.Logger
	tick      time.Duration
	keys      keyMap

	changes     <-chan struct{}
	unsubscribe func()

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	modal       Modal
	status      string

	// Data state
	snapshot    model.Clans
	toastList   []notify.Toast
	lastUpdated time.Time

	// Selection per view
	clanRow    int
	machineRow int
	serviceRow int
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = time.Second
	}
	modals := opts.Modals
	if modals == nil {
		modals = modal.New(logger)
	}
	toasts := opts.Toasts
	if toasts == nil {
		toasts = notify.New(opts.Canceller, 0, logger)
	}

	m := Model{
		ctx:         ctx,
		clans:       opts.Clans,
		modals:      modals,
		toasts:      toasts,
		canceller:   opts.Canceller,
		storage:     opts.Storage,
		logger:      logger,
		tick:        tick,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(opts.ThemeName),
		currentView: ViewClans,
		snapshot:    model.NewClans(),
	}
	if m.clans != nil {
		m.changes, m.unsubscribe = m.clans.Subscribe()
		m.snapshot = m.clans.Snapshot()
		if _, ok := m.snapshot.ActiveClan(); ok {
			m.currentView = ViewMachines
		}
	}
	m.toastList = m.toasts.List()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.tick),
		waitForToasts(m.toasts),
	}
	if m.changes != nil {
		cmds = append(cmds, waitForChange(m.changes))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		m.toasts.Expire()
		return m, tickCmd(m.tick)

	case storeChangedMsg:
		if m.clans != nil {
			m.snapshot = m.clans.Snapshot()
			m.lastUpdated = time.Now()
			m.clampRows()
		}
		return m, waitForChange(m.changes)

	case toastsChangedMsg:
		m.toastList = m.toasts.List()
		return m, waitForToasts(m.toasts)

	case opDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.label, msg.err)
			m.logger.Debug("ui action failed", zap.String("action", msg.label), zap.Error(msg.err))
		} else {
			m.status = ""
		}
		return m, nil

	case modalResultMsg:
		if msg.err == nil {
			m.toasts.Info(describeResult(msg.kind, msg.result), "")
		}
		return m, nil
	}

	// Everything else belongs to the open modal: step results, spinner
	// ticks, cursor blinks.
	if m.modal != nil {
		return m.updateModal(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

func (m Model) updateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd, closed := m.modal.Update(msg, m.keys)
	if closed {
		m.modal = nil
	} else {
		m.modal = next
	}
	return m, cmd
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	if m.modal != nil {
		return m.updateModal(msg)
	}
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		if m.storage != nil {
			if err := persist.SaveTheme(m.storage, m.theme.Name); err != nil {
				m.logger.Warn("save theme failed", zap.Error(err))
			}
		}
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		m.currentView = (m.currentView + 1) % 3
		return m, nil
	case key.Matches(msg, m.keys.ShiftTab):
		m.currentView = (m.currentView + 2) % 3
		return m, nil
	case key.Matches(msg, m.keys.ViewClans), key.Matches(msg, m.keys.Escape):
		m.currentView = ViewClans
		return m, nil
	case key.Matches(msg, m.keys.ViewMachines):
		m.currentView = ViewMachines
		return m, nil
	case key.Matches(msg, m.keys.ViewServices):
		m.currentView = ViewServices
		return m, nil
	case key.Matches(msg, m.keys.DismissToast):
		if n := len(m.toastList); n > 0 {
			_ = m.toasts.Dismiss(m.toastList[n-1].ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.CancelTask):
		return m, m.cancelNewestTask()
	case key.Matches(msg, m.keys.Settings):
		return m.openSettings()
	}

	if m.clans == nil {
		return m, nil
	}
	switch m.currentView {
	case ViewClans:
		return m.handleClansKey(msg)
	case ViewMachines:
		return m.handleMachinesKey(msg)
	case ViewServices:
		return m.handleServicesKey(msg)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

// moveRow applies the navigation keys to row within n rows.
func (m Model) moveRow(msg tea.KeyMsg, row *int, n int) bool {
	if n == 0 {
		return false
	}
	switch {
	case key.Matches(msg, m.keys.Down):
		if *row < n-1 {
			*row++
		}
	case key.Matches(msg, m.keys.Up):
		if *row > 0 {
			*row--
		}
	case key.Matches(msg, m.keys.Top):
		*row = 0
	case key.Matches(msg, m.keys.Bottom):
		*row = n - 1
	default:
		return false
	}
	return true
}

func (m Model) handleClansKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.snapshot.All
	if m.moveRow(msg, &m.clanRow, len(entries)) {
		return m, nil
	}

	clans, ctx := m.clans, m.ctx
	switch {
	case key.Matches(msg, m.keys.OpenClan):
		return m, opCmd("open clan", func() error {
			dir, err := clans.PickClanDir(ctx)
			if err != nil || dir == "" {
				return err
			}
			_, err = clans.LoadClan(ctx, dir)
			return err
		})
	}

	if len(entries) == 0 {
		return m, nil
	}
	row := m.clanRow
	id := entries[row].ClanID()
	switch {
	case key.Matches(msg, m.keys.Activate):
		return m, opCmd("activate clan", func() error {
			_, err := clans.ActivateClanAt(ctx, row)
			return err
		})
	case key.Matches(msg, m.keys.Deactivate):
		clans.DeactivateClan(id)
	case key.Matches(msg, m.keys.RemoveClan):
		if _, err := clans.RemoveClanAt(row); err != nil {
			m.status = fmt.Sprintf("remove clan: %v", err)
		}
	}
	return m, nil
}

func (m Model) handleMachinesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active, ok := m.snapshot.ActiveClan()
	if !ok {
		return m, nil
	}
	machines := m.clans.Clan(active.ID).Machines()
	list := active.Machines.Sorted()
	if m.moveRow(msg, &m.machineRow, len(list)) {
		return m, nil
	}

	ctx := m.ctx
	switch {
	case key.Matches(msg, m.keys.AddMachine):
		w, pending, err := newAddMachineModal(ctx, machines, m.modals)
		return m.openModal(w, pending, err)
	case key.Matches(msg, m.keys.Refresh):
		return m, opCmd("refresh statuses", func() error { return machines.RefreshStatuses(ctx) })
	case key.Matches(msg, m.keys.Unhighlight):
		m.setStatus("clear highlights", machines.Unhighlight())
		return m, nil
	case key.Matches(msg, m.keys.Deactivate):
		m.setStatus("deactivate machine", machines.Deactivate())
		return m, nil
	}

	if len(list) == 0 {
		return m, nil
	}
	id := list[m.machineRow].ID
	switch {
	case key.Matches(msg, m.keys.Activate):
		_, err := machines.Activate(id)
		m.setStatus("activate machine", err)
	case key.Matches(msg, m.keys.Highlight):
		m.setStatus("highlight", machines.ToggleHighlighted(id))
	case key.Matches(msg, m.keys.Install):
		w, pending, err := newInstallModal(ctx, machines.Machine(id), m.modals, m.canceller)
		return m.openModal(w, pending, err)
	case key.Matches(msg, m.keys.Update):
		w, pending, err := newUpdateModal(ctx, machines.Machine(id), m.modals, m.canceller)
		return m.openModal(w, pending, err)
	case key.Matches(msg, m.keys.Delete):
		return m, opCmd("delete machine", func() error { return machines.Delete(ctx, id) })
	}
	return m, nil
}

func (m Model) handleServicesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active, ok := m.snapshot.ActiveClan()
	if !ok {
		return m, nil
	}
	instances := m.clans.Clan(active.ID).ServiceInstances()
	list := active.ServiceInstances()
	if m.moveRow(msg, &m.serviceRow, len(list)) {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Deactivate):
		m.setStatus("deactivate instance", instances.Deactivate())
	case key.Matches(msg, m.keys.Activate) && len(list) > 0:
		_, err := instances.Activate(list[m.serviceRow].Name)
		m.setStatus("activate instance", err)
	}
	return m, nil
}

func (m Model) openSettings() (tea.Model, tea.Cmd) {
	active, ok := m.snapshot.ActiveClan()
	if !ok || m.clans == nil {
		m.status = "clan settings: no active clan"
		return m, nil
	}
	w, pending, err := newSettingsModal(m.ctx, m.clans.Clan(active.ID), m.modals)
	return m.openModal(w, pending, err)
}

// openModal shows w and waits for its result in the background.
func (m Model) openModal(w Modal, pending *modal.Pending, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.modal = w
	m.status = ""
	return m, awaitModal(m.ctx, pending)
}

func (m *Model) setStatus(action string, err error) {
	if err != nil {
		m.status = fmt.Sprintf("%s: %v", action, err)
		return
	}
	m.status = ""
}

func (m Model) cancelNewestTask() tea.Cmd {
	for i := len(m.toastList) - 1; i >= 0; i-- {
		t := m.toastList[i]
		if !t.Running() {
			continue
		}
		toasts, ctx, id := m.toasts, m.ctx, t.ID
		return opCmd("cancel task", func() error { return toasts.Cancel(ctx, id) })
	}
	return nil
}

func (m *Model) clampRows() {
	clamp := func(row *int, n int) {
		if *row >= n {
			*row = n - 1
		}
		if *row < 0 {
			*row = 0
		}
	}
	clamp(&m.clanRow, len(m.snapshot.All))
	if active, ok := m.snapshot.ActiveClan(); ok {
		clamp(&m.machineRow, len(active.Machines.All))
		clamp(&m.serviceRow, len(active.Instances))
	} else {
		m.machineRow, m.serviceRow = 0, 0
	}
}

func describeResult(kind modal.Kind, result any) string {
	switch kind {
	case modal.KindAddMachine:
		if mc, ok := result.(*model.Machine); ok {
			return fmt.Sprintf("Machine %s created", mc.ID)
		}
	case modal.KindInstallMachine:
		return fmt.Sprintf("Installed %v", result)
	case modal.KindUpdateMachine:
		return fmt.Sprintf("Updated %v", result)
	case modal.KindClanSettings:
		if d, ok := result.(model.ClanData); ok {
			return fmt.Sprintf("Saved settings of %s", d.Name)
		}
	}
	return strings.TrimSpace(fmt.Sprintf("%s done", kind))
}

// Messages

type tickMsg time.Time

type storeChangedMsg struct{}

type toastsChangedMsg struct{}

type opDoneMsg struct {
	label string
	err   error
}

type modalResultMsg struct {
	kind   modal.Kind
	result any
	err    error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func waitForToasts(c *notify.Center) tea.Cmd {
	return func() tea.Msg {
		<-c.Changed()
		return toastsChangedMsg{}
	}
}

func opCmd(label string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{label: label, err: fn()}
	}
}

func awaitModal(ctx context.Context, p *modal.Pending) tea.Cmd {
	return func() tea.Msg {
		result, err := p.Wait(ctx)
		return modalResultMsg{kind: p.Kind(), result: result, err: err}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return err
}
