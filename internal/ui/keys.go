package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding

	// View switching
	ViewClans    key.Binding
	ViewMachines key.Binding
	ViewServices key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Clan actions
	Activate   key.Binding
	Deactivate key.Binding
	OpenClan   key.Binding
	RemoveClan key.Binding
	Settings   key.Binding

	// Machine actions
	Highlight   key.Binding
	Unhighlight key.Binding
	AddMachine  key.Binding
	Install     key.Binding
	Update      key.Binding
	Delete      key.Binding
	Refresh     key.Binding

	// Toasts
	DismissToast key.Binding
	CancelTask   key.Binding

	// Forms
	Confirm   key.Binding
	NextField key.Binding
	PrevField key.Binding
	Abort     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Cycle views"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Cycle views (reverse)"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back / close"),
		),

		ViewClans: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Clans view"),
		),
		ViewMachines: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Machines view"),
		),
		ViewServices: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Services view"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		Activate: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Activate"),
		),
		Deactivate: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Deactivate"),
		),
		OpenClan: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Open clan directory"),
		),
		RemoveClan: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Remove / delete"),
		),
		Settings: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Clan settings"),
		),

		Highlight: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle highlight"),
		),
		Unhighlight: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Clear highlights"),
		),
		AddMachine: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Add machine"),
		),
		Install: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "Install machine"),
		),
		Update: key.NewBinding(
			key.WithKeys("U"),
			key.WithHelp("U", "Update machine"),
		),
		Delete: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Delete machine"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh statuses"),
		),

		DismissToast: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "Dismiss newest toast"),
		),
		CancelTask: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "Cancel running task"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		Abort: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("ctrl+a", "Abort install"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewClans, k.ViewMachines, k.ViewServices, k.Escape},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Activate, k.Deactivate, k.OpenClan, k.RemoveClan, k.Settings},
		{k.Highlight, k.Unhighlight, k.AddMachine, k.Install, k.Update, k.Delete, k.Refresh},
		{k.DismissToast, k.CancelTask},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
