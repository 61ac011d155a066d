// Package ui provides the clanboard terminal interface, built on Bubble Tea.
//
// # Views
//
// Three views share one header and one toast area:
//
//   - Clans: every known clan, loaded or not, with the active one marked.
//     enter activates (loading the clan when needed), o opens a clan
//     directory picked by the host, D forgets the clan.
//   - Machines: the machines of the active clan with their status badges.
//     space toggles highlighting, a adds a machine, i installs, U updates,
//     D deletes, r refreshes the statuses.
//   - Services: the service instances of the active clan and their roles.
//
// # Data Flow
//
// The Model never mutates entities itself. Keys call store handles; long
// calls run as tea.Cmds and report back with opDoneMsg. The Model re-reads
// store.Clans.Snapshot whenever the store signals a change, and re-reads
// notify.Center.List whenever the toasts change.
//
// # Modals
//
// Wizards (add machine, install, update, clan settings) implement Modal.
// Each one owns a workflow flow and the modal slot of modal.Controller; the
// Pending returned on open is awaited in the background and resolves into
// an info toast. While a wizard step runs off the UI goroutine, the wizard
// ignores input and renders only task progress, which is safe to read
// concurrently.
//
// # Themes
//
// Nightfox, Kanagawa and Slate. T cycles them; the choice is saved in the
// kv store and restored on the next start.
package ui
