package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/clanboard/internal/modal"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/stepper"
	"github.com/five82/clanboard/internal/store"
	"github.com/five82/clanboard/internal/workflow"
)

// wizardDoneMsg carries the outcome of a wizard step that ran off the UI
// goroutine.
type wizardDoneMsg struct {
	err error
}

// runStep runs fn as a command. The wizard must not touch its flow until
// the resulting wizardDoneMsg arrives.
func runStep(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return wizardDoneMsg{err: fn()}
	}
}

// --- add machine ---

type addMachineModal struct {
	ctx  context.Context
	flow *workflow.AddMachine
	form form
	busy bool
	err  error
}

func newAddMachineModal(ctx context.Context, machines *store.Machines, modals *modal.Controller) (*addMachineModal, *modal.Pending, error) {
	flow, pending, err := workflow.NewAddMachine(machines, modals, nil)
	if err != nil {
		return nil, nil, err
	}
	w := &addMachineModal{ctx: ctx, flow: flow}
	w.form.add("Name", "", false)
	w.form.add("Description", "", false)
	w.form.add("Class", string(model.ClassNixOS), false)
	w.form.add("Tags", "", false)
	w.form.add("Target host", "", false)
	return w, pending, nil
}

func (w *addMachineModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case wizardDoneMsg:
		w.busy = false
		if msg.err != nil {
			w.err = msg.err
			_ = w.flow.Back()
			return w, nil, false
		}
		return w, nil, true
	case tea.KeyMsg:
		if w.busy {
			return w, nil, false
		}
		switch {
		case key.Matches(msg, keys.Escape):
			_ = w.flow.Cancel()
			return w, nil, true
		case key.Matches(msg, keys.Confirm):
			g := w.flow.General()
			g.Name = w.form.value(0)
			g.Description = strings.TrimSpace(w.form.value(1))
			g.Class = model.MachineClass(strings.TrimSpace(w.form.value(2)))
			g.Tags = splitList(w.form.value(3))
			g.TargetHost = w.form.value(4)
			if err := w.flow.SubmitGeneral(); err != nil {
				w.err = err
				return w, nil, false
			}
			w.busy, w.err = true, nil
			flow, ctx := w.flow, w.ctx
			return w, runStep(func() error {
				_, err := flow.Create(ctx)
				return err
			}), false
		}
	}
	return w, w.form.update(msg, keys), false
}

func (w *addMachineModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	body := w.form.view(styles)
	if w.busy {
		body += "\n" + styles.MutedText.Render("Creating machine…")
	} else {
		body += "\n" + styles.FaintText.Render("enter create · tab next field · esc cancel")
	}
	return modalFrame(theme, width, height, "Add machine", body, w.err)
}

// --- install ---

type installModal struct {
	ctx       context.Context
	flow      *workflow.Install
	machineID string
	spinner   spinner.Model

	// step is the flow step the form was built for. It is only refreshed
	// while no command runs.
	step    string
	form    form
	prompts [][2]string // generator, prompt id per data field

	busy bool
	err  error
}

func newInstallModal(ctx context.Context, machine *store.Machine, modals *modal.Controller, canceller workflow.Canceller) (*installModal, *modal.Pending, error) {
	flow, pending, err := workflow.NewInstall(machine, modals, canceller)
	if err != nil {
		return nil, nil, err
	}
	w := &installModal{ctx: ctx, flow: flow, machineID: machine.ID(), spinner: spinner.New(spinner.WithSpinner(spinner.Dot))}
	w.sync()
	return w, pending, nil
}

// sync rebuilds the form when the flow moved to another step.
func (w *installModal) sync() {
	cur := w.flow.Steps().Current().ID
	if cur == w.step {
		return
	}
	w.step = cur
	w.form = form{}
	w.prompts = nil
	switch cur {
	case workflow.StepAddress:
		a := w.flow.Address()
		port := ""
		if a.Port > 0 {
			port = strconv.Itoa(a.Port)
		}
		w.form.add("Address", a.Address, false)
		w.form.add("Port", port, false)
		w.form.add("Password", a.Password, true)
	case workflow.StepDisk:
		d := w.flow.Disk()
		tpl := d.Template
		if tpl == "" && len(d.Templates.Sorted) > 0 {
			tpl = d.Templates.Sorted[0].ID
		}
		w.form.add("Template", tpl, false)
		w.form.add("Disk path", d.Path, false)
	case workflow.StepData:
		data := w.flow.Data()
		for _, g := range data.Groups {
			for _, p := range g.Prompts {
				label := p.Name
				if label == "" {
					label = p.ID
				}
				hidden := p.Type == model.PromptHidden || p.Type == model.PromptMultilineHidden
				w.form.add(label, data.Values[p.Generator][p.ID], hidden)
				w.prompts = append(w.prompts, [2]string{p.Generator, p.ID})
			}
		}
	}
}

func (w *installModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case wizardDoneMsg:
		w.busy = false
		w.err = msg.err
		w.sync()
		return w, nil, false
	case spinner.TickMsg:
		if !w.busy {
			return w, nil, false
		}
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd, false
	case tea.KeyMsg:
		if key.Matches(msg, keys.Abort) {
			flow, ctx := w.flow, w.ctx
			return w, func() tea.Msg {
				if err := flow.Abort(ctx); err != nil && !errors.Is(err, workflow.ErrNotRunning) {
					return wizardAbortMsg{err: err}
				}
				return nil
			}, false
		}
		if w.busy {
			return w, nil, false
		}
		switch {
		case key.Matches(msg, keys.Escape):
			return w.back()
		case key.Matches(msg, keys.Confirm):
			return w.confirm()
		}
	case wizardAbortMsg:
		w.err = msg.err
		return w, nil, false
	}
	if w.busy {
		return w, nil, false
	}
	return w, w.form.update(msg, keys), false
}

func (w *installModal) back() (Modal, tea.Cmd, bool) {
	switch w.step {
	case workflow.StepProgress, workflow.StepDone:
		if w.step == workflow.StepDone {
			_ = w.flow.Finish()
		} else {
			_ = w.flow.Cancel()
		}
		return w, nil, true
	}
	if err := w.flow.Back(); err != nil {
		if errors.Is(err, stepper.ErrNoPrevious) {
			_ = w.flow.Cancel()
			return w, nil, true
		}
		w.err = err
		return w, nil, false
	}
	w.err = nil
	w.sync()
	return w, nil, false
}

func (w *installModal) confirm() (Modal, tea.Cmd, bool) {
	flow, ctx := w.flow, w.ctx
	w.err = nil
	switch w.step {
	case workflow.StepAddress:
		a := flow.Address()
		port, err := parsePort(w.form.value(1))
		if err != nil {
			w.err = err
			return w, nil, false
		}
		a.Address, a.Port, a.Password = w.form.value(0), port, w.form.value(2)
		return w.start(func() error {
			if err := flow.SubmitAddress(ctx); err != nil {
				return err
			}
			if err := flow.CheckHardware(ctx); err != nil {
				return err
			}
			return flow.LoadDisks(ctx)
		})
	case workflow.StepCheckHardware:
		return w.start(func() error {
			if err := flow.CheckHardware(ctx); err != nil {
				return err
			}
			return flow.LoadDisks(ctx)
		})
	case workflow.StepDisk:
		d := flow.Disk()
		d.Template = strings.TrimSpace(w.form.value(0))
		d.Path = w.form.value(1)
		if err := flow.SubmitDisk(); err != nil {
			w.err = err
			return w, nil, false
		}
		return w.start(func() error { return flow.LoadPrompts(ctx) })
	case workflow.StepData:
		for i, p := range w.prompts {
			flow.SetPrompt(p[0], p[1], w.form.value(i))
		}
		if err := flow.SubmitData(); err != nil {
			w.err = err
			return w, nil, false
		}
		w.sync()
		return w, nil, false
	case workflow.StepSummary:
		if err := flow.Confirm(); err != nil {
			w.err = err
			return w, nil, false
		}
		w.sync()
		return w.start(func() error { return flow.Run(ctx) })
	case workflow.StepProgress:
		// Retry after a failed run.
		return w.start(func() error { return flow.Run(ctx) })
	case workflow.StepDone:
		if err := flow.Finish(); err != nil {
			w.err = err
			return w, nil, false
		}
		return w, nil, true
	}
	return w, nil, false
}

func (w *installModal) start(fn func() error) (Modal, tea.Cmd, bool) {
	w.busy = true
	return w, tea.Batch(runStep(fn), w.spinner.Tick), false
}

func (w *installModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder

	if w.busy && w.step != workflow.StepProgress {
		b.WriteString(w.spinner.View() + " " + styles.MutedText.Render(busyLabel(w.step)))
		b.WriteString("\n")
		return modalFrame(theme, width, height, "Install "+w.machineID, b.String(), nil)
	}

	switch w.step {
	case workflow.StepAddress:
		b.WriteString(styles.MutedText.Render("Where can the machine be reached over ssh?"))
		b.WriteString("\n\n")
		b.WriteString(w.form.view(styles))
	case workflow.StepCheckHardware:
		b.WriteString(styles.MutedText.Render("Press enter to read the hardware report."))
		b.WriteString("\n")
	case workflow.StepDisk:
		if report := w.flow.Hardware().Report; report != nil {
			b.WriteString(styles.MutedText.Render("Hardware: " + string(report.Type)))
			b.WriteString("\n")
		}
		for _, t := range w.flow.Disk().Templates.Sorted {
			b.WriteString(styles.FaintText.Render(fmt.Sprintf("  %s  %s", t.ID, t.Description)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(w.form.view(styles))
	case workflow.StepData:
		if len(w.prompts) == 0 {
			b.WriteString(styles.MutedText.Render("No values needed. Press enter."))
			b.WriteString("\n")
		}
		b.WriteString(w.form.view(styles))
	case workflow.StepSummary:
		a, d := w.flow.Address(), w.flow.Disk()
		b.WriteString(styles.Text.Render(fmt.Sprintf("Target:   %s", a.Address)))
		b.WriteString("\n")
		b.WriteString(styles.Text.Render(fmt.Sprintf("Disk:     %s (%s)", d.Path, d.Template)))
		b.WriteString("\n\n")
		b.WriteString(styles.WarningText.Render("The disk will be wiped. Press enter to install."))
		b.WriteString("\n")
	case workflow.StepProgress, workflow.StepDone:
		b.WriteString(renderProgress(styles, w.flow.Progress(), w.spinner.View()))
		if w.step == workflow.StepDone {
			b.WriteString("\n")
			b.WriteString(styles.SuccessText.Render("Installed. Press enter to close."))
			b.WriteString("\n")
		}
	}

	i, n := w.flow.Steps().Position()
	title := fmt.Sprintf("Install %s · %d/%d %s", w.machineID, i+1, n, w.flow.Steps().Current().Value)
	return modalFrame(theme, width, height, title, b.String(), w.err)
}

// wizardAbortMsg reports a failed abort request.
type wizardAbortMsg struct {
	err error
}

// --- update ---

type updateModal struct {
	ctx       context.Context
	flow      *workflow.Update
	machineID string
	spinner   spinner.Model
	step      string
	form      form
	busy      bool
	err       error
}

func newUpdateModal(ctx context.Context, machine *store.Machine, modals *modal.Controller, canceller workflow.Canceller) (*updateModal, *modal.Pending, error) {
	flow, pending, err := workflow.NewUpdate(machine, modals, canceller)
	if err != nil {
		return nil, nil, err
	}
	w := &updateModal{
		ctx:       ctx,
		flow:      flow,
		machineID: machine.ID(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		step:      flow.Steps().Current().ID,
	}
	w.form.add("Address", flow.Address().Address, false)
	w.form.add("Port", "", false)
	w.form.add("Password", "", true)
	return w, pending, nil
}

func (w *updateModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case wizardDoneMsg:
		w.busy = false
		w.err = msg.err
		w.step = w.flow.Steps().Current().ID
		return w, nil, false
	case wizardAbortMsg:
		w.err = msg.err
		return w, nil, false
	case spinner.TickMsg:
		if !w.busy {
			return w, nil, false
		}
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd, false
	case tea.KeyMsg:
		flow, ctx := w.flow, w.ctx
		if key.Matches(msg, keys.Abort) {
			return w, func() tea.Msg {
				if err := flow.Abort(ctx); err != nil && !errors.Is(err, workflow.ErrNotRunning) {
					return wizardAbortMsg{err: err}
				}
				return nil
			}, false
		}
		if w.busy {
			return w, nil, false
		}
		switch {
		case key.Matches(msg, keys.Escape):
			if w.step == workflow.StepDone {
				_ = flow.Finish()
			} else {
				_ = flow.Cancel()
			}
			return w, nil, true
		case key.Matches(msg, keys.Confirm):
			w.err = nil
			switch w.step {
			case workflow.StepAddress:
				port, err := parsePort(w.form.value(1))
				if err != nil {
					w.err = err
					return w, nil, false
				}
				a := flow.Address()
				a.Address, a.Port, a.Password = w.form.value(0), port, w.form.value(2)
				w.busy = true
				return w, tea.Batch(runStep(func() error {
					if err := flow.SubmitAddress(ctx); err != nil {
						return err
					}
					return flow.Run(ctx)
				}), w.spinner.Tick), false
			case workflow.StepProgress:
				w.busy = true
				return w, tea.Batch(runStep(func() error { return flow.Run(ctx) }), w.spinner.Tick), false
			case workflow.StepDone:
				if err := flow.Finish(); err != nil {
					w.err = err
					return w, nil, false
				}
				return w, nil, true
			}
			return w, nil, false
		}
	}
	if w.busy || w.step != workflow.StepAddress {
		return w, nil, false
	}
	return w, w.form.update(msg, keys), false
}

func (w *updateModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	switch {
	case w.step == workflow.StepAddress && !w.busy:
		b.WriteString(w.form.view(styles))
	case w.step == workflow.StepAddress:
		b.WriteString(w.spinner.View() + " " + styles.MutedText.Render("Checking ssh…"))
		b.WriteString("\n")
	default:
		b.WriteString(renderProgress(styles, w.flow.Progress(), w.spinner.View()))
		if w.step == workflow.StepDone {
			b.WriteString("\n")
			b.WriteString(styles.SuccessText.Render("Updated. Press enter to close."))
			b.WriteString("\n")
		}
	}
	return modalFrame(theme, width, height, "Update "+w.machineID, b.String(), w.err)
}

// --- clan settings ---

type settingsModal struct {
	ctx    context.Context
	clan   *store.Clan
	modals *modal.Controller
	form   form
	busy   bool
	err    error
	result model.ClanData
}

func newSettingsModal(ctx context.Context, clan *store.Clan, modals *modal.Controller) (*settingsModal, *modal.Pending, error) {
	current, err := clan.Get()
	if err != nil {
		return nil, nil, err
	}
	pending, err := modals.Open(modal.KindClanSettings, clan.ID())
	if err != nil {
		return nil, nil, err
	}
	w := &settingsModal{ctx: ctx, clan: clan, modals: modals}
	w.form.add("Name", current.Data.Name, false)
	w.form.add("Description", current.Data.Description, false)
	w.form.add("Domain", current.Data.Domain, false)
	return w, pending, nil
}

func (w *settingsModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case wizardDoneMsg:
		w.busy = false
		if msg.err != nil {
			w.err = msg.err
			return w, nil, false
		}
		_ = w.modals.Close(modal.KindClanSettings, w.result)
		return w, nil, true
	case tea.KeyMsg:
		if w.busy {
			return w, nil, false
		}
		switch {
		case key.Matches(msg, keys.Escape):
			_ = w.modals.Cancel(modal.KindClanSettings)
			return w, nil, true
		case key.Matches(msg, keys.Confirm):
			name := strings.TrimSpace(w.form.value(0))
			if name == "" {
				w.err = fmt.Errorf("clan name is empty: %w", workflow.ErrInvalidInput)
				return w, nil, false
			}
			desc := strings.TrimSpace(w.form.value(1))
			domain := strings.TrimSpace(w.form.value(2))
			w.result = model.ClanData{Name: name, Description: desc, Domain: domain}
			w.busy, w.err = true, nil
			clan, ctx := w.clan, w.ctx
			return w, runStep(func() error {
				return clan.UpdateData(ctx, model.ClanDataChange{Name: &name, Description: &desc, Domain: &domain})
			}), false
		}
	}
	return w, w.form.update(msg, keys), false
}

func (w *settingsModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	body := w.form.view(styles)
	if w.busy {
		body += "\n" + styles.MutedText.Render("Saving…")
	}
	return modalFrame(theme, width, height, "Clan settings", body, w.err)
}

// --- helpers ---

func parsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %q: %w", s, workflow.ErrInvalidInput)
	}
	return port, nil
}

func busyLabel(step string) string {
	switch step {
	case workflow.StepAddress:
		return "Checking ssh and hardware…"
	case workflow.StepCheckHardware:
		return "Reading hardware report…"
	case workflow.StepDisk:
		return "Loading prompts…"
	default:
		return "Working…"
	}
}

func renderProgress(styles Styles, p workflow.Progress, spin string) string {
	var b strings.Builder
	for i, step := range p.Steps {
		mark := styles.SuccessText.Render("✓")
		if p.Running && i == len(p.Steps)-1 {
			mark = spin
		}
		b.WriteString(mark + " " + styles.Text.Render(string(step)))
		b.WriteString("\n")
	}
	switch {
	case p.Running && len(p.Steps) == 0:
		b.WriteString(spin + " " + styles.MutedText.Render("Starting…"))
		b.WriteString("\n")
	case p.Running:
		b.WriteString(styles.FaintText.Render("ctrl+a aborts the task"))
		b.WriteString("\n")
	case p.Err != nil:
		b.WriteString(styles.FaintText.Render("enter retries · esc closes"))
		b.WriteString("\n")
	}
	return b.String()
}
