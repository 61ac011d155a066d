package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/five82/clanboard/internal/modal"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/stepper"
	"github.com/five82/clanboard/internal/store"
)

// AddressForm is the target of an install or update.
type AddressForm struct {
	Address  string
	Port     int
	Password string
}

func (a *AddressForm) ssh() model.SSH {
	return model.SSH{Address: strings.TrimSpace(a.Address), Port: a.Port, Password: a.Password}
}

// HardwareStep holds the hardware report found or generated for the target.
type HardwareStep struct {
	Report *model.HardwareReport
}

// DiskForm is the disk chosen for the install.
type DiskForm struct {
	Templates model.DiskTemplates
	Template  string
	Path      string
}

// DataForm holds the generator prompts and the answers given so far.
type DataForm struct {
	Groups []model.VarsPromptGroup
	Values model.PromptValues
}

// Install walks a machine through address, hardware check, disk, data,
// summary and progress. The installMachine modal resolves to the machine
// id when the flow finishes.
type Install struct {
	steps     *stepper.Stepper[string]
	machine   *store.Machine
	modals    *modal.Controller
	canceller Canceller
	tracker   tracker
}

// NewInstall opens the installMachine modal for machine.
func NewInstall(machine *store.Machine, modals *modal.Controller, canceller Canceller) (*Install, *modal.Pending, error) {
	steps, err := stepper.New([]stepper.Step[string]{
		{ID: StepAddress, Value: "Address"},
		{ID: StepCheckHardware, Value: "Hardware"},
		{ID: StepDisk, Value: "Disk"},
		{ID: StepData, Value: "Data"},
		{ID: StepSummary, Value: "Summary"},
		{ID: StepProgress, Value: "Installing"},
		{ID: StepDone, Value: "Done"},
	}, "")
	if err != nil {
		return nil, nil, err
	}
	pending, err := modals.Open(modal.KindInstallMachine, machine.ID())
	if err != nil {
		return nil, nil, err
	}
	return &Install{steps: steps, machine: machine, modals: modals, canceller: canceller}, pending, nil
}

func (f *Install) Steps() *stepper.Stepper[string] { return f.steps }

func (f *Install) Address() *AddressForm {
	return stepper.Sub[AddressForm](f.steps, StepAddress)
}

func (f *Install) Hardware() *HardwareStep {
	return stepper.Sub[HardwareStep](f.steps, StepCheckHardware)
}

func (f *Install) Disk() *DiskForm {
	return stepper.Sub[DiskForm](f.steps, StepDisk)
}

func (f *Install) Data() *DataForm {
	return stepper.Sub[DataForm](f.steps, StepData)
}

// SubmitAddress checks that the target accepts an ssh login.
func (f *Install) SubmitAddress(ctx context.Context) error {
	if err := f.at(StepAddress); err != nil {
		return err
	}
	if err := submitAddress(ctx, f.machine, f.Address()); err != nil {
		return err
	}
	_, err := f.steps.Next()
	return err
}

// CheckHardware loads the hardware report, generating one over ssh when the
// machine has none yet, and advances to the disk step.
func (f *Install) CheckHardware(ctx context.Context) error {
	if err := f.at(StepCheckHardware); err != nil {
		return err
	}
	report, err := f.machine.HardwareReport(ctx, f.Address().ssh())
	if err != nil {
		return err
	}
	f.Hardware().Report = report
	_, err = f.steps.Next()
	return err
}

// LoadDisks fetches the disk templates for the disk step.
func (f *Install) LoadDisks(ctx context.Context) error {
	if err := f.at(StepDisk); err != nil {
		return err
	}
	templates, err := f.machine.DiskTemplates(ctx)
	if err != nil {
		return err
	}
	f.Disk().Templates = templates
	return nil
}

// SubmitDisk validates the chosen template and disk path.
func (f *Install) SubmitDisk() error {
	if err := f.at(StepDisk); err != nil {
		return err
	}
	form := f.Disk()
	form.Path = strings.TrimSpace(form.Path)
	if form.Path == "" {
		return fmt.Errorf("disk path is empty: %w", ErrInvalidInput)
	}
	if len(form.Templates.All) > 0 {
		if form.Template == "" {
			form.Template = form.Templates.Sorted[0].ID
		}
		if _, ok := form.Templates.All[form.Template]; !ok {
			return fmt.Errorf("disk template %q: %w", form.Template, ErrInvalidInput)
		}
	}
	_, err := f.steps.Next()
	return err
}

// LoadPrompts fetches the generator prompts and seeds the answers with the
// values stored on the host.
func (f *Install) LoadPrompts(ctx context.Context) error {
	if err := f.at(StepData); err != nil {
		return err
	}
	groups, err := f.machine.VarsPromptGroups(ctx)
	if err != nil {
		return err
	}
	form := f.Data()
	form.Groups = groups
	if form.Values == nil {
		form.Values = model.PromptValues{}
	}
	for _, g := range groups {
		for _, p := range g.Prompts {
			if p.Value == "" {
				continue
			}
			if form.Values[p.Generator] == nil {
				form.Values[p.Generator] = map[string]string{}
			}
			if _, set := form.Values[p.Generator][p.ID]; !set {
				form.Values[p.Generator][p.ID] = p.Value
			}
		}
	}
	return nil
}

// SetPrompt records the answer to one prompt.
func (f *Install) SetPrompt(generator, prompt, value string) {
	form := f.Data()
	if form.Values == nil {
		form.Values = model.PromptValues{}
	}
	if form.Values[generator] == nil {
		form.Values[generator] = map[string]string{}
	}
	form.Values[generator][prompt] = value
}

// SubmitData checks that every required prompt has an answer.
func (f *Install) SubmitData() error {
	if err := f.at(StepData); err != nil {
		return err
	}
	form := f.Data()
	for _, g := range form.Groups {
		for _, p := range g.Prompts {
			if p.Required && form.Values[p.Generator][p.ID] == "" {
				return fmt.Errorf("prompt %s/%s is required: %w", p.Generator, p.ID, ErrInvalidInput)
			}
		}
	}
	_, err := f.steps.Next()
	return err
}

// Confirm leaves the summary and moves to the progress step.
func (f *Install) Confirm() error {
	if err := f.at(StepSummary); err != nil {
		return err
	}
	_, err := f.steps.Next()
	return err
}

// Back goes to the previous step. The flow cannot go back once the install
// has started.
func (f *Install) Back() error {
	switch f.steps.Current().ID {
	case StepProgress, StepDone:
		return ErrWrongStep
	}
	_, err := f.steps.Previous()
	return err
}

// Run installs the machine. It blocks until the install ends; Progress can
// be polled from another goroutine meanwhile. On success the flow moves to
// the done step.
func (f *Install) Run(ctx context.Context) error {
	if err := f.at(StepProgress); err != nil {
		return err
	}
	f.tracker.start()
	err := f.machine.Install(ctx, store.InstallOptions{
		SSH:          f.Address().ssh(),
		DiskPath:     f.Disk().Path,
		PromptValues: f.Data().Values,
		OnTask:       f.tracker.setTask,
		OnProgress:   f.tracker.add,
	})
	f.tracker.finish(err)
	if err != nil {
		return err
	}
	_, err = f.steps.Next()
	return err
}

func (f *Install) Progress() Progress { return f.tracker.snapshot() }

// Abort cancels the running install on the host.
func (f *Install) Abort(ctx context.Context) error {
	return f.tracker.abort(ctx, f.canceller)
}

// Finish closes the modal with the machine id.
func (f *Install) Finish() error {
	if err := f.at(StepDone); err != nil {
		return err
	}
	return f.modals.Close(modal.KindInstallMachine, f.machine.ID())
}

// Cancel cancels the modal. A running install is not aborted; call Abort.
func (f *Install) Cancel() error {
	return f.modals.Cancel(modal.KindInstallMachine)
}

func (f *Install) at(step string) error {
	if cur := f.steps.Current().ID; cur != step {
		return fmt.Errorf("%s at step %s: %w", step, cur, ErrWrongStep)
	}
	return nil
}

func submitAddress(ctx context.Context, m *store.Machine, form *AddressForm) error {
	form.Address = strings.TrimSpace(form.Address)
	if form.Address == "" {
		return fmt.Errorf("address is empty: %w", ErrInvalidInput)
	}
	if form.Port < 0 || form.Port > 65535 {
		return fmt.Errorf("port %d: %w", form.Port, ErrInvalidInput)
	}
	if !m.IsSSHable(ctx, form.ssh()) {
		return fmt.Errorf("%s: %w", form.Address, ErrUnreachable)
	}
	return nil
}
