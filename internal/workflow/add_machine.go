package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/five82/clanboard/internal/modal"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/stepper"
	"github.com/five82/clanboard/internal/store"
)

var machineName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// GeneralForm is the input of the first add-machine step.
type GeneralForm struct {
	Name        string
	Description string
	Class       model.MachineClass
	Tags        []string
	TargetHost  string
}

// AddMachine creates a machine and closes the addMachine modal with it.
type AddMachine struct {
	steps    *stepper.Stepper[string]
	machines *store.Machines
	modals   *modal.Controller
	position *model.Position
}

// NewAddMachine opens the addMachine modal. position places the new
// machine; nil lets the store pick the next free cell. The returned Pending
// resolves to the created *model.Machine.
func NewAddMachine(machines *store.Machines, modals *modal.Controller, position *model.Position) (*AddMachine, *modal.Pending, error) {
	steps, err := stepper.New([]stepper.Step[string]{
		{ID: StepGeneral, Value: "General"},
		{ID: StepCreate, Value: "Create"},
	}, "")
	if err != nil {
		return nil, nil, err
	}
	pending, err := modals.Open(modal.KindAddMachine, position)
	if err != nil {
		return nil, nil, err
	}
	return &AddMachine{steps: steps, machines: machines, modals: modals, position: position}, pending, nil
}

func (f *AddMachine) Steps() *stepper.Stepper[string] { return f.steps }

// General returns the form of the general step.
func (f *AddMachine) General() *GeneralForm {
	return stepper.Sub[GeneralForm](f.steps, StepGeneral)
}

// SubmitGeneral validates the general form and moves to the create step.
func (f *AddMachine) SubmitGeneral() error {
	if f.steps.Current().ID != StepGeneral {
		return ErrWrongStep
	}
	form := f.General()
	form.Name = strings.TrimSpace(form.Name)
	if !machineName.MatchString(form.Name) {
		return fmt.Errorf("machine name %q: %w", form.Name, ErrInvalidInput)
	}
	switch form.Class {
	case "":
		form.Class = model.ClassNixOS
	case model.ClassNixOS, model.ClassDarwin:
	default:
		return fmt.Errorf("machine class %q: %w", form.Class, ErrInvalidInput)
	}
	_, err := f.steps.Next()
	return err
}

// Back returns to the general step.
func (f *AddMachine) Back() error {
	_, err := f.steps.Previous()
	return err
}

// Create creates the machine and closes the modal with it. On failure the
// flow stays at the create step so the user can go back or retry.
func (f *AddMachine) Create(ctx context.Context) (*model.Machine, error) {
	if f.steps.Current().ID != StepCreate {
		return nil, ErrWrongStep
	}
	form := f.General()
	class := form.Class
	tags := append([]string{}, form.Tags...)
	change := model.MachineDataChange{
		Description:  &form.Description,
		MachineClass: &class,
		Tags:         &tags,
		Position:     f.position,
	}
	if host := strings.TrimSpace(form.TargetHost); host != "" {
		change.Deploy = &model.DeployChange{TargetHost: &host}
	}
	m, err := f.machines.Create(ctx, form.Name, change)
	if err != nil {
		return nil, err
	}
	if err := f.modals.Close(modal.KindAddMachine, m); err != nil {
		return m, err
	}
	return m, nil
}

// Cancel cancels the modal.
func (f *AddMachine) Cancel() error {
	return f.modals.Cancel(modal.KindAddMachine)
}
