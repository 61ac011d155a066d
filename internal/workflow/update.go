package workflow

import (
	"context"
	"fmt"

	"github.com/five82/clanboard/internal/modal"
	"github.com/five82/clanboard/internal/stepper"
	"github.com/five82/clanboard/internal/store"
)

// Update deploys the current configuration to an installed machine:
// address, progress, done.
type Update struct {
	steps     *stepper.Stepper[string]
	machine   *store.Machine
	modals    *modal.Controller
	canceller Canceller
	tracker   tracker
}

// NewUpdate opens the updateMachine modal for machine. The address is
// prefilled with the machine's target host.
func NewUpdate(machine *store.Machine, modals *modal.Controller, canceller Canceller) (*Update, *modal.Pending, error) {
	steps, err := stepper.New([]stepper.Step[string]{
		{ID: StepAddress, Value: "Address"},
		{ID: StepProgress, Value: "Updating"},
		{ID: StepDone, Value: "Done"},
	}, "")
	if err != nil {
		return nil, nil, err
	}
	current, err := machine.Get()
	if err != nil {
		return nil, nil, err
	}
	pending, err := modals.Open(modal.KindUpdateMachine, machine.ID())
	if err != nil {
		return nil, nil, err
	}
	f := &Update{steps: steps, machine: machine, modals: modals, canceller: canceller}
	f.Address().Address = current.Data.Deploy.TargetHost
	return f, pending, nil
}

func (f *Update) Steps() *stepper.Stepper[string] { return f.steps }

func (f *Update) Address() *AddressForm {
	return stepper.Sub[AddressForm](f.steps, StepAddress)
}

// SubmitAddress checks that the target accepts an ssh login.
func (f *Update) SubmitAddress(ctx context.Context) error {
	if err := f.at(StepAddress); err != nil {
		return err
	}
	if err := submitAddress(ctx, f.machine, f.Address()); err != nil {
		return err
	}
	_, err := f.steps.Next()
	return err
}

// Run updates the machine and moves to the done step on success.
func (f *Update) Run(ctx context.Context) error {
	if err := f.at(StepProgress); err != nil {
		return err
	}
	f.tracker.start()
	err := f.machine.Update(ctx, store.UpdateOptions{
		SSH:        f.Address().ssh(),
		OnTask:     f.tracker.setTask,
		OnProgress: f.tracker.add,
	})
	f.tracker.finish(err)
	if err != nil {
		return err
	}
	_, err = f.steps.Next()
	return err
}

func (f *Update) Progress() Progress { return f.tracker.snapshot() }

func (f *Update) Abort(ctx context.Context) error {
	return f.tracker.abort(ctx, f.canceller)
}

// Finish closes the modal with the machine id.
func (f *Update) Finish() error {
	if err := f.at(StepDone); err != nil {
		return err
	}
	return f.modals.Close(modal.KindUpdateMachine, f.machine.ID())
}

func (f *Update) Cancel() error {
	return f.modals.Cancel(modal.KindUpdateMachine)
}

func (f *Update) at(step string) error {
	if cur := f.steps.Current().ID; cur != step {
		return fmt.Errorf("%s at step %s: %w", step, cur, ErrWrongStep)
	}
	return nil
}
