package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/rpc"
)

// Machine is a handle on one machine of a clan.
type Machine struct {
	machines *Machines
	id       string
}

// InstallOptions configure Machine.Install.
type InstallOptions struct {
	SSH          model.SSH
	DiskPath     string
	PromptValues model.PromptValues

	// OnTask receives the task id of the install call before it is sent,
	// so the caller can cancel it.
	OnTask func(taskID string)
	// OnProgress receives each progress step. It may be called from another
	// goroutine.
	OnProgress func(model.InstallProgress)
}

// UpdateOptions configure Machine.Update.
type UpdateOptions struct {
	SSH        model.SSH
	OnTask     func(taskID string)
	OnProgress func(model.InstallProgress)
}

// ID returns the machine id the handle is bound to.
func (m *Machine) ID() string { return m.id }

// ClanID returns the id of the owning clan.
func (m *Machine) ClanID() string { return m.machines.clanID }

// Get returns a copy of the machine.
func (m *Machine) Get() (*model.Machine, error) {
	var out *model.Machine
	err := m.machines.root.view(func(t *tree) error {
		_, machine, err := t.machine(m.machines.clanID, m.id)
		if err != nil {
			return err
		}
		out = machine.Clone()
		return nil
	})
	return out, err
}

// Activate makes this the active machine of its clan.
func (m *Machine) Activate() (*model.Machine, error) {
	return m.machines.Activate(m.id)
}

// Deactivate clears the active machine if it is this one.
func (m *Machine) Deactivate() error {
	return m.machines.DeactivateMachine(m.id)
}

// UpdateData is Machines.UpdateData for this machine.
func (m *Machine) UpdateData(ctx context.Context, change model.MachineDataChange) error {
	return m.machines.UpdateData(ctx, m.id, change)
}

// Instances returns the service instances that apply to the machine.
func (m *Machine) Instances() ([]*model.ServiceInstance, error) {
	var out []*model.ServiceInstance
	err := m.machines.root.view(func(t *tree) error {
		clan, err := t.loaded(m.machines.clanID)
		if err != nil {
			return err
		}
		instances, ok := clan.MachineInstances(m.id)
		if !ok {
			return fmt.Errorf("machine %s: %w", m.id, ErrNotMember)
		}
		for _, inst := range instances {
			out = append(out, inst.Clone())
		}
		return nil
	})
	return out, err
}

// IsSSHable reports whether the host can log into the machine. Any failure
// counts as unreachable.
func (m *Machine) IsSSHable(ctx context.Context, ssh model.SSH) bool {
	if err := m.machines.root.api.CheckSSH(ctx, ssh); err != nil {
		m.machines.root.logger.Debug("ssh check failed", zap.String("machine", m.id), zap.Error(err))
		return false
	}
	return true
}

// HardwareReport returns the stored hardware report of the machine, or
// generates one over ssh when none exists yet.
func (m *Machine) HardwareReport(ctx context.Context, ssh model.SSH) (*model.HardwareReport, error) {
	if err := m.exists(); err != nil {
		return nil, err
	}
	api := m.machines.root.api
	report, err := api.HardwareReport(ctx, m.machines.clanID, m.id)
	if err != nil {
		return nil, fmt.Errorf("hardware report %s: %w", m.id, err)
	}
	if report != nil {
		return report, nil
	}
	report, err = api.GenerateHardwareReport(ctx, m.machines.clanID, m.id, ssh)
	if err != nil {
		return nil, fmt.Errorf("generate hardware report %s: %w", m.id, err)
	}
	return report, nil
}

// DiskTemplates lists the disk schemas the host offers for the machine.
func (m *Machine) DiskTemplates(ctx context.Context) (model.DiskTemplates, error) {
	if err := m.exists(); err != nil {
		return model.DiskTemplates{}, err
	}
	return m.machines.root.api.DiskTemplates(ctx, m.machines.clanID, m.id)
}

// VarsPromptGroups returns the generator prompts of the machine with any
// previously stored values filled in.
func (m *Machine) VarsPromptGroups(ctx context.Context) ([]model.VarsPromptGroup, error) {
	if err := m.exists(); err != nil {
		return nil, err
	}
	return m.machines.root.api.VarsPromptGroups(ctx, m.machines.clanID, m.id)
}

// Install applies the disk schema, runs the generators with the given prompt
// values and installs the machine. Steps are reported through OnProgress;
// the install step relays the host's own progress events.
func (m *Machine) Install(ctx context.Context, opts InstallOptions) error {
	if err := m.exists(); err != nil {
		return err
	}
	root, clanID := m.machines.root, m.machines.clanID
	progress := opts.OnProgress
	if progress == nil {
		progress = func(model.InstallProgress) {}
	}

	if err := root.api.SetDiskSchema(ctx, clanID, m.id, opts.DiskPath); err != nil {
		return fmt.Errorf("set disk schema: %w", err)
	}
	progress(model.ProgressDisk)

	if err := root.api.RunGenerators(ctx, clanID, m.id, opts.PromptValues); err != nil {
		return fmt.Errorf("run generators: %w", err)
	}
	progress(model.ProgressVarsPrompts)

	err := m.runTask(ctx, rpc.OpRunMachineInstall, opts.OnTask, progress, func(taskID string) error {
		return root.api.RunInstall(ctx, clanID, m.id, opts.SSH, rpc.WithTaskID(taskID))
	})
	if err != nil {
		return fmt.Errorf("install machine %s: %w", m.id, err)
	}
	root.logger.Info("machine installed", zap.String("clan", clanID), zap.String("machine", m.id))
	return nil
}

// Update deploys the current configuration to the machine.
func (m *Machine) Update(ctx context.Context, opts UpdateOptions) error {
	if err := m.exists(); err != nil {
		return err
	}
	root, clanID := m.machines.root, m.machines.clanID
	progress := opts.OnProgress
	if progress == nil {
		progress = func(model.InstallProgress) {}
	}
	err := m.runTask(ctx, rpc.OpRunMachineUpdate, opts.OnTask, progress, func(taskID string) error {
		return root.api.RunUpdate(ctx, clanID, m.id, opts.SSH, rpc.WithTaskID(taskID))
	})
	if err != nil {
		return fmt.Errorf("update machine %s: %w", m.id, err)
	}
	root.logger.Info("machine updated", zap.String("clan", clanID), zap.String("machine", m.id))
	return nil
}

// runTask subscribes to the progress events of op for a fresh task id and
// runs call with that id.
func (m *Machine) runTask(
	ctx context.Context,
	op rpc.Operation,
	onTask func(string),
	progress func(model.InstallProgress),
	call func(taskID string) error,
) error {
	root := m.machines.root
	taskID := root.newTaskID()
	unsubscribe, err := root.api.OnProgress(op, taskID, progress)
	if err != nil {
		root.logger.Warn("subscribe progress", zap.String("op", string(op)), zap.Error(err))
		unsubscribe = func() {}
	}
	defer unsubscribe()
	if onTask != nil {
		onTask(taskID)
	}
	return call(taskID)
}

func (m *Machine) exists() error {
	return m.machines.root.view(func(t *tree) error {
		_, _, err := t.machine(m.machines.clanID, m.id)
		return err
	})
}
