package clanapi

import (
	"context"
	"fmt"
	"sort"

	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/rpc"
)

const (
	defaultDiskSchema = "single-disk"
	mainDiskKey       = "mainDisk"
	hardwareNone      = "none"
)

// CheckSSH tries to log in to the target. Host keys are not verified.
func (a *API) CheckSSH(ctx context.Context, ssh model.SSH) error {
	r := remote(ssh)
	r.HostKeyCheck = ""
	r.SSHOptions = map[string]string{
		"StrictHostKeyChecking": "no",
		"UserKnownHostsFile":    "/dev/null",
	}
	return a.rpc.Call(ctx, rpc.OpCheckMachineSSH, CheckSSHBody{Remote: r}, nil)
}

// HardwareReport returns the stored hardware report of a machine, or nil
// when none exists.
func (a *API) HardwareReport(ctx context.Context, clanID, machineID string) (*model.HardwareReport, error) {
	var out HardwareSummary
	if err := a.rpc.Call(ctx, rpc.OpGetHardwareSummary, MachineBody{Machine: machineRef(clanID, machineID)}, &out,
		rpc.WithLogGroup(clanID, machineID)); err != nil {
		return nil, err
	}
	return hardwareReport(out.HardwareConfig), nil
}

// GenerateHardwareReport probes the target over SSH and stores the result.
func (a *API) GenerateHardwareReport(ctx context.Context, clanID, machineID string, ssh model.SSH) (*model.HardwareReport, error) {
	body := HardwareInfoInitBody{
		TargetHost: remote(ssh),
		Opts:       MachineBody{Machine: machineRef(clanID, machineID)},
	}
	var out string
	if err := a.rpc.Call(ctx, rpc.OpRunHardwareInfoInit, body, &out, rpc.WithLogGroup(clanID, machineID)); err != nil {
		return nil, err
	}
	return hardwareReport(out), nil
}

func hardwareReport(kind string) *model.HardwareReport {
	if kind == "" || kind == hardwareNone {
		return nil
	}
	return &model.HardwareReport{Type: model.HardwareReportType(kind)}
}

// DiskTemplates lists the disk layouts available for a machine.
func (a *API) DiskTemplates(ctx context.Context, clanID, machineID string) (model.DiskTemplates, error) {
	var out map[string]DiskSchema
	if err := a.rpc.Call(ctx, rpc.OpGetDiskSchemas, MachineBody{Machine: machineRef(clanID, machineID)}, &out,
		rpc.WithLogGroup(clanID, machineID)); err != nil {
		return model.DiskTemplates{}, err
	}
	all := make(map[string]model.DiskTemplate, len(out))
	for id, schema := range out {
		tpl := model.DiskTemplate{
			Name:         schema.Name,
			Description:  schema.Frontmatter.Description,
			Placeholders: make(map[string]model.DiskPlaceholder, len(schema.Placeholders)),
		}
		for pid, p := range schema.Placeholders {
			tpl.Placeholders[pid] = model.DiskPlaceholder{Name: p.Label, Values: p.Options, Required: p.Required}
		}
		all[id] = tpl
	}
	return model.NewDiskTemplates(all), nil
}

// VarsPromptGroups lists the generator prompts of a machine grouped for
// display. Persisted prompts are prefilled with their previous values.
func (a *API) VarsPromptGroups(ctx context.Context, clanID, machineID string) ([]model.VarsPromptGroup, error) {
	body := GeneratorsBody{Machines: []MachineRef{machineRef(clanID, machineID)}}
	var generators []Generator
	if err := a.rpc.Call(ctx, rpc.OpGetGenerators, body, &generators, rpc.WithLogGroup(clanID, machineID)); err != nil {
		return nil, err
	}

	var persisted []PromptID
	for _, g := range generators {
		for _, p := range g.Prompts {
			if p.Persist {
				persisted = append(persisted, PromptID{GeneratorName: g.Name, PromptName: p.Name})
			}
		}
	}
	previous := map[string]string{}
	if len(persisted) > 0 {
		var err error
		previous, err = a.promptPreviousValues(ctx, clanID, machineID, persisted)
		if err != nil {
			return nil, fmt.Errorf("previous prompt values: %w", err)
		}
	}

	groups := make(map[string]map[string]model.VarsPrompt)
	for _, g := range generators {
		for _, p := range g.Prompts {
			var display PromptDisplay
			if p.Display != nil {
				display = *p.Display
			}
			if groups[display.Group] == nil {
				groups[display.Group] = make(map[string]model.VarsPrompt)
			}
			name := display.Label
			if name == "" {
				name = p.Name
			}
			groups[display.Group][p.Name] = model.VarsPrompt{
				Generator:   g.Name,
				Description: p.Description,
				Name:        name,
				Value:       previous[g.Name+"/"+p.Name],
				Type:        p.PromptType,
				Required:    display.Required,
			}
		}
	}
	return model.NewVarsPromptGroups(groups), nil
}

func (a *API) promptPreviousValues(ctx context.Context, clanID, machineID string, ids []PromptID) (map[string]string, error) {
	body := PromptPreviousValuesBody{Machine: machineRef(clanID, machineID), PromptIdentifiers: ids}
	var out []PromptPreviousValue
	if err := a.rpc.Call(ctx, rpc.OpGetPromptPreviousValues, body, &out, rpc.WithLogGroup(clanID, machineID)); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(out))
	for _, v := range out {
		if v.Value != nil {
			values[v.GeneratorName+"/"+v.PromptName] = *v.Value
		}
	}
	return values, nil
}

// SetDiskSchema applies the default single-disk layout on diskPath.
func (a *API) SetDiskSchema(ctx context.Context, clanID, machineID, diskPath string) error {
	body := SetDiskSchemaBody{
		Machine:      machineRef(clanID, machineID),
		SchemaName:   defaultDiskSchema,
		Placeholders: map[string]string{mainDiskKey: diskPath},
		Force:        true,
	}
	return a.rpc.Call(ctx, rpc.OpSetDiskSchema, body, nil, rpc.WithLogGroup(clanID, machineID))
}

// RunGenerators runs the generators named in values with the given prompt
// answers.
func (a *API) RunGenerators(ctx context.Context, clanID, machineID string, values model.PromptValues) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	if values == nil {
		values = model.PromptValues{}
	}
	body := RunGeneratorsBody{
		Generators:   names,
		PromptValues: values,
		Machines:     []MachineRef{machineRef(clanID, machineID)},
	}
	return a.rpc.Call(ctx, rpc.OpRunGenerators, body, nil, rpc.WithLogGroup(clanID, machineID))
}

// RunInstall installs the machine onto the target host.
func (a *API) RunInstall(ctx context.Context, clanID, machineID string, ssh model.SSH, opts ...rpc.CallOption) error {
	body := RunInstallBody{
		Opts:       MachineBody{Machine: machineRef(clanID, machineID)},
		TargetHost: remote(ssh),
	}
	opts = append([]rpc.CallOption{rpc.WithLogGroup(clanID, machineID)}, opts...)
	return a.rpc.Call(ctx, rpc.OpRunMachineInstall, body, nil, opts...)
}

// RunUpdate deploys the current configuration to an installed machine.
func (a *API) RunUpdate(ctx context.Context, clanID, machineID string, ssh model.SSH, opts ...rpc.CallOption) error {
	body := RunUpdateBody{
		Machine:    machineRef(clanID, machineID),
		TargetHost: remote(ssh),
	}
	opts = append([]rpc.CallOption{rpc.WithLogGroup(clanID, machineID)}, opts...)
	return a.rpc.Call(ctx, rpc.OpRunMachineUpdate, body, nil, opts...)
}

// OnProgress relays progress events of op to fn. When taskID is non-empty
// only events of that task are relayed.
func (a *API) OnProgress(op rpc.Operation, taskID string, fn func(model.InstallProgress)) (func(), error) {
	return a.rpc.Subscribe(op, func(ev rpc.Event) {
		if taskID != "" && ev.OpKey != "" && ev.OpKey != taskID {
			return
		}
		if ev.Type == "" {
			return
		}
		fn(model.InstallProgress(ev.Type))
	})
}
