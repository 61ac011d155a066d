package clanapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/rpc"
)

const defaultClanTemplate = "minimal"

// API exposes the host operations clanboard uses with domain types.
type API struct {
	rpc rpc.Caller
}

// New wraps c.
func New(c rpc.Caller) *API {
	return &API{rpc: c}
}

// PickClanDir asks the host to let the user select a clan directory. An
// empty string means the user dismissed the picker.
func (a *API) PickClanDir(ctx context.Context) (string, error) {
	var dir *string
	if err := a.rpc.Call(ctx, rpc.OpPickClanDir, PickClanDirBody{Title: "Select Clan Folder"}, &dir); err != nil {
		return "", err
	}
	if dir == nil {
		return "", nil
	}
	return *dir, nil
}

// CreateClan initializes a clan at dest from the minimal template.
func (a *API) CreateClan(ctx context.Context, dest string, meta model.ClanMetaData) error {
	body := CreateClanBody{Opts: CreateClanOpts{Dest: dest, Template: defaultClanTemplate, Initial: meta}}
	return a.rpc.Call(ctx, rpc.OpCreateClan, body, nil, rpc.WithLogGroup(dest, ""))
}

// ClanDetails fetches the clan metadata.
func (a *API) ClanDetails(ctx context.Context, clanID string) (model.ClanData, error) {
	var out ClanDetails
	if err := a.rpc.Call(ctx, rpc.OpGetClanDetails, FlakeBody{Flake: FlakeRef{Identifier: clanID}}, &out,
		rpc.WithLogGroup(clanID, "")); err != nil {
		return model.ClanData{}, err
	}
	return model.ClanData(out), nil
}

// SetClanDetails replaces the clan metadata with data.
func (a *API) SetClanDetails(ctx context.Context, clanID string, data model.ClanData) error {
	body := SetClanDetailsBody{Options: SetClanDetailsOptions{
		Flake: FlakeRef{Identifier: clanID},
		Meta:  ClanDetails(data),
	}}
	return a.rpc.Call(ctx, rpc.OpSetClanDetails, body, nil, rpc.WithLogGroup(clanID, ""))
}

// Machines lists the machines of a clan together with their status.
// Positions are not part of the output.
func (a *API) Machines(ctx context.Context, clanID string) (map[string]model.MachineOutput, error) {
	flake := FlakeBody{Flake: FlakeRef{Identifier: clanID}}
	var listed map[string]ListedMachine
	if err := a.rpc.Call(ctx, rpc.OpListMachines, flake, &listed, rpc.WithLogGroup(clanID, "")); err != nil {
		return nil, err
	}
	states, err := a.MachineStates(ctx, clanID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.MachineOutput, len(listed))
	for id, m := range listed {
		out[id] = model.MachineOutput{
			Data:   machineData(m.Data),
			Status: states[id],
		}
	}
	return out, nil
}

// MachineStates returns the deployment status of every machine of a clan.
func (a *API) MachineStates(ctx context.Context, clanID string) (map[string]model.MachineStatus, error) {
	var states map[string]model.MachineStatus
	if err := a.rpc.Call(ctx, rpc.OpListMachineStates, FlakeBody{Flake: FlakeRef{Identifier: clanID}}, &states,
		rpc.WithLogGroup(clanID, "")); err != nil {
		return nil, err
	}
	return states, nil
}

// Services lists the service modules available to a clan.
func (a *API) Services(ctx context.Context, clanID string) ([]model.ServiceOutput, error) {
	var listed ServiceModules
	if err := a.rpc.Call(ctx, rpc.OpListServiceModules, FlakeBody{Flake: FlakeRef{Identifier: clanID}}, &listed,
		rpc.WithLogGroup(clanID, "")); err != nil {
		return nil, err
	}
	out := make([]model.ServiceOutput, 0, len(listed.Modules))
	for _, mod := range listed.Modules {
		svc := model.ServiceOutput{
			ID:          mod.Name,
			Name:        mod.Name,
			Description: mod.Description,
			Categories:  mod.Categories,
		}
		for id, r := range mod.Roles {
			svc.Roles = append(svc.Roles, model.Role{ID: id, Description: r.Description})
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ServiceInstances lists the instances configured in a clan.
func (a *API) ServiceInstances(ctx context.Context, clanID string) ([]model.ServiceInstanceOutput, error) {
	var listed map[string]ListedInstance
	if err := a.rpc.Call(ctx, rpc.OpListServiceInstances, FlakeBody{Flake: FlakeRef{Identifier: clanID}}, &listed,
		rpc.WithLogGroup(clanID, "")); err != nil {
		return nil, err
	}
	out := make([]model.ServiceInstanceOutput, 0, len(listed))
	for name, inst := range listed {
		out = append(out, instanceOutput(name, inst))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateServiceInstance creates an instance of a service module.
func (a *API) CreateServiceInstance(ctx context.Context, clanID string, inst model.ServiceInstanceOutput) error {
	body := CreateInstanceBody{
		Flake:        FlakeRef{Identifier: clanID},
		ModuleRef:    ModuleRef{Name: inst.ServiceID, Input: "clan-core"},
		InstanceName: inst.Name,
		Roles:        make(map[string]InstanceRole, len(inst.Roles)),
	}
	for id, r := range inst.Roles {
		body.Roles[id] = wireRole(r)
	}
	return a.rpc.Call(ctx, rpc.OpCreateServiceInstance, body, nil, rpc.WithLogGroup(clanID, ""))
}

// LoadClan fetches everything needed to build a loaded clan.
func (a *API) LoadClan(ctx context.Context, clanID string) (model.ClanOutput, error) {
	data, err := a.ClanDetails(ctx, clanID)
	if err != nil {
		return model.ClanOutput{}, fmt.Errorf("clan details: %w", err)
	}
	machines, err := a.Machines(ctx, clanID)
	if err != nil {
		return model.ClanOutput{}, fmt.Errorf("machines: %w", err)
	}
	services, err := a.Services(ctx, clanID)
	if err != nil {
		return model.ClanOutput{}, fmt.Errorf("services: %w", err)
	}
	instances, err := a.ServiceInstances(ctx, clanID)
	if err != nil {
		return model.ClanOutput{}, fmt.Errorf("service instances: %w", err)
	}
	return model.ClanOutput{
		ID:         clanID,
		Data:       data,
		DataSchema: json.RawMessage(`{}`),
		Machines:   machines,
		Services:   services,
		Instances:  instances,
		GlobalTags: globalTags(machines, instances),
	}, nil
}

// CreateMachine creates a machine and returns its data as stored by the
// host. The returned position is zero; placement is up to the caller.
func (a *API) CreateMachine(ctx context.Context, clanID, machineID string, data model.MachineData) (model.MachineData, error) {
	fields := machineFields(data)
	fields.Name = machineID
	var out ListedMachine
	body := CreateMachineBody{Opts: CreateMachineOpts{ClanDir: FlakeRef{Identifier: clanID}, Machine: fields}}
	if err := a.rpc.Call(ctx, rpc.OpCreateMachine, body, &out, rpc.WithLogGroup(clanID, machineID)); err != nil {
		return model.MachineData{}, err
	}
	return machineData(out.Data), nil
}

// SetMachine replaces the host-side data of a machine. The position is
// not sent.
func (a *API) SetMachine(ctx context.Context, clanID, machineID string, data model.MachineData) error {
	body := SetMachineBody{Machine: machineRef(clanID, machineID), Update: machineFields(data)}
	return a.rpc.Call(ctx, rpc.OpSetMachine, body, nil, rpc.WithLogGroup(clanID, machineID))
}

// DeleteMachine removes a machine from the clan.
func (a *API) DeleteMachine(ctx context.Context, clanID, machineID string) error {
	return a.rpc.Call(ctx, rpc.OpDeleteMachine, MachineBody{Machine: machineRef(clanID, machineID)}, nil,
		rpc.WithLogGroup(clanID, machineID))
}

func machineFields(d model.MachineData) MachineFields {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return MachineFields{
		Deploy:       d.Deploy,
		Description:  d.Description,
		MachineClass: d.MachineClass,
		Tags:         tags,
	}
}

func machineData(f MachineFields) model.MachineData {
	class := f.MachineClass
	if class == "" {
		class = model.ClassNixOS
	}
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.MachineData{
		Deploy:       f.Deploy,
		Description:  f.Description,
		MachineClass: class,
		Tags:         tags,
	}
}

func instanceOutput(name string, in ListedInstance) model.ServiceInstanceOutput {
	out := model.ServiceInstanceOutput{
		Name:      name,
		ServiceID: in.Module.Name,
		Roles:     make(map[string]model.InstanceRole, len(in.Roles)),
	}
	for id, r := range in.Roles {
		out.Roles[id] = model.InstanceRole{
			Settings: r.Settings,
			Machines: sortedKeys(r.Machines),
			Tags:     sortedKeys(r.Tags),
		}
	}
	return out
}

func wireRole(r model.InstanceRole) InstanceRole {
	out := InstanceRole{Settings: r.Settings}
	if len(r.Machines) > 0 {
		out.Machines = make(map[string]struct{}, len(r.Machines))
		for _, m := range r.Machines {
			out.Machines[m] = struct{}{}
		}
	}
	if len(r.Tags) > 0 {
		out.Tags = make(map[string]struct{}, len(r.Tags))
		for _, t := range r.Tags {
			out.Tags[t] = struct{}{}
		}
	}
	return out
}

// globalTags collects the non-special tags used by machines and instances.
func globalTags(machines map[string]model.MachineOutput, instances []model.ServiceInstanceOutput) model.Tags {
	special := make(map[string]struct{}, len(model.DefaultSpecialTags))
	for _, t := range model.DefaultSpecialTags {
		special[t] = struct{}{}
	}
	seen := make(map[string]struct{})
	add := func(tag string) {
		if _, ok := special[tag]; ok || tag == "" {
			return
		}
		seen[tag] = struct{}{}
	}
	for _, m := range machines {
		for _, t := range m.Data.Tags {
			add(t)
		}
	}
	for _, inst := range instances {
		for _, r := range inst.Roles {
			for _, t := range r.Tags {
				add(t)
			}
		}
	}
	regular := sortedKeys(seen)
	if regular == nil {
		regular = []string{}
	}
	return model.Tags{Regular: regular, Special: append([]string(nil), model.DefaultSpecialTags...)}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
