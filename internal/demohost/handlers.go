package demohost

import (
	"context"
	"strings"

	"github.com/five82/clanboard/internal/clanapi"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/rpc"
)

func (h *Host) ack(context.Context, rpc.Request) rpc.Response {
	return rpc.Success(nil)
}

func (h *Host) pickClanDir(context.Context, rpc.Request) rpc.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pickDir == "" {
		return rpc.Success(nil)
	}
	return rpc.Success(h.pickDir)
}

func (h *Host) createClan(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.CreateClanBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	dest := strings.TrimSpace(body.Opts.Dest)
	if dest == "" {
		return rpc.Failure("destination is required", "")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.clans[dest]; exists {
		return rpc.Failure("clan already exists", dest)
	}
	h.clans[dest] = newClan(clanapi.ClanDetails{Name: body.Opts.Initial.Name, Description: body.Opts.Initial.Description})
	return rpc.Success(nil)
}

func (h *Host) getClanDetails(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.FlakeBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, fail := h.clan(body.Flake.Identifier)
	if fail != nil {
		return *fail
	}
	return rpc.Success(c.Details)
}

func (h *Host) setClanDetails(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.SetClanDetailsBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	if strings.TrimSpace(body.Options.Meta.Name) == "" {
		return rpc.Failure("name must not be empty", "")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, fail := h.clan(body.Options.Flake.Identifier)
	if fail != nil {
		return *fail
	}
	c.Details = body.Options.Meta
	return rpc.Success(nil)
}

func (h *Host) listMachines(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.FlakeBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, fail := h.clan(body.Flake.Identifier)
	if fail != nil {
		return *fail
	}
	out := make(map[string]clanapi.ListedMachine, len(c.Machines))
	for name, m := range c.Machines {
		out[name] = clanapi.ListedMachine{Data: m.Fields}
	}
	return rpc.Success(out)
}

func (h *Host) listMachineStates(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.FlakeBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, fail := h.clan(body.Flake.Identifier)
	if fail != nil {
		return *fail
	}
	out := make(map[string]model.MachineStatus, len(c.Machines))
	for name, m := range c.Machines {
		out[name] = m.Status
	}
	return rpc.Success(out)
}

func (h *Host) createMachine(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.CreateMachineBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	fields := body.Opts.Machine
	if strings.TrimSpace(fields.Name) == "" {
		return rpc.Failure("machine name is required", "")
	}
	if fields.MachineClass == "" {
		fields.MachineClass = model.ClassNixOS
	}
	if fields.Tags == nil {
		fields.Tags = []string{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, fail := h.clan(body.Opts.ClanDir.Identifier)
	if fail != nil {
		return *fail
	}
	if _, exists := c.Machines[fields.Name]; exists {
		return rpc.Failure("machine already exists", fields.Name)
	}
	c.Machines[fields.Name] = &Machine{Fields: fields, Status: model.StatusNotInstalled, Hardware: "none"}
	return rpc.Success(clanapi.ListedMachine{Data: fields})
}

func (h *Host) setMachine(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.SetMachineBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, m, fail := h.machine(body.Machine)
	if fail != nil {
		return *fail
	}
	update := body.Update
	update.Name = body.Machine.Name
	if update.Tags == nil {
		update.Tags = []string{}
	}
	m.Fields = update
	return rpc.Success(nil)
}

func (h *Host) deleteMachine(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.MachineBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, _, fail := h.machine(body.Machine)
	if fail != nil {
		return *fail
	}
	delete(c.Machines, body.Machine.Name)
	return rpc.Success(nil)
}

func (h *Host) checkSSH(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.CheckSSHBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	addr := strings.TrimSpace(body.Remote.Address)
	if addr == "" || strings.HasSuffix(addr, ".invalid") {
		return rpc.Failure("ssh login failed", addr)
	}
	return rpc.Success(nil)
}

func (h *Host) hardwareSummary(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.MachineBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, m, fail := h.machine(body.Machine)
	if fail != nil {
		return *fail
	}
	return rpc.Success(clanapi.HardwareSummary{HardwareConfig: m.Hardware})
}

func (h *Host) hardwareInfoInit(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.HardwareInfoInitBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	if strings.TrimSpace(body.TargetHost.Address) == "" {
		return rpc.Failure("target host is required", "")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, m, fail := h.machine(body.Opts.Machine)
	if fail != nil {
		return *fail
	}
	m.Hardware = string(model.HardwareFacter)
	return rpc.Success(m.Hardware)
}

func (h *Host) diskSchemas(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.MachineBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, _, fail := h.machine(body.Machine); fail != nil {
		return *fail
	}
	return rpc.Success(map[string]clanapi.DiskSchema{
		"single-disk": {
			Name:        "single-disk",
			Frontmatter: clanapi.DiskSchemaFrontmatter{Description: "One disk, EFI and root partitions"},
			Placeholders: map[string]clanapi.DiskSchemaPlaceholder{
				"mainDisk": {Label: "Main disk", Options: []string{"/dev/sda", "/dev/nvme0n1"}, Required: true},
			},
		},
	})
}

func (h *Host) setDiskSchema(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.SetDiskSchemaBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	if body.Placeholders["mainDisk"] == "" {
		return rpc.Failure("placeholder mainDisk is required", body.SchemaName)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, _, fail := h.machine(body.Machine); fail != nil {
		return *fail
	}
	return rpc.Success(nil)
}

func (h *Host) generators(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.GeneratorsBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	return rpc.Success([]clanapi.Generator{
		{
			Name: "root-password",
			Prompts: []clanapi.Prompt{{
				Name:        "password",
				Description: "Root password of the machine",
				PromptType:  model.PromptHidden,
				Persist:     true,
				Display:     &clanapi.PromptDisplay{Group: "User", Label: "Root password", Required: true},
			}},
		},
		{
			Name: "wifi",
			Prompts: []clanapi.Prompt{
				{Name: "ssid", PromptType: model.PromptLine, Persist: true, Display: &clanapi.PromptDisplay{Group: "Network"}},
				{Name: "psk", PromptType: model.PromptHidden, Display: &clanapi.PromptDisplay{Group: "Network", Label: "Passphrase"}},
			},
		},
	})
}

func (h *Host) promptPreviousValues(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.PromptPreviousValuesBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, fail := h.clan(body.Machine.Flake.Identifier)
	if fail != nil {
		return *fail
	}
	out := make([]clanapi.PromptPreviousValue, 0, len(body.PromptIdentifiers))
	for _, id := range body.PromptIdentifiers {
		v := clanapi.PromptPreviousValue{GeneratorName: id.GeneratorName, PromptName: id.PromptName}
		if val, ok := c.Prompts[promptKey(body.Machine.Name, id.GeneratorName, id.PromptName)]; ok {
			v.Value = &val
		}
		out = append(out, v)
	}
	return rpc.Success(out)
}

func (h *Host) runGenerators(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.RunGeneratorsBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ref := range body.Machines {
		c, _, fail := h.machine(ref)
		if fail != nil {
			return *fail
		}
		for gen, prompts := range body.PromptValues {
			for prompt, value := range prompts {
				c.Prompts[promptKey(ref.Name, gen, prompt)] = value
			}
		}
	}
	return rpc.Success(nil)
}

func promptKey(machine, generator, prompt string) string {
	return machine + "/" + generator + "/" + prompt
}

func (h *Host) runInstall(ctx context.Context, req rpc.Request) rpc.Response {
	var body clanapi.RunInstallBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	if strings.TrimSpace(body.TargetHost.Address) == "" {
		return rpc.Failure("target host is required", "")
	}
	h.mu.Lock()
	_, m, fail := h.machine(body.Opts.Machine)
	h.mu.Unlock()
	if fail != nil {
		return *fail
	}
	for _, step := range []model.InstallProgress{
		model.ProgressGenerators,
		model.ProgressUploadSecrets,
		model.ProgressNixosAnywhere,
		model.ProgressFormatting,
		model.ProgressInstalling,
		model.ProgressRebooting,
	} {
		if ctx.Err() != nil {
			return rpc.Failure("install aborted", ctx.Err().Error())
		}
		h.emit(rpc.OpRunMachineInstall, req.Header.OpKey, step)
	}
	h.mu.Lock()
	m.Status = model.StatusOnline
	h.mu.Unlock()
	return rpc.Success(nil)
}

func (h *Host) runUpdate(ctx context.Context, req rpc.Request) rpc.Response {
	var body clanapi.RunUpdateBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	_, m, fail := h.machine(body.Machine)
	h.mu.Unlock()
	if fail != nil {
		return *fail
	}
	if ctx.Err() != nil {
		return rpc.Failure("update aborted", ctx.Err().Error())
	}
	h.emit(rpc.OpRunMachineUpdate, req.Header.OpKey, model.ProgressGenerators, model.ProgressUploadSecrets)
	h.mu.Lock()
	m.Status = model.StatusOnline
	h.mu.Unlock()
	return rpc.Success(nil)
}

func (h *Host) listModules(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.FlakeBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, fail := h.clan(body.Flake.Identifier); fail != nil {
		return *fail
	}
	return rpc.Success(clanapi.ServiceModules{Modules: h.modules})
}

func (h *Host) listInstances(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.FlakeBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, fail := h.clan(body.Flake.Identifier)
	if fail != nil {
		return *fail
	}
	return rpc.Success(c.Instances)
}

func (h *Host) createInstance(_ context.Context, req rpc.Request) rpc.Response {
	var body clanapi.CreateInstanceBody
	if err := rpc.DecodeBody(req, &body); err != nil {
		return badRequest(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, fail := h.clan(body.Flake.Identifier)
	if fail != nil {
		return *fail
	}
	known := false
	for _, mod := range h.modules {
		if mod.Name == body.ModuleRef.Name {
			known = true
			break
		}
	}
	if !known {
		return rpc.Failure("unknown service module", body.ModuleRef.Name)
	}
	name := body.InstanceName
	if name == "" {
		name = body.ModuleRef.Name
	}
	if _, exists := c.Instances[name]; exists {
		return rpc.Failure("instance already exists", name)
	}
	c.Instances[name] = clanapi.ListedInstance{Module: body.ModuleRef, Roles: body.Roles}
	return rpc.Success(nil)
}
