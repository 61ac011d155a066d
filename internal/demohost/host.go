// Package demohost is an in-memory clan host. It serves the backend
// operations on an rpc.HostTransport so clanboard can run without a real
// host, and it is the fake backend of the store and workflow tests.
package demohost

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/clanapi"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/rpc"
)

// Machine is a machine as the host stores it.
type Machine struct {
	Fields   clanapi.MachineFields
	Status   model.MachineStatus
	Hardware string
}

// Clan is a clan directory as the host stores it.
type Clan struct {
	Details   clanapi.ClanDetails
	Machines  map[string]*Machine
	Instances map[string]clanapi.ListedInstance
	Prompts   map[string]string
}

// Host holds clans keyed by directory.
type Host struct {
	logger *zap.Logger

	mu       sync.Mutex
	clans    map[string]*Clan
	modules  []clanapi.ServiceModule
	pickDir  string
	calls    map[rpc.Operation]int
	failures map[rpc.Operation]string
	tr       *rpc.HostTransport
}

// New returns an empty host offering the default service modules.
func New(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		logger:   logger,
		clans:    make(map[string]*Clan),
		modules:  DefaultModules(),
		calls:    make(map[rpc.Operation]int),
		failures: make(map[rpc.Operation]string),
	}
}

// DefaultModules are the service modules every demo clan can instantiate.
func DefaultModules() []clanapi.ServiceModule {
	return []clanapi.ServiceModule{
		{
			Name:        "admin",
			Description: "Adds a root user and SSH keys",
			Categories:  []string{"System"},
			Roles:       map[string]clanapi.ServiceRole{"default": {Description: "Machines managed by the admin"}},
		},
		{
			Name:        "borgbackup",
			Description: "Encrypted off-site backups",
			Categories:  []string{"Backup"},
			Roles: map[string]clanapi.ServiceRole{
				"client": {Description: "Machines that are backed up"},
				"server": {Description: "Machines that store backups"},
			},
		},
		{
			Name:        "zerotier",
			Description: "Overlay network between machines",
			Categories:  []string{"Network"},
			Roles: map[string]clanapi.ServiceRole{
				"controller": {Description: "Network controller"},
				"moon":       {Description: "Relay"},
				"peer":       {Description: "Network member"},
			},
		},
	}
}

// Serve registers every operation on tr.
func (h *Host) Serve(tr *rpc.HostTransport) {
	h.mu.Lock()
	h.tr = tr
	h.mu.Unlock()

	handlers := map[rpc.Operation]rpc.Handler{
		rpc.OpPickClanDir:             h.pickClanDir,
		rpc.OpCreateClan:              h.createClan,
		rpc.OpGetClanDetails:          h.getClanDetails,
		rpc.OpSetClanDetails:          h.setClanDetails,
		rpc.OpListMachines:            h.listMachines,
		rpc.OpListMachineStates:       h.listMachineStates,
		rpc.OpCreateMachine:           h.createMachine,
		rpc.OpSetMachine:              h.setMachine,
		rpc.OpDeleteMachine:           h.deleteMachine,
		rpc.OpCheckMachineSSH:         h.checkSSH,
		rpc.OpGetHardwareSummary:      h.hardwareSummary,
		rpc.OpRunHardwareInfoInit:     h.hardwareInfoInit,
		rpc.OpGetDiskSchemas:          h.diskSchemas,
		rpc.OpSetDiskSchema:           h.setDiskSchema,
		rpc.OpGetGenerators:           h.generators,
		rpc.OpGetPromptPreviousValues: h.promptPreviousValues,
		rpc.OpRunGenerators:           h.runGenerators,
		rpc.OpRunMachineInstall:       h.runInstall,
		rpc.OpRunMachineUpdate:        h.runUpdate,
		rpc.OpListServiceModules:      h.listModules,
		rpc.OpListServiceInstances:    h.listInstances,
		rpc.OpCreateServiceInstance:   h.createInstance,
		rpc.OpCancelTask:              h.ack,
		rpc.OpDeleteTask:              h.ack,
	}
	for op, fn := range handlers {
		tr.Register(op, h.counted(op, fn))
	}
}

// counted records the call and applies injected failures.
func (h *Host) counted(op rpc.Operation, fn rpc.Handler) rpc.Handler {
	return func(ctx context.Context, req rpc.Request) rpc.Response {
		h.mu.Lock()
		h.calls[op]++
		msg, fail := h.failures[op]
		h.mu.Unlock()
		h.logger.Debug("host call", zap.String("op", string(op)), zap.String("op_key", req.Header.OpKey))
		if fail {
			return rpc.Failure(msg, "injected failure")
		}
		return fn(ctx, req)
	}
}

// Calls returns how often op was served.
func (h *Host) Calls(op rpc.Operation) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[op]
}

// FailNext makes every following call of op fail with message until
// Recover is called.
func (h *Host) FailNext(op rpc.Operation, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[op] = message
}

// Recover clears an injected failure.
func (h *Host) Recover(op rpc.Operation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.failures, op)
}

// SetPickDir sets the directory returned by the folder picker.
func (h *Host) SetPickDir(dir string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pickDir = dir
}

// AddClan seeds a clan.
func (h *Host) AddClan(dir string, details clanapi.ClanDetails) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clans[dir] = newClan(details)
}

// AddMachine seeds a machine into an existing clan.
func (h *Host) AddMachine(dir, name string, fields clanapi.MachineFields, status model.MachineStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clans[dir]
	if !ok {
		return fmt.Errorf("clan %s not found", dir)
	}
	fields.Name = name
	if fields.Tags == nil {
		fields.Tags = []string{}
	}
	c.Machines[name] = &Machine{Fields: fields, Status: status, Hardware: "none"}
	return nil
}

// AddInstance seeds a service instance into an existing clan.
func (h *Host) AddInstance(dir, name string, inst clanapi.ListedInstance) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clans[dir]
	if !ok {
		return fmt.Errorf("clan %s not found", dir)
	}
	c.Instances[name] = inst
	return nil
}

// Machine returns a copy of a stored machine.
func (h *Host) Machine(dir, name string) (Machine, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clans[dir]
	if !ok {
		return Machine{}, false
	}
	m, ok := c.Machines[name]
	if !ok {
		return Machine{}, false
	}
	dup := *m
	dup.Fields.Tags = append([]string(nil), m.Fields.Tags...)
	return dup, true
}

// Details returns the stored details of a clan.
func (h *Host) Details(dir string) (clanapi.ClanDetails, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clans[dir]
	if !ok {
		return clanapi.ClanDetails{}, false
	}
	return c.Details, true
}

// Seed fills the host with a small example clan at dir.
func (h *Host) Seed(dir string) {
	h.AddClan(dir, clanapi.ClanDetails{Name: "demo", Description: "Example clan", Domain: "demo.lan"})
	_ = h.AddMachine(dir, "gateway", clanapi.MachineFields{
		Deploy:       model.Deploy{TargetHost: "root@192.168.1.1"},
		Description:  "Edge router",
		MachineClass: model.ClassNixOS,
		Tags:         []string{"network"},
	}, model.StatusOnline)
	_ = h.AddMachine(dir, "nas", clanapi.MachineFields{
		Deploy:       model.Deploy{TargetHost: "root@192.168.1.10"},
		MachineClass: model.ClassNixOS,
		Tags:         []string{"storage", "backup"},
	}, model.StatusOutOfSync)
	_ = h.AddMachine(dir, "laptop", clanapi.MachineFields{
		MachineClass: model.ClassDarwin,
		Tags:         []string{"backup"},
	}, model.StatusNotInstalled)
	_ = h.AddInstance(dir, "admin", clanapi.ListedInstance{
		Module: clanapi.ModuleRef{Name: "admin", Input: "clan-core"},
		Roles:  map[string]clanapi.InstanceRole{"default": {Tags: map[string]struct{}{"all": {}}}},
	})
	_ = h.AddInstance(dir, "backups", clanapi.ListedInstance{
		Module: clanapi.ModuleRef{Name: "borgbackup", Input: "clan-core"},
		Roles: map[string]clanapi.InstanceRole{
			"client": {Tags: map[string]struct{}{"backup": {}}},
			"server": {Machines: map[string]struct{}{"nas": {}}},
		},
	})
}

func newClan(details clanapi.ClanDetails) *Clan {
	return &Clan{
		Details:   details,
		Machines:  make(map[string]*Machine),
		Instances: make(map[string]clanapi.ListedInstance),
		Prompts:   make(map[string]string),
	}
}

// clan looks up a clan; callers hold h.mu.
func (h *Host) clan(dir string) (*Clan, *rpc.Response) {
	c, ok := h.clans[dir]
	if !ok {
		resp := rpc.Failure("clan not found", dir)
		return nil, &resp
	}
	return c, nil
}

func (h *Host) machine(ref clanapi.MachineRef) (*Clan, *Machine, *rpc.Response) {
	c, fail := h.clan(ref.Flake.Identifier)
	if fail != nil {
		return nil, nil, fail
	}
	m, ok := c.Machines[ref.Name]
	if !ok {
		resp := rpc.Failure("machine not found", ref.Name)
		return nil, nil, &resp
	}
	return c, m, nil
}

func (h *Host) emit(op rpc.Operation, opKey string, progress ...model.InstallProgress) {
	h.mu.Lock()
	tr := h.tr
	h.mu.Unlock()
	if tr == nil {
		return
	}
	for _, p := range progress {
		if err := tr.Emit(rpc.Event{Op: op, OpKey: opKey, Type: string(p)}); err != nil {
			h.logger.Warn("emit progress", zap.Error(err))
		}
	}
}

func badRequest(err error) rpc.Response {
	return rpc.Failure("malformed request", err.Error())
}
