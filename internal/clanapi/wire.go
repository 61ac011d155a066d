package clanapi

import "github.com/five82/clanboard/internal/model"

// Request and response bodies as the host encodes them.

type FlakeRef struct {
	Identifier string `json:"identifier"`
}

type MachineRef struct {
	Name  string   `json:"name"`
	Flake FlakeRef `json:"flake"`
}

func machineRef(clanID, machineID string) MachineRef {
	return MachineRef{Name: machineID, Flake: FlakeRef{Identifier: clanID}}
}

type Remote struct {
	Address      string            `json:"address"`
	Port         int               `json:"port,omitempty"`
	Password     string            `json:"password,omitempty"`
	HostKeyCheck string            `json:"host_key_check,omitempty"`
	SSHOptions   map[string]string `json:"ssh_options,omitempty"`
}

func remote(ssh model.SSH) Remote {
	return Remote{Address: ssh.Address, Port: ssh.Port, Password: ssh.Password, HostKeyCheck: "none"}
}

type PickClanDirBody struct {
	Title string `json:"title"`
}

type CreateClanBody struct {
	Opts CreateClanOpts `json:"opts"`
}

type CreateClanOpts struct {
	Dest     string             `json:"dest"`
	Template string             `json:"template"`
	Initial  model.ClanMetaData `json:"initial"`
}

type FlakeBody struct {
	Flake FlakeRef `json:"flake"`
}

type ClanDetails struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

type SetClanDetailsBody struct {
	Options SetClanDetailsOptions `json:"options"`
}

type SetClanDetailsOptions struct {
	Flake FlakeRef    `json:"flake"`
	Meta  ClanDetails `json:"meta"`
}

// MachineFields is the machine payload of list_machines, create_machine and
// set_machine. Positions are client-side only and never sent.
type MachineFields struct {
	Name         string             `json:"name,omitempty"`
	Deploy       model.Deploy       `json:"deploy"`
	Description  string             `json:"description,omitempty"`
	MachineClass model.MachineClass `json:"machineClass"`
	Tags         []string           `json:"tags"`
}

type ListedMachine struct {
	Data MachineFields `json:"data"`
}

type CreateMachineBody struct {
	Opts CreateMachineOpts `json:"opts"`
}

type CreateMachineOpts struct {
	ClanDir FlakeRef      `json:"clan_dir"`
	Machine MachineFields `json:"machine"`
}

type SetMachineBody struct {
	Machine MachineRef    `json:"machine"`
	Update  MachineFields `json:"update"`
}

type MachineBody struct {
	Machine MachineRef `json:"machine"`
}

type CheckSSHBody struct {
	Remote Remote `json:"remote"`
}

type HardwareSummary struct {
	HardwareConfig string `json:"hardware_config"`
}

type HardwareInfoInitBody struct {
	TargetHost Remote      `json:"target_host"`
	Opts       MachineBody `json:"opts"`
}

type DiskSchema struct {
	Name         string                           `json:"name"`
	Frontmatter  DiskSchemaFrontmatter            `json:"frontmatter"`
	Placeholders map[string]DiskSchemaPlaceholder `json:"placeholders"`
}

type DiskSchemaFrontmatter struct {
	Description string `json:"description"`
}

type DiskSchemaPlaceholder struct {
	Label    string   `json:"label"`
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required"`
}

type SetDiskSchemaBody struct {
	Machine      MachineRef        `json:"machine"`
	SchemaName   string            `json:"schema_name"`
	Placeholders map[string]string `json:"placeholders"`
	Force        bool              `json:"force"`
}

type GeneratorsBody struct {
	Machines    []MachineRef `json:"machines"`
	FullClosure bool         `json:"full_closure"`
}

type Generator struct {
	Name    string   `json:"name"`
	Prompts []Prompt `json:"prompts"`
}

type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	PromptType  model.PromptType `json:"prompt_type"`
	Persist     bool             `json:"persist"`
	Display     *PromptDisplay   `json:"display,omitempty"`
}

type PromptDisplay struct {
	Group    string `json:"group,omitempty"`
	Label    string `json:"label,omitempty"`
	Required bool   `json:"required"`
}

type PromptID struct {
	GeneratorName string `json:"generator_name"`
	PromptName    string `json:"prompt_name"`
}

type PromptPreviousValuesBody struct {
	Machine           MachineRef `json:"machine"`
	PromptIdentifiers []PromptID `json:"prompt_identifiers"`
}

type PromptPreviousValue struct {
	GeneratorName string  `json:"generator_name"`
	PromptName    string  `json:"prompt_name"`
	Value         *string `json:"value"`
}

type RunGeneratorsBody struct {
	Generators   []string           `json:"generators"`
	PromptValues model.PromptValues `json:"prompt_values"`
	Machines     []MachineRef       `json:"machines"`
}

type RunInstallBody struct {
	Opts       MachineBody `json:"opts"`
	TargetHost Remote      `json:"target_host"`
}

type RunUpdateBody struct {
	Machine    MachineRef `json:"machine"`
	BuildHost  *Remote    `json:"build_host"`
	TargetHost Remote     `json:"target_host"`
}

type ServiceModules struct {
	Modules []ServiceModule `json:"modules"`
}

type ServiceModule struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Categories  []string               `json:"categories,omitempty"`
	Roles       map[string]ServiceRole `json:"roles"`
}

type ServiceRole struct {
	Description string `json:"description,omitempty"`
}

type ModuleRef struct {
	Name  string `json:"name"`
	Input string `json:"input,omitempty"`
}

type InstanceRole struct {
	Machines map[string]struct{} `json:"machines,omitempty"`
	Tags     map[string]struct{} `json:"tags,omitempty"`
	Settings map[string]any      `json:"settings,omitempty"`
}

type ListedInstance struct {
	Module ModuleRef               `json:"module"`
	Roles  map[string]InstanceRole `json:"roles"`
}

type CreateInstanceBody struct {
	Flake        FlakeRef                `json:"flake"`
	ModuleRef    ModuleRef               `json:"module_ref"`
	InstanceName string                  `json:"instance_name"`
	Roles        map[string]InstanceRole `json:"roles"`
}

type TaskBody struct {
	TaskID string `json:"task_id"`
}
