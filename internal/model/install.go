package model

import "sort"

// SSH addresses a machine for login checks, hardware probing and installs.
type SSH struct {
	Address  string `json:"address"`
	Port     int    `json:"port,omitempty"`
	Password string `json:"password,omitempty"`
}

// HardwareReportType names the tool that produced a hardware report.
type HardwareReportType string

const (
	HardwareFacter         HardwareReportType = "nixos-facter"
	HardwareGenerateConfig HardwareReportType = "nixos-generate-config"
)

// HardwareReport describes the hardware configuration stored for a machine.
type HardwareReport struct {
	Type HardwareReportType `json:"type"`
}

// DiskPlaceholder is a value a disk template needs before it can be applied.
type DiskPlaceholder struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Values   []string `json:"values"`
	Required bool     `json:"required"`
}

// DiskTemplate is a disk layout offered for a machine.
type DiskTemplate struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	Description  string                     `json:"description"`
	Placeholders map[string]DiskPlaceholder `json:"placeholders"`
}

// DiskTemplates indexes templates by id and keeps them sorted by id.
type DiskTemplates struct {
	All    map[string]DiskTemplate
	Sorted []DiskTemplate
}

// NewDiskTemplates indexes all.
func NewDiskTemplates(all map[string]DiskTemplate) DiskTemplates {
	t := DiskTemplates{All: make(map[string]DiskTemplate, len(all))}
	for id, tpl := range all {
		tpl.ID = id
		placeholders := make(map[string]DiskPlaceholder, len(tpl.Placeholders))
		for pid, p := range tpl.Placeholders {
			p.ID = pid
			placeholders[pid] = p
		}
		tpl.Placeholders = placeholders
		t.All[id] = tpl
		t.Sorted = append(t.Sorted, tpl)
	}
	sort.Slice(t.Sorted, func(i, j int) bool { return t.Sorted[i].ID < t.Sorted[j].ID })
	return t
}

// PromptType is the input style of a vars prompt.
type PromptType string

const (
	PromptHidden          PromptType = "hidden"
	PromptLine            PromptType = "line"
	PromptMultiline       PromptType = "multiline"
	PromptMultilineHidden PromptType = "multiline-hidden"
)

// VarsPrompt is a single value a generator asks for.
type VarsPrompt struct {
	ID          string     `json:"id"`
	Generator   string     `json:"generator"`
	Description string     `json:"description"`
	Name        string     `json:"name"`
	Value       string     `json:"value"`
	Type        PromptType `json:"type"`
	Required    bool       `json:"required"`
}

// VarsPromptGroup collects prompts that are shown together.
type VarsPromptGroup struct {
	ID      string
	Prompts []VarsPrompt
}

// Prompt returns the prompt with the given id.
func (g VarsPromptGroup) Prompt(id string) (VarsPrompt, bool) {
	for _, p := range g.Prompts {
		if p.ID == id {
			return p, true
		}
	}
	return VarsPrompt{}, false
}

// NewVarsPromptGroups turns group id -> prompt id -> prompt into groups
// sorted by id, each with prompts sorted by id.
func NewVarsPromptGroups(all map[string]map[string]VarsPrompt) []VarsPromptGroup {
	groups := make([]VarsPromptGroup, 0, len(all))
	for gid, prompts := range all {
		g := VarsPromptGroup{ID: gid, Prompts: make([]VarsPrompt, 0, len(prompts))}
		for pid, p := range prompts {
			p.ID = pid
			g.Prompts = append(g.Prompts, p)
		}
		sort.Slice(g.Prompts, func(i, j int) bool { return g.Prompts[i].ID < g.Prompts[j].ID })
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

// PromptValues maps generator name -> prompt name -> value.
type PromptValues map[string]map[string]string

// InstallProgress is a step reported while a machine is installed or updated.
type InstallProgress string

const (
	ProgressDisk          InstallProgress = "disk"
	ProgressVarsPrompts   InstallProgress = "varsPrompts"
	ProgressGenerators    InstallProgress = "generators"
	ProgressUploadSecrets InstallProgress = "upload-secrets"
	ProgressNixosAnywhere InstallProgress = "nixos-anywhere"
	ProgressFormatting    InstallProgress = "formatting"
	ProgressRebooting     InstallProgress = "rebooting"
	ProgressInstalling    InstallProgress = "installing"
)
