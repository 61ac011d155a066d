package model

import (
	"sort"
)

// Role is a role a service offers to its instances.
type Role struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ServiceOutput is a service definition as returned by the backend.
type ServiceOutput struct {
	ID          string
	Name        string
	Description string
	Categories  []string
	Roles       []Role
}

// Service is a reusable capability that can be instantiated in a clan.
type Service struct {
	ID          string
	Name        string
	Description string
	Categories  []string
	Roles       []Role
}

// NewService builds a service from backend output. Roles are sorted by id.
func NewService(out ServiceOutput) *Service {
	roles := make([]Role, len(out.Roles))
	copy(roles, out.Roles)
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	name := out.Name
	if name == "" {
		name = out.ID
	}
	return &Service{
		ID:          out.ID,
		Name:        name,
		Description: out.Description,
		Categories:  cloneStrings(out.Categories),
		Roles:       roles,
	}
}

// Role returns the service role with the given id.
func (s *Service) Role(id string) (Role, bool) {
	for _, r := range s.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

func (s *Service) Clone() *Service {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Categories = cloneStrings(s.Categories)
	dup.Roles = make([]Role, len(s.Roles))
	copy(dup.Roles, s.Roles)
	return &dup
}

// MemberType tells machine members from tag members.
type MemberType string

const (
	MemberMachine MemberType = "machine"
	MemberTag     MemberType = "tag"
)

// Member is a machine or tag bound to an instance role.
type Member struct {
	Type MemberType `json:"type" yaml:"type"`
	Name string     `json:"name" yaml:"name"`
}

// InstanceRole binds machines, tags and settings to a role of an instance.
type InstanceRole struct {
	Settings map[string]any `json:"settings" yaml:"settings"`
	Machines []string       `json:"machines" yaml:"machines"`
	Tags     []string       `json:"tags" yaml:"tags"`
}

// Members returns machine and tag members sorted by name.
func (r InstanceRole) Members() []Member {
	members := make([]Member, 0, len(r.Machines)+len(r.Tags))
	for _, m := range r.Machines {
		members = append(members, Member{Type: MemberMachine, Name: m})
	}
	for _, t := range r.Tags {
		members = append(members, Member{Type: MemberTag, Name: t})
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members
}

// ServiceInstanceOutput is an instance as returned by the backend.
type ServiceInstanceOutput struct {
	Name      string
	ServiceID string
	Roles     map[string]InstanceRole
}

// ServiceInstance is a configured deployment of a service within a clan.
// Its name is its identity.
type ServiceInstance struct {
	Name      string
	ServiceID string
	Roles     map[string]InstanceRole
}

// NewServiceInstance builds an instance from backend output.
func NewServiceInstance(out ServiceInstanceOutput) *ServiceInstance {
	inst := &ServiceInstance{
		Name:      out.Name,
		ServiceID: out.ServiceID,
		Roles:     make(map[string]InstanceRole, len(out.Roles)),
	}
	for id, r := range out.Roles {
		inst.Roles[id] = cloneRole(r)
	}
	return inst
}

// RoleIDs returns the role ids of the instance in sorted order.
func (i *ServiceInstance) RoleIDs() []string {
	ids := make([]string, 0, len(i.Roles))
	for id := range i.Roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AppliesTo reports whether any role of the instance targets the machine:
// directly, through the "all" tag, or through a shared tag.
func (i *ServiceInstance) AppliesTo(m *Machine) bool {
	for _, role := range i.Roles {
		for _, name := range role.Machines {
			if name == m.ID {
				return true
			}
		}
		for _, tag := range role.Tags {
			if tag == "all" || m.HasTag(tag) {
				return true
			}
		}
	}
	return false
}

// Output converts the instance back into its backend form.
func (i *ServiceInstance) Output() ServiceInstanceOutput {
	return i.Clone().output()
}

func (i *ServiceInstance) output() ServiceInstanceOutput {
	return ServiceInstanceOutput{Name: i.Name, ServiceID: i.ServiceID, Roles: i.Roles}
}

func (i *ServiceInstance) Clone() *ServiceInstance {
	if i == nil {
		return nil
	}
	dup := &ServiceInstance{
		Name:      i.Name,
		ServiceID: i.ServiceID,
		Roles:     make(map[string]InstanceRole, len(i.Roles)),
	}
	for id, r := range i.Roles {
		dup.Roles[id] = cloneRole(r)
	}
	return dup
}

func cloneRole(r InstanceRole) InstanceRole {
	dup := InstanceRole{
		Machines: cloneStrings(r.Machines),
		Tags:     cloneStrings(r.Tags),
	}
	if dup.Machines == nil {
		dup.Machines = []string{}
	}
	if dup.Tags == nil {
		dup.Tags = []string{}
	}
	if r.Settings != nil {
		dup.Settings = make(map[string]any, len(r.Settings))
		for k, v := range r.Settings {
			dup.Settings[k] = v
		}
	}
	return dup
}
