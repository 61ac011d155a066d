package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/five82/clanboard/internal/model"
)

// clanSummary is the printable form of a clan entry.
type clanSummary struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Domain      string            `yaml:"domain,omitempty"`
	Loaded      bool              `yaml:"loaded"`
	Machines    []machineSummary  `yaml:"machines,omitempty"`
	Instances   []instanceSummary `yaml:"instances,omitempty"`
	Tags        *model.Tags       `yaml:"tags,omitempty"`
}

type machineSummary struct {
	ID     string              `yaml:"id"`
	Status model.MachineStatus `yaml:"status"`
	Data   model.MachineData   `yaml:",inline"`
}

type instanceSummary struct {
	Name    string              `yaml:"name"`
	Service string              `yaml:"service"`
	Roles   map[string][]string `yaml:"roles,omitempty"`
}

func summarize(entry model.ClanEntry) clanSummary {
	clan, ok := model.AsClan(entry)
	if !ok {
		meta := entry.Meta()
		return clanSummary{ID: entry.ClanID(), Name: meta.Name, Description: meta.Description}
	}

	out := clanSummary{
		ID:          clan.ID,
		Name:        clan.Data.Name,
		Description: clan.Data.Description,
		Domain:      clan.Data.Domain,
		Loaded:      true,
	}
	for _, m := range clan.Machines.Sorted() {
		out.Machines = append(out.Machines, machineSummary{ID: m.ID, Status: m.Status, Data: m.Data})
	}
	for _, inst := range clan.ServiceInstances() {
		roles := make(map[string][]string, len(inst.Roles))
		for id, role := range inst.Roles {
			members := []string{}
			for _, m := range role.Members() {
				if m.Type == model.MemberTag {
					members = append(members, "tag:"+m.Name)
					continue
				}
				members = append(members, m.Name)
			}
			roles[id] = members
		}
		out.Instances = append(out.Instances, instanceSummary{Name: inst.Name, Service: inst.ServiceID, Roles: roles})
	}
	if len(clan.GlobalTags.Regular) > 0 || len(clan.GlobalTags.Special) > 0 {
		tags := clan.GlobalTags
		out.Tags = &tags
	}
	return out
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func writeText(w io.Writer, s clanSummary) error {
	fmt.Fprintf(w, "Clan: %s (%s)\n", s.Name, s.ID)
	if s.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", s.Description)
	}
	if s.Domain != "" {
		fmt.Fprintf(w, "Domain: %s\n", s.Domain)
	}
	if !s.Loaded {
		fmt.Fprintln(w, "Not loaded.")
		return nil
	}

	fmt.Fprintf(w, "\nMachines (%d):\n", len(s.Machines))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range s.Machines {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", m.ID, m.Status, m.Data.MachineClass, strings.Join(m.Data.Tags, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nService instances (%d):\n", len(s.Instances))
	for _, inst := range s.Instances {
		fmt.Fprintf(w, "  %s (%s)\n", inst.Name, inst.Service)
		roleIDs := make([]string, 0, len(inst.Roles))
		for id := range inst.Roles {
			roleIDs = append(roleIDs, id)
		}
		sort.Strings(roleIDs)
		for _, id := range roleIDs {
			fmt.Fprintf(w, "    %s: %s\n", id, dashIfEmpty(strings.Join(inst.Roles[id], ", ")))
		}
	}
	return nil
}

func writeClanTable(w io.Writer, snap model.Clans) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tACTIVE")
	for i, e := range snap.All {
		active := ""
		if snap.IsActive(e.ClanID()) {
			active = "*"
		}
		name := e.Meta().Name
		if name == "" {
			name = e.ClanID()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, e.ClanID(), name, active)
	}
	return tw.Flush()
}

func writeMachineTable(w io.Writer, clan *model.Clan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MACHINE\tSTATUS\tCLASS\tTARGET\tTAGS")
	for _, m := range clan.Machines.Sorted() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.Status, m.Data.MachineClass,
			dashIfEmpty(m.Data.Deploy.TargetHost),
			dashIfEmpty(strings.Join(m.Data.Tags, ",")))
	}
	return tw.Flush()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
