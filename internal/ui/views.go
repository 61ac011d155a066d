package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/notify"
)

const maxToasts = 3

// renderMain renders header, content, toasts and footer.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	if toasts := m.renderToasts(); toasts != "" {
		b.WriteString("\n")
		b.WriteString(toasts)
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	parts := []string{styles.Logo.Render("clanboard")}

	if active, ok := m.snapshot.ActiveClan(); ok {
		parts = append(parts, styles.Text.Bold(true).Render(active.Data.Name))
		counts := statusCounts(active)
		for _, st := range []model.MachineStatus{model.StatusOnline, model.StatusOutOfSync, model.StatusOffline, model.StatusNotInstalled} {
			if n := counts[st]; n > 0 {
				parts = append(parts, styles.StatusStyle(st).Render(fmt.Sprintf("%s %d", st, n)))
			}
		}
	} else {
		parts = append(parts, styles.MutedText.Render("no active clan"))
	}

	var tabs []string
	for _, v := range []View{ViewClans, ViewMachines, ViewServices} {
		label := v.String()
		if v == m.currentView {
			tabs = append(tabs, styles.AccentText.Bold(true).Render("["+label+"]"))
		} else {
			tabs = append(tabs, styles.MutedText.Render(label))
		}
	}
	parts = append(parts, strings.Join(tabs, " "))

	return styles.Header.Width(max(m.width, 1)).Render(strings.Join(parts, "  "))
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewMachines:
		return m.renderMachines()
	case ViewServices:
		return m.renderServices()
	default:
		return m.renderClans()
	}
}

func (m Model) renderClans() string {
	styles := m.theme.Styles()
	if len(m.snapshot.All) == 0 {
		return styles.MutedText.Render("No clans yet. Press o to open a clan directory.")
	}

	var rows []string
	for i, e := range m.snapshot.All {
		marker := "  "
		if i == m.snapshot.ActiveIndex {
			marker = styles.SuccessText.Render("● ")
		}
		meta := e.Meta()
		name := meta.Name
		if name == "" {
			name = e.ClanID()
		}
		line := fmt.Sprintf("%-20s %s", truncate(name, 20), e.ClanID())
		if _, loaded := model.AsClan(e); !loaded {
			line += "  (not loaded)"
		}
		rows = append(rows, m.row(marker+line, i == m.clanRow, false))
	}
	list := styles.FocusedPanel.Render(strings.Join(rows, "\n"))

	detail := ""
	if m.clanRow < len(m.snapshot.All) {
		detail = styles.Panel.Render(m.clanDetail(m.snapshot.All[m.clanRow]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
}

func (m Model) clanDetail(e model.ClanEntry) string {
	styles := m.theme.Styles()
	c, ok := model.AsClan(e)
	if !ok {
		meta := e.Meta()
		return strings.Join([]string{
			styles.Text.Bold(true).Render(meta.Name),
			styles.MutedText.Render(meta.Description),
			styles.FaintText.Render("enter loads and activates"),
		}, "\n")
	}
	lines := []string{
		styles.Text.Bold(true).Render(c.Data.Name),
		styles.MutedText.Render(c.Data.Description),
		pair(styles, "Domain", c.Data.Domain),
		pair(styles, "Machines", fmt.Sprint(len(c.Machines.All))),
		pair(styles, "Instances", fmt.Sprint(len(c.Instances))),
		pair(styles, "Tags", strings.Join(append(append([]string{}, c.GlobalTags.Special...), c.GlobalTags.Regular...), ", ")),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMachines() string {
	styles := m.theme.Styles()
	active, ok := m.snapshot.ActiveClan()
	if !ok {
		return styles.MutedText.Render("No active clan. Pick one in the clans view.")
	}
	list := active.Machines.Sorted()
	if len(list) == 0 {
		return styles.MutedText.Render("No machines. Press a to add one.")
	}

	var rows []string
	for i, mc := range list {
		mark := "  "
		if active.Machines.IsActive(mc.ID) {
			mark = styles.AccentText.Render("▶ ")
		}
		badge := styles.StatusStyle(mc.Status).Render(string(mc.Status))
		line := fmt.Sprintf("%-16s %-7s %-24s", truncate(mc.ID, 16), mc.Data.MachineClass, truncate(strings.Join(mc.Data.Tags, ","), 24))
		rows = append(rows, m.row(mark+line, i == m.machineRow, active.Machines.IsHighlighted(mc.ID))+" "+badge)
	}
	table := styles.FocusedPanel.Render(strings.Join(rows, "\n"))

	selected := list[min(m.machineRow, len(list)-1)]
	if am, ok := active.Machines.ActiveMachine(); ok {
		selected = am
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, table, styles.Panel.Render(m.machineDetail(active, selected)))
}

func (m Model) machineDetail(c *model.Clan, mc *model.Machine) string {
	styles := m.theme.Styles()
	lines := []string{
		styles.Text.Bold(true).Render(mc.ID),
		styles.MutedText.Render(mc.Data.Description),
		pair(styles, "Status", string(mc.Status)),
		pair(styles, "Class", string(mc.Data.MachineClass)),
		pair(styles, "Target", mc.Data.Deploy.TargetHost),
		pair(styles, "Position", mc.Data.Position.String()),
	}
	if instances, ok := c.MachineInstances(mc.ID); ok && len(instances) > 0 {
		names := make([]string, len(instances))
		for i, inst := range instances {
			names[i] = inst.Name
		}
		lines = append(lines, pair(styles, "Services", strings.Join(names, ", ")))
	}
	if ids := c.Machines.HighlightedIDs(); len(ids) > 0 {
		lines = append(lines, pair(styles, "Highlighted", strings.Join(ids, ", ")))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderServices() string {
	styles := m.theme.Styles()
	active, ok := m.snapshot.ActiveClan()
	if !ok {
		return styles.MutedText.Render("No active clan. Pick one in the clans view.")
	}
	list := active.ServiceInstances()
	if len(list) == 0 {
		return styles.MutedText.Render("No service instances.")
	}

	var rows []string
	for i, inst := range list {
		mark := "  "
		if inst.Name == active.ActiveInstance {
			mark = styles.AccentText.Render("▶ ")
		}
		service := inst.ServiceID
		if s, ok := active.Service(inst.ServiceID); ok {
			service = s.Name
		}
		line := fmt.Sprintf("%-16s %-16s %s", truncate(inst.Name, 16), truncate(service, 16), strings.Join(inst.RoleIDs(), ","))
		rows = append(rows, m.row(mark+line, i == m.serviceRow, false))
	}
	table := styles.FocusedPanel.Render(strings.Join(rows, "\n"))

	inst := list[min(m.serviceRow, len(list)-1)]
	var detail []string
	detail = append(detail, styles.Text.Bold(true).Render(inst.Name))
	roles := inst.RoleIDs()
	sort.Strings(roles)
	for _, id := range roles {
		var members []string
		for _, mem := range inst.Roles[id].Members() {
			members = append(members, fmt.Sprintf("%s:%s", mem.Type, mem.Name))
		}
		detail = append(detail, pair(styles, id, strings.Join(members, ", ")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, table, styles.Panel.Render(strings.Join(detail, "\n")))
}

func (m Model) renderToasts() string {
	if len(m.toastList) == 0 {
		return ""
	}
	styles := m.theme.Styles()
	start := max(len(m.toastList)-maxToasts, 0)
	var lines []string
	for _, t := range m.toastList[start:] {
		var line string
		switch {
		case t.Running():
			line = styles.AccentText.Render("… "+t.Title) + styles.FaintText.Render("  ctrl+x cancel")
		case t.Level == notify.LevelError:
			line = styles.DangerText.Render("✗ " + t.Title)
		default:
			line = styles.SuccessText.Render("✓ " + t.Title)
		}
		if t.Body != "" {
			line += "  " + styles.MutedText.Render(t.Body)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.status != "" {
		return styles.Footer.Width(max(m.width, 1)).Render(styles.DangerText.Render(m.status))
	}
	var hints []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	return styles.Footer.Width(max(m.width, 1)).Render(strings.Join(hints, " · "))
}

// row renders one list line with selection and highlight backgrounds.
func (m Model) row(text string, selected, highlighted bool) string {
	styles := m.theme.Styles()
	switch {
	case selected:
		return styles.Selected.Render(text)
	case highlighted:
		return styles.Highlighted.Render(text)
	default:
		return styles.Text.Render(text)
	}
}

func pair(styles Styles, k, v string) string {
	if v == "" {
		v = "-"
	}
	return styles.MutedText.Width(12).Render(k) + styles.Text.Render(v)
}

func statusCounts(c *model.Clan) map[model.MachineStatus]int {
	out := make(map[model.MachineStatus]int)
	for _, mc := range c.Machines.All {
		out[mc.Status]++
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
