package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// field is one labelled text input of a form.
type field struct {
	label string
	input textinput.Model
}

// form is a vertical list of text inputs with one focused field.
type form struct {
	fields []field
	focus  int
}

func (f *form) add(label, value string, hidden bool) {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 256
	in.Width = 40
	in.SetValue(value)
	if hidden {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	if len(f.fields) == f.focus {
		in.Focus()
	}
	f.fields = append(f.fields, field{label: label, input: in})
}

func (f *form) value(i int) string {
	if i < 0 || i >= len(f.fields) {
		return ""
	}
	return f.fields[i].input.Value()
}

func (f *form) setFocus(i int) {
	if len(f.fields) == 0 {
		return
	}
	i = (i + len(f.fields)) % len(f.fields)
	f.fields[f.focus].input.Blur()
	f.focus = i
	f.fields[f.focus].input.Focus()
}

// update moves the focus on field keys and feeds everything else to the
// focused input.
func (f *form) update(msg tea.Msg, keys keyMap) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, keys.NextField):
			f.setFocus(f.focus + 1)
			return nil
		case key.Matches(k, keys.PrevField):
			f.setFocus(f.focus - 1)
			return nil
		}
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

func (f *form) view(styles Styles) string {
	var b strings.Builder
	for i, fl := range f.fields {
		label := styles.MutedText.Width(14).Render(fl.label)
		if i == f.focus {
			label = styles.AccentText.Width(14).Render(fl.label)
		}
		b.WriteString(label)
		b.WriteString(fl.input.View())
		b.WriteString("\n")
	}
	return b.String()
}

// splitList parses a comma separated list, dropping empty entries.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// modalFrame centers body in a bordered box with a title and an optional
// error line.
func modalFrame(theme Theme, width, height int, title, body string, err error) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(title))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 50)))
	b.WriteString("\n\n")
	b.WriteString(body)
	if err != nil {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(err.Error()))
		b.WriteString("\n")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Width(60)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
