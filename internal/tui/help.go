package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

type helpModel struct {
	keys  keyMap
	width int
}

func newHelpModel() helpModel {
	return helpModel{
		keys:  defaultKeyMap(),
		width: 80,
	}
}

func (m *helpModel) SetWidth(width int) {
	m.width = width
}

// View renders the full help screen from the keymap itself, so the listed
// keys can never drift from the bindings the model actually matches on.
func (m helpModel) View() string {
	var b strings.Builder

	b.WriteString(helpTitleStyle.Render("deepr help"))
	b.WriteString("\n\n")

	b.WriteString(helpSectionStyle.Render("keys"))
	b.WriteString("\n")
	for _, row := range m.keys.FullHelp() {
		for _, binding := range row {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %s  %s\n", helpKeyStyle.Render(h.Key), h.Desc))
		}
		b.WriteString("\n")
	}

	b.WriteString(helpSectionStyle.Render("setup"))
	b.WriteString("\n")
	b.WriteString(helpDescriptionStyle.Render("  /connect  configure the OpenAI api key"))
	b.WriteString("\n")

	b.WriteString("\n")
	shorts := make([]string, 0, len(m.keys.ShortHelp()))
	for _, binding := range m.keys.ShortHelp() {
		h := binding.Help()
		shorts = append(shorts, h.Key+" "+h.Desc)
	}
	b.WriteString(helpFooterStyle.Render(strings.Join(shorts, " | ")))

	return b.String()
}

type keyMap struct {
	Quit       key.Binding
	Cancel     key.Binding
	Enter      key.Binding
	Help       key.Binding
	ToggleInfo key.Binding
	NextField  key.Binding
	PrevField  key.Binding
	Save       key.Binding
	NewRun     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q"),
			key.WithHelp("ctrl+q", "quit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "cancel run"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Help: key.NewBinding(
			key.WithKeys("alt+h"),
			key.WithHelp("alt+h", "toggle help"),
		),
		ToggleInfo: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "toggle run pane"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next answer"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous answer"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save report"),
		),
		NewRun: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new research"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.NextField, k.Help, k.Cancel, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Enter, k.NextField, k.PrevField, k.ToggleInfo, k.Help},
		{k.Save, k.NewRun, k.Cancel, k.Quit},
	}
}

// Minimal transparent styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7AA2FF"))

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#F4B27D"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#46D1B7"))

	helpDescriptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#9AA0A6"))

	helpFooterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Italic(true)
)
