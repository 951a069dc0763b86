package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"deep-research/internal/app"
)

// SetupWizard walks through API key entry, model choice and confirmation,
// then persists the config. Run it as its own bubbletea program.
type SetupWizard struct {
	step      int
	apiKey    string
	model     string
	statusMsg string
	input     textinput.Model
	done      bool
	saved     bool
	cfg       *app.Config
	width     int
	height    int
	models    []string
	selected  int
}

func NewSetupWizard(cfg *app.Config) *SetupWizard {
	s := &SetupWizard{
		step:     0,
		models:   []string{app.ModelGPT41, app.ModelGPT4o},
		selected: 0,
		cfg:      cfg,
		input:    textinput.New(),
	}
	s.input.Placeholder = "sk-..."
	s.input.EchoMode = textinput.EchoPassword
	s.input.EchoCharacter = '•'
	s.input.Focus()
	return s
}

func (s *SetupWizard) Init() tea.Cmd {
	return textinput.Blink
}

func (s *SetupWizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			s.done = true
			return s, tea.Quit

		case "enter":
			switch s.step {
			case 0:
				s.apiKey = strings.TrimSpace(s.input.Value())
				if s.apiKey == "" {
					s.statusMsg = "Please enter an API key"
					break
				}
				if !strings.HasPrefix(s.apiKey, "sk-") {
					s.statusMsg = "Warning: OpenAI keys usually start with sk-"
				}
				s.step = 1
			case 1:
				s.model = s.models[s.selected]
				s.step = 2
			case 2:
				s.applyConfigSelections()
				if err := app.SaveConfig(*s.cfg, app.DefaultConfigPath()); err != nil {
					s.statusMsg = fmt.Sprintf("Error saving config: %v", err)
				} else {
					s.statusMsg = "Configuration saved"
					s.saved = true
					s.done = true
					return s, tea.Quit
				}
			}

		case "up", "k":
			if s.step == 1 && s.selected > 0 {
				s.selected--
			} else if s.step > 0 && s.step != 1 {
				s.step--
			}
		case "down", "j":
			if s.step == 1 && s.selected < len(s.models)-1 {
				s.selected++
			}

		default:
			if s.step == 0 {
				s.input, cmd = s.input.Update(msg)
				return s, cmd
			}
		}

	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
	}

	return s, cmd
}

// applyConfigSelections writes the wizard choices onto the config. The mini
// model follows the main one so clarifying stays on the cheap tier.
func (s *SetupWizard) applyConfigSelections() {
	s.cfg.OpenAIAPIKey = s.apiKey
	s.cfg.Model = s.model
	s.cfg.ModelMini = app.MiniFor(s.model)
	if s.cfg.BaseURL == "" {
		s.cfg.BaseURL = app.DefaultConfig().BaseURL
	}
	s.cfg.Installed = true
}

func (s *SetupWizard) View() string {
	if s.done {
		return ""
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#1F6FEB")).
		Padding(0, 2).
		Width(s.width - 4).
		Render("  deepr setup  ")

	var body string
	var progressBar string

	switch s.step {
	case 0:
		progressBar = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#46D1B7")).
			Render("▓▓▓▓▓▓▓░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░")
		body = fmt.Sprintf(`
Step 1 of 3: Enter API Key

Get your key from: https://platform.openai.com/api-keys

%s

API Key: %s

Enter to continue, Ctrl+C to cancel.
`, s.statusMsg, s.input.View())
		s.statusMsg = ""

	case 1:
		progressBar = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#46D1B7")).
			Render("▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░░")
		options := ""
		for i, m := range s.models {
			marker := "○"
			note := ""
			if i == s.selected {
				marker = "●"
			}
			if m == app.ModelGPT41 {
				note = " (recommended)"
			}
			options += fmt.Sprintf("  %s %s%s\n", marker, m, note)
		}
		body = fmt.Sprintf(`
Step 2 of 3: Select Model

%s
Clarifying questions run on the matching mini model.

Use ↑/↓ to select, Enter to confirm, ↑ from the top to go back.
`, options)

	case 2:
		progressBar = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#46D1B7")).
			Render("▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓▓")
		body = fmt.Sprintf(`
Step 3 of 3: Confirm Configuration

  ✓ Model:      %s
  ✓ Mini model: %s
  ✓ API Key:    %s

Configuration will be saved to:
%s

Use ↑ to go back, Enter to save, Ctrl+C to cancel.
`, s.model, app.MiniFor(s.model), maskKey(s.apiKey), app.DefaultConfigPath())
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Render("\n↑/↓ Navigate  |  Enter Confirm  |  Ctrl+C Cancel")

	content := header + "\n\n" + progressBar + "\n\n" + body + help

	paddingTop := max(0, (s.height-18)/2)
	paddingSides := max(0, (s.width-lipgloss.Width(content)-4)/2)

	result := strings.Repeat("\n", paddingTop)
	if paddingSides > 0 {
		result += strings.Repeat(" ", paddingSides)
	}
	result += content

	return lipgloss.NewStyle().
		Width(s.width).
		Height(s.height).
		Render(result)
}

// Done reports that the wizard exited, saved or not.
func (s *SetupWizard) Done() bool {
	return s.done
}

// Saved reports that a configuration was written.
func (s *SetupWizard) Saved() bool {
	return s.saved
}

func (s *SetupWizard) GetConfig() app.Config {
	return *s.cfg
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
