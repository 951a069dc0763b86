package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// questionsForm collects one answer per clarifying question. Planning needs
// every field filled, so submission is refused while any answer is blank.
type questionsForm struct {
	questions []string
	inputs    []textinput.Model
	focus     int
	warning   string
}

func newQuestionsForm(questions []string) questionsForm {
	inputs := make([]textinput.Model, len(questions))
	for i := range questions {
		in := textinput.New()
		in.Placeholder = "your answer"
		in.Prompt = "> "
		in.CharLimit = 500
		if i == 0 {
			in.Focus()
		}
		inputs[i] = in
	}
	return questionsForm{questions: questions, inputs: inputs}
}

func (f *questionsForm) SetWidth(w int) {
	for i := range f.inputs {
		f.inputs[i].Width = max(10, w-6)
	}
}

func (f *questionsForm) Focus(i int) {
	if i < 0 || i >= len(f.inputs) {
		return
	}
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	f.focus = i
	f.inputs[i].Focus()
}

func (f *questionsForm) Next() {
	if len(f.inputs) == 0 {
		return
	}
	f.Focus((f.focus + 1) % len(f.inputs))
}

func (f *questionsForm) Prev() {
	if len(f.inputs) == 0 {
		return
	}
	f.Focus((f.focus - 1 + len(f.inputs)) % len(f.inputs))
}

// OnLast reports whether focus sits on the final question, where Enter
// submits instead of advancing.
func (f *questionsForm) OnLast() bool {
	return len(f.inputs) > 0 && f.focus == len(f.inputs)-1
}

func (f *questionsForm) Answers() []string {
	out := make([]string, len(f.inputs))
	for i := range f.inputs {
		out[i] = strings.TrimSpace(f.inputs[i].Value())
	}
	return out
}

// FirstBlank returns the index of the first unanswered question, or -1 when
// the form is complete.
func (f *questionsForm) FirstBlank() int {
	for i := range f.inputs {
		if strings.TrimSpace(f.inputs[i].Value()) == "" {
			return i
		}
	}
	return -1
}

func (f *questionsForm) SetWarning(s string) {
	f.warning = s
}

func (f *questionsForm) Update(msg tea.Msg) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *questionsForm) View(t Theme, width int) string {
	var b strings.Builder
	for i := range f.questions {
		// Question lines keep whatever numbering the model produced.
		qStyle := t.Value
		if i == f.focus {
			qStyle = t.Label
		}
		b.WriteString(qStyle.Width(max(20, width)).Render(f.questions[i]))
		b.WriteString("\n")
		b.WriteString("  " + f.inputs[i].View())
		b.WriteString("\n\n")
	}
	if f.warning != "" {
		b.WriteString(t.Warning.Render(f.warning))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
