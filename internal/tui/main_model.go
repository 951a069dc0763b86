package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"deep-research/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// phase tracks where a run sits in the workflow. The UI only walks forward:
// topic, questions, the search loop, then the report (or the failure outcome
// in its place).
type phase int

const (
	phaseTopic phase = iota
	phaseQuestions
	phaseResearch
	phaseReport
)

func (p phase) String() string {
	switch p {
	case phaseTopic:
		return "TOPIC"
	case phaseQuestions:
		return "QUESTIONS"
	case phaseResearch:
		return "RESEARCH"
	default:
		return "REPORT"
	}
}

type spinMsg struct{}

type researchEventMsg struct{ ev app.ResearchEvent }

type clarifiedMsg struct {
	sess *app.ResearchSession
	err  error
}

type flowDoneMsg struct {
	result *app.ResearchResult
	report string
	err    error
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// runInfo is the side-pane state, maintained from events so the view never
// reads session fields the engine goroutine is still writing.
type runInfo struct {
	Goal     string
	Attempt  int
	Searched int
	Verdicts []string
}

type MainModel struct {
	app      *app.Application
	mockMode bool

	theme Theme
	help  helpModel

	width  int
	height int
	ready  bool

	phase phase

	sess       *app.ResearchSession
	result     *app.ResearchResult
	reportText string

	topicInput textarea.Model
	form       questionsForm
	vp         viewport.Model

	events []app.ResearchEvent
	info   runInfo

	showInfo bool
	showHelp bool

	markdown *MarkdownRenderer

	running    bool
	statusText string
	spinnerPos int
	cancel     context.CancelFunc
	eventsCh   chan app.ResearchEvent
	doneCh     chan tea.Msg

	savedPath string
	errText   string
}

func NewMainModel(application *app.Application, mockMode bool) *MainModel {
	ta := textarea.New()
	ta.Placeholder = "What should be researched? Enter starts."
	ta.Focus()
	ta.CharLimit = 500
	ta.SetHeight(1)
	ta.Prompt = " "
	ta.ShowLineNumbers = false

	// Keep textarea styling minimal; we style the input container instead.
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()

	t := NewTheme()
	m := &MainModel{
		app:        application,
		mockMode:   mockMode,
		theme:      t,
		help:       newHelpModel(),
		width:      100,
		height:     30,
		phase:      phaseTopic,
		topicInput: ta,
		showInfo:   true,
		markdown:   NewMarkdownRenderer(t),
		statusText: "Ready",
	}

	// Prefer a calmer default in small terminals.
	if os.Getenv("DEEPR_SHOW_INFO") == "0" {
		m.showInfo = false
	}

	return m
}

func (m *MainModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.help.SetWidth(m.width)

		layout := m.computeLayout()
		if !m.ready {
			m.vp = viewport.New(max(20, layout.MainW-4), max(3, layout.MainH-3))
			m.vp.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.vp.Width = max(20, layout.MainW-4)
			m.vp.Height = max(3, layout.MainH-3)
		}
		m.topicInput.SetWidth(max(10, layout.InputW))
		m.form.SetWidth(layout.MainW - 4)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.help.keys.Quit):
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit

		case key.Matches(msg, m.help.keys.Cancel):
			if m.running && m.cancel != nil {
				m.statusText = "Cancelling…"
				m.cancel()
				return m, nil
			}
			return m, tea.Quit

		case key.Matches(msg, m.help.keys.ToggleInfo):
			m.showInfo = !m.showInfo
			layout := m.computeLayout()
			if m.ready {
				m.vp.Width = max(20, layout.MainW-4)
				m.vp.Height = max(3, layout.MainH-3)
			}
			m.refreshViewport()
			return m, nil

		case key.Matches(msg, m.help.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		}

		// While the help screen covers the main pane, phase keys stay inert
		// so a stray Enter cannot drive the hidden form.
		if m.showHelp {
			return m, nil
		}

		switch m.phase {
		case phaseTopic:
			if key.Matches(msg, m.help.keys.Enter) {
				return m, m.onTopicEnter()
			}

		case phaseQuestions:
			switch {
			case key.Matches(msg, m.help.keys.NextField):
				m.form.Next()
				return m, nil
			case key.Matches(msg, m.help.keys.PrevField):
				m.form.Prev()
				return m, nil
			case key.Matches(msg, m.help.keys.Enter):
				if m.form.OnLast() || m.form.FirstBlank() == -1 {
					return m, m.onAnswersSubmit()
				}
				m.form.Next()
				return m, nil
			case msg.Type == tea.KeyDown:
				m.form.Next()
				return m, nil
			case msg.Type == tea.KeyUp:
				m.form.Prev()
				return m, nil
			}

		case phaseResearch, phaseReport:
			if m.phase == phaseReport {
				switch {
				case key.Matches(msg, m.help.keys.Save):
					m.onSaveReport()
					return m, nil
				case key.Matches(msg, m.help.keys.NewRun):
					m.resetForNewRun()
					return m, textarea.Blink
				}
			}
			switch msg.Type {
			case tea.KeyUp:
				m.vp.LineUp(1)
				return m, nil
			case tea.KeyDown:
				m.vp.LineDown(1)
				return m, nil
			case tea.KeyPgUp:
				m.vp.ViewUp()
				return m, nil
			case tea.KeyPgDown:
				m.vp.ViewDown()
				return m, nil
			}
		}

	case researchEventMsg:
		m.appendEvent(msg.ev)
		if m.running {
			return m, m.waitActivity()
		}
		return m, nil

	case clarifiedMsg:
		m.drainEvents()
		m.running = false
		m.cancel = nil
		m.eventsCh = nil
		m.doneCh = nil
		m.statusText = "Ready"

		if msg.err != nil {
			m.errText = msg.err.Error()
			appendTUIErrorLog("clarify", "", msg.err.Error())
			return m, nil
		}
		m.sess = msg.sess
		m.errText = ""
		m.form = newQuestionsForm(msg.sess.Questions)
		m.form.SetWidth(m.computeLayout().MainW - 4)
		m.topicInput.Blur()
		m.phase = phaseQuestions
		return m, textinput.Blink

	case flowDoneMsg:
		m.drainEvents()
		m.running = false
		m.cancel = nil
		m.eventsCh = nil
		m.doneCh = nil
		m.statusText = "Ready"

		m.result = msg.result
		m.reportText = msg.report
		m.phase = phaseReport
		if msg.err != nil {
			m.errText = msg.err.Error()
			runID := ""
			if m.sess != nil {
				runID = m.sess.ID
			}
			appendTUIErrorLog("research", runID, msg.err.Error())
		}
		m.refreshViewport()
		m.vp.GotoTop()
		return m, nil

	case spinMsg:
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		if m.running {
			return m, m.spinTick()
		}
	}

	var cmd tea.Cmd
	switch m.phase {
	case phaseTopic:
		m.topicInput, cmd = m.topicInput.Update(msg)
		cmds = append(cmds, cmd)
	case phaseQuestions:
		cmds = append(cmds, m.form.Update(msg))
	}

	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *MainModel) View() string {
	if !m.ready {
		return "…"
	}

	layout := m.computeLayout()
	top := m.renderTopBar()
	main := m.renderMain(layout)
	footer := m.renderFooter()

	if m.phase == phaseTopic {
		input := m.renderInputArea()
		return lipgloss.JoinVertical(lipgloss.Left, top, main, input, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, main, footer)
}

func (m *MainModel) onTopicEnter() tea.Cmd {
	topic := strings.TrimSpace(m.topicInput.Value())
	if topic == "" {
		m.errText = "The topic is empty. Name something to research first."
		return nil
	}

	// Keep the /connect flow available before a run starts.
	if strings.HasPrefix(topic, "/connect") {
		cfg, _ := app.LoadConfig(app.DefaultConfigPath())
		wizard := NewSetupWizard(&cfg)
		p := tea.NewProgram(wizard)
		if _, err := p.Run(); err != nil {
			m.errText = fmt.Sprintf("connection error: %v", err)
		} else if wizard.Saved() {
			m.app.ReloadClient(wizard.GetConfig())
			m.mockMode = false
			m.errText = ""
			m.statusText = "Connected"
		}
		m.topicInput.Reset()
		return nil
	}

	if m.running {
		return nil
	}

	m.errText = ""
	m.running = true
	m.statusText = "Asking clarifying questions…"
	m.spinnerPos = 0

	return m.startActivity(func(ctx context.Context, sink app.EventSink) tea.Msg {
		sess, err := m.app.StartSession(ctx, topic, sink)
		return clarifiedMsg{sess: sess, err: err}
	})
}

func (m *MainModel) onAnswersSubmit() tea.Cmd {
	if i := m.form.FirstBlank(); i >= 0 {
		m.form.SetWarning(fmt.Sprintf("Answer %d is empty. Every question needs an answer before planning.", i+1))
		m.form.Focus(i)
		return nil
	}
	m.form.SetWarning("")
	answers := m.form.Answers()
	sess := m.sess

	m.phase = phaseResearch
	m.running = true
	m.statusText = "Planning…"
	m.spinnerPos = 0
	m.refreshViewport()

	return m.startActivity(func(ctx context.Context, sink app.EventSink) tea.Msg {
		if err := m.app.PlanSession(ctx, sess, answers, sink); err != nil {
			return flowDoneMsg{err: err}
		}
		result, err := m.app.RunResearch(ctx, sess, sink)
		if err != nil {
			return flowDoneMsg{err: err}
		}
		if result.Status == app.RunConverged {
			report, err := m.app.GenerateReport(ctx, sess, sink)
			if err != nil {
				return flowDoneMsg{result: result, err: err}
			}
			return flowDoneMsg{result: result, report: report}
		}
		return flowDoneMsg{result: result}
	})
}

// startActivity launches run on its own goroutine and wires its events and
// final message back into the update loop.
func (m *MainModel) startActivity(run func(ctx context.Context, sink app.EventSink) tea.Msg) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	events := make(chan app.ResearchEvent, 256)
	done := make(chan tea.Msg, 1)
	m.eventsCh = events
	m.doneCh = done

	sink := func(ev app.ResearchEvent) {
		select {
		case events <- ev:
		default:
			// Drop if the UI can't keep up; the timeline is best-effort.
		}
	}

	go func() {
		msg := run(ctx, sink)
		done <- msg
		close(events)
	}()

	return tea.Batch(m.waitActivity(), m.spinTick())
}

func (m *MainModel) waitActivity() tea.Cmd {
	events := m.eventsCh
	done := m.doneCh
	return func() tea.Msg {
		if events == nil || done == nil {
			return nil
		}
		select {
		case ev, ok := <-events:
			if ok {
				return researchEventMsg{ev: ev}
			}
			// Events channel closed; the final message is already queued.
			return <-done
		case d := <-done:
			return d
		}
	}
}

// drainEvents flushes events still buffered when the final message overtook
// them, so the timeline keeps its tail.
func (m *MainModel) drainEvents() {
	for m.eventsCh != nil {
		select {
		case ev, ok := <-m.eventsCh:
			if !ok {
				m.eventsCh = nil
				return
			}
			m.appendEvent(ev)
		default:
			return
		}
	}
}

func (m *MainModel) spinTick() tea.Cmd {
	// Reduced motion option.
	d := 90 * time.Millisecond
	if os.Getenv("DEEPR_REDUCE_MOTION") == "1" {
		d = 250 * time.Millisecond
	}
	return tea.Tick(d, func(_ time.Time) tea.Msg { return spinMsg{} })
}

func (m *MainModel) appendEvent(ev app.ResearchEvent) {
	m.events = append(m.events, ev)

	switch ev.Kind {
	case app.EventClarified:
		m.statusText = "Questions ready"
	case app.EventPlanned:
		m.info.Goal = ev.Detail
		m.statusText = "Searching…"
	case app.EventSearchStart:
		if ev.Attempt != m.info.Attempt {
			m.info.Attempt = ev.Attempt
			m.info.Searched = 0
		}
		m.statusText = "Searching: " + truncateForTimeline(ev.Query, 40)
	case app.EventSearchDone:
		m.info.Searched++
	case app.EventEvaluated:
		verdict := "goal not met"
		if strings.EqualFold(strings.TrimSpace(ev.Detail), "yes") {
			verdict = "goal met"
			m.statusText = "Writing report…"
		} else {
			m.statusText = "Regenerating queries…"
		}
		m.info.Verdicts = append(m.info.Verdicts, fmt.Sprintf("attempt %d: %s", ev.Attempt, verdict))
	case app.EventReportReady:
		m.statusText = "Report ready"
	}

	m.refreshViewport()
}

func (m *MainModel) refreshViewport() {
	if !m.ready {
		return
	}
	layout := m.computeLayout()
	width := max(20, layout.MainW-4)

	switch m.phase {
	case phaseResearch:
		content := FormatTimeline(m.events)
		if content == "" {
			content = m.theme.Neutral.Render("Waiting for the first event…")
		}
		m.vp.SetContent(content)
		m.vp.GotoBottom()
	case phaseReport:
		m.vp.SetContent(m.renderOutcome(width))
	}
}

func (m *MainModel) renderOutcome(width int) string {
	if m.errText != "" {
		return m.theme.Bad.Width(width).Render("The run failed: "+m.errText) + "\n\n" +
			m.theme.Neutral.Render("Press n to start over.")
	}
	if m.result != nil && m.result.Status == app.RunExhausted {
		msg := fmt.Sprintf("No convergence after %d attempts. The evaluator never accepted a collected set.", m.result.Attempts)
		return m.theme.Warning.Width(width).Render(msg) + "\n\n" +
			m.theme.Neutral.Width(width).Render("Raise max_attempts in the config or narrow the topic, then press n to try again.")
	}
	if strings.TrimSpace(m.reportText) == "" {
		return m.theme.Neutral.Render("No report.")
	}
	return m.markdown.Render(m.reportText, width)
}

func (m *MainModel) onSaveReport() {
	if m.sess == nil || strings.TrimSpace(m.sess.Report) == "" {
		return
	}
	path, err := m.app.SaveReportFile(m.sess, "")
	if err != nil {
		m.errText = err.Error()
		appendTUIErrorLog("save-report", m.sess.ID, err.Error())
		return
	}
	m.savedPath = path
	m.statusText = "Saved " + path
}

func (m *MainModel) resetForNewRun() {
	m.phase = phaseTopic
	m.sess = nil
	m.result = nil
	m.reportText = ""
	m.errText = ""
	m.savedPath = ""
	m.events = nil
	m.info = runInfo{}
	m.statusText = "Ready"
	m.form = questionsForm{}
	m.topicInput.Reset()
	m.topicInput.Focus()
	m.refreshViewport()
}

type layoutInfo struct {
	TopH  int
	FootH int

	MainH int
	MainW int

	InfoW int

	InputH int
	InputW int
}

func (m *MainModel) computeLayout() layoutInfo {
	top := 1
	foot := 1
	inputH := 0
	if m.phase == phaseTopic {
		inputH = 3
	}
	mainH := m.height - top - foot - inputH
	if mainH < 3 {
		mainH = 3
	}

	showInfo := m.showInfo && m.width >= 100 && m.phase >= phaseResearch
	mainW := m.width
	infoW := 0
	if showInfo {
		gap := 1
		mainW = int(float64(m.width-gap) * 0.62)
		if mainW < 50 {
			mainW = 50
		}
		infoW = m.width - gap - mainW
		if infoW < 32 {
			infoW = 32
			mainW = m.width - gap - infoW
		}
	}

	return layoutInfo{
		TopH: top, FootH: foot,
		MainH: mainH, MainW: mainW,
		InfoW:  infoW,
		InputH: inputH,
		InputW: mainW - 4,
	}
}

func (m *MainModel) renderTopBar() string {
	left := m.theme.TopBarTitle.Render("deepr") + " " + m.theme.TopBarBadge.Render(m.phase.String())
	if m.mockMode {
		left += " " + m.theme.TopBarMeta.Render("mock")
	}
	status := m.statusText
	if m.running {
		status = spinnerFrames[m.spinnerPos] + " " + m.statusText
		status = m.theme.Spinner.Render(status)
	} else {
		status = m.theme.TopBarMeta.Render(status)
	}
	right := m.theme.TopBarMeta.Render(time.Now().Format("15:04"))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(status) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	a := gap / 2
	b := gap - a
	return m.theme.TopBar.Render(left + strings.Repeat(" ", a) + status + strings.Repeat(" ", b) + right)
}

func (m *MainModel) renderFooter() string {
	if m.showHelp {
		return m.theme.Footer.Width(m.width).Render("Alt+H close help")
	}
	var hints string
	switch m.phase {
	case phaseTopic:
		hints = "Enter start  /connect setup  Alt+H help  Ctrl+C quit"
	case phaseQuestions:
		hints = "Tab next  Shift+Tab back  Enter submit on last  Ctrl+C quit"
	case phaseResearch:
		hints = "Ctrl+C cancel  Ctrl+T run pane  Alt+H help  ↑/↓ scroll"
	default:
		hints = "s save report  n new research  ↑/↓ scroll  Ctrl+C quit"
	}
	return m.theme.Footer.Width(m.width).Render(hints)
}

func (m *MainModel) renderMain(l layoutInfo) string {
	var pane string
	if m.showHelp {
		pane = m.theme.Pane.Width(l.MainW).Height(l.MainH).Render(m.help.View())
	} else {
		switch m.phase {
		case phaseTopic:
			pane = m.renderTopicPane(l)
		case phaseQuestions:
			pane = m.renderQuestionsPane(l)
		default:
			pane = m.renderViewportPane(l)
		}
	}

	if l.InfoW > 0 && m.phase >= phaseResearch {
		info := m.renderInfoPane(l)
		sep := m.theme.PaneDivider.Render("│")
		return lipgloss.JoinHorizontal(lipgloss.Top, pane, sep, info)
	}
	return pane
}

func (m *MainModel) renderTopicPane(l layoutInfo) string {
	t := m.theme
	w := max(20, l.MainW-4)

	var b strings.Builder
	b.WriteString(t.PaneTitle.Render("Research topic"))
	b.WriteString("\n\n")
	b.WriteString(t.Value.Width(w).Render("Name the topic to research. Clarifying questions come first, then searches run until the goal is met and a report is written."))
	if m.mockMode {
		b.WriteString("\n\n")
		b.WriteString(t.Warning.Width(w).Render("Mock mode: replies are canned. Use /connect to configure an API key."))
	}
	if m.errText != "" {
		b.WriteString("\n\n")
		b.WriteString(t.Bad.Width(w).Render("error: " + m.errText))
	}
	return t.Pane.Width(l.MainW).Height(l.MainH).Render(b.String())
}

func (m *MainModel) renderInputArea() string {
	box := m.theme.InputBoxF
	if m.running {
		box = m.theme.InputBox
	}
	return box.Width(max(10, m.width-2)).Render(m.topicInput.View())
}

func (m *MainModel) renderQuestionsPane(l layoutInfo) string {
	title := m.theme.PaneTitleF.Render(fmt.Sprintf("Clarifying questions (%d)", len(m.form.questions)))
	content := m.form.View(m.theme, max(20, l.MainW-4))
	return m.theme.PaneFocused.Width(l.MainW).Height(l.MainH).Render(title + "\n\n" + content)
}

func (m *MainModel) renderViewportPane(l layoutInfo) string {
	titleText := "Research"
	if m.phase == phaseReport {
		titleText = "Report"
		if m.result != nil && m.result.Status == app.RunExhausted {
			titleText = "Not converged"
		}
		if m.errText != "" {
			titleText = "Failed"
		}
	}
	title := m.theme.PaneTitle.Render(titleText)
	return m.theme.Pane.Width(l.MainW).Height(l.MainH).Render(title + "\n" + m.vp.View())
}

func (m *MainModel) renderInfoPane(l layoutInfo) string {
	t := m.theme
	w := max(16, l.InfoW-6)

	var b strings.Builder
	b.WriteString(t.PaneTitle.Render("Run"))
	b.WriteString("\n\n")

	topic := ""
	if m.sess != nil {
		topic = m.sess.Topic
	}
	b.WriteString(t.Label.Render("Topic"))
	b.WriteString("\n")
	b.WriteString(t.Value.Width(w).Render(topic))
	b.WriteString("\n\n")

	if m.info.Goal != "" {
		b.WriteString(t.Label.Render("Goal"))
		b.WriteString("\n")
		b.WriteString(t.Value.Width(w).Render(truncateForTimeline(m.info.Goal, 200)))
		b.WriteString("\n\n")
	}

	if m.info.Attempt > 0 {
		b.WriteString(t.Label.Render("Attempt "))
		b.WriteString(t.Value.Render(fmt.Sprintf("%d/%d", m.info.Attempt, m.app.Config.MaxAttempts)))
		b.WriteString("\n")
		b.WriteString(t.Label.Render("Searches "))
		b.WriteString(t.Value.Render(fmt.Sprintf("%d done", m.info.Searched)))
		b.WriteString("\n\n")
	}

	for _, v := range m.info.Verdicts {
		style := t.Bad
		if strings.HasSuffix(v, "goal met") {
			style = t.Good
		}
		b.WriteString(style.Render("• " + v))
		b.WriteString("\n")
	}

	if m.savedPath != "" {
		b.WriteString("\n")
		b.WriteString(t.Good.Width(w).Render("Saved: " + m.savedPath))
		b.WriteString("\n")
	}

	return t.Pane.Width(l.InfoW).Height(l.MainH).Render(b.String())
}
