package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campusnerd/cmd/campus/ui"
	"campusnerd/internal/agent"
	"campusnerd/internal/extract"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// chatCmd starts the interactive session
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat (default)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	// Steps are recorded on the question's goroutine and forwarded to the UI.
	var p *tea.Program
	a, err := newApp(cfg, agent.WithStepHook(func(step agent.Step) {
		if p != nil {
			p.Send(stepMsg{step: step})
		}
	}))
	if err != nil {
		return err
	}
	defer a.Close()

	m := newChatModel(a.agent.Answer)
	m.maxSteps = a.agent.MaxSteps()
	p = tea.NewProgram(m)
	_, err = p.Run()
	return err
}

// answerFunc runs one question; *agent.Agent.Answer satisfies it.
type answerFunc func(ctx context.Context, question string) (string, *agent.State, error)

type chatEntry struct {
	question string
	answer   string
	failed   bool
	steps    []agent.Step
}

type answerMsg struct {
	answer string
	state  *agent.State
	err    error
}

// stepMsg carries one recorded step of the running question.
type stepMsg struct {
	step agent.Step
}

type chatModel struct {
	answer   answerFunc
	input    textinput.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer
	width    int
	maxSteps int

	history   []chatEntry
	pending   string
	trace     []agent.Step
	showTrace bool
	busy      bool
	cancel    context.CancelFunc
}

func newChatModel(answer answerFunc) chatModel {
	styles := ui.DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask about your courses or deadlines... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "| "
	ti.CharLimit = 1024
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return chatModel{
		answer:   answer,
		input:    ti,
		spinner:  sp,
		styles:   styles,
		renderer: ui.NewRenderer(80),
		width:    80,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.busy {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyCtrlT:
			m.showTrace = !m.showTrace
			return m, nil
		case tea.KeyCtrlL:
			m.history = nil
			return m, nil
		case tea.KeyEsc:
			// Abort the running question; the loop stops at its next step.
			if m.busy {
				m.cancel()
			}
			return m, nil
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			if q := strings.ToLower(question); q == "exit" || q == "quit" {
				return m, tea.Quit
			}
			m.input.Reset()
			return m.ask(question)
		}

	case stepMsg:
		if m.busy {
			m.trace = append(m.trace, msg.step)
		}
		return m, nil

	case answerMsg:
		m.busy = false
		m.cancel = nil
		entry := entryFor(m.pending, msg)
		if entry.steps == nil {
			entry.steps = m.trace
		}
		m.history = append(m.history, entry)
		m.pending = ""
		m.trace = nil
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-4)
		m.renderer = ui.NewRenderer(max(20, msg.Width-4))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) ask(question string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.busy = true
	m.pending = question
	m.trace = nil
	m.cancel = cancel

	answer := m.answer
	run := func() tea.Msg {
		defer cancel()
		text, state, err := answer(ctx, question)
		return answerMsg{answer: text, state: state, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, run)
}

func entryFor(question string, msg answerMsg) chatEntry {
	e := chatEntry{question: question, answer: msg.answer}
	if msg.state != nil {
		e.steps = msg.state.Steps
	}
	switch {
	case msg.state == nil && msg.err != nil:
		e.answer, e.failed = msg.err.Error(), true
	case errors.Is(msg.err, extract.ErrAuthentication):
		e.failed = true
	case msg.state != nil && msg.state.Reason != agent.Answered:
		e.failed = true
	}
	return e
}

func (m chatModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("campus"))
	sb.WriteString(m.styles.Muted.Render("  courses & deadlines assistant"))
	sb.WriteString("\n\n")

	for _, e := range m.history {
		sb.WriteString(m.styles.Prompt.Render("You: "))
		sb.WriteString(e.question)
		sb.WriteString("\n")
		if m.showTrace {
			sb.WriteString(m.renderTrace(e.steps))
		}
		if e.failed {
			sb.WriteString(m.styles.Warning.Render(e.answer))
		} else {
			sb.WriteString(ui.Markdown(m.renderer, e.answer))
		}
		sb.WriteString("\n\n")
	}

	if m.busy {
		sb.WriteString(m.styles.Prompt.Render("You: "))
		sb.WriteString(m.pending)
		sb.WriteString("\n")
		if m.showTrace {
			sb.WriteString(m.renderTrace(m.trace))
		}
		sb.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), m.styles.Muted.Render("Thinking and consulting your dashboard... (Esc to stop)")))
	}

	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render(m.helpLine()))
	sb.WriteString("\n")
	return sb.String()
}

func (m chatModel) renderTrace(steps []agent.Step) string {
	var sb strings.Builder
	for _, step := range steps {
		sb.WriteString(formatStep(step, m.maxSteps, m.styles))
	}
	return sb.String()
}

func (m chatModel) helpLine() string {
	toggle := "Ctrl+T show reasoning"
	if m.showTrace {
		toggle = "Ctrl+T hide reasoning"
	}
	return toggle + " · Ctrl+L clear · exit or Ctrl+C to quit"
}
