// Package tui implements the terminal chat panel started by `ragchat chat`.
// It drives the same pipeline controller and session holder as the HTTP
// server, so turn and reset semantics are identical on both surfaces.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/pipeline"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/session"
)

// Runner is the TUI-facing subset of the pipeline controller.
type Runner interface {
	Turn(ctx context.Context, sess chat.Session, input string, m chat.ModelIdentifier) (chat.Session, *pipeline.TurnResult, error)
	Greet(ctx context.Context, sess chat.Session, m chat.ModelIdentifier) (chat.Session, error)
	Reset(sess chat.Session) chat.Session
}

// turnDoneMsg is delivered when a turn finishes.
type turnDoneMsg struct {
	passages []rag.Passage
	err      error
}

// greetDoneMsg is delivered when the first-load greeting is ready.
type greetDoneMsg struct {
	greeting string
	err      error
}

const helpStatus = "ctrl+e edit instruction · ctrl+r reset · ctrl+c quit"

// Model is the Bubble Tea model for the chat panel.
type Model struct {
	ctx    context.Context
	runner Runner
	holder *session.Holder
	model  chat.ModelIdentifier

	input       textinput.Model
	instruction textarea.Model
	viewport    viewport.Model

	greeting   string
	pending    string
	sources    []rag.Passage
	status     string
	editing    bool
	processing bool
	ready      bool
}

// New creates the chat panel. Turns run on ctx with model m. Input stays
// locked until the greeting started by Init has been delivered, since the
// greeting holds the session for its duration.
func New(ctx context.Context, runner Runner, holder *session.Holder, m chat.ModelIdentifier) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	ta := textarea.New()
	ta.Placeholder = "System instruction"
	ta.ShowLineNumbers = false
	ta.SetHeight(5)

	return Model{
		ctx:         ctx,
		runner:      runner,
		holder:      holder,
		model:       m,
		input:       ti,
		instruction: ta,
		viewport:    viewport.New(0, 0),
		status:      "loading greeting...",
		processing:  true,
	}
}

// Init starts the cursor blink and requests the greeting.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.greetCmd())
}

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptBoxStyle.GetFrameSize()
		reserved := 3 + bh
		if m.editing {
			reserved += m.instruction.Height() + 2
		}
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.input.Width = max(10, msg.Width-4)
		m.instruction.SetWidth(max(20, msg.Width-2))
		m.refresh()
		return m, nil

	case greetDoneMsg:
		m.processing = false
		m.greeting = msg.greeting
		m.status = helpStatus
		if msg.err != nil {
			m.status = "greeting unavailable: " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case turnDoneMsg:
		m.processing = false
		m.pending = ""
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.sources = nil
		} else {
			m.status = "ready"
			m.sources = msg.passages
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyCtrlE:
			return m.toggleEditing()
		case tea.KeyCtrlR:
			if m.processing {
				return m, nil
			}
			if err := m.holder.Update(m.runner.Reset); err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.sources = nil
			m.status = "conversation cleared"
			m.refresh()
			return m, nil
		}

		if m.processing {
			return m, nil
		}

		if m.editing {
			var cmd tea.Cmd
			m.instruction, cmd = m.instruction.Update(msg)
			return m, cmd
		}

		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.processing = true
			m.pending = q
			m.status = "thinking..."
			m.refresh()
			return m, m.turnCmd(q)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the transcript, the input (or instruction editor) and the
// status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("ragchat") + " " + mutedStyle.Render(string(m.model))
	body := transcriptBoxStyle.Render(m.viewport.View())
	var input string
	if m.editing {
		input = mutedStyle.Render("instruction (ctrl+e to save)") + "\n" + m.instruction.View()
	} else {
		input = m.input.View()
	}
	return header + "\n" + body + "\n" + input + "\n" + statusStyle.Render(m.status)
}

// toggleEditing switches between the question input and the instruction
// editor. Leaving the editor stores the edited instruction.
func (m Model) toggleEditing() (tea.Model, tea.Cmd) {
	if m.processing {
		return m, nil
	}
	if !m.editing {
		sess, _ := m.holder.Snapshot()
		m.instruction.SetValue(sess.Instruction)
		m.input.Blur()
		m.editing = true
		cmd := m.instruction.Focus()
		return m, cmd
	}
	if err := m.holder.SetInstruction(m.instruction.Value()); err != nil {
		m.status = "Error: " + err.Error()
		return m, nil
	}
	m.instruction.Blur()
	m.editing = false
	m.status = "instruction updated"
	cmd := m.input.Focus()
	return m, cmd
}

// turnCmd runs one turn off the UI goroutine.
func (m Model) turnCmd(q string) tea.Cmd {
	ctx, runner, holder, model := m.ctx, m.runner, m.holder, m.model
	return func() tea.Msg {
		sess, err := holder.Begin()
		if err != nil {
			return turnDoneMsg{err: err}
		}
		next, res, err := runner.Turn(ctx, sess, q, model)
		holder.End(next)
		if err != nil {
			return turnDoneMsg{err: err}
		}
		return turnDoneMsg{passages: res.Passages}
	}
}

// greetCmd generates or fetches the cached greeting.
func (m Model) greetCmd() tea.Cmd {
	ctx, runner, holder, model := m.ctx, m.runner, m.holder, m.model
	return func() tea.Msg {
		sess, err := holder.Begin()
		if err != nil {
			return greetDoneMsg{err: err}
		}
		next, err := runner.Greet(ctx, sess, model)
		holder.End(next)
		return greetDoneMsg{greeting: next.Greeting, err: err}
	}
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

// render builds the transcript text from the stored session.
func (m Model) render() string {
	sess, _ := m.holder.Snapshot()
	width := max(20, m.viewport.Width-2)
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	if m.greeting != "" {
		b.WriteString(assistantStyle.Render("Assistant: "))
		b.WriteString(wrap.Render(m.greeting))
		b.WriteString("\n\n")
	}
	for _, u := range sess.Transcript.Utterances() {
		switch u.Role {
		case chat.RoleUser:
			b.WriteString(userStyle.Render("You: "))
		default:
			b.WriteString(assistantStyle.Render("Assistant: "))
		}
		b.WriteString(wrap.Render(u.Content))
		b.WriteString("\n\n")
	}
	if m.pending != "" {
		b.WriteString(userStyle.Render("You: "))
		b.WriteString(wrap.Render(m.pending))
		b.WriteString("\n\n")
	}
	if len(m.sources) > 0 {
		labels := make([]string, 0, len(m.sources))
		for _, p := range m.sources {
			if p.SourceLabel != "" {
				labels = append(labels, p.SourceLabel)
			}
		}
		if len(labels) > 0 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("Sources: %s", strings.Join(labels, ", "))))
		}
	}
	return b.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle        = lipgloss.NewStyle().Bold(true)
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
