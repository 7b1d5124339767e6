// Package tui is the interactive front-end: a thin bubbletea adapter
// over the orchestrator actor. It owns no business logic of its own —
// every keystroke either edits the input line or is handed to the
// command router / orchestrator, and every rendered line comes from an
// orchestrator event.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jordigilh/glance/internal/command"
	"github.com/jordigilh/glance/internal/orchestrator"
	"github.com/jordigilh/glance/internal/telemetry"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

type eventMsg orchestrator.Event

// Model is the bubbletea model driving the session.
type Model struct {
	actor   *orchestrator.Actor
	metrics *telemetry.Metrics

	input   string
	history []string
	width   int
	height  int

	requestSeq int
	pending    map[string]bool
	activeID   string
}

func New(actor *orchestrator.Actor, metrics *telemetry.Metrics) Model {
	return Model{actor: actor, metrics: metrics, pending: make(map[string]bool)}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.actor)
}

func waitForEvent(actor *orchestrator.Actor) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-actor.Events())
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		e := orchestrator.Event(msg)
		m.recordMetrics(e)
		switch e.Kind {
		case orchestrator.EventSetInput:
			m.input = e.Message
		case orchestrator.EventCleared:
			m.history = nil
		default:
			m.history = append(m.history, renderEvent(e))
		}
		delete(m.pending, e.RequestID)
		if m.activeID == e.RequestID && isTerminalEvent(e.Kind) {
			m.activeID = ""
		}
		return m, waitForEvent(m.actor)
	}
	return m, nil
}

// isTerminalEvent reports whether e.Kind ends the request it belongs
// to, as opposed to EventQueued/EventStarted/EventCleared which are
// followed by a further event carrying the same RequestID.
func isTerminalEvent(kind orchestrator.EventKind) bool {
	switch kind {
	case orchestrator.EventResult,
		orchestrator.EventError,
		orchestrator.EventCancelled,
		orchestrator.EventQueueFull,
		orchestrator.EventConfirmationRequired,
		orchestrator.EventConnectionSwitched,
		orchestrator.EventConnectionSwitchFailed,
		orchestrator.EventSetInput:
		return true
	default:
		return false
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		if m.activeID != "" {
			m.actor.Cancel(m.activeID)
			return m, nil
		}
		return m, tea.Quit
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input)
	m.input = ""
	if line == "" {
		return m, nil
	}
	m.history = append(m.history, promptStyle.Render("> ")+line)

	m.requestSeq++
	id := fmt.Sprintf("tui-%d", m.requestSeq)

	if strings.HasPrefix(line, "/") {
		cmd, err := command.Parse(line)
		if err != nil {
			m.history = append(m.history, errorStyle.Render(err.Error()))
			return m, nil
		}
		if cmd.Kind == command.KindQuit {
			return m, tea.Quit
		}
		req := requestFromCommand(id, cmd)
		m.pending[id] = true
		m.activeID = id
		m.actor.Submit(req)
		return m, nil
	}

	m.pending[id] = true
	m.activeID = id
	m.actor.Submit(orchestrator.Request{ID: id, Kind: orchestrator.RequestPrompt, Prompt: line})
	return m, nil
}

// requestFromCommand wraps every parsed Command into the Request the
// Orchestrator expects. /sql and /connect get their own RequestKinds
// since the actor needs their payload fields directly; every other
// slash command carries the parsed Command through RequestCommand for
// the dispatcher in internal/orchestrator/commands.go to act on.
func requestFromCommand(id string, c *command.Command) orchestrator.Request {
	switch c.Kind {
	case command.KindSQL:
		return orchestrator.Request{ID: id, Kind: orchestrator.RequestSQL, SQL: c.Text, Confirmed: c.Confirm}
	case command.KindConnect:
		return orchestrator.Request{ID: id, Kind: orchestrator.RequestConnect, ConnectionName: c.Name}
	default:
		return orchestrator.Request{ID: id, Kind: orchestrator.RequestCommand, Command: c}
	}
}

func (m Model) recordMetrics(e orchestrator.Event) {
	if m.metrics == nil {
		return
	}
	switch e.Kind {
	case orchestrator.EventResult:
		m.metrics.RequestsTotal.WithLabelValues("sql", "success").Inc()
	case orchestrator.EventError:
		m.metrics.RequestsTotal.WithLabelValues("sql", "error").Inc()
	case orchestrator.EventConfirmationRequired:
		m.metrics.SafetyLevel.WithLabelValues(e.Level.String()).Inc()
	}
}

func renderEvent(e orchestrator.Event) string {
	switch e.Kind {
	case orchestrator.EventResult:
		return fmt.Sprintf("%v", e.Result)
	case orchestrator.EventError:
		return errorStyle.Render(e.Message)
	case orchestrator.EventConfirmationRequired:
		return dimStyle.Render(fmt.Sprintf("confirmation required (%s): re-run with --confirm", e.Level))
	case orchestrator.EventConnectionSwitched:
		return dimStyle.Render(e.Message)
	case orchestrator.EventConnectionSwitchFailed:
		return errorStyle.Render(e.Message)
	case orchestrator.EventCancelled:
		return dimStyle.Render("cancelled")
	default:
		return e.Message
	}
}

func (m Model) View() string {
	var b strings.Builder
	start := 0
	maxLines := m.height - 2
	if maxLines > 0 && len(m.history) > maxLines {
		start = len(m.history) - maxLines
	}
	for _, line := range m.history[start:] {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(promptStyle.Render("glance> ") + m.input)
	return b.String()
}
