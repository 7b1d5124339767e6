package headless

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jordigilh/glance/internal/command"
	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/orchestrator"
)

// Screen is the minimal surface a front-end must expose for headless
// assertions: the text currently visible, and the ability to resize.
type Screen interface {
	Render() string
	Resize(width, height int)
}

// Runner drives a Screen and an orchestrator.Actor through a sequence
// of DSL events, failing on the first assertion that doesn't hold.
type Runner struct {
	Actor  *orchestrator.Actor
	Screen Screen

	inputBuf      strings.Builder
	lastRequestID string
}

// Run executes events in order. It returns the index of the event
// that failed (or len(events) on success) and an error describing the
// failure, if any.
func (r *Runner) Run(ctx context.Context, events []Event) (int, error) {
	for i, e := range events {
		if err := r.runOne(ctx, e); err != nil {
			return i, err
		}
	}
	return len(events), nil
}

func (r *Runner) runOne(ctx context.Context, e Event) error {
	switch e.Kind {
	case EventType:
		r.inputBuf.WriteString(e.Text)
		return nil

	case EventKey:
		return r.applyKey(ctx, e)

	case EventCancel:
		id := e.Text
		if id == "" || id == "last" {
			id = r.lastRequestID
		}
		r.Actor.Cancel(id)
		return nil

	case EventWait:
		d, err := time.ParseDuration(e.Wait)
		if err != nil {
			return apperrors.ValidationError("wait", err.Error())
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case EventResize:
		r.Screen.Resize(e.Width, e.Height)
		return nil

	case EventAssertContains:
		if !strings.Contains(r.Screen.Render(), e.Text) {
			return fmt.Errorf("assert:contains %q failed", e.Text)
		}
		return nil

	case EventAssertNotContains:
		if strings.Contains(r.Screen.Render(), e.Text) {
			return fmt.Errorf("assert:not-contains %q failed", e.Text)
		}
		return nil

	case EventAssertMatches:
		if !e.Pattern.MatchString(r.Screen.Render()) {
			return fmt.Errorf("assert:matches %q failed", e.Pattern.String())
		}
		return nil

	case EventAssertState:
		snapshot, err := r.Actor.StatusSnapshot()
		if err != nil {
			return err
		}
		ok, err := EvalState(e, snapshot)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("assert:state %s=%s failed", e.StateField, e.StateValue)
		}
		return nil

	default:
		return fmt.Errorf("unhandled event kind %v", e.Kind)
	}
}

// applyKey handles the "enter" key by submitting the buffered input
// line to the command router and orchestrator; all other keys are
// line-editing no-ops in headless mode, since there is no real cursor.
func (r *Runner) applyKey(ctx context.Context, e Event) error {
	if e.Key != "enter" {
		return nil
	}
	line := r.inputBuf.String()
	r.inputBuf.Reset()

	if !strings.HasPrefix(line, "/") {
		id := requestID()
		r.lastRequestID = id
		r.Actor.Submit(orchestrator.Request{ID: id, Kind: orchestrator.RequestPrompt, Prompt: line})
		return nil
	}

	cmd, err := command.Parse(line)
	if err != nil {
		return nil
	}
	if cmd.Kind == command.KindQuit {
		return nil
	}

	id := requestID()
	r.lastRequestID = id
	r.Actor.Submit(requestFromCommand(id, cmd))
	return nil
}

// requestFromCommand mirrors the TUI's mapping from a parsed Command
// to an orchestrator Request: /sql and /connect get dedicated
// RequestKinds, everything else flows through RequestCommand to the
// dispatcher in internal/orchestrator/commands.go.
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

var requestCounter int

func requestID() string {
	requestCounter++
	return fmt.Sprintf("headless-%d", requestCounter)
}
