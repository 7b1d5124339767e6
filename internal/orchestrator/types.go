// Package orchestrator implements the Orchestrator Actor (C5): the
// concurrency nerve-center that serializes requests onto a single
// active worker at a time, and exposes cancellation and
// connection-switch reset semantics to the front-end.
package orchestrator

import (
	"github.com/jordigilh/glance/internal/command"
	"github.com/jordigilh/glance/internal/safety"
)

// RequestKind distinguishes the kinds of work a front-end line of
// input can become: raw SQL, a natural-language prompt, a connection
// switch, or any other slash command.
type RequestKind string

const (
	RequestSQL     RequestKind = "sql"
	RequestPrompt  RequestKind = "prompt"
	RequestConnect RequestKind = "connect"
	RequestCommand RequestKind = "command"
)

// Request is one unit of work submitted to the actor's queue.
type Request struct {
	ID   string
	Kind RequestKind

	SQL            string // RequestSQL: SQL to classify and execute
	Level          safety.Level
	Prompt         string // RequestPrompt: natural-language input
	ConnectionName string // RequestConnect: profile to switch to
	Command        *command.Command // RequestCommand: every slash command but /sql, /connect, /quit

	Confirmed bool // true once a ConfirmationRequired has been accepted by the user
}

// EventKind enumerates the outbound notifications the actor posts as a
// request progresses.
type EventKind string

const (
	EventQueued               EventKind = "queued"
	EventStarted               EventKind = "started"
	EventResult                EventKind = "result"
	EventError                 EventKind = "error"
	EventCancelled              EventKind = "cancelled"
	EventQueueFull              EventKind = "queue_full"
	EventConfirmationRequired   EventKind = "confirmation_required"
	EventConnectionSwitched     EventKind = "connection_switched"
	EventConnectionSwitchFailed EventKind = "connection_switch_failed"
	EventSetInput               EventKind = "set_input"
	EventCleared                EventKind = "cleared"
)

// Event is one outbound notification posted to the front-end channel.
type Event struct {
	RequestID string
	Kind      EventKind

	Message string
	Error   error

	SQL   string
	Level safety.Level

	SavedQueryID string // EventSetInput: back-reference to the saved query, if any

	Result interface{} // *dbgateway.Result for RequestSQL completions
}

// RouterResult adapts command.InputResult into the same outbound Event
// shape so a front-end has a single channel to read from regardless of
// whether a line was a slash command or a natural-language prompt.
func RouterResult(requestID string, r command.InputResult) Event {
	switch r.Kind {
	case command.ResultMessage:
		return Event{RequestID: requestID, Kind: EventResult, Message: r.Text}
	case command.ResultError:
		return Event{RequestID: requestID, Kind: EventError, Message: r.Text}
	case command.ResultConfirmationRequired:
		return Event{RequestID: requestID, Kind: EventConfirmationRequired, SQL: r.SQL, Level: r.Level}
	case command.ResultSetInput:
		return Event{RequestID: requestID, Kind: EventSetInput, Message: r.Text, SavedQueryID: r.SavedQueryID}
	case command.ResultAck:
		return Event{RequestID: requestID, Kind: EventResult}
	default:
		return Event{RequestID: requestID, Kind: EventResult}
	}
}
