// Package command implements the Command Router (C6): parsing a
// leading-`/` line of input into a typed command and the five
// InputResult variants handlers return.
package command

import (
	"github.com/jordigilh/glance/internal/safety"
)

// Kind enumerates the recognized slash commands.
type Kind string

const (
	KindSQL          Kind = "sql"
	KindClear        Kind = "clear"
	KindSchema       Kind = "schema"
	KindHelp         Kind = "help"
	KindQuit         Kind = "quit"
	KindConnections  Kind = "connections"
	KindConnect      Kind = "connect"
	KindConnAdd      Kind = "conn_add"
	KindConnEdit     Kind = "conn_edit"
	KindConnDelete   Kind = "conn_delete"
	KindHistory      Kind = "history"
	KindHistoryClear Kind = "history_clear"
	KindSaveQuery    Kind = "savequery"
	KindQueries      Kind = "queries"
	KindUseQuery     Kind = "usequery"
	KindQueryDelete  Kind = "query_delete"
	KindLLM          Kind = "llm"
	KindLLMProvider  Kind = "llm_provider"
	KindLLMModel     Kind = "llm_model"
	KindLLMKey       Kind = "llm_key"
)

// Command is a parsed, typed slash-command ready for dispatch.
type Command struct {
	Kind Kind

	Text        string            // /sql text, etc.
	Name        string            // /connect, /usequery, /conn add|edit|delete, /query delete name
	KeyValues   map[string]string // key=value positional args
	Tags        []string          // #tag tokens
	Confirm     bool              // --confirm
	Test        bool              // --test
	All         bool              // --all

	ConnFilter string // --conn <name>
	TextFilter string // --text <substr>
	Since      string // --since <dur>, raw grammar \d+(d|h|m)
	Limit      int    // --limit <n>
	Tag        string // --tag <tag>
}

// ResultKind enumerates the InputResult variants a handler returns.
type ResultKind string

const (
	ResultMessage              ResultKind = "message"
	ResultError                ResultKind = "error"
	ResultSetInput             ResultKind = "set_input"
	ResultConfirmationRequired ResultKind = "confirmation_required"
	ResultAck                  ResultKind = "ack"
)

// InputResult is the typed outcome of dispatching one Command (or a
// raw natural-language line) through the Router or the Orchestrator.
type InputResult struct {
	Kind ResultKind

	Text         string // Message/Error/SetInput text
	SavedQueryID string // SetInput optional back-reference

	SQL   string       // ConfirmationRequired
	Level safety.Level // ConfirmationRequired
}

func Message(text string) InputResult { return InputResult{Kind: ResultMessage, Text: text} }
func Error(text string) InputResult   { return InputResult{Kind: ResultError, Text: text} }
func Ack() InputResult                { return InputResult{Kind: ResultAck} }

func SetInput(text string, savedQueryID string) InputResult {
	return InputResult{Kind: ResultSetInput, Text: text, SavedQueryID: savedQueryID}
}

func ConfirmationRequired(sql string, level safety.Level) InputResult {
	return InputResult{Kind: ResultConfirmationRequired, SQL: sql, Level: level}
}
