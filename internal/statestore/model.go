package statestore

import "time"

// SecretStatus records how a secret reference was resolved the last
// time it was written, so the front-end can warn the user when the
// plaintext fallback is in play.
type SecretStatus string

const (
	KeyringAvailable   SecretStatus = "KeyringAvailable"
	PlaintextConsented SecretStatus = "PlaintextConsented"
	SecretUnavailable  SecretStatus = "Unavailable"
)

// DefaultConnectionName is the synthetic profile created at startup so
// history can be recorded before the user configures a real connection.
const DefaultConnectionName = "__default__"

// GlobalTagPrefix marks a SavedQuery tag as globally scoped rather than
// scoped to a single connection.
const GlobalTagPrefix = "#global:"

// GlobalScopeName is the reserved connection_name value for queries
// saved globally (via a GlobalTagPrefix tag) rather than scoped to one
// connection.
const GlobalScopeName = "#global"

// ConnectionProfile is a named set of connection parameters. The
// plaintext password is never stored here, only a reference that
// secrets.go resolves through the keyring or the plaintext fallback
// table.
type ConnectionProfile struct {
	Name          string    `db:"name" validate:"required"`
	Backend       string    `db:"backend" validate:"required,eq=postgres"`
	Host          string    `db:"host" validate:"required"`
	Port          int       `db:"port" validate:"required,min=1,max=65535"`
	Database      string    `db:"database" validate:"required"`
	User          string    `db:"user" validate:"required"`
	SSLMode       string    `db:"sslmode"`
	Extras        Extras    `db:"extras"`
	SecretRef     string    `db:"secret_ref"`
	SecretStatus  string    `db:"secret_status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	LastUsedAt    *time.Time `db:"last_used_at"`
}

// Submitter distinguishes user-typed SQL from LLM-generated SQL in the
// query history.
type Submitter string

const (
	SubmitterUser Submitter = "user"
	SubmitterLLM  Submitter = "llm"
)

// HistoryStatus is the terminal state of a recorded query execution.
type HistoryStatus string

const (
	HistorySuccess   HistoryStatus = "success"
	HistoryError     HistoryStatus = "error"
	HistoryCancelled HistoryStatus = "cancelled"
)

// QueryHistoryEntry is one append-only record of an executed
// statement. RowCount and ErrorMessage are mutually informative but
// both nullable since a cancelled query has neither.
type QueryHistoryEntry struct {
	ID            int64         `db:"id"`
	ConnectionName string       `db:"connection_name" validate:"required"`
	Submitter     Submitter     `db:"submitter" validate:"required,oneof=user llm"`
	SQLText       string        `db:"sql_text" validate:"required"`
	Status        HistoryStatus `db:"status" validate:"required,oneof=success error cancelled"`
	DurationMS    int64         `db:"duration_ms"`
	RowCount      *int64        `db:"row_count"`
	ErrorMessage  *string       `db:"error_message"`
	CreatedAt     time.Time     `db:"created_at"`
	SavedQueryID  *string       `db:"saved_query_id"`
}

// SavedQuery is a user-curated, named piece of SQL. Scope is either a
// connection name or, via the GlobalTagPrefix convention on Tags, a
// cross-connection tag group.
type SavedQuery struct {
	ID             string    `db:"id" validate:"required"`
	Name           string    `db:"name" validate:"required"`
	ConnectionName string    `db:"connection_name" validate:"required"`
	SQLText        string    `db:"sql_text" validate:"required"`
	Description    string    `db:"description"`
	Tags           TagSet    `db:"tags"`
	UseCount       int64     `db:"use_count"`
	LastUsedAt     *time.Time `db:"last_used_at"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// LlmProvider enumerates the supported LLM backends.
type LlmProvider string

const (
	ProviderOpenAI    LlmProvider = "openai"
	ProviderAnthropic LlmProvider = "anthropic"
	ProviderOllama    LlmProvider = "ollama"
)

// LlmSettings is the single-row table of the active LLM configuration.
type LlmSettings struct {
	Provider     LlmProvider `db:"provider" validate:"required,oneof=openai anthropic ollama"`
	Model        string      `db:"model" validate:"required"`
	SecretRef    string      `db:"secret_ref"`
	SecretStatus string      `db:"secret_status"`
	UpdatedAt    time.Time   `db:"updated_at"`
}
