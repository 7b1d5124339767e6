// Package dbgateway implements the Database Gateway (C2): an abstract
// capability set over a relational backend — connect, introspect
// schema, execute SQL with a timeout, close — with a postgres
// implementation and a deterministic mock for --mock-db and for unit
// tests of the components above it that must not require a live
// database.
package dbgateway

import (
	"context"
	"time"
)

// DefaultTimeout is the execute timeout applied when a caller doesn't
// specify one, per spec.md §4.2.
const DefaultTimeout = 30 * time.Second

// MaxRows is the row-truncation ceiling, per spec.md §4.2.
const MaxRows = 1000

// Gateway is the capability set every backend (postgres, mock) must
// implement. It carries no connection-profile-specific state beyond
// what Connect captures, so a single Gateway value lives for the
// duration of one Orchestrator connection session.
type Gateway interface {
	Connect(ctx context.Context, cfg ConnectConfig) error
	IntrospectSchema(ctx context.Context) (*Schema, error)
	Execute(ctx context.Context, sql string, timeout time.Duration) (*Result, error)
	Close(ctx context.Context) error
}

// ConnectConfig is the subset of a ConnectionProfile the gateway needs
// to open a connection; it never carries the plaintext password — that
// is resolved by the caller (the Orchestrator, via the State Store's
// secret reference) and passed in as Password only for the duration of
// the Connect call.
type ConnectConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	PoolSize int
	Extras   map[string]string
}

// CellKind tags the dynamic type carried by a Cell in a Result row.
type CellKind int

const (
	CellNull CellKind = iota
	CellInt64
	CellFloat64
	CellText
	CellBool
	CellTime
	CellBytes
)

// Cell is the tagged-value union spec.md §4.2 requires for each column
// of each row: exactly one of the typed fields is meaningful, selected
// by Kind.
type Cell struct {
	Kind  CellKind
	Int   int64
	Float float64
	Text  string
	Bool  bool
	Time  time.Time
	Bytes []byte
}

func (c Cell) IsNull() bool { return c.Kind == CellNull }

// ColumnDescriptor describes one column of a Result's shape.
type ColumnDescriptor struct {
	Name string
	Type string
}

// Result is the outcome of one Execute call.
type Result struct {
	Columns      []ColumnDescriptor
	Rows         [][]Cell
	Elapsed      time.Duration
	RowsAffected *int64
	Truncated    bool
}
