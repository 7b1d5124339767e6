package dbgateway

import (
	"context"
	"strings"
	"time"
)

// Fixture is one canned response the MockGateway returns for a
// normalized SQL string.
type Fixture struct {
	Result *Result
	Err    error
	Delay  time.Duration
}

// MockGateway is the deterministic backend used by --mock-db and by
// unit tests of components (C3, C5, C6) that must exercise the Gateway
// interface without a live PostgreSQL server. Matching is on the
// normalized (trimmed, lower-cased, whitespace-collapsed) SQL text so
// fixtures stay readable in test setup.
type MockGateway struct {
	Schema    *Schema
	Fixtures  map[string]Fixture
	Default   Fixture
	connected bool
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		Fixtures: map[string]Fixture{},
		Default: Fixture{
			Result: &Result{Columns: []ColumnDescriptor{{Name: "result", Type: "text"}}},
		},
	}
}

func normalize(sql string) string {
	return strings.Join(strings.Fields(strings.ToLower(sql)), " ")
}

// Register adds or overwrites the fixture for a SQL statement.
func (m *MockGateway) Register(sql string, f Fixture) {
	m.Fixtures[normalize(sql)] = f
}

func (m *MockGateway) Connect(ctx context.Context, cfg ConnectConfig) error {
	m.connected = true
	return nil
}

func (m *MockGateway) Close(ctx context.Context) error {
	m.connected = false
	return nil
}

func (m *MockGateway) IntrospectSchema(ctx context.Context) (*Schema, error) {
	if m.Schema != nil {
		return m.Schema, nil
	}
	return &Schema{}, nil
}

func (m *MockGateway) Execute(ctx context.Context, sql string, timeout time.Duration) (*Result, error) {
	fixture, ok := m.Fixtures[normalize(sql)]
	if !ok {
		fixture = m.Default
	}
	if fixture.Delay > 0 {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		select {
		case <-time.After(fixture.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(timeout):
			return nil, context.DeadlineExceeded
		}
	}
	if fixture.Err != nil {
		return nil, fixture.Err
	}
	return fixture.Result, nil
}
