package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jordigilh/glance/internal/command"
	"github.com/jordigilh/glance/internal/dbgateway"
	"github.com/jordigilh/glance/internal/statestore"
)

func TestActor_ClearCommandEmitsClearedAndDropsHistory(t *testing.T) {
	a, _ := newTestActor(t)
	runFor(t, a, time.Second)

	a.Submit(Request{ID: "c1", Kind: RequestCommand, Command: &command.Command{Kind: command.KindClear}})
	e := drainUntil(t, a, EventCleared, 2*time.Second)
	if e.RequestID != "c1" {
		t.Errorf("event = %+v", e)
	}
}

func TestActor_SchemaCommandRendersSession(t *testing.T) {
	a, _ := newTestActor(t)
	a.session.Schema = &dbgateway.Schema{Tables: []dbgateway.Table{{Name: "users"}}}
	runFor(t, a, time.Second)

	a.Submit(Request{ID: "c1", Kind: RequestCommand, Command: &command.Command{Kind: command.KindSchema}})
	e := drainUntil(t, a, EventResult, 2*time.Second)
	if !strings.Contains(e.Message, "users") {
		t.Errorf("expected schema summary to mention users, got %q", e.Message)
	}
}

func TestActor_ConnAddThenConnections(t *testing.T) {
	a, _ := newTestActor(t)
	runFor(t, a, time.Second)

	add := &command.Command{
		Kind: command.KindConnAdd,
		Name: "analytics",
		KeyValues: map[string]string{
			"host": "db.internal", "port": "5432", "database": "analytics", "user": "ro",
		},
	}
	a.Submit(Request{ID: "add", Kind: RequestCommand, Command: add})
	e := drainUntil(t, a, EventResult, 2*time.Second)
	if !strings.Contains(e.Message, "analytics") {
		t.Errorf("expected confirmation mentioning the new profile, got %q", e.Message)
	}

	a.Submit(Request{ID: "list", Kind: RequestCommand, Command: &command.Command{Kind: command.KindConnections}})
	e = drainUntil(t, a, EventResult, 2*time.Second)
	if !strings.Contains(e.Message, "analytics") {
		t.Errorf("expected /connections to list the new profile, got %q", e.Message)
	}
}

func TestActor_SaveQueryThenUseQueryRoundTrips(t *testing.T) {
	a, mock := newTestActor(t)
	mock.Register("SELECT 1", dbgateway.Fixture{Result: &dbgateway.Result{}})
	runFor(t, a, 2*time.Second)

	a.Submit(Request{ID: "sql", Kind: RequestSQL, SQL: "SELECT 1"})
	drainUntil(t, a, EventResult, 2*time.Second)

	save := &command.Command{Kind: command.KindSaveQuery, Name: "q1"}
	a.Submit(Request{ID: "save", Kind: RequestCommand, Command: save})
	drainUntil(t, a, EventResult, 2*time.Second)

	use := &command.Command{Kind: command.KindUseQuery, Name: "q1"}
	a.Submit(Request{ID: "use", Kind: RequestCommand, Command: use})
	e := drainUntil(t, a, EventSetInput, 2*time.Second)
	if e.Message != "SELECT 1" {
		t.Errorf("expected /usequery to load SELECT 1, got %q", e.Message)
	}
	if e.SavedQueryID == "" {
		t.Errorf("expected a saved query id back-reference")
	}
}

func TestActor_HistoryClearRemovesEntries(t *testing.T) {
	a, mock := newTestActor(t)
	mock.Register("SELECT 1", dbgateway.Fixture{Result: &dbgateway.Result{}})
	runFor(t, a, 2*time.Second)

	a.Submit(Request{ID: "sql", Kind: RequestSQL, SQL: "SELECT 1"})
	drainUntil(t, a, EventResult, 2*time.Second)

	a.Submit(Request{ID: "hist", Kind: RequestCommand, Command: &command.Command{Kind: command.KindHistory, Limit: 10}})
	e := drainUntil(t, a, EventResult, 2*time.Second)
	if !strings.Contains(e.Message, "SELECT 1") {
		t.Errorf("expected history to contain SELECT 1, got %q", e.Message)
	}

	a.Submit(Request{ID: "clear", Kind: RequestCommand, Command: &command.Command{Kind: command.KindHistoryClear}})
	drainUntil(t, a, EventResult, 2*time.Second)

	entries, err := a.store.History.Recent(context.Background(), statestore.DefaultConnectionName, 10)
	if err != nil {
		t.Fatalf("History.Recent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected history to be empty after /history clear, got %d entries", len(entries))
	}
}
