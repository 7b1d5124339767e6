package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jordigilh/glance/internal/dbgateway"
	"github.com/jordigilh/glance/internal/llmsvc"
	"github.com/jordigilh/glance/internal/statestore"
)

func newTestActor(t *testing.T) (*Actor, *dbgateway.MockGateway) {
	t.Helper()
	dir := t.TempDir()
	store, err := statestore.Open(context.Background(), filepath.Join(dir, "glance.db"))
	if err != nil {
		t.Fatalf("statestore.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mock := dbgateway.NewMockGateway()
	svc := llmsvc.NewService(&noopGateway{}, store, nil)
	a := New(store, svc, 4)
	a.session = Session{ConnectionName: statestore.DefaultConnectionName, DB: mock, Schema: &dbgateway.Schema{}}
	return a, mock
}

type noopGateway struct{}

func (noopGateway) Complete(ctx context.Context, messages []llmsvc.Message) (string, error) {
	return "", nil
}
func (noopGateway) CompleteStream(ctx context.Context, messages []llmsvc.Message) (<-chan string, <-chan error) {
	ch := make(chan string)
	errs := make(chan error)
	close(ch)
	close(errs)
	return ch, errs
}

func runFor(t *testing.T, a *Actor, d time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	t.Cleanup(cancel)
	return cancel
}

func drainUntil(t *testing.T, a *Actor, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-a.Events():
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestActor_SafeSQLExecutesImmediately(t *testing.T) {
	a, mock := newTestActor(t)
	runFor(t, a, time.Second)

	mock.Register("SELECT 1", dbgateway.Fixture{Result: &dbgateway.Result{
		Columns: []dbgateway.ColumnDescriptor{{Name: "?column?", Type: "integer"}},
		Rows:    [][]dbgateway.Cell{{{Kind: dbgateway.CellInt64, Int: 1}}},
	}})

	a.Submit(Request{ID: "r1", Kind: RequestSQL, SQL: "SELECT 1"})
	e := drainUntil(t, a, EventResult, 2*time.Second)
	if e.RequestID != "r1" {
		t.Errorf("event = %+v", e)
	}
}

func TestActor_MutatingSQLRequiresConfirmation(t *testing.T) {
	a, _ := newTestActor(t)
	runFor(t, a, time.Second)

	a.Submit(Request{ID: "r1", Kind: RequestSQL, SQL: "DELETE FROM users WHERE id = 1"})
	e := drainUntil(t, a, EventConfirmationRequired, 2*time.Second)
	if e.SQL != "DELETE FROM users WHERE id = 1" {
		t.Errorf("event = %+v", e)
	}
}

func TestActor_ConfirmedMutatingSQLExecutes(t *testing.T) {
	a, mock := newTestActor(t)
	runFor(t, a, time.Second)

	mock.Register("DELETE FROM users WHERE id = 1", dbgateway.Fixture{Result: &dbgateway.Result{RowsAffected: int64Ptr(1)}})

	a.Submit(Request{ID: "r1", Kind: RequestSQL, SQL: "DELETE FROM users WHERE id = 1", Confirmed: true})
	e := drainUntil(t, a, EventResult, 2*time.Second)
	if e.RequestID != "r1" {
		t.Errorf("event = %+v", e)
	}
}

func TestActor_CancelQueuedRequest(t *testing.T) {
	a, mock := newTestActor(t)
	mock.Register("SELECT pg_sleep(1)", dbgateway.Fixture{Result: &dbgateway.Result{}, Delay: time.Second})

	a.mu.Lock()
	a.queue = append(a.queue, Request{ID: "queued", Kind: RequestSQL, SQL: "SELECT 1"})
	a.mu.Unlock()

	a.Cancel("queued")
	e := drainUntil(t, a, EventCancelled, time.Second)
	if e.RequestID != "queued" {
		t.Errorf("event = %+v", e)
	}
}

func TestActor_CancelUnknownIDIsNoop(t *testing.T) {
	a, _ := newTestActor(t)
	a.Cancel("does-not-exist")
}

func TestActor_CancelActiveRequest(t *testing.T) {
	a, mock := newTestActor(t)
	runFor(t, a, 2*time.Second)
	mock.Register("SELECT pg_sleep(1)", dbgateway.Fixture{Result: &dbgateway.Result{}, Delay: time.Second})

	a.Submit(Request{ID: "active", Kind: RequestSQL, SQL: "SELECT pg_sleep(1)", Confirmed: true})
	drainUntil(t, a, EventStarted, time.Second)

	a.Cancel("active")
	e := drainUntil(t, a, EventCancelled, 2*time.Second)
	if e.RequestID != "active" {
		t.Errorf("event = %+v", e)
	}
}

func TestActor_ConnectPreemptsActiveRequest(t *testing.T) {
	a, mock := newTestActor(t)
	runFor(t, a, 2*time.Second)
	mock.Register("SELECT pg_sleep(1)", dbgateway.Fixture{Result: &dbgateway.Result{}, Delay: time.Second})

	if err := a.store.Connections.Create(context.Background(), &statestore.ConnectionProfile{
		Name: "other", Backend: "postgres", Host: "h", Port: 5432, Database: "d", User: "u",
	}); err != nil {
		t.Fatalf("Connections.Create() error = %v", err)
	}

	a.Submit(Request{ID: "slow", Kind: RequestSQL, SQL: "SELECT pg_sleep(1)", Confirmed: true})
	drainUntil(t, a, EventStarted, time.Second)

	a.Submit(Request{ID: "connect", Kind: RequestConnect, ConnectionName: "other"})
	e := drainUntil(t, a, EventCancelled, 2*time.Second)
	if e.RequestID != "slow" {
		t.Errorf("expected the active request to be preempted, got %+v", e)
	}
}

func TestActor_StatusSnapshotReflectsSession(t *testing.T) {
	a, _ := newTestActor(t)
	snapshot, err := a.StatusSnapshot()
	if err != nil {
		t.Fatalf("StatusSnapshot() error = %v", err)
	}
	if snapshot == "" {
		t.Errorf("StatusSnapshot() returned empty string")
	}
}

func int64Ptr(v int64) *int64 { return &v }
