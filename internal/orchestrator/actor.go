package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/dbgateway"
	"github.com/jordigilh/glance/internal/llmsvc"
	"github.com/jordigilh/glance/internal/safety"
	"github.com/jordigilh/glance/internal/statestore"
)

// DefaultQueueCapacity bounds the request queue; Submit past this
// depth returns QueueFull immediately instead of blocking the caller.
const DefaultQueueCapacity = 32

var tracer = otel.Tracer("glance/orchestrator")

type activeRequest struct {
	id     string
	cancel context.CancelFunc
}

// Session is the live, mutable connection-scoped state the Actor owns:
// the DB handle, its cached schema, and the LLM conversation so far.
// It is entirely replaced (or reverted) by a connection switch.
type Session struct {
	ConnectionName string
	DB             dbgateway.Gateway
	Schema         *dbgateway.Schema
	History        []llmsvc.Message
	LastResult     string
	LastSQL        string
}

// Actor is the C5 Orchestrator: a single-flight request processor fed
// by Submit and drained by the caller reading Events().
type Actor struct {
	mu       sync.Mutex
	queue    []Request
	capacity int
	active   *activeRequest

	events chan Event
	wake   chan struct{}

	store *statestore.Store
	llm   *llmsvc.Service

	sessMu  sync.Mutex
	session Session
}

func New(store *statestore.Store, llm *llmsvc.Service, capacity int) *Actor {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Actor{
		capacity: capacity,
		events:   make(chan Event, capacity),
		wake:     make(chan struct{}, 1),
		store:    store,
		llm:      llm,
		session:  Session{ConnectionName: statestore.DefaultConnectionName},
	}
}

// Events returns the channel the front-end reads notifications from.
func (a *Actor) Events() <-chan Event {
	return a.events
}

// Submit enqueues a request. It returns false (and posts a QueueFull
// event) if the queue is already at capacity. RequestConnect preempts:
// per the connection-switch reset protocol, it cancels whatever is
// active and drains the rest of the queue before taking the one slot
// it needs, so the switch begins immediately instead of waiting for
// FIFO order to reach it.
func (a *Actor) Submit(req Request) bool {
	if req.Kind == RequestConnect {
		a.preempt()
	}

	a.mu.Lock()
	if len(a.queue) >= a.capacity {
		a.mu.Unlock()
		a.emit(Event{RequestID: req.ID, Kind: EventQueueFull})
		return false
	}
	a.queue = append(a.queue, req)
	a.mu.Unlock()

	a.emit(Event{RequestID: req.ID, Kind: EventQueued})
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return true
}

// preempt cancels the active request (if any) and drops every queued
// request so a RequestConnect submitted immediately after can run next
// instead of waiting behind whatever was already in flight.
func (a *Actor) preempt() {
	a.mu.Lock()
	active := a.active
	pending := a.queue
	a.queue = nil
	a.mu.Unlock()

	for _, r := range pending {
		a.emit(Event{RequestID: r.ID, Kind: EventCancelled})
	}
	if active != nil {
		active.cancel()
	}
}

// Cancel cooperatively cancels the active request if id matches it, or
// removes id from the queue if it has not started yet. Cancelling an
// unknown id is silently ignored; cancellation is idempotent.
func (a *Actor) Cancel(id string) {
	a.mu.Lock()
	if a.active != nil && a.active.id == id {
		cancel := a.active.cancel
		a.mu.Unlock()
		cancel()
		return
	}
	for i, r := range a.queue {
		if r.ID == id {
			a.queue = append(a.queue[:i], a.queue[i+1:]...)
			a.mu.Unlock()
			a.emit(Event{RequestID: id, Kind: EventCancelled})
			return
		}
	}
	a.mu.Unlock()
}

// Run drives the actor loop until ctx is cancelled. It processes
// exactly one request at a time: the next Submit/Cancel call is always
// serviced immediately because those are plain mutex-guarded methods,
// not messages waiting on this loop.
func (a *Actor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drainQueue()
			return ctx.Err()
		case <-a.wake:
		}

		for {
			req, ok := a.popNext()
			if !ok {
				break
			}
			a.runRequest(ctx, req)
		}
	}
}

func (a *Actor) popNext() (Request, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return Request{}, false
	}
	req := a.queue[0]
	a.queue = a.queue[1:]
	return req, true
}

func (a *Actor) drainQueue() {
	a.mu.Lock()
	pending := a.queue
	a.queue = nil
	a.mu.Unlock()
	for _, r := range pending {
		a.emit(Event{RequestID: r.ID, Kind: EventCancelled})
	}
}

func (a *Actor) emit(e Event) {
	select {
	case a.events <- e:
	default:
		// Front-end is not draining fast enough; drop rather than
		// block the single-flight actor loop on a slow consumer.
	}
}

// runRequest launches req on a supervised worker goroutine and blocks
// until it completes or is cancelled. A panic inside the worker is
// recovered and reported as an error event rather than taking down the
// actor loop.
func (a *Actor) runRequest(ctx context.Context, req Request) {
	reqCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.active = &activeRequest{id: req.ID, cancel: cancel}
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		a.active = nil
		a.mu.Unlock()
	}()

	reqCtx, span := tracer.Start(reqCtx, "orchestrator.request", trace.WithAttributes())
	defer span.End()

	a.emit(Event{RequestID: req.ID, Kind: EventStarted})

	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.New(apperrors.KindState, "request worker").WithDetailsf("recovered panic: %v", r)
			}
		}()
		return a.dispatch(gctx, req)
	})

	if err := g.Wait(); err != nil {
		if reqCtx.Err() != nil {
			a.emit(Event{RequestID: req.ID, Kind: EventCancelled})
			return
		}
		a.emit(Event{RequestID: req.ID, Kind: EventError, Error: err, Message: err.Error()})
	}
}

func (a *Actor) dispatch(ctx context.Context, req Request) error {
	switch req.Kind {
	case RequestSQL:
		return a.handleSQL(ctx, req, req.SQL, statestore.SubmitterUser)
	case RequestPrompt:
		return a.handlePrompt(ctx, req)
	case RequestConnect:
		return a.handleConnect(ctx, req)
	case RequestCommand:
		return a.handleCommand(ctx, req)
	default:
		return apperrors.New(apperrors.KindState, "dispatch").WithDetailsf("unknown request kind %q", req.Kind)
	}
}

// handleSQL classifies req's SQL and either executes it directly
// (Safe, or already confirmed by the user) or posts
// ConfirmationRequired back to the front-end without executing it.
func (a *Actor) handleSQL(ctx context.Context, req Request, sql string, submitter statestore.Submitter) error {
	level := safety.Classify(sql)
	if level != safety.Safe && !req.Confirmed {
		a.emit(Event{RequestID: req.ID, Kind: EventConfirmationRequired, SQL: sql, Level: level})
		return nil
	}

	a.sessMu.Lock()
	db := a.session.DB
	connName := a.session.ConnectionName
	a.sessMu.Unlock()

	if db == nil {
		return apperrors.New(apperrors.KindConnection, "execute").WithDetails("no active database connection")
	}

	start := time.Now()
	result, execErr := db.Execute(ctx, sql, dbgateway.DefaultTimeout)
	duration := time.Since(start)

	entry := &statestore.QueryHistoryEntry{
		ConnectionName: connName,
		Submitter:      submitter,
		SQLText:        sql,
		DurationMS:     duration.Milliseconds(),
	}
	if execErr != nil {
		msg := execErr.Error()
		entry.Status = statestore.HistoryError
		entry.ErrorMessage = &msg
	} else {
		entry.Status = statestore.HistorySuccess
		if result != nil {
			rc := int64(len(result.Rows))
			entry.RowCount = &rc
		}
	}

	if _, histErr := a.store.History.Insert(ctx, entry); histErr != nil {
		// Write-path errors against the State Store are reported but
		// never abort the request that produced them.
		a.emit(Event{RequestID: req.ID, Kind: EventError, Message: "failed to record history: " + histErr.Error()})
	}

	if execErr != nil {
		a.sessMu.Lock()
		a.session.LastResult = "error"
		a.sessMu.Unlock()
		return execErr
	}
	a.sessMu.Lock()
	a.session.LastResult = "success"
	a.session.LastSQL = sql
	a.sessMu.Unlock()
	a.emit(Event{RequestID: req.ID, Kind: EventResult, Result: result})
	return nil
}

func (a *Actor) handlePrompt(ctx context.Context, req Request) error {
	a.sessMu.Lock()
	schema := a.session.Schema
	history := append([]llmsvc.Message(nil), a.session.History...)
	connName := a.session.ConnectionName
	a.sessMu.Unlock()

	if schema == nil {
		schema = &dbgateway.Schema{}
	}

	turn, err := a.llm.Ask(ctx, connName, connName, schema, history, req.Prompt)
	if err != nil {
		return err
	}

	a.sessMu.Lock()
	a.session.History = append(a.session.History,
		llmsvc.Message{Role: llmsvc.RoleUser, Content: req.Prompt},
		llmsvc.Message{Role: llmsvc.RoleAssistant, Content: turn.Prose},
	)
	a.sessMu.Unlock()

	if turn.Prose != "" {
		a.emit(Event{RequestID: req.ID, Kind: EventResult, Message: turn.Prose})
	}
	if turn.SQL == "" {
		return nil
	}
	return a.handleSQL(ctx, req, turn.SQL, statestore.SubmitterLLM)
}

// handleConnect performs the atomic connection-switch reset protocol:
// cancel active work, drain the queue, drop the old handle/schema
// cache, clear LLM context and input history, then reconnect. On
// failure it reverts to the previous session.
func (a *Actor) handleConnect(ctx context.Context, req Request) error {
	profile, err := a.store.Connections.Get(ctx, req.ConnectionName)
	if err != nil {
		return err
	}

	a.drainQueue()

	a.sessMu.Lock()
	previous := a.session
	a.sessMu.Unlock()

	var password string
	if profile.SecretRef != "" {
		if resolved, err := a.store.Secrets.Resolve(ctx, profile.SecretRef); err == nil {
			password = resolved
		}
	}

	newDB := dbgateway.NewPostgresGateway()
	connectErr := newDB.Connect(ctx, connectConfigFromProfile(profile, password))
	if connectErr != nil {
		a.emit(Event{RequestID: req.ID, Kind: EventConnectionSwitchFailed, Error: connectErr, Message: connectErr.Error()})
		return connectErr
	}

	schema, schemaErr := newDB.IntrospectSchema(ctx)
	if schemaErr != nil {
		_ = newDB.Close(ctx)
		a.emit(Event{RequestID: req.ID, Kind: EventConnectionSwitchFailed, Error: schemaErr, Message: schemaErr.Error()})
		return schemaErr
	}

	if previous.DB != nil {
		_ = previous.DB.Close(ctx)
	}

	a.sessMu.Lock()
	a.session = Session{ConnectionName: profile.Name, DB: newDB, Schema: schema}
	a.sessMu.Unlock()

	_ = a.store.Connections.TouchLastUsed(ctx, profile.Name)
	a.emit(Event{RequestID: req.ID, Kind: EventCleared})
	a.emit(Event{RequestID: req.ID, Kind: EventConnectionSwitched, Message: profile.Name})
	return nil
}

// ConnectMock wires an already-constructed gateway (the deterministic
// mock backend, for --mock-db) directly into the session, skipping the
// profile lookup and secret resolution that a named connection profile
// requires. It follows the same introspect-then-swap shape as
// handleConnect.
func (a *Actor) ConnectMock(ctx context.Context, db dbgateway.Gateway) error {
	if err := db.Connect(ctx, dbgateway.ConnectConfig{}); err != nil {
		return err
	}
	schema, err := db.IntrospectSchema(ctx)
	if err != nil {
		return err
	}

	a.sessMu.Lock()
	previous := a.session
	a.session = Session{ConnectionName: statestore.DefaultConnectionName, DB: db, Schema: schema}
	a.sessMu.Unlock()

	if previous.DB != nil {
		_ = previous.DB.Close(ctx)
	}
	a.emit(Event{RequestID: "mock-connect", Kind: EventCleared})
	a.emit(Event{RequestID: "mock-connect", Kind: EventConnectionSwitched, Message: statestore.DefaultConnectionName})
	return nil
}

// StatusSnapshot renders a JSON object of orchestrator-visible state
// for the headless DSL's assert:state: event to query.
func (a *Actor) StatusSnapshot() (string, error) {
	a.mu.Lock()
	queueDepth := len(a.queue)
	var activeID string
	if a.active != nil {
		activeID = a.active.id
	}
	a.mu.Unlock()

	a.sessMu.Lock()
	schemaSize := 0
	if a.session.Schema != nil {
		schemaSize = len(a.session.Schema.Tables)
	}
	snapshot := map[string]interface{}{
		"connection_name":  a.session.ConnectionName,
		"schema_cache_size": schemaSize,
		"queue_depth":      queueDepth,
		"active_request":   activeID,
		"last_result":      a.session.LastResult,
	}
	a.sessMu.Unlock()

	b, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal status snapshot: %w", err)
	}
	return string(b), nil
}

func connectConfigFromProfile(p *statestore.ConnectionProfile, password string) dbgateway.ConnectConfig {
	return dbgateway.ConnectConfig{
		Host:     p.Host,
		Port:     p.Port,
		Database: p.Database,
		User:     p.User,
		Password: password,
		SSLMode:  p.SSLMode,
		PoolSize: 5,
	}
}
