package statestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/logging"
)

// HistoryRepo owns the query_history table. Inserts are append-only
// from the caller's perspective; pruning runs best-effort afterward.
type HistoryRepo struct {
	store *Store
}

// Insert records one executed statement and returns its assigned id.
// Pruning runs in a detached goroutine and never blocks the caller or
// surfaces its own errors to them.
func (r *HistoryRepo) Insert(ctx context.Context, e *QueryHistoryEntry) (int64, error) {
	if e.Submitter == "" {
		return 0, apperrors.ValidationError("submitter", "submitter is required")
	}
	if e.Status == "" {
		return 0, apperrors.ValidationError("status", "status is required")
	}
	e.CreatedAt = time.Now().UTC()

	var id int64
	err := r.store.WithRetry(ctx, "insert history", func(ctx context.Context) error {
		res, err := r.store.db.ExecContext(ctx, `
			INSERT INTO query_history
				(connection_name, submitter, sql_text, status, duration_ms, row_count, error_message, created_at, saved_query_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ConnectionName, e.Submitter, e.SQLText, e.Status, e.DurationMS, e.RowCount, e.ErrorMessage, e.CreatedAt, e.SavedQueryID)
		if err != nil {
			return apperrors.StateError("insert history", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	e.ID = id

	go func() {
		pruneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.pruneHistory(pruneCtx); err != nil {
			logging.Warn(r.store.logger, "history retention prune failed", logging.NewFields().Component("statestore").Operation("prune history").Error(err))
		}
	}()

	return id, nil
}

// Recent returns the most recent n history entries for a connection,
// newest first. A zero or negative n falls back to a limit of 100.
func (r *HistoryRepo) Recent(ctx context.Context, connectionName string, n int) ([]QueryHistoryEntry, error) {
	if n <= 0 {
		n = 100
	}
	var entries []QueryHistoryEntry
	err := r.store.db.SelectContext(ctx, &entries, `
		SELECT * FROM query_history WHERE connection_name = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		connectionName, n)
	if err != nil {
		return nil, apperrors.StateError("list history", err)
	}
	return entries, nil
}

// Clear deletes history rows for /history clear. An empty
// connectionName clears every connection's history (the --all form);
// otherwise only rows scoped to that connection are removed.
func (r *HistoryRepo) Clear(ctx context.Context, connectionName string) error {
	return r.store.WithRetry(ctx, "clear history", func(ctx context.Context) error {
		var err error
		if connectionName == "" {
			_, err = r.store.db.ExecContext(ctx, `DELETE FROM query_history`)
		} else {
			_, err = r.store.db.ExecContext(ctx, `DELETE FROM query_history WHERE connection_name = ?`, connectionName)
		}
		if err != nil {
			return apperrors.StateError("clear history", err)
		}
		return nil
	})
}

// Get loads a single history entry by id.
func (r *HistoryRepo) Get(ctx context.Context, id int64) (*QueryHistoryEntry, error) {
	var e QueryHistoryEntry
	err := r.store.db.GetContext(ctx, &e, `SELECT * FROM query_history WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("history entry", "")
	}
	if err != nil {
		return nil, apperrors.StateError("get history", err)
	}
	return &e, nil
}
