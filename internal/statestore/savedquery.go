package statestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

// SavedQueryRepo owns the saved_queries table.
type SavedQueryRepo struct {
	store *Store
}

// Save creates a new SavedQuery, or overwrites and bumps updated_at
// when one with the same name and connection scope already exists.
func (r *SavedQueryRepo) Save(ctx context.Context, q *SavedQuery) error {
	if q.Name == "" {
		return apperrors.ValidationError("name", "saved query name is required")
	}
	if q.SQLText == "" {
		return apperrors.ValidationError("sql_text", "saved query sql text is required")
	}
	now := time.Now().UTC()

	existing, err := r.getByName(ctx, q.ConnectionName, q.Name)
	if err != nil && !apperrors.IsKind(err, apperrors.KindState) {
		return err
	}

	return r.store.WithRetry(ctx, "save query", func(ctx context.Context) error {
		if existing != nil {
			q.ID = existing.ID
			q.CreatedAt = existing.CreatedAt
			q.UpdatedAt = now
			_, err := r.store.db.NamedExecContext(ctx, `
				UPDATE saved_queries SET
					sql_text = :sql_text, description = :description, tags = :tags, updated_at = :updated_at
				WHERE id = :id`, q)
			if err != nil {
				return apperrors.StateError("save query", err)
			}
			return nil
		}

		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.CreatedAt, q.UpdatedAt = now, now
		_, err := r.store.db.NamedExecContext(ctx, `
			INSERT INTO saved_queries
				(id, name, connection_name, sql_text, description, tags, use_count, last_used_at, created_at, updated_at)
			VALUES
				(:id, :name, :connection_name, :sql_text, :description, :tags, :use_count, :last_used_at, :created_at, :updated_at)`, q)
		if err != nil {
			return apperrors.StateError("save query", err)
		}
		return nil
	})
}

func (r *SavedQueryRepo) getByName(ctx context.Context, connectionName, name string) (*SavedQuery, error) {
	var q SavedQuery
	err := r.store.db.GetContext(ctx, &q, `
		SELECT * FROM saved_queries WHERE connection_name = ? AND name = ?`, connectionName, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("saved query", name)
	}
	if err != nil {
		return nil, apperrors.StateError("get query", err)
	}
	return &q, nil
}

// Get loads a SavedQuery by id.
func (r *SavedQueryRepo) Get(ctx context.Context, id string) (*SavedQuery, error) {
	var q SavedQuery
	err := r.store.db.GetContext(ctx, &q, `SELECT * FROM saved_queries WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("saved query", id)
	}
	if err != nil {
		return nil, apperrors.StateError("get query", err)
	}
	return &q, nil
}

// List returns saved queries for a connection, always plus the
// global-scope ones, optionally filtered by tags (AND semantics; a
// #global: prefixed tag matches globally-scoped queries).
func (r *SavedQueryRepo) List(ctx context.Context, connectionName string, tags []string) ([]SavedQuery, error) {
	var all []SavedQuery
	err := r.store.db.SelectContext(ctx, &all, `
		SELECT * FROM saved_queries WHERE connection_name = ? OR connection_name = ? ORDER BY name`,
		connectionName, GlobalScopeName)
	if err != nil {
		return nil, apperrors.StateError("list queries", err)
	}
	if len(tags) == 0 {
		return all, nil
	}

	var filtered []SavedQuery
	for _, q := range all {
		if matchesTags(q, tags) {
			filtered = append(filtered, q)
		}
	}
	return filtered, nil
}

// ListAll returns every saved query across every connection scope, for
// /queries --all.
func (r *SavedQueryRepo) ListAll(ctx context.Context) ([]SavedQuery, error) {
	var all []SavedQuery
	err := r.store.db.SelectContext(ctx, &all, `SELECT * FROM saved_queries ORDER BY connection_name, name`)
	if err != nil {
		return nil, apperrors.StateError("list all queries", err)
	}
	return all, nil
}

func matchesTags(q SavedQuery, want []string) bool {
	for _, w := range want {
		if strings.HasPrefix(w, GlobalTagPrefix) {
			if q.ConnectionName != GlobalScopeName && !q.Tags.HasAll([]string{w}) {
				return false
			}
			continue
		}
		if !q.Tags.HasAll([]string{w}) {
			return false
		}
	}
	return true
}

// Delete removes a SavedQuery. QueryHistoryEntry back-references are
// set-null by the foreign key's ON DELETE SET NULL clause, not
// cascaded.
func (r *SavedQueryRepo) Delete(ctx context.Context, id string) error {
	return r.store.WithRetry(ctx, "delete query", func(ctx context.Context) error {
		res, err := r.store.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE id = ?`, id)
		if err != nil {
			return apperrors.StateError("delete query", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return errNotFound("saved query", id)
		}
		return nil
	})
}

// RecordUse bumps use_count and last_used_at for a saved query that
// was just executed.
func (r *SavedQueryRepo) RecordUse(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.store.db.ExecContext(ctx, `
		UPDATE saved_queries SET use_count = use_count + 1, last_used_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return apperrors.StateError("record query use", err)
	}
	return nil
}
