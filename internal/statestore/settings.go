package statestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

// SettingsRepo owns the single-row llm_settings table.
type SettingsRepo struct {
	store *Store
}

// Get loads the active LlmSettings, or nil if none has been set yet.
func (r *SettingsRepo) Get(ctx context.Context) (*LlmSettings, error) {
	var s LlmSettings
	err := r.store.db.GetContext(ctx, &s, `SELECT provider, model, secret_ref, secret_status, updated_at FROM llm_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.StateError("get llm settings", err)
	}
	return &s, nil
}

// Put upserts the single LlmSettings row.
func (r *SettingsRepo) Put(ctx context.Context, s *LlmSettings) error {
	if err := validate.Struct(s); err != nil {
		return apperrors.ValidationError("llm_settings", err.Error())
	}
	s.UpdatedAt = time.Now().UTC()

	return r.store.WithRetry(ctx, "put llm settings", func(ctx context.Context) error {
		_, err := r.store.db.NamedExecContext(ctx, `
			INSERT INTO llm_settings (id, provider, model, secret_ref, secret_status, updated_at)
			VALUES (1, :provider, :model, :secret_ref, :secret_status, :updated_at)
			ON CONFLICT(id) DO UPDATE SET
				provider = excluded.provider, model = excluded.model,
				secret_ref = excluded.secret_ref, secret_status = excluded.secret_status,
				updated_at = excluded.updated_at`, s)
		if err != nil {
			return apperrors.StateError("put llm settings", err)
		}
		return nil
	})
}
