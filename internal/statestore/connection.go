package statestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

var validate = validator.New()

// ConnectionRepo owns the connection_profiles table.
type ConnectionRepo struct {
	store *Store
}

func (r *ConnectionRepo) ensureDefaultProfile(ctx context.Context) error {
	_, err := r.Get(ctx, DefaultConnectionName)
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err = r.store.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO connection_profiles
			(name, backend, host, port, database, "user", sslmode, extras, secret_ref, secret_status, created_at, updated_at)
		VALUES (?, 'postgres', '', 0, '', '', '', '{}', '', ?, ?, ?)`,
		DefaultConnectionName, string(SecretUnavailable), now, now)
	if err != nil {
		return apperrors.StateError("ensure default connection", err)
	}
	return nil
}

// Create inserts a new ConnectionProfile. The profile must validate
// and the name must not already exist.
func (r *ConnectionRepo) Create(ctx context.Context, p *ConnectionProfile) error {
	if err := validate.Struct(p); err != nil {
		return apperrors.ValidationError("connection_profile", err.Error())
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	return r.store.WithRetry(ctx, "create connection", func(ctx context.Context) error {
		_, err := r.store.db.NamedExecContext(ctx, `
			INSERT INTO connection_profiles
				(name, backend, host, port, database, "user", sslmode, extras, secret_ref, secret_status, created_at, updated_at, last_used_at)
			VALUES
				(:name, :backend, :host, :port, :database, :user, :sslmode, :extras, :secret_ref, :secret_status, :created_at, :updated_at, :last_used_at)`,
			p)
		if err != nil {
			return apperrors.StateError("create connection", err)
		}
		return nil
	})
}

// Update overwrites an existing ConnectionProfile by name, bumping
// updated_at.
func (r *ConnectionRepo) Update(ctx context.Context, p *ConnectionProfile) error {
	if err := validate.Struct(p); err != nil {
		return apperrors.ValidationError("connection_profile", err.Error())
	}
	p.UpdatedAt = time.Now().UTC()

	return r.store.WithRetry(ctx, "update connection", func(ctx context.Context) error {
		res, err := r.store.db.NamedExecContext(ctx, `
			UPDATE connection_profiles SET
				backend = :backend, host = :host, port = :port, database = :database,
				"user" = :user, sslmode = :sslmode, extras = :extras,
				secret_ref = :secret_ref, secret_status = :secret_status, updated_at = :updated_at
			WHERE name = :name`, p)
		if err != nil {
			return apperrors.StateError("update connection", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return errNotFound("connection", p.Name)
		}
		return nil
	})
}

// Get loads a ConnectionProfile by name.
func (r *ConnectionRepo) Get(ctx context.Context, name string) (*ConnectionProfile, error) {
	var p ConnectionProfile
	err := r.store.db.GetContext(ctx, &p, `SELECT * FROM connection_profiles WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("connection", name)
	}
	if err != nil {
		return nil, apperrors.StateError("get connection", err)
	}
	return &p, nil
}

// List returns every ConnectionProfile ordered by name.
func (r *ConnectionRepo) List(ctx context.Context) ([]ConnectionProfile, error) {
	var profiles []ConnectionProfile
	err := r.store.db.SelectContext(ctx, &profiles, `SELECT * FROM connection_profiles ORDER BY name`)
	if err != nil {
		return nil, apperrors.StateError("list connections", err)
	}
	return profiles, nil
}

// Delete removes a ConnectionProfile. The synthetic default profile
// can never be deleted.
func (r *ConnectionRepo) Delete(ctx context.Context, name string) error {
	if name == DefaultConnectionName {
		return apperrors.ValidationError("name", "the default connection cannot be deleted")
	}
	return r.store.WithRetry(ctx, "delete connection", func(ctx context.Context) error {
		res, err := r.store.db.ExecContext(ctx, `DELETE FROM connection_profiles WHERE name = ?`, name)
		if err != nil {
			return apperrors.StateError("delete connection", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return errNotFound("connection", name)
		}
		return nil
	})
}

// TouchLastUsed stamps last_used_at to now.
func (r *ConnectionRepo) TouchLastUsed(ctx context.Context, name string) error {
	now := time.Now().UTC()
	_, err := r.store.db.ExecContext(ctx, `UPDATE connection_profiles SET last_used_at = ? WHERE name = ?`, now, name)
	if err != nil {
		return apperrors.StateError("touch connection", err)
	}
	return nil
}
