package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/99designs/keyring"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

const keyringServiceName = "glance"

const (
	keyringRefPrefix   = "keyring:"
	plaintextRefPrefix = "plaintext:"
)

// SecretResolver reads and writes secret references on behalf of the
// connection and settings repositories. It prefers the OS keyring and
// falls back to a plaintext table only with explicit consent, exactly
// mirroring spec.md's KeyringAvailable / PlaintextConsented / Unavailable
// states.
type SecretResolver struct {
	store *Store
	ring  keyring.Keyring
	ringErr error
}

func NewSecretResolver(s *Store) *SecretResolver {
	ring, err := keyring.Open(keyring.Config{ServiceName: keyringServiceName})
	return &SecretResolver{store: s, ring: ring, ringErr: err}
}

// KeyringAvailable reports whether the OS keyring backend opened
// successfully on this host.
func (r *SecretResolver) KeyringAvailable() bool {
	return r.ringErr == nil
}

// Store saves a secret for key under the given owner id (a connection
// name or "llm"), preferring the keyring; allowPlaintext must be true
// for the plaintext fallback to be used, modeling the spec's per-use
// consent requirement.
func (r *SecretResolver) Store(ctx context.Context, ownerID, key, plaintext string, allowPlaintext bool) (ref string, status SecretStatus, err error) {
	if r.KeyringAvailable() {
		item := keyring.Item{
			Key:  keyringKey(ownerID, key),
			Data: []byte(plaintext),
		}
		if err := r.ring.Set(item); err == nil {
			return keyringRefPrefix + item.Key, KeyringAvailable, nil
		}
	}
	if !allowPlaintext {
		return "", SecretUnavailable, apperrors.New(apperrors.KindState, "store secret").
			WithDetails("keyring unavailable and plaintext storage was not consented to")
	}

	var id int64
	err = r.store.WithRetry(ctx, "store plaintext secret", func(ctx context.Context) error {
		res, err := r.store.db.ExecContext(ctx, `INSERT INTO secrets (value) VALUES (?)`, plaintext)
		if err != nil {
			return apperrors.StateError("store plaintext secret", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return "", SecretUnavailable, err
	}
	return fmt.Sprintf("%s%d", plaintextRefPrefix, id), PlaintextConsented, nil
}

// Resolve returns the plaintext behind a secret reference. Callers
// must never log or display the returned value.
func (r *SecretResolver) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, keyringRefPrefix):
		if !r.KeyringAvailable() {
			return "", apperrors.New(apperrors.KindState, "resolve secret").WithDetails("keyring is not available on this host")
		}
		key := strings.TrimPrefix(ref, keyringRefPrefix)
		item, err := r.ring.Get(key)
		if err != nil {
			return "", apperrors.StateError("resolve secret", err)
		}
		return string(item.Data), nil

	case strings.HasPrefix(ref, plaintextRefPrefix):
		idStr := strings.TrimPrefix(ref, plaintextRefPrefix)
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return "", apperrors.ValidationError("secret_ref", "malformed plaintext secret reference")
		}
		var value string
		err = r.store.db.GetContext(ctx, &value, `SELECT value FROM secrets WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.New(apperrors.KindState, "resolve secret").WithDetails("secret reference no longer exists")
		}
		if err != nil {
			return "", apperrors.StateError("resolve secret", err)
		}
		return value, nil

	case ref == "":
		return "", apperrors.New(apperrors.KindState, "resolve secret").WithDetails("no secret has been set")

	default:
		return "", apperrors.ValidationError("secret_ref", "unrecognized secret reference format")
	}
}

// Delete removes the secret behind ref, if any. Used when a
// ConnectionProfile or the LlmSettings row is deleted or overwritten.
func (r *SecretResolver) Delete(ctx context.Context, ref string) error {
	switch {
	case strings.HasPrefix(ref, keyringRefPrefix):
		if !r.KeyringAvailable() {
			return nil
		}
		return r.ring.Remove(strings.TrimPrefix(ref, keyringRefPrefix))
	case strings.HasPrefix(ref, plaintextRefPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(ref, plaintextRefPrefix), 10, 64)
		if err != nil {
			return nil
		}
		_, err = r.store.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id)
		return err
	}
	return nil
}

func keyringKey(ownerID, key string) string {
	return ownerID + ":" + key
}
