package statestore

import apperrors "github.com/jordigilh/glance/internal/errors"

// ErrIncompatibleSchema is returned by Open when the database file was
// written by a newer binary than the one opening it.
func ErrIncompatibleSchema(fileVersion, knownVersion int64) error {
	return apperrors.New(apperrors.KindState, "open").
		WithDetailsf("database schema version %d is newer than this build supports (%d); upgrade glance", fileVersion, knownVersion)
}

// ErrLockTimeout is returned once WithRetry exhausts its backoff
// budget against a busy or locked database.
func ErrLockTimeout(operation string, cause error) error {
	return apperrors.Wrap(cause, apperrors.KindState, operation).WithDetails("gave up after repeated lock contention")
}

func errNotFound(resource, name string) error {
	return apperrors.New(apperrors.KindState, "lookup").
		WithResource(resource).
		WithDetailsf("%s %q not found", resource, name)
}
