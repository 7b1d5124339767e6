// Package statestore implements the State Store component: durable
// local state for connection profiles, query history, saved queries,
// and LLM settings, backed by a single SQLite file.
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/logging"

	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

// RetentionMaxRows and RetentionMaxAge implement the "min(5000 rows, 90
// days)" history retention policy.
const (
	RetentionMaxRows = 5000
	RetentionMaxAge  = 90 * 24 * time.Hour
)

var migrationFileVersion = regexp.MustCompile(`^(\d+)_`)

// Store is the facade the Orchestrator depends on. It wraps one SQLite
// file and exposes typed repositories plus the retry wrapper.
type Store struct {
	db        *sqlx.DB
	path      string
	recovered bool
	logger    *zap.Logger

	Connections *ConnectionRepo
	History     *HistoryRepo
	SavedQueries *SavedQueryRepo
	Settings    *SettingsRepo
	Secrets     *SecretResolver
}

// Open opens (creating if necessary) the SQLite file at path, runs
// integrity checks and migrations, and seeds the synthetic default
// connection profile. It never returns a Store with recovered state
// half-applied: recovery, if needed, happens before migrations run.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, apperrors.StateError("open", err).WithDetails("could not create state directory")
	}

	recovered, err := recoverIfCorrupt(path)
	if err != nil {
		return nil, apperrors.StateError("open", err).WithDetails("corruption recovery failed")
	}

	db, err := sql.Open(sqliteDriver, path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperrors.StateError("open", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return nil, apperrors.StateError("open", err).WithDetails("failed to enable WAL")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		return nil, apperrors.StateError("open", err).WithDetails("failed to enable foreign keys")
	}

	if err := checkSchemaVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	goose.SetBaseFS(migrationFiles)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, apperrors.StateError("open", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, apperrors.StateError("open", err).WithDetails("schema migration failed")
	}

	sdb := sqlx.NewDb(db, sqliteDriver)

	s := &Store{db: sdb, path: path, recovered: recovered, logger: zap.NewNop()}
	if recovered {
		logging.Warn(s.logger, "state store recovered from corruption", logging.NewFields().Component("statestore").Custom("path", path))
	}
	s.Connections = &ConnectionRepo{store: s}
	s.History = &HistoryRepo{store: s}
	s.SavedQueries = &SavedQueryRepo{store: s}
	s.Settings = &SettingsRepo{store: s}
	s.Secrets = NewSecretResolver(s)

	if err := s.Connections.ensureDefaultProfile(ctx); err != nil {
		sdb.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetLogger swaps the no-op logger installed by Open for the process's
// real one. Called once, after the caller has built its own *zap.Logger
// (which may depend on config this package doesn't have access to).
func (s *Store) SetLogger(l *zap.Logger) {
	if l != nil {
		s.logger = l
	}
}

// WasRecovered reports whether Open had to discard a corrupt file and
// start fresh. The flag is one-shot by convention: callers read it
// immediately after Open and surface it to the user.
func (s *Store) WasRecovered() bool {
	return s.recovered
}

func recoverIfCorrupt(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}

	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var result string
	err = db.QueryRow("PRAGMA integrity_check;").Scan(&result)
	if err == nil && strings.EqualFold(result, "ok") {
		return false, nil
	}

	backupPath := path + ".bak"
	_ = os.Remove(backupPath)
	if err := os.Rename(path, backupPath); err != nil {
		return false, fmt.Errorf("renaming corrupt database to %s: %w", backupPath, err)
	}
	return true, nil
}

// checkSchemaVersion fails open with ErrIncompatibleSchema if the
// database was migrated by a newer binary than this one.
func checkSchemaVersion(db *sql.DB) error {
	var exists int
	err := db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name='goose_db_version'").Scan(&exists)
	if err != nil || exists == 0 {
		return nil
	}

	var applied int64
	if err := db.QueryRow("SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version").Scan(&applied); err != nil {
		return nil
	}

	known, err := latestKnownMigration()
	if err != nil {
		return nil
	}
	if applied > known {
		return ErrIncompatibleSchema(applied, known)
	}
	return nil
}

func latestKnownMigration() (int64, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return 0, err
	}
	var max int64
	for _, e := range entries {
		m := migrationFileVersion.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max, nil
}

// retryableSQLiteErrors are substrings SQLITE_BUSY/SQLITE_LOCKED
// surface as in modernc.org/sqlite's driver error text.
var retryableSQLiteErrors = []string{"database is locked", "SQLITE_BUSY", "SQLITE_LOCKED"}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range retryableSQLiteErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// WithRetry runs fn inside exponential backoff (base 10ms, factor 2, 5
// attempts) whenever it fails with a lock-contention error, surfacing
// ErrLockTimeout once the budget is exhausted.
func (s *Store) WithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.Multiplier = 2

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if attempt >= 5 || !isRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		logging.Warn(s.logger, "retrying after lock contention", logging.NewFields().Component("statestore").Operation(operation).Custom("attempt", attempt).Error(err))
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(5)))

	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		if isRetryable(permanent.Err) {
			return ErrLockTimeout(operation, permanent.Err)
		}
		return permanent.Err
	}
	return ErrLockTimeout(operation, err)
}

// pruneHistory deletes rows beyond RetentionMaxRows or older than
// RetentionMaxAge. Called best-effort (errors logged, never
// propagated) after every history insert.
func (s *Store) pruneHistory(ctx context.Context) error {
	cutoff := time.Now().Add(-RetentionMaxAge)
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM query_history
		WHERE id NOT IN (
			SELECT id FROM query_history ORDER BY created_at DESC LIMIT ?
		) OR created_at < ?`, RetentionMaxRows, cutoff)
	return err
}
