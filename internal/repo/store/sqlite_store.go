package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // database/sql driver

	"github.com/LoggeL/facecensor/internal/infra/logging"
)

// Config holds configuration for the shared SQLite store.
type Config struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/censord.db"`
}

// Store owns the SQLite database handle shared by the account, ledger and job
// repositories. Accounts, ledger entries and jobs live in one database so the
// conditional charge can update the materialized balance and append the ledger
// entry inside a single transaction.
type Store struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

// Open creates the store, connects to the database and initializes the schema.
func Open(cfg Config) (*Store, error) {
	log := logging.GetLogger("repo.store.sqlite_store").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &Store{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

// The unique partial index on refunds enforces at most one refund per job in
// the schema itself, so repeated reconciliation passes cannot double-refund.
//
//nolint:gochecknoglobals
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		email         TEXT    UNIQUE NOT NULL,
		username      TEXT    UNIQUE NOT NULL,
		password_hash BLOB    NOT NULL,
		credits       INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id  INTEGER NOT NULL REFERENCES accounts(id),
		delta       INTEGER NOT NULL,
		amount_usd  REAL,
		type        TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		job_id      TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_account
		ON ledger_entries(account_id, id DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_refund_once
		ON ledger_entries(job_id) WHERE type = 'job_refund'`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id                TEXT    PRIMARY KEY,
		account_id        INTEGER NOT NULL REFERENCES accounts(id),
		original_filename TEXT    NOT NULL,
		status            TEXT    NOT NULL,
		faces_detected    INTEGER NOT NULL DEFAULT 0,
		credits_used      INTEGER NOT NULL DEFAULT 1,
		mime_type         TEXT    NOT NULL,
		processed_mime    TEXT    NOT NULL DEFAULT '',
		created_at        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_account
		ON jobs(account_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status
		ON jobs(status)`,
}

func initializeDB(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	return nil
}

// DB returns the underlying database handle for read queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithWriteTx runs fn inside a write transaction, serialized against all other
// writers of this process. The transaction is committed if fn returns nil and
// rolled back otherwise.
func (s *Store) WithWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.ErrorContext(ctx, "rollback failed", "error", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
