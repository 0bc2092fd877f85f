package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	"github.com/LoggeL/facecensor/internal/repo/store"
)

// SQLiteLedgerRepository implements Repository on the shared SQLite store.
// Every append runs inside a write transaction that also adjusts the
// materialized accounts.credits counter, keeping the two in lock-step.
type SQLiteLedgerRepository struct {
	store *store.Store
	log   logging.Logger
}

var _ Repository = (*SQLiteLedgerRepository)(nil)

// NewSQLiteLedgerRepository creates a new SQLiteLedgerRepository over the
// given store.
func NewSQLiteLedgerRepository(st *store.Store) *SQLiteLedgerRepository {
	return &SQLiteLedgerRepository{
		store: st,
		log:   logging.GetLogger("repo.ledger.sqlite_ledger_repository"),
	}
}

// Append implements Repository.Append.
func (r *SQLiteLedgerRepository) Append(
	ctx context.Context,
	entry domain.LedgerEntry,
) (domain.LedgerEntry, error) {
	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE accounts SET credits = credits + ? WHERE id = ?",
			entry.Delta, entry.AccountID,
		)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		if affected, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if affected == 0 {
			return domain.ErrAccountNotFound
		}

		return r.insertEntry(ctx, tx, &entry)
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	r.logAppend(ctx, entry)

	return entry, nil
}

// AppendCharge implements Repository.AppendCharge. The guard on the UPDATE is
// what makes the charge conditional: the decrement only applies when at least
// one credit remains, and the entry is inserted in the same transaction. Two
// concurrent charges against a balance of one serialize on the write
// transaction, so exactly one succeeds.
func (r *SQLiteLedgerRepository) AppendCharge(
	ctx context.Context,
	accountID int64,
	jobID, description string,
) (domain.LedgerEntry, error) {
	entry := domain.LedgerEntry{
		AccountID:   accountID,
		Delta:       -1,
		Type:        domain.EntryJobCharge,
		Description: description,
		JobID:       jobID,
	}

	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE accounts SET credits = credits - 1 WHERE id = ? AND credits >= 1",
			accountID,
		)
		if err != nil {
			return fmt.Errorf("conditional decrement: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?)", accountID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check account: %w", err)
			}

			if !exists {
				return domain.ErrAccountNotFound
			}

			return domain.ErrInsufficientCredit
		}

		return r.insertEntry(ctx, tx, &entry)
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	r.logAppend(ctx, entry)

	return entry, nil
}

// AppendRefund implements Repository.AppendRefund. The existence check runs in
// the same write transaction as the insert, and the schema's unique partial
// index on refunds backs it up.
func (r *SQLiteLedgerRepository) AppendRefund(
	ctx context.Context,
	accountID int64,
	jobID, description string,
) (domain.LedgerEntry, bool, error) {
	entry := domain.LedgerEntry{
		AccountID:   accountID,
		Delta:       1,
		Type:        domain.EntryJobRefund,
		Description: description,
		JobID:       jobID,
	}

	issued := false

	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE job_id = ? AND type = ?)",
			jobID, domain.EntryJobRefund,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check refund: %w", err)
		}

		if exists {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE accounts SET credits = credits + 1 WHERE id = ?",
			accountID,
		); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		if err := r.insertEntry(ctx, tx, &entry); err != nil {
			return err
		}

		issued = true

		return nil
	})
	if err != nil {
		return domain.LedgerEntry{}, false, err
	}

	if issued {
		r.logAppend(ctx, entry)
	}

	return entry, issued, nil
}

func (r *SQLiteLedgerRepository) insertEntry(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	entry.CreatedAt = time.Now().Unix()

	var amount sql.NullFloat64
	if entry.AmountUSD != nil {
		amount = sql.NullFloat64{Float64: *entry.AmountUSD, Valid: true}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (account_id, delta, amount_usd, type, description, job_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.AccountID,
		entry.Delta,
		amount,
		entry.Type,
		entry.Description,
		entry.JobID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	if entry.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	return nil
}

func (r *SQLiteLedgerRepository) logAppend(ctx context.Context, entry domain.LedgerEntry) {
	r.log.DebugContext(ctx, "ledger entry appended", logging.Group("entry",
		"id", entry.ID,
		"account", entry.AccountID,
		"delta", entry.Delta,
		"type", string(entry.Type),
		"job", entry.JobID,
	))
}

// Balance implements Repository.Balance by reading the materialized counter.
func (r *SQLiteLedgerRepository) Balance(ctx context.Context, accountID int64) (int64, error) {
	var balance int64

	err := r.store.DB().QueryRowContext(ctx,
		"SELECT credits FROM accounts WHERE id = ?", accountID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrAccountNotFound, err)
		}

		return 0, fmt.Errorf("query balance: %w", err)
	}

	return balance, nil
}

// ReplayBalance implements Repository.ReplayBalance by summing the log.
func (r *SQLiteLedgerRepository) ReplayBalance(ctx context.Context, accountID int64) (int64, error) {
	var balance int64

	err := r.store.DB().QueryRowContext(ctx,
		"SELECT COALESCE(SUM(delta), 0) FROM ledger_entries WHERE account_id = ?", accountID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}

	return balance, nil
}

// History implements Repository.History.
func (r *SQLiteLedgerRepository) History(
	ctx context.Context,
	accountID int64,
	limit int,
) ([]domain.LedgerEntry, error) {
	query := `SELECT id, account_id, delta, amount_usd, type, description, job_id, created_at
		FROM ledger_entries WHERE account_id = ? ORDER BY id DESC`
	args := []any{accountID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry

	for rows.Next() {
		var (
			entry  domain.LedgerEntry
			amount sql.NullFloat64
		)

		if err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.Delta,
			&amount,
			&entry.Type,
			&entry.Description,
			&entry.JobID,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if amount.Valid {
			entry.AmountUSD = &amount.Float64
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}
