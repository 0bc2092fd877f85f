package ledger

import (
	"context"

	"github.com/LoggeL/facecensor/internal/domain"
)

// Repository is the append-only credit ledger. It is the source of truth for
// account balances: the materialized accounts.credits counter is updated in
// the same transaction as every append and must never diverge from the signed
// sum of the account's entries.
type Repository interface {
	// Append atomically records a credit grant and updates the materialized
	// balance. Used for signup bonuses and purchases.
	// Returns ErrAccountNotFound if the account does not exist.
	Append(ctx context.Context, entry domain.LedgerEntry) (domain.LedgerEntry, error)

	// AppendCharge is the conditional charge primitive: it decrements one
	// credit and appends a job_charge entry only if the resulting balance
	// stays non-negative, as a single atomic step relative to all other
	// charge attempts for the same account.
	// Returns ErrInsufficientCredit if the balance is zero.
	AppendCharge(ctx context.Context, accountID int64, jobID, description string) (domain.LedgerEntry, error)

	// AppendRefund restores the charge of a failed job with a job_refund
	// entry. Idempotent per job: if a refund for jobID already exists no
	// entry is appended and issued is false.
	AppendRefund(ctx context.Context, accountID int64, jobID, description string) (entry domain.LedgerEntry, issued bool, err error)

	// Balance returns the materialized balance of the account.
	Balance(ctx context.Context, accountID int64) (int64, error)

	// ReplayBalance recomputes the balance by summing the account's entries.
	// It must always equal Balance; the orchestrator and tests verify this.
	ReplayBalance(ctx context.Context, accountID int64) (int64, error)

	// History returns the account's entries, most recent first, up to limit.
	// A limit of zero or less returns all entries.
	History(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error)
}
