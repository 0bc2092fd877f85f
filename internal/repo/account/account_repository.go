package account

import (
	"context"

	"github.com/LoggeL/facecensor/internal/domain"
)

// Repository defines the interface for account persistence.
type Repository interface {
	// Create adds a new account with zero credits. The welcome credit is
	// granted through the ledger afterwards, never by seeding the counter.
	// Returns ErrDuplicateEmail or ErrDuplicateUsername on unique violations.
	Create(ctx context.Context, email, username string, passwordHash []byte) (domain.Account, error)

	// GetByEmail retrieves an account by its login email.
	// Returns ErrAccountNotFound if no such account exists.
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetByID retrieves an account by its ID.
	// Returns ErrAccountNotFound if no such account exists.
	GetByID(ctx context.Context, id int64) (domain.Account, error)
}
