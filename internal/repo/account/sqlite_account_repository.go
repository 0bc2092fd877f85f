package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	"github.com/LoggeL/facecensor/internal/repo/store"
)

// SQLiteAccountRepository implements Repository on the shared SQLite store.
type SQLiteAccountRepository struct {
	store *store.Store
	log   logging.Logger
}

var _ Repository = (*SQLiteAccountRepository)(nil)

// NewSQLiteAccountRepository creates a new SQLiteAccountRepository over the
// given store.
func NewSQLiteAccountRepository(st *store.Store) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{
		store: st,
		log:   logging.GetLogger("repo.account.sqlite_account_repository"),
	}
}

// Create implements Repository.Create using SQLite.
func (r *SQLiteAccountRepository) Create(
	ctx context.Context,
	email, username string,
	passwordHash []byte,
) (domain.Account, error) {
	account := domain.Account{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Credits:      0,
		CreatedAt:    time.Now().Unix(),
	}

	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO accounts (email, username, password_hash, credits, created_at) VALUES (?, ?, ?, 0, ?)",
			account.Email,
			account.Username,
			account.PasswordHash,
			account.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert account: %w", duplicateError(err))
		}

		account.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	return account, nil
}

// duplicateError annotates unique-constraint violations with the domain
// sentinel for the offending column.
func duplicateError(err error) error {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) || liteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}

	if strings.Contains(liteErr.Error(), "accounts.email") {
		return errors.Join(domain.ErrDuplicateEmail, err)
	}

	return errors.Join(domain.ErrDuplicateUsername, err)
}

// GetByEmail implements Repository.GetByEmail using SQLite.
func (r *SQLiteAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.get(ctx, "email = ?", email)
}

// GetByID implements Repository.GetByID using SQLite.
func (r *SQLiteAccountRepository) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *SQLiteAccountRepository) get(ctx context.Context, where string, arg any) (domain.Account, error) {
	var account domain.Account

	err := r.store.DB().QueryRowContext(ctx,
		"SELECT id, email, username, password_hash, credits, created_at FROM accounts WHERE "+where,
		arg,
	).Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&account.Credits,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrAccountNotFound, err)
		}

		return domain.Account{}, fmt.Errorf("query account: %w", err)
	}

	return account, nil
}
