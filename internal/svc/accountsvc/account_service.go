// Package accountsvc provides registration, authentication and account
// lookup. Balances are never stored on the side: every credit an account
// holds, including the welcome credit, enters through the ledger.
package accountsvc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	"github.com/LoggeL/facecensor/internal/repo/account"
	"github.com/LoggeL/facecensor/internal/repo/ledger"
)

const (
	minPasswordLength  = 6
	welcomeDescription = "Welcome bonus - 1 free censor credit"
)

// AccountConfig contains configuration parameters for the account service.
type AccountConfig struct {
	TokenConfig
}

// AccountService handles registration, login and account lookup.
type AccountService struct {
	Config      AccountConfig
	AccountRepo account.Repository
	LedgerRepo  ledger.Repository
	Tokens      *TokenManager
	Log         logging.Logger
}

// NewAccountService creates a new AccountService over the given repositories.
// Returns an error if the token manager cannot be initialized.
func NewAccountService(
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	cfg AccountConfig,
) (*AccountService, error) {
	tokens, err := NewTokenManager(cfg.TokenConfig)
	if err != nil {
		return nil, fmt.Errorf("new token manager: %w", err)
	}

	return &AccountService{
		Config:      cfg,
		AccountRepo: accountRepo,
		LedgerRepo:  ledgerRepo,
		Tokens:      tokens,
		Log:         logging.GetLogger("svc.accountsvc.account_service"),
	}, nil
}

// Register creates a new account and grants the welcome credit as the
// account's first ledger entry. The password is hashed with bcrypt before
// storage. Returns ErrPasswordTooShort, ErrDuplicateEmail or
// ErrDuplicateUsername on validation failure.
func (s *AccountService) Register(ctx context.Context, email, username, password string) (_ domain.Account, err error) {
	log := s.Log.With(logging.Group("account", "email", email, "username", username))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register failed", "error", err)
		} else {
			log.DebugContext(ctx, "account registered")
		}
	}()

	if len(password) < minPasswordLength {
		return domain.Account{}, domain.ErrPasswordTooShort
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	acct, err := s.AccountRepo.Create(ctx, email, username, passwordHash)
	if err != nil {
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	if _, err := s.LedgerRepo.Append(ctx, domain.LedgerEntry{
		AccountID:   acct.ID,
		Delta:       1,
		Type:        domain.EntrySignupBonus,
		Description: welcomeDescription,
	}); err != nil {
		return domain.Account{}, fmt.Errorf("grant welcome credit: %w", err)
	}

	acct.Credits = 1

	return acct, nil
}

// Authenticate verifies the email and password pair. Unknown emails and wrong
// passwords are indistinguishable: both return ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (_ domain.Account, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "authenticate failed", "error", err)
		} else {
			log.DebugContext(ctx, "account authenticated")
		}
	}()

	acct, err := s.AccountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Account{}, errors.Join(domain.ErrInvalidCredentials, err)
		}

		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return domain.Account{}, errors.Join(domain.ErrInvalidCredentials, err)
	}

	return acct, nil
}

// GetByID returns the account with its current materialized balance.
func (s *AccountService) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	acct, err := s.AccountRepo.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acct, nil
}

// IssueToken creates a signed bearer token for the account.
func (s *AccountService) IssueToken(ctx context.Context, acct domain.Account) (string, error) {
	token, err := s.Tokens.Issue(ctx, acct.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	return token, nil
}
