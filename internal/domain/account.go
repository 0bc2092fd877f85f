package domain

import "errors"

var (
	// ErrDuplicateEmail is returned when registering with an email that is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername is returned when registering with a username that is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrAccountNotFound is returned when looking up a non-existent account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	// It never reveals whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordTooShort is returned when a registration password is below the minimum length.
	ErrPasswordTooShort = errors.New("password too short")
)

// Account represents a registered user. Credits is a materialized counter that
// must always equal the signed sum of the account's ledger entries; it is only
// ever mutated through ledger appends, never by direct assignment.
type Account struct {
	ID           int64  // Unique identifier
	Email        string // Login email, unique
	Username     string // Display name, unique
	PasswordHash []byte // bcrypt hash
	Credits      int64  // Materialized ledger balance
	CreatedAt    int64  // Unix timestamp of registration
}

// AccountResponse is the JSON shape of an account as exposed to the client.
type AccountResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Credits  int64  `json:"credits"`
}

// NewAccountResponse converts an Account into its client-facing shape.
func NewAccountResponse(account Account) AccountResponse {
	return AccountResponse{
		ID:       account.ID,
		Email:    account.Email,
		Username: account.Username,
		Credits:  account.Credits,
	}
}

// TokenResponse is returned by the register and login endpoints.
type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        AccountResponse `json:"user"`
}
