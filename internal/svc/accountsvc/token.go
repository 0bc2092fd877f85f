package accountsvc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	http_ "github.com/LoggeL/facecensor/internal/infra/transport/http"
)

// ErrNoSigningSecret is returned when the token signing secret is empty.
var ErrNoSigningSecret = errors.New("no signing secret")

// TokenConfig contains configuration parameters for bearer tokens.
type TokenConfig struct {
	// SigningSecret is the HMAC secret used to sign tokens
	SigningSecret string `env:"SIGNING_SECRET"`

	// TokenDuration is the validity duration of bearer tokens in seconds
	TokenDuration int64 `env:"TOKEN_DURATION" default:"86400"` // 24h
}

// TokenManager issues and verifies HS256-signed bearer tokens whose subject
// is the account ID.
type TokenManager struct {
	cfg TokenConfig
}

var _ http_.TokenVerifier = (*TokenManager)(nil)

// NewTokenManager creates a TokenManager with the given configuration.
// Returns ErrNoSigningSecret if no secret is configured.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.SigningSecret == "" {
		return nil, ErrNoSigningSecret
	}

	return &TokenManager{cfg: cfg}, nil
}

// Issue creates a signed token for the given account ID.
func (tm *TokenManager) Issue(_ context.Context, accountID int64) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(accountID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(tm.cfg.TokenDuration) * time.Second)),
	})

	signed, err := token.SignedString([]byte(tm.cfg.SigningSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify implements http.TokenVerifier. It checks the signature and expiry
// and returns the account ID carried in the subject claim.
func (tm *TokenManager) Verify(_ context.Context, tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) {
			return []byte(tm.cfg.SigningSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("get subject: %w", err)
	}

	accountID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject: %w", err)
	}

	return accountID, nil
}
