//go:build integration || all

package account_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	"github.com/LoggeL/facecensor/internal/repo/store"

	. "github.com/LoggeL/facecensor/internal/repo/account"
)

func setupAccountTestRepo(t *testing.T) *SQLiteAccountRepository {
	t.Helper()

	logging.Configure(context.TODO(), logging.LoggerConfig{
		OutputHandle: os.Stderr,
		Level:        "debug",
	}, "test")

	st, err := store.Open(store.Config{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() { _ = st.Close() })

	return NewSQLiteAccountRepository(st)
}

func TestSQLiteAccountRepository_Create(t *testing.T) {
	t.Parallel()

	repo := setupAccountTestRepo(t)

	acct, err := repo.Create(context.TODO(), "alice@example.com", "alice", []byte("hash"))
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	if acct.ID == 0 {
		t.Error("expected account ID to be assigned")
	}

	if acct.Credits != 0 {
		t.Errorf("expected zero credits on creation, got %d", acct.Credits)
	}

	tests := []struct {
		name     string
		email    string
		username string
		wantErr  error
	}{
		{
			name:     "rejects duplicate email",
			email:    "alice@example.com",
			username: "alice2",
			wantErr:  domain.ErrDuplicateEmail,
		},
		{
			name:     "rejects duplicate username",
			email:    "alice2@example.com",
			username: "alice",
			wantErr:  domain.ErrDuplicateUsername,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.Create(context.TODO(), tt.email, tt.username, []byte("hash")); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSQLiteAccountRepository_Get(t *testing.T) {
	t.Parallel()

	repo := setupAccountTestRepo(t)

	want, err := repo.Create(context.TODO(), "bob@example.com", "bob", []byte("hash"))
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	byEmail, err := repo.GetByEmail(context.TODO(), "bob@example.com")
	if err != nil {
		t.Fatalf("failed to get account by email: %v", err)
	}

	if byEmail.ID != want.ID || byEmail.Username != "bob" {
		t.Errorf("unexpected account: %+v", byEmail)
	}

	byID, err := repo.GetByID(context.TODO(), want.ID)
	if err != nil {
		t.Fatalf("failed to get account by id: %v", err)
	}

	if byID.Email != "bob@example.com" {
		t.Errorf("unexpected account: %+v", byID)
	}

	if _, err := repo.GetByEmail(context.TODO(), "missing@example.com"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}

	if _, err := repo.GetByID(context.TODO(), 9999); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}
