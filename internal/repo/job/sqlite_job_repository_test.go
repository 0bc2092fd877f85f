//go:build integration || all

package job_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	"github.com/LoggeL/facecensor/internal/repo/account"
	"github.com/LoggeL/facecensor/internal/repo/ledger"
	"github.com/LoggeL/facecensor/internal/repo/store"

	. "github.com/LoggeL/facecensor/internal/repo/job"
)

type jobTestEnv struct {
	jobs     *SQLiteJobRepository
	accounts *account.SQLiteAccountRepository
	ledger   *ledger.SQLiteLedgerRepository
	account  domain.Account
}

func setupJobTestRepo(t *testing.T) jobTestEnv {
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

	accounts := account.NewSQLiteAccountRepository(st)

	acct, err := accounts.Create(context.TODO(), "jobs@example.com", "jobs", []byte("hash"))
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	return jobTestEnv{
		jobs:     NewSQLiteJobRepository(st),
		accounts: accounts,
		ledger:   ledger.NewSQLiteLedgerRepository(st),
		account:  acct,
	}
}

func insertTestJob(t *testing.T, env jobTestEnv, id string, createdAt int64) domain.Job {
	t.Helper()

	job := domain.Job{
		ID:               id,
		AccountID:        env.account.ID,
		OriginalFilename: "photo.jpg",
		Status:           domain.JobQueued,
		CreditsUsed:      1,
		MIMEType:         "image/jpeg",
		CreatedAt:        createdAt,
	}

	if err := env.jobs.Insert(context.TODO(), job); err != nil {
		t.Fatalf("failed to insert job: %v", err)
	}

	return job
}

func TestSQLiteJobRepository_InsertGet(t *testing.T) {
	t.Parallel()

	env := setupJobTestRepo(t)
	want := insertTestJob(t, env, "job-1", time.Now().Unix())

	got, err := env.jobs.Get(context.TODO(), want.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}

	if got != want {
		t.Errorf("job mismatch\nwant: %+v\ngot:  %+v", want, got)
	}

	if _, err := env.jobs.Get(context.TODO(), "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSQLiteJobRepository_StatusTransitions(t *testing.T) {
	t.Parallel()

	env := setupJobTestRepo(t)
	job := insertTestJob(t, env, "job-1", time.Now().Unix())

	if err := env.jobs.MarkProcessing(context.TODO(), job.ID); err != nil {
		t.Fatalf("failed to mark processing: %v", err)
	}

	if err := env.jobs.MarkDone(context.TODO(), job.ID, 3, "image/jpeg"); err != nil {
		t.Fatalf("failed to mark done: %v", err)
	}

	got, err := env.jobs.Get(context.TODO(), job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}

	if got.Status != domain.JobDone || got.FacesDetected != 3 || got.ProcessedMIME != "image/jpeg" {
		t.Errorf("unexpected job after done: %+v", got)
	}

	// Terminal states are sinks.
	if err := env.jobs.MarkProcessing(context.TODO(), job.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition after done, got %v", err)
	}

	if err := env.jobs.MarkFailed(context.TODO(), job.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition after done, got %v", err)
	}

	if err := env.jobs.MarkFailed(context.TODO(), "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSQLiteJobRepository_ListByAccount(t *testing.T) {
	t.Parallel()

	env := setupJobTestRepo(t)
	now := time.Now().Unix()

	insertTestJob(t, env, "job-old", now-10)
	insertTestJob(t, env, "job-new", now)

	jobs, err := env.jobs.ListByAccount(context.TODO(), env.account.ID)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}

	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	if jobs[0].ID != "job-new" || jobs[1].ID != "job-old" {
		t.Errorf("expected most recent first, got %s then %s", jobs[0].ID, jobs[1].ID)
	}

	if empty, err := env.jobs.ListByAccount(context.TODO(), 9999); err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	} else if len(empty) != 0 {
		t.Errorf("expected no jobs for unknown account, got %d", len(empty))
	}
}

func TestSQLiteJobRepository_ListNonTerminal(t *testing.T) {
	t.Parallel()

	env := setupJobTestRepo(t)
	now := time.Now().Unix()

	insertTestJob(t, env, "job-queued", now-20)
	insertTestJob(t, env, "job-processing", now-10)
	insertTestJob(t, env, "job-done", now)

	if err := env.jobs.MarkProcessing(context.TODO(), "job-processing"); err != nil {
		t.Fatalf("failed to mark processing: %v", err)
	}

	if err := env.jobs.MarkDone(context.TODO(), "job-done", 0, "image/jpeg"); err != nil {
		t.Fatalf("failed to mark done: %v", err)
	}

	jobs, err := env.jobs.ListNonTerminal(context.TODO())
	if err != nil {
		t.Fatalf("failed to list non-terminal jobs: %v", err)
	}

	if len(jobs) != 2 {
		t.Fatalf("expected 2 non-terminal jobs, got %d", len(jobs))
	}

	if jobs[0].ID != "job-queued" || jobs[1].ID != "job-processing" {
		t.Errorf("expected oldest first, got %s then %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestSQLiteJobRepository_ListFailedWithoutRefund(t *testing.T) {
	t.Parallel()

	env := setupJobTestRepo(t)
	now := time.Now().Unix()

	if _, err := env.ledger.Append(context.TODO(), domain.LedgerEntry{
		AccountID: env.account.ID,
		Delta:     2,
		Type:      domain.EntryPurchase,
	}); err != nil {
		t.Fatalf("failed to grant credits: %v", err)
	}

	for _, id := range []string{"job-refunded", "job-pending"} {
		insertTestJob(t, env, id, now)

		if _, err := env.ledger.AppendCharge(context.TODO(), env.account.ID, id, "Face censoring"); err != nil {
			t.Fatalf("failed to charge: %v", err)
		}

		if err := env.jobs.MarkFailed(context.TODO(), id); err != nil {
			t.Fatalf("failed to mark failed: %v", err)
		}
	}

	if _, _, err := env.ledger.AppendRefund(context.TODO(), env.account.ID, "job-refunded", "Refund for failed job"); err != nil {
		t.Fatalf("failed to refund: %v", err)
	}

	jobs, err := env.jobs.ListFailedWithoutRefund(context.TODO())
	if err != nil {
		t.Fatalf("failed to list failed jobs: %v", err)
	}

	if len(jobs) != 1 || jobs[0].ID != "job-pending" {
		t.Errorf("expected only job-pending, got %+v", jobs)
	}
}
