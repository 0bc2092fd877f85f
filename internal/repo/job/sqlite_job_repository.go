package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	"github.com/LoggeL/facecensor/internal/repo/store"
)

const jobColumns = `id, account_id, original_filename, status,
	faces_detected, credits_used, mime_type, processed_mime, created_at`

// SQLiteJobRepository implements Repository on the shared SQLite store.
type SQLiteJobRepository struct {
	store *store.Store
	log   logging.Logger
}

var _ Repository = (*SQLiteJobRepository)(nil)

// NewSQLiteJobRepository creates a new SQLiteJobRepository over the given
// store.
func NewSQLiteJobRepository(st *store.Store) *SQLiteJobRepository {
	return &SQLiteJobRepository{
		store: st,
		log:   logging.GetLogger("repo.job.sqlite_job_repository"),
	}
}

// Insert implements Repository.Insert.
func (r *SQLiteJobRepository) Insert(ctx context.Context, job domain.Job) error {
	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (`+jobColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID,
			job.AccountID,
			job.OriginalFilename,
			job.Status,
			job.FacesDetected,
			job.CreditsUsed,
			job.MIMEType,
			job.ProcessedMIME,
			job.CreatedAt,
		)

		return err
	})
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	r.log.DebugContext(ctx, "job inserted", logging.Group("job",
		"id", job.ID,
		"account", job.AccountID,
		"status", string(job.Status),
	))

	return nil
}

// Get implements Repository.Get.
func (r *SQLiteJobRepository) Get(ctx context.Context, jobID string) (domain.Job, error) {
	row := r.store.DB().QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)

	job, err := scanJob(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrJobNotFound, err)
		}

		return domain.Job{}, fmt.Errorf("query job: %w", err)
	}

	return job, nil
}

// MarkProcessing implements Repository.MarkProcessing.
func (r *SQLiteJobRepository) MarkProcessing(ctx context.Context, jobID string) error {
	return r.setStatus(ctx, jobID, domain.JobProcessing,
		"UPDATE jobs SET status = ? WHERE id = ? AND status NOT IN ('done', 'failed')",
		domain.JobProcessing, jobID,
	)
}

// MarkDone implements Repository.MarkDone.
func (r *SQLiteJobRepository) MarkDone(
	ctx context.Context,
	jobID string,
	facesDetected int,
	processedMIME string,
) error {
	return r.setStatus(ctx, jobID, domain.JobDone,
		`UPDATE jobs SET status = ?, faces_detected = ?, processed_mime = ?
		 WHERE id = ? AND status NOT IN ('done', 'failed')`,
		domain.JobDone, facesDetected, processedMIME, jobID,
	)
}

// MarkFailed implements Repository.MarkFailed.
func (r *SQLiteJobRepository) MarkFailed(ctx context.Context, jobID string) error {
	return r.setStatus(ctx, jobID, domain.JobFailed,
		"UPDATE jobs SET status = ? WHERE id = ? AND status NOT IN ('done', 'failed')",
		domain.JobFailed, jobID,
	)
}

// setStatus runs a guarded status update. The guard keeps terminal states
// terminal: when no row matches, the job either does not exist or has already
// reached done or failed, and the two cases map to distinct errors.
func (r *SQLiteJobRepository) setStatus(
	ctx context.Context,
	jobID string,
	status domain.JobStatus,
	query string,
	args ...any,
) error {
	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM jobs WHERE id = ?)", jobID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check job: %w", err)
			}

			if !exists {
				return domain.ErrJobNotFound
			}

			return domain.ErrInvalidTransition
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.log.DebugContext(ctx, "job status updated", logging.Group("job",
		"id", jobID,
		"status", string(status),
	))

	return nil
}

// ListByAccount implements Repository.ListByAccount.
func (r *SQLiteJobRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Job, error) {
	return r.list(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE account_id = ? ORDER BY created_at DESC, id DESC`,
		accountID,
	)
}

// ListNonTerminal implements Repository.ListNonTerminal.
func (r *SQLiteJobRepository) ListNonTerminal(ctx context.Context) ([]domain.Job, error) {
	return r.list(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status IN ('queued', 'processing') ORDER BY created_at ASC, id ASC`,
	)
}

// ListFailedWithoutRefund implements Repository.ListFailedWithoutRefund.
// A job qualifies when it was charged but no refund entry references it.
func (r *SQLiteJobRepository) ListFailedWithoutRefund(ctx context.Context) ([]domain.Job, error) {
	return r.list(ctx,
		`SELECT `+jobColumns+` FROM jobs j
		 WHERE j.status = 'failed'
		   AND j.credits_used > 0
		   AND NOT EXISTS (
		       SELECT 1 FROM ledger_entries e
		       WHERE e.job_id = j.id AND e.type = 'job_refund'
		   )
		 ORDER BY j.created_at ASC`,
	)
}

func (r *SQLiteJobRepository) list(ctx context.Context, query string, args ...any) ([]domain.Job, error) {
	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job

	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

func scanJob(scan func(...any) error) (domain.Job, error) {
	var job domain.Job

	err := scan(
		&job.ID,
		&job.AccountID,
		&job.OriginalFilename,
		&job.Status,
		&job.FacesDetected,
		&job.CreditsUsed,
		&job.MIMEType,
		&job.ProcessedMIME,
		&job.CreatedAt,
	)

	return job, err
}
