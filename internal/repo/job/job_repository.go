package job

import (
	"context"

	"github.com/LoggeL/facecensor/internal/domain"
)

// Repository defines the interface for job persistence. Status transitions
// out of a terminal state are rejected with ErrInvalidTransition: done and
// failed are sinks.
type Repository interface {
	// Insert adds a new job record in queued state.
	Insert(ctx context.Context, job domain.Job) error

	// Get retrieves a job by ID regardless of owner.
	// Returns ErrJobNotFound if no such job exists.
	Get(ctx context.Context, jobID string) (domain.Job, error)

	// MarkProcessing transitions a job to processing.
	MarkProcessing(ctx context.Context, jobID string) error

	// MarkDone transitions a job to done, recording the number of detected
	// faces and the MIME type of the processed artifact.
	MarkDone(ctx context.Context, jobID string, facesDetected int, processedMIME string) error

	// MarkFailed transitions a job to failed.
	MarkFailed(ctx context.Context, jobID string) error

	// ListByAccount returns the account's jobs, most recent first.
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Job, error)

	// ListNonTerminal returns all jobs still in queued or processing, oldest
	// first. Used to re-dispatch work after a restart.
	ListNonTerminal(ctx context.Context) ([]domain.Job, error)

	// ListFailedWithoutRefund returns failed jobs that were charged but have
	// no matching refund entry yet. Used by the reconciliation pass.
	ListFailedWithoutRefund(ctx context.Context) ([]domain.Job, error)
}
