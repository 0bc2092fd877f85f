// Package jobsvc is the concurrency core: it accepts uploads, performs the
// atomic charge-and-enqueue step, runs censoring in background workers and
// reconciles credit when a job fails.
package jobsvc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/engine"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	"github.com/LoggeL/facecensor/internal/repo/blob"
	"github.com/LoggeL/facecensor/internal/repo/job"
	"github.com/LoggeL/facecensor/internal/repo/ledger"
)

const (
	chargeDescriptionPrefix = "Face censoring: "
	refundDescription       = "Refund for failed censor job"
)

// OrchestratorConfig contains configuration parameters for the job
// orchestrator.
type OrchestratorConfig struct {
	// MaxUploadSize is the maximum accepted upload size in bytes
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" default:"20971520"` // 20 MiB

	// Workers is the number of concurrent censoring workers
	Workers int `env:"WORKERS" default:"4"`

	// EngineTimeout is the per-job engine deadline in seconds
	EngineTimeout int64 `env:"ENGINE_TIMEOUT" default:"120"`

	// ReconcileInterval is the delay between refund reconciliation passes
	// in seconds
	ReconcileInterval int64 `env:"RECONCILE_INTERVAL" default:"60"`
}

// Orchestrator accepts image jobs and drives them to a terminal state. Every
// accepted job is paid for with exactly one credit; jobs that end in failed
// always carry a matching refund.
type Orchestrator struct {
	Config     OrchestratorConfig
	JobRepo    job.Repository
	LedgerRepo ledger.Repository
	BlobRepo   blob.Repository
	Engine     engine.Engine
	Log        logging.Logger

	runCtx context.Context
	sem    chan struct{}
	wg     sync.WaitGroup
}

// NewOrchestrator creates a new Orchestrator. Start must be called before
// submitting jobs.
func NewOrchestrator(
	jobRepo job.Repository,
	ledgerRepo ledger.Repository,
	blobRepo blob.Repository,
	eng engine.Engine,
	cfg OrchestratorConfig,
) *Orchestrator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Orchestrator{
		Config:     cfg,
		JobRepo:    jobRepo,
		LedgerRepo: ledgerRepo,
		BlobRepo:   blobRepo,
		Engine:     eng,
		Log:        logging.GetLogger("svc.jobsvc.orchestrator"),
		sem:        make(chan struct{}, workers),
	}
}

// Start re-dispatches jobs left non-terminal by a previous run and begins the
// periodic refund reconciliation pass. The given context bounds all
// background work.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runCtx = ctx

	stale, err := o.JobRepo.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("list non-terminal jobs: %w", err)
	}

	for _, jb := range stale {
		o.Log.InfoContext(ctx, "requeueing job", logging.Group("job", "id", jb.ID, "status", string(jb.Status)))
		o.dispatch(jb.ID)
	}

	if err := o.reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	o.wg.Add(1)

	go o.reconcileLoop(ctx)

	return nil
}

// Close waits for all background workers to drain.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

// Submit validates and accepts one image job. The conditional charge is the
// commit point: nothing is persisted before it succeeds, and every failure
// after it issues a compensating refund before returning.
func (o *Orchestrator) Submit(ctx context.Context, accountID int64, filename string, data []byte) (_ domain.Job, err error) {
	log := o.Log.With(logging.Group("upload",
		"account", accountID,
		"filename", filename,
		"size", len(data),
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "submit failed", "error", err)
		} else {
			log.InfoContext(ctx, "job submitted")
		}
	}()

	if int64(len(data)) > o.Config.MaxUploadSize {
		return domain.Job{}, fmt.Errorf("%w: %d exceeds %d", domain.ErrPayloadTooLarge, len(data), o.Config.MaxUploadSize)
	}

	_, mimeType, err := decodeImage(data)
	if err != nil {
		return domain.Job{}, fmt.Errorf("validate image: %w", err)
	}

	jobID := uuid.NewString()
	log = log.With(logging.Group("job", "id", jobID))

	if _, err := o.LedgerRepo.AppendCharge(ctx, accountID, jobID, chargeDescriptionPrefix+filename); err != nil {
		return domain.Job{}, fmt.Errorf("charge: %w", err)
	}

	// Charged. From here on every failure must give the credit back.
	original := domain.NewBlob(domain.ArtifactID(jobID, domain.ArtifactOriginal), data)

	if err := o.storeArtifact(ctx, original); err != nil {
		o.refund(ctx, accountID, jobID)

		return domain.Job{}, fmt.Errorf("store original: %w", err)
	}

	jb := domain.Job{
		ID:               jobID,
		AccountID:        accountID,
		OriginalFilename: filename,
		Status:           domain.JobQueued,
		CreditsUsed:      1,
		MIMEType:         mimeType,
		CreatedAt:        time.Now().Unix(),
	}

	if err := o.JobRepo.Insert(ctx, jb); err != nil {
		_ = o.BlobRepo.Delete(ctx, original.ID)
		o.refund(ctx, accountID, jobID)

		return domain.Job{}, fmt.Errorf("insert job: %w", err)
	}

	o.dispatch(jobID)

	return jb, nil
}

// Get returns one of the account's jobs. Jobs owned by other accounts are
// reported as not found.
func (o *Orchestrator) Get(ctx context.Context, accountID int64, jobID string) (domain.Job, error) {
	jb, err := o.JobRepo.Get(ctx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}

	if jb.AccountID != accountID {
		return domain.Job{}, domain.ErrJobNotFound
	}

	return jb, nil
}

// List returns the account's jobs, most recent first.
func (o *Orchestrator) List(ctx context.Context, accountID int64) ([]domain.Job, error) {
	jobs, err := o.JobRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return jobs, nil
}

// Artifact returns the raw bytes and MIME type of a job's artifact. Requests
// for another account's job fail with ErrForbidden; a processed artifact only
// exists once the job is done.
func (o *Orchestrator) Artifact(
	ctx context.Context,
	accountID int64,
	jobID string,
	kind domain.ArtifactKind,
) ([]byte, string, error) {
	if !kind.Valid() {
		return nil, "", domain.ErrArtifactNotFound
	}

	jb, err := o.JobRepo.Get(ctx, jobID)
	if err != nil {
		return nil, "", fmt.Errorf("get job: %w", err)
	}

	if jb.AccountID != accountID {
		return nil, "", domain.ErrForbidden
	}

	mimeType := jb.MIMEType

	if kind == domain.ArtifactProcessed {
		if jb.Status != domain.JobDone {
			return nil, "", domain.ErrArtifactNotFound
		}

		mimeType = jb.ProcessedMIME
	}

	data, err := o.fetchArtifact(ctx, domain.ArtifactID(jobID, kind))
	if err != nil {
		return nil, "", fmt.Errorf("fetch artifact: %w", err)
	}

	return data, mimeType, nil
}

// dispatch hands a job to the worker pool. Worker slots are bounded by the
// semaphore; the goroutine itself is cheap enough to start eagerly.
func (o *Orchestrator) dispatch(jobID string) {
	ctx := o.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	o.wg.Add(1)

	go func() {
		defer o.wg.Done()

		select {
		case o.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-o.sem }()

		o.process(ctx, jobID)
	}()
}

// process drives one job to a terminal state. On shutdown the job is left
// non-terminal so the next run requeues it; every other failure marks the job
// failed and refunds the charge.
func (o *Orchestrator) process(ctx context.Context, jobID string) {
	log := o.Log.With(logging.Group("job", "id", jobID))

	jb, err := o.JobRepo.Get(ctx, jobID)
	if err != nil {
		log.ErrorContext(ctx, "job lookup failed", "error", err)

		return
	}

	if err := o.JobRepo.MarkProcessing(ctx, jobID); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			log.ErrorContext(ctx, "mark processing failed", "error", err)
		}

		return
	}

	original, err := o.fetchArtifact(ctx, domain.ArtifactID(jobID, domain.ArtifactOriginal))
	if err != nil {
		log.ErrorContext(ctx, "original fetch failed", "error", err)
		o.failJob(ctx, jb)

		return
	}

	img, _, err := decodeImage(original)
	if err != nil {
		log.ErrorContext(ctx, "decode failed", "error", err)
		o.failJob(ctx, jb)

		return
	}

	result, err := o.runEngine(ctx, img)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			// Shutting down; leave the job for the next run.
			return
		}

		log.ErrorContext(ctx, "engine failed", "error", err)
		o.failJob(ctx, jb)

		return
	}

	processed, processedMIME, err := encodeImage(result.Censored, jb.MIMEType)
	if err != nil {
		log.ErrorContext(ctx, "encode failed", "error", err)
		o.failJob(ctx, jb)

		return
	}

	if err := o.storeArtifact(ctx, domain.NewBlob(domain.ArtifactID(jobID, domain.ArtifactProcessed), processed)); err != nil {
		log.ErrorContext(ctx, "processed store failed", "error", err)
		o.failJob(ctx, jb)

		return
	}

	if err := o.JobRepo.MarkDone(ctx, jobID, len(result.Faces), processedMIME); err != nil {
		log.ErrorContext(ctx, "mark done failed", "error", err)

		return
	}

	log.InfoContext(ctx, "job done", logging.Group("result", "faces", len(result.Faces)))
}

// runEngine invokes the engine under a deadline. A hung engine call is
// abandoned: the result channel is buffered so the stray goroutine can finish
// and be collected.
func (o *Orchestrator) runEngine(ctx context.Context, img image.Image) (engine.Result, error) {
	timeout := time.Duration(o.Config.EngineTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	engineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result engine.Result
		err    error
	}

	results := make(chan outcome, 1)

	go func() {
		result, err := o.Engine.Process(engineCtx, img)
		results <- outcome{result: result, err: err}
	}()

	select {
	case out := <-results:
		if out.err != nil {
			return engine.Result{}, fmt.Errorf("engine: %w", out.err)
		}

		return out.result, nil
	case <-engineCtx.Done():
		return engine.Result{}, fmt.Errorf("engine: %w", engineCtx.Err())
	}
}

// failJob marks the job failed and gives the credit back. The two writes are
// ordered failed-then-refund so a crash in between is repairable: the
// reconciliation pass finds failed jobs without a refund and issues it.
func (o *Orchestrator) failJob(ctx context.Context, jb domain.Job) {
	// The writes must land even when the triggering context is gone.
	ctx = context.WithoutCancel(ctx)

	if err := o.JobRepo.MarkFailed(ctx, jb.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Already terminal; the reconciler covers a missing refund.
			return
		}

		o.Log.ErrorContext(ctx, "mark failed failed", logging.Group("job", "id", jb.ID), "error", err)

		return
	}

	if jb.CreditsUsed > 0 {
		o.refund(ctx, jb.AccountID, jb.ID)
	}
}

func (o *Orchestrator) refund(ctx context.Context, accountID int64, jobID string) {
	ctx = context.WithoutCancel(ctx)

	if _, issued, err := o.LedgerRepo.AppendRefund(ctx, accountID, jobID, refundDescription); err != nil {
		o.Log.ErrorContext(ctx, "refund failed", logging.Group("job", "id", jobID), "error", err)
	} else if issued {
		o.Log.InfoContext(ctx, "refund issued", logging.Group("job", "id", jobID))
	}
}

// reconcileLoop periodically repairs the fail-then-refund ordering after a
// crash.
func (o *Orchestrator) reconcileLoop(ctx context.Context) {
	defer o.wg.Done()

	interval := time.Duration(o.Config.ReconcileInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.reconcile(ctx); err != nil {
				o.Log.ErrorContext(ctx, "reconcile failed", "error", err)
			}
		}
	}
}

// reconcile issues the missing refund for every failed job that was charged
// but never refunded.
func (o *Orchestrator) reconcile(ctx context.Context) error {
	jobs, err := o.JobRepo.ListFailedWithoutRefund(ctx)
	if err != nil {
		return fmt.Errorf("list failed jobs: %w", err)
	}

	for _, jb := range jobs {
		o.refund(ctx, jb.AccountID, jb.ID)
	}

	return nil
}

func (o *Orchestrator) storeArtifact(ctx context.Context, artifact *domain.Blob) error {
	unlock, err := o.BlobRepo.Lock(ctx, artifact.ID, true)
	if err != nil {
		return fmt.Errorf("lock artifact: %w", err)
	}
	defer unlock()

	if err := o.BlobRepo.Store(ctx, artifact); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}

	return nil
}

func (o *Orchestrator) fetchArtifact(ctx context.Context, id domain.BlobID) ([]byte, error) {
	unlock, err := o.BlobRepo.Lock(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("lock artifact: %w", err)
	}
	defer unlock()

	artifact, err := o.BlobRepo.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}

	return artifact.Bytes(), nil
}
