package domain

import (
	"errors"
	"time"
)

var (
	// ErrJobNotFound is returned when looking up a non-existent job, or a job
	// owned by another account where leaking existence would be worse than a 404.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when attempting to move a job out of a
	// terminal state.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobStatus is the lifecycle state of a submitted image job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a sink: done and failed never revert.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// Job is the lifecycle record of one submitted image. It is created in queued
// atomically with a ledger charge and reaches exactly one terminal state:
// done with a processed artifact, or failed with a compensating refund.
type Job struct {
	ID               string    // UUID, also the artifact key prefix
	AccountID        int64     // Owning account
	OriginalFilename string    // Filename as uploaded
	Status           JobStatus // Lifecycle state
	FacesDetected    int       // Set only on done
	CreditsUsed      int       // 0 or 1
	MIMEType         string    // Sniffed type of the original
	ProcessedMIME    string    // Type of the processed artifact, set on done
	CreatedAt        int64     // Unix timestamp of submission
}

// JobResponse is the JSON shape of a job as exposed to the client.
type JobResponse struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FacesDetected    int       `json:"faces_detected"`
	Status           JobStatus `json:"status"`
	CreditsUsed      int       `json:"credits_used"`
	CreatedAt        string    `json:"created_at"`
	HasProcessed     bool      `json:"has_processed"`
}

// NewJobResponse converts a Job into its client-facing shape.
func NewJobResponse(job Job) JobResponse {
	return JobResponse{
		ID:               job.ID,
		OriginalFilename: job.OriginalFilename,
		FacesDetected:    job.FacesDetected,
		Status:           job.Status,
		CreditsUsed:      job.CreditsUsed,
		CreatedAt:        time.Unix(job.CreatedAt, 0).UTC().Format(time.RFC3339),
		HasProcessed:     job.Status == JobDone,
	}
}
