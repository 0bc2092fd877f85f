package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactNotFound is returned when requesting an artifact kind that has
	// not been produced yet, e.g. processed before the job is done.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrForbidden is returned when the requester does not own the job an
	// artifact belongs to.
	ErrForbidden = errors.New("forbidden")
)

// ArtifactKind distinguishes the two binary blobs a job can own.
type ArtifactKind string

const (
	ArtifactOriginal  ArtifactKind = "original"
	ArtifactProcessed ArtifactKind = "processed"
)

// Valid reports whether the kind is one of the two known artifact kinds.
func (k ArtifactKind) Valid() bool {
	return k == ArtifactOriginal || k == ArtifactProcessed
}

// ArtifactID derives the blob ID for a job's artifact of the given kind.
func ArtifactID(jobID string, kind ArtifactKind) BlobID {
	return BlobID(fmt.Sprintf("%s_%s", jobID, kind))
}
