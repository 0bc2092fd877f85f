package jobsvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	context_ "github.com/LoggeL/facecensor/internal/infra/context"
	"github.com/LoggeL/facecensor/internal/infra/logging"
	http_ "github.com/LoggeL/facecensor/internal/infra/transport/http"

	"github.com/LoggeL/facecensor/internal/domain"
)

var (
	// ErrNoAccountID is returned when the request context carries no account ID.
	ErrNoAccountID = errors.New("no account id in context")
	// ErrNoFile is returned when the upload form carries no file field.
	ErrNoFile = errors.New("no file in request")
)

// multipartOverhead is headroom on top of the upload limit for the rest of
// the multipart body.
const multipartOverhead = 1 << 20

// HTTPTransport handles HTTP requests for the job service.
// All routes require a bearer token.
type HTTPTransport struct {
	orchestrator *Orchestrator
	verifier     http_.TokenVerifier
	log          logging.Logger
}

// NewHTTPTransport creates a new HTTPTransport instance.
func NewHTTPTransport(orchestrator *Orchestrator, verifier http_.TokenVerifier) *HTTPTransport {
	return &HTTPTransport{
		orchestrator: orchestrator,
		verifier:     verifier,
		log:          logging.GetLogger("svc.jobsvc.http_transport"),
	}
}

// ServeHTTP implements http.Handler and sets up routes for the job service
// endpoints:
// - POST /images/upload: Submit an image for censoring
// - GET /images/: List the account's jobs
// - GET /images/{id}/original: Raw original image bytes
// - GET /images/{id}/processed: Raw censored image bytes.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authed := func(h http.HandlerFunc) http.Handler {
		return http_.AuthorizingMiddleware(h, ht.verifier, ht.log)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /images/upload", authed(ht.HandleUpload))
	mux.Handle("GET /images/{$}", authed(ht.HandleList))
	mux.Handle("GET /images/{id}/original", authed(ht.HandleArtifact(domain.ArtifactOriginal)))
	mux.Handle("GET /images/{id}/processed", authed(ht.HandleArtifact(domain.ArtifactProcessed)))
	mux.ServeHTTP(w, r)
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// HandleUpload processes image submissions.
// Expects a multipart form with the image in the "file" field.
func (ht *HTTPTransport) HandleUpload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpload(w, r)
}

func (ht *HTTPTransport) handleUpload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "upload failed", "error", err)
		} else {
			log.DebugContext(ctx, "upload accepted")
		}
	}(r.Context())

	accountID, ok := context_.AccountIDFromContext(r.Context())
	if !ok {
		http_.Error(w, http.StatusUnauthorized, "invalid credentials")

		return ErrNoAccountID
	}

	r.Body = http.MaxBytesReader(w, r.Body, ht.orchestrator.Config.MaxUploadSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http_.Error(w, http.StatusRequestEntityTooLarge, "file too large")

			return fmt.Errorf("form file: %w", err)
		}

		http_.Error(w, http.StatusBadRequest, "file field is required")

		return errors.Join(ErrNoFile, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http_.Error(w, http.StatusBadRequest, "could not read file")

		return fmt.Errorf("read file: %w", err)
	}

	jb, err := ht.orchestrator.Submit(r.Context(), accountID, header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPayloadTooLarge):
			http_.Error(w, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, domain.ErrUnsupportedFormat), errors.Is(err, domain.ErrImageTypeMismatch):
			http_.Error(w, http.StatusBadRequest, "unsupported image format")
		case errors.Is(err, domain.ErrInsufficientCredit):
			http_.Error(w, http.StatusPaymentRequired, "insufficient credits")
		default:
			http_.Error(w, http.StatusInternalServerError, "upload failed")
		}

		return fmt.Errorf("submit: %w", err)
	}

	http_.JSON(w, http.StatusOK, domain.NewJobResponse(jb))

	return nil
}

// HandleList returns the account's jobs, most recent first.
func (ht *HTTPTransport) HandleList(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleList(w, r)
}

func (ht *HTTPTransport) handleList(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "job list failed", "error", err)
		} else {
			log.DebugContext(ctx, "jobs listed")
		}
	}(r.Context())

	accountID, ok := context_.AccountIDFromContext(r.Context())
	if !ok {
		http_.Error(w, http.StatusUnauthorized, "invalid credentials")

		return ErrNoAccountID
	}

	jobs, err := ht.orchestrator.List(r.Context(), accountID)
	if err != nil {
		http_.Error(w, http.StatusInternalServerError, "job list failed")

		return fmt.Errorf("list jobs: %w", err)
	}

	responses := make([]domain.JobResponse, 0, len(jobs))
	for _, jb := range jobs {
		responses = append(responses, domain.NewJobResponse(jb))
	}

	http_.JSON(w, http.StatusOK, responses)

	return nil
}

// HandleArtifact returns a handler serving the raw bytes of one artifact
// kind.
func (ht *HTTPTransport) HandleArtifact(kind domain.ArtifactKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = ht.handleArtifact(w, r, kind)
	}
}

func (ht *HTTPTransport) handleArtifact(w http.ResponseWriter, r *http.Request, kind domain.ArtifactKind) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "artifact fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "artifact served")
		}
	}(r.Context())

	accountID, ok := context_.AccountIDFromContext(r.Context())
	if !ok {
		http_.Error(w, http.StatusUnauthorized, "invalid credentials")

		return ErrNoAccountID
	}

	data, mimeType, err := ht.orchestrator.Artifact(r.Context(), accountID, r.PathValue("id"), kind)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			http_.Error(w, http.StatusForbidden, "forbidden")
		case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrArtifactNotFound):
			http_.Error(w, http.StatusNotFound, "not found")
		default:
			http_.Error(w, http.StatusInternalServerError, "artifact fetch failed")
		}

		return fmt.Errorf("artifact: %w", err)
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}
