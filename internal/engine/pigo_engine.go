package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/LoggeL/facecensor/internal/infra/logging"
)

// PigoEngineConfig holds configuration for the pigo-based face detector.
type PigoEngineConfig struct {
	// CascadeFile is the path to the binary cascade model
	CascadeFile string `env:"CASCADE_FILE" default:"assets/facefinder"`
	// MinSize is the smallest face size to look for, in pixels
	MinSize int `env:"MIN_SIZE" default:"20"`
	// MaxSize caps the face size; zero means the smaller image dimension
	MaxSize int `env:"MAX_SIZE" default:"0"`
	// ShiftFactor controls the detection window step, as a fraction of size
	ShiftFactor float64 `env:"SHIFT_FACTOR" default:"0.1"`
	// ScaleFactor controls how fast the detection window grows
	ScaleFactor float64 `env:"SCALE_FACTOR" default:"1.1"`
	// QualityThreshold discards detections scored below it
	QualityThreshold float64 `env:"QUALITY_THRESHOLD" default:"5.0"`
	// IoUThreshold controls clustering of overlapping detections
	IoUThreshold float64 `env:"IOU_THRESHOLD" default:"0.2"`
}

// PigoEngine implements Engine using the pigo pixel intensity comparison
// cascade. The classifier is stateless after unpacking, so a single engine is
// safe for concurrent use.
type PigoEngine struct {
	classifier *pigo.Pigo
	cfg        PigoEngineConfig
	log        logging.Logger
}

var _ Engine = (*PigoEngine)(nil)

// NewPigoEngine loads and unpacks the cascade model at cfg.CascadeFile.
// Returns ErrDetectorUnavailable if the model cannot be loaded.
func NewPigoEngine(cfg PigoEngineConfig) (*PigoEngine, error) {
	log := logging.GetLogger("engine.pigo_engine").With(
		logging.Group("engine", "cascade", cfg.CascadeFile),
	)

	model, err := os.ReadFile(cfg.CascadeFile)
	if err != nil {
		return nil, errors.Join(ErrDetectorUnavailable, fmt.Errorf("read cascade: %w", err))
	}

	classifier, err := pigo.NewPigo().Unpack(model)
	if err != nil {
		return nil, errors.Join(ErrDetectorUnavailable, fmt.Errorf("unpack cascade: %w", err))
	}

	return &PigoEngine{
		classifier: classifier,
		cfg:        cfg,
		log:        log,
	}, nil
}

// Process implements Engine.Process.
func (e *PigoEngine) Process(ctx context.Context, img image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	faces := e.detect(img)

	e.log.DebugContext(ctx, "detection complete", logging.Group("image",
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"faces", len(faces),
	))

	if len(faces) == 0 {
		return Result{Censored: img}, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	return Result{
		Faces:    faces,
		Censored: censor(img, faces),
	}, nil
}

func (e *PigoEngine) detect(img image.Image) []image.Rectangle {
	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()

	maxSize := e.cfg.MaxSize
	if maxSize <= 0 {
		maxSize = min(cols, rows)
	}

	params := pigo.CascadeParams{
		MinSize:     e.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: e.cfg.ShiftFactor,
		ScaleFactor: e.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := e.classifier.RunCascade(params, 0.0)
	dets = e.classifier.ClusterDetections(dets, e.cfg.IoUThreshold)

	var faces []image.Rectangle

	for _, det := range dets {
		if det.Q < float32(e.cfg.QualityThreshold) {
			continue
		}

		half := det.Scale / 2
		face := image.Rect(
			bounds.Min.X+det.Col-half,
			bounds.Min.Y+det.Row-half,
			bounds.Min.X+det.Col+half,
			bounds.Min.Y+det.Row+half,
		)

		faces = append(faces, face.Intersect(bounds))
	}

	return faces
}
