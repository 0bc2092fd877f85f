// Package engine provides face detection and censoring over decoded images.
package engine

import (
	"context"
	"errors"
	"image"
)

// ErrDetectorUnavailable is returned when the engine cannot run because its
// cascade model failed to load.
var ErrDetectorUnavailable = errors.New("detector unavailable")

// Result holds the outcome of one censoring pass.
type Result struct {
	// Faces are the detected face regions in image coordinates, before
	// padding is applied.
	Faces []image.Rectangle

	// Censored is the output image. When no faces were detected it is the
	// input image unchanged.
	Censored image.Image
}

// Engine detects faces in an image and obscures them.
type Engine interface {
	// Process runs detection and censoring on the given image. An image with
	// no detectable faces is not an error: the result carries zero faces and
	// the unmodified input.
	Process(ctx context.Context, img image.Image) (Result, error)
}
