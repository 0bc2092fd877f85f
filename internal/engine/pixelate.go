package engine

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

const (
	// padFraction grows each face region so hairlines and chins are covered.
	padFraction = 0.25

	// Block size scales with the region but never drops below minBlockSize,
	// so small faces still end up unrecognizable.
	minBlockSize = 8
	blockDivisor = 6
)

// censor returns a copy of src with every face region pixelated. Regions are
// padded before pixelation and clamped to the image bounds.
func censor(src image.Image, faces []image.Rectangle) image.Image {
	bounds := src.Bounds()

	dst := image.NewRGBA(bounds)
	xdraw.Copy(dst, bounds.Min, src, bounds, xdraw.Src, nil)

	for _, face := range faces {
		region := padRect(face).Intersect(bounds)
		if !region.Empty() {
			pixelate(dst, region)
		}
	}

	return dst
}

// padRect grows the rectangle by padFraction of its size on every side.
func padRect(r image.Rectangle) image.Rectangle {
	padX := int(float64(r.Dx()) * padFraction)
	padY := int(float64(r.Dy()) * padFraction)

	return image.Rect(r.Min.X-padX, r.Min.Y-padY, r.Max.X+padX, r.Max.Y+padY)
}

// pixelate mosaics the region in place by scaling it down and blowing it back
// up with nearest-neighbor sampling.
func pixelate(dst *image.RGBA, region image.Rectangle) {
	width, height := region.Dx(), region.Dy()

	block := min(width, height) / blockDivisor
	if block < minBlockSize {
		block = minBlockSize
	}

	small := image.NewRGBA(image.Rect(0, 0, max(1, width/block), max(1, height/block)))

	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), dst, region, xdraw.Src, nil)
	xdraw.NearestNeighbor.Scale(dst, region, small, small.Bounds(), xdraw.Src, nil)
}
