package engine

import (
	"image"
	"image/color"
	"testing"
)

func gradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 255})
		}
	}

	return img
}

func TestPadRect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rect image.Rectangle
		want image.Rectangle
	}{
		{
			name: "pads by a quarter on every side",
			rect: image.Rect(100, 100, 200, 200),
			want: image.Rect(75, 75, 225, 225),
		},
		{
			name: "small rect rounds padding down",
			rect: image.Rect(10, 10, 13, 13),
			want: image.Rect(10, 10, 13, 13),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := padRect(tt.rect); got != tt.want {
				t.Errorf("padRect(%v) = %v, want %v", tt.rect, got, tt.want)
			}
		})
	}
}

func TestCensorLeavesOutsideUntouched(t *testing.T) {
	t.Parallel()

	src := gradientImage(256, 256)
	face := image.Rect(64, 64, 128, 128)

	out := censor(src, []image.Rectangle{face})

	region := padRect(face).Intersect(src.Bounds())

	changed := false

	for y := range 256 {
		for x := range 256 {
			want := src.RGBAAt(x, y)
			got := color.RGBAModel.Convert(out.At(x, y)).(color.RGBA)

			if image.Pt(x, y).In(region) {
				if got != want {
					changed = true
				}

				continue
			}

			if got != want {
				t.Fatalf("pixel outside region changed at (%d,%d): want %v, got %v", x, y, want, got)
			}
		}
	}

	if !changed {
		t.Error("expected pixels inside the face region to change")
	}
}

func TestCensorNoFaces(t *testing.T) {
	t.Parallel()

	src := gradientImage(32, 32)
	out := censor(src, nil)

	for y := range 32 {
		for x := range 32 {
			want := src.RGBAAt(x, y)
			got := color.RGBAModel.Convert(out.At(x, y)).(color.RGBA)

			if got != want {
				t.Fatalf("pixel changed at (%d,%d): want %v, got %v", x, y, want, got)
			}
		}
	}
}

func TestCensorClampsFaceToBounds(t *testing.T) {
	t.Parallel()

	src := gradientImage(64, 64)

	// Face hangs over the image edge; censoring must not panic and must stay
	// inside bounds.
	out := censor(src, []image.Rectangle{image.Rect(-20, -20, 30, 30)})

	if got := out.Bounds(); got != src.Bounds() {
		t.Errorf("bounds changed: want %v, got %v", src.Bounds(), got)
	}
}
