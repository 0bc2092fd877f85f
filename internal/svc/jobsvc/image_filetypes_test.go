package jobsvc

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/LoggeL/facecensor/internal/domain"
)

func encodeTestImage(t *testing.T, encode func(*bytes.Buffer) error) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}

	return buf.Bytes()
}

func TestSniffImageType(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	tests := []struct {
		name     string
		data     []byte
		wantType string
		wantErr  error
	}{
		{
			name:     "detects jpeg",
			data:     encodeTestImage(t, func(buf *bytes.Buffer) error { return jpeg.Encode(buf, img, nil) }),
			wantType: MIMETypeJPEG,
		},
		{
			name:     "detects png",
			data:     encodeTestImage(t, func(buf *bytes.Buffer) error { return png.Encode(buf, img) }),
			wantType: MIMETypePNG,
		},
		{
			name:     "detects webp riff container",
			data:     []byte("RIFF\x24\x00\x00\x00WEBPVP8 "),
			wantType: MIMETypeWebP,
		},
		{
			name:    "rejects plain riff",
			data:    []byte("RIFF\x24\x00\x00\x00WAVEfmt "),
			wantErr: domain.ErrUnsupportedFormat,
		},
		{
			name:    "rejects text",
			data:    []byte("hello world, definitely no image"),
			wantErr: domain.ErrUnsupportedFormat,
		},
		{
			name:    "rejects empty",
			data:    nil,
			wantErr: domain.ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mimeType, err := sniffImageType(tt.data)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if mimeType != tt.wantType {
				t.Errorf("expected %s, got %s", tt.wantType, mimeType)
			}
		})
	}
}

func TestDecodeImageMismatch(t *testing.T) {
	t.Parallel()

	// Valid PNG header, garbage body.
	data := append([]byte("\x89PNG\r\n\x1a\n"), []byte("not actually a png")...)

	if _, _, err := decodeImage(data); !errors.Is(err, domain.ErrImageTypeMismatch) {
		t.Errorf("expected ErrImageTypeMismatch, got %v", err)
	}
}

func TestProcessedMIMEType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{MIMETypeJPEG, MIMETypeJPEG},
		{MIMETypePNG, MIMETypePNG},
		{MIMETypeWebP, MIMETypePNG}, // no webp encoder
	}

	for _, tt := range tests {
		if got := processedMIMEType(tt.in); got != tt.want {
			t.Errorf("processedMIMEType(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEncodeImageRoundTrip(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	data, mimeType, err := encodeImage(img, MIMETypeWebP)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	if mimeType != MIMETypePNG {
		t.Errorf("expected webp to fall back to png, got %s", mimeType)
	}

	if _, decodedType, err := decodeImage(data); err != nil || decodedType != MIMETypePNG {
		t.Errorf("round trip failed: type %s, err %v", decodedType, err)
	}
}
