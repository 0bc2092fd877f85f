package jobsvc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/webp"

	"github.com/LoggeL/facecensor/internal/domain"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeWebP = "image/webp"
)

//nolint:gochecknoglobals
var (
	imageMagicHeaders = map[string][]string{
		MIMETypeJPEG: {"\xFF\xD8"},
		MIMETypePNG:  {"\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"},
	}

	imageDecoders = map[string]func(io.Reader) (image.Image, error){
		MIMETypeJPEG: jpeg.Decode,
		MIMETypePNG:  png.Decode,
		MIMETypeWebP: webp.Decode,
	}

	// There is no WebP encoder in the toolchain, so processed WebP uploads
	// are re-encoded as PNG.
	imageEncoders = map[string]func(io.Writer, image.Image) error{
		MIMETypeJPEG: func(w io.Writer, i image.Image) error { return jpeg.Encode(w, i, nil) },
		MIMETypePNG:  png.Encode,
	}
)

// sniffImageType determines the MIME type from the file's magic bytes.
// Returns ErrUnsupportedFormat for anything but JPEG, PNG and WebP.
func sniffImageType(data []byte) (string, error) {
	for mimeType, headers := range imageMagicHeaders {
		for _, header := range headers {
			if bytes.HasPrefix(data, []byte(header)) {
				return mimeType, nil
			}
		}
	}

	// WebP is a RIFF container: "RIFF" at offset 0, "WEBP" at offset 8.
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return MIMETypeWebP, nil
	}

	return "", domain.ErrUnsupportedFormat
}

// decodeImage sniffs and decodes the image in one step. A sniffable header
// with an undecodable body counts as a type mismatch.
func decodeImage(data []byte) (image.Image, string, error) {
	mimeType, err := sniffImageType(data)
	if err != nil {
		return nil, "", fmt.Errorf("sniff type: %w", err)
	}

	img, err := imageDecoders[mimeType](bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", mimeType, fmt.Errorf("%w: %w", domain.ErrImageTypeMismatch, err))
	}

	return img, mimeType, nil
}

// processedMIMEType returns the MIME type the processed artifact will carry
// for an original of the given type.
func processedMIMEType(mimeType string) string {
	if _, ok := imageEncoders[mimeType]; !ok {
		return MIMETypePNG
	}

	return mimeType
}

// encodeImage serializes the image as the given MIME type, falling back to
// PNG for types without an encoder.
func encodeImage(img image.Image, mimeType string) ([]byte, string, error) {
	mimeType = processedMIMEType(mimeType)

	var buf bytes.Buffer
	if err := imageEncoders[mimeType](&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", mimeType, err)
	}

	return buf.Bytes(), mimeType, nil
}
