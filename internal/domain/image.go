package domain

import "errors"

var (
	// ErrUnsupportedFormat is returned when an upload is not decodable as
	// JPEG, PNG or WebP.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrImageTypeMismatch is returned when an upload's magic bytes do not
	// match any supported format header.
	ErrImageTypeMismatch = errors.New("image content does not match a supported format")
	// ErrPayloadTooLarge is returned when an upload exceeds the size limit.
	ErrPayloadTooLarge = errors.New("image too large")
)
