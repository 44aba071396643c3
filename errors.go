package regdocs

import "errors"

var (
	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("regdocs: document not found")

	// ErrRegisterNotFound is returned when a register lookup matches nothing.
	ErrRegisterNotFound = errors.New("regdocs: register not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("regdocs: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("regdocs: parsing failed")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("regdocs: embedding generation failed")

	// ErrNoResults is returned when retrieval yields no matching chunks.
	ErrNoResults = errors.New("regdocs: no results found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("regdocs: invalid configuration")
)
