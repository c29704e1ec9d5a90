package claim

import "errors"

// Degradations. Components return their fallback value together with one of
// these, wrapped with the underlying cause.
var (
	ErrExtractionFailed      = errors.New("text extraction failed")
	ErrClassificationFailed  = errors.New("classification failed")
	ErrFieldExtractionFailed = errors.New("field extraction failed")
	ErrValidationFailed      = errors.New("validation failed")
)

// ErrTooManyFiles is returned when a claim has more files than the service accepts.
var ErrTooManyFiles = errors.New("too many files in claim")
