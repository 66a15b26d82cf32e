package extraction

import "errors"

var (
	// ErrUnsupportedFileType is returned for any upload that is not a PDF.
	ErrUnsupportedFileType = errors.New("extraction: only PDF files are supported")

	// ErrExtractionFailed is returned when the recognizer cannot produce text.
	ErrExtractionFailed = errors.New("extraction: failed to extract text from document")
)
