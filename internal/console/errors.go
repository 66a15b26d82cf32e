package console

import "errors"

var (
	// ErrInvalidInput is returned when a draft is missing name or email.
	// No network call is made.
	ErrInvalidInput = errors.New("console: name and email are required")

	// ErrUnsupportedFileType is returned for non-PDF uploads before any
	// call to the extraction resource.
	ErrUnsupportedFileType = errors.New("console: only PDF files are supported")

	// ErrRemoteWriteFailed is returned when a remote create/update/delete
	// call fails or times out.
	ErrRemoteWriteFailed = errors.New("console: remote write failed")

	// ErrRemoteReadFailed is returned when refreshing from the remote
	// store fails or times out.
	ErrRemoteReadFailed = errors.New("console: remote read failed")

	// ErrExtractionFailed is returned when the extraction resource cannot
	// produce a lead.
	ErrExtractionFailed = errors.New("console: document extraction failed")

	// ErrLeadNotFound is returned for operations on an id absent from the
	// local collection.
	ErrLeadNotFound = errors.New("console: lead not found")
)
