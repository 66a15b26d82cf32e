package leads

import "errors"

var (
	// ErrInvalidInput is returned when a draft is missing name or email.
	ErrInvalidInput = errors.New("leads: name and email are required")

	// ErrInvalidStatus is returned for a status outside New/Contacted.
	ErrInvalidStatus = errors.New("leads: status must be New or Contacted")

	// ErrLeadNotFound is returned when a lead is not found.
	ErrLeadNotFound = errors.New("leads: lead not found")
)
