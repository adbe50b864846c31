package service

import "errors"

var (
	// ErrNotFound is returned when a ticket number is unknown
	ErrNotFound = errors.New("ticket not found")

	// ErrValidation is returned for malformed input (form fields, codes, empty reasons)
	ErrValidation = errors.New("validation failed")

	// ErrStore wraps record store read/write failures
	ErrStore = errors.New("store failure")

	// ErrTransport wraps message delivery failures
	ErrTransport = errors.New("transport failure")
)

// MissingFieldsError lists the form labels a submission lacked.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields"
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrValidation
}
