package workflow

import "errors"

// Failure taxonomy shared by the workflow engine. Handlers map these to HTTP
// status codes; callers are expected to retry only after ErrConflict.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("version conflict")
	ErrIncompatible = errors.New("incompatible request")
	ErrValidation   = errors.New("validation failed")
)
