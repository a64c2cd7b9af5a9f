package domain

import "errors"

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")

	// Validation errors: the caller asked for something the engine refuses.
	ErrUnknownRepository = errors.New("unknown repository")
	ErrGraphCyclic       = errors.New("dependency graph contains a cycle")
	ErrPipelineCyclic    = errors.New("pipeline graph contains a cycle")
	ErrMultipleSources   = errors.New("pipeline graph has more than one source job")
	ErrInvalidTransition = errors.New("invalid job status transition")

	// Integrity errors: bookkeeping is broken and retrying cannot fix it.
	ErrPipelineNotFound = errors.New("no pipeline owns this job")

	// Collaborator errors.
	ErrUpstreamLookupFailed = errors.New("upstream dependency lookup failed")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
