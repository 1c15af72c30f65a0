package clean

import (
	"fmt"
)

// CleaningServiceError reports that the generative service could not clean a
// unit within the configured attempts. Callers fall back to regex cleaning.
type CleaningServiceError struct {
	Generator    string
	Jurisdiction string
	Err          error
}

func (e *CleaningServiceError) Error() string {
	return fmt.Sprintf("cleaning service %s (%s): %v", e.Generator, e.Jurisdiction, e.Err)
}

func (e *CleaningServiceError) Unwrap() error { return e.Err }

// StatusError is a non-2xx answer from an HTTP cleaning service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("cleaning service returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("cleaning service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError is a response that carries no usable text.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed cleaning response: " + e.Reason
}
