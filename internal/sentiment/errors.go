package sentiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/spacesedan/brandpulse/internal/clients"
	"github.com/spacesedan/brandpulse/internal/models"
)

// AnnotationError tags a scoring failure with the kind that decides retry.
type AnnotationError struct {
	Kind       models.ErrorKind
	StatusCode int
	Err        error
}

func (e *AnnotationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AnnotationError) Unwrap() error { return e.Err }

// Retryable is true only for transport failures.
func (e *AnnotationError) Retryable() bool {
	return e.Kind == models.ErrorKindTransport
}

// Classify maps a client error onto the annotation taxonomy. 5xx, timeouts
// and connection failures are TRANSPORT. Any other status and undecodable
// bodies are VALIDATION.
func Classify(err error) *AnnotationError {
	if err == nil {
		return nil
	}
	var annErr *AnnotationError
	if errors.As(err, &annErr) {
		return annErr
	}

	var statusErr *clients.StatusError
	if errors.As(err, &statusErr) {
		kind := models.ErrorKindValidation
		if statusErr.StatusCode >= 500 {
			kind = models.ErrorKindTransport
		}
		return &AnnotationError{Kind: kind, StatusCode: statusErr.StatusCode, Err: err}
	}
	if errors.Is(err, clients.ErrDecode) {
		return &AnnotationError{Kind: models.ErrorKindValidation, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AnnotationError{Kind: models.ErrorKindTransport, Err: err}
	}
	return &AnnotationError{Kind: models.ErrorKindTransport, Err: err}
}

func IsRetryable(err error) bool {
	annErr := Classify(err)
	return annErr != nil && annErr.Retryable()
}
