package classify

import (
	"context"
	"errors"
	"net/http"

	"github.com/marcus/opportunity-finder/internal/models"
)

// StatusError carries a non-200 status from the classification service
// so the gateway can tell rate limits and server faults apart.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "classifier returned status " + http.StatusText(e.Code)
}

// ValidationError marks a structurally unusable service response:
// missing required fields or undecodable payloads. Retried like any
// transient fault, then reported as validation_failed.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "invalid classification: " + e.Msg }

// classifyErr maps a call error to its terminal kind and whether a retry
// may help. Cancellation is never retried; a deadline on the attempt
// context is, since the run-level context may still be live.
func classifyErr(err error) (kind models.ErrorKind, transient bool) {
	if errors.Is(err, context.Canceled) {
		return models.ErrKindCanceled, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrKindTimeout, true
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusTooManyRequests:
			return models.ErrKindRateLimited, true
		case se.Code >= 500:
			return models.ErrKindServiceError, true
		default:
			return models.ErrKindServiceError, false
		}
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return models.ErrKindValidationFailed, true
	}
	return models.ErrKindServiceError, true
}
