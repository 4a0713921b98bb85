package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"

	"story-server/internal/models"
)

// Stage names used in errors, logs and metrics.
const (
	StageImage     = "image"
	StageNarration = "narration"
	StageVideo     = "video"
	StageUpload    = "upload"
)

var (
	// ErrEmptyInput is returned for empty prompts or text. Never retried.
	ErrEmptyInput = errors.New("empty input")
	// ErrPrecondition covers missing images or audio for compilation.
	ErrPrecondition = errors.New("stage precondition not met")
)

// StageError carries the retryable/fatal classification of a stage failure.
type StageError struct {
	Stage     string
	Retryable bool
	Err       error
}

func (e *StageError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fatal wraps err as a non-retryable failure of stage.
func Fatal(stage string, err error) error {
	return &StageError{Stage: stage, Retryable: false, Err: err}
}

// Retryable wraps err as a transient failure of stage.
func Retryable(stage string, err error) error {
	return &StageError{Stage: stage, Retryable: true, Err: err}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// Classify wraps a raw collaborator error with its classification.
// Timeouts, network errors, 429 and 5xx are retryable. Everything else is fatal.
func Classify(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	if isTransient(err) {
		return Retryable(stage, err)
	}
	return Fatal(stage, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrPrecondition) || errors.Is(err, models.ErrValidation) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 {
			return true
		}
		return transientStatus(reqErr.HTTPStatusCode)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return transientStatus(gErr.Code)
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.StatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

// HTTPStatusError is returned by plain HTTP collaborators on non-2xx replies.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
