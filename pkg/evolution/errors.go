package evolution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfiguration is returned before any generation runs when the
	// run parameters or seed genes are malformed.
	ErrInvalidConfiguration = errors.New("invalid evolution configuration")

	// ErrEvaluationFailure marks a scorer error, timeout or non-finite score.
	// The engine recovers it locally as fitness 0.
	ErrEvaluationFailure = errors.New("fitness evaluation failed")

	// ErrPersistence is returned when the best-solution store cannot be read or written
	ErrPersistence = errors.New("best solution persistence failed")

	// ErrNotFound is returned when no best solution has been persisted yet
	ErrNotFound = errors.New("no evolved strategy found")

	// ErrRunCancelled is returned when the caller cancels a run between generations
	ErrRunCancelled = errors.New("evolution run cancelled")
)

// ValidationError describes a single invalid configuration field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors. It unwraps to
// ErrInvalidConfiguration so callers can match with errors.Is.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfiguration, strings.Join(msgs, "; "))
}

func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfiguration
}
