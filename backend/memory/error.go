package memory

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyUpdate   = errors.New("daily update must not be empty")
	ErrInvalidMood   = errors.New("invalid mood")
	ErrEmptyRoadmap  = errors.New("roadmap must contain at least one milestone")
	ErrTaskNotFound  = errors.New("task not found")
	ErrInvalidSessID = errors.New("invalid session id")
)

type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("memory: session %q not found", e.SessionID)
}

func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsValidation reports whether err was caused by bad input rather than by the
// store or a model.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyUpdate) ||
		errors.Is(err, ErrInvalidMood) ||
		errors.Is(err, ErrEmptyRoadmap) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrInvalidSessID)
}

func SanitizeError(err error) error {
	return errors.New(strings.ReplaceAll(err.Error(), "memory: ", ""))
}
