package shared

import (
	"errors"
	"fmt"
)

type ErrorSource int

const (
	ErrorSourceTool ErrorSource = iota
	ErrorSourceAgent
	ErrorSourceSystem
	ErrorSourceUser
	ErrorSourceUnknown
)

func (s ErrorSource) String() string {
	switch s {
	case ErrorSourceTool:
		return "tool"
	case ErrorSourceAgent:
		return "agent"
	case ErrorSourceSystem:
		return "system"
	case ErrorSourceUser:
		return "user"
	default:
		return "unknown"
	}
}

// SeyalError attaches the origin of a failure so callers can decide whether
// to blame the user, the model or the process.
type SeyalError struct {
	Source  ErrorSource
	Message string
	Err     error
}

func Errorf(source ErrorSource, format string, a ...any) *SeyalError {
	return &SeyalError{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
	}
}

func Wrap(source ErrorSource, err error, format string, a ...any) *SeyalError {
	return &SeyalError{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
		Err:     err,
	}
}

func (e *SeyalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *SeyalError) Unwrap() error {
	return e.Err
}

// SourceOf returns the source of the first SeyalError in err's chain.
func SourceOf(err error) ErrorSource {
	var seyalErr *SeyalError
	if errors.As(err, &seyalErr) {
		return seyalErr.Source
	}
	return ErrorSourceUnknown
}

func IsUserError(err error) bool {
	return SourceOf(err) == ErrorSourceUser
}
