package core

import (
	"errors"
	"fmt"
	"strings"
)

// Attempt is one strategy in an ordered fallback chain. Run is only called if
// every earlier attempt failed.
type Attempt[T any] struct {
	Name string
	Run  func() (T, error)
}

// AttemptFailure records why a single attempt was rejected.
type AttemptFailure struct {
	Name string
	Err  error
}

// AttemptsError is returned by TryInOrder when no attempt passed.
type AttemptsError struct {
	Failures []AttemptFailure
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("all %d parsing attempts failed; %s", len(e.Failures), e.Reasons())
}

// Reasons lists each attempt and its error as "[name] err; [name] err".
func (e *AttemptsError) Reasons() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("[%s] %v", f.Name, f.Err)
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes every attempt's error to errors.Is and errors.As.
func (e *AttemptsError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// ErrNoAttempts is returned when TryInOrder is given an empty chain.
var ErrNoAttempts = errors.New("no parsing attempts available")

// TryInOrder runs attempts in priority order and returns the first result that
// succeeds and passes accept, with the name of the attempt that produced it.
// A nil accept accepts every successful result. When nothing passes, the
// returned *AttemptsError enumerates the rejection reason of every attempt.
func TryInOrder[T any](attempts []Attempt[T], accept func(T) error) (T, string, error) {
	var zero T
	if len(attempts) == 0 {
		return zero, "", ErrNoAttempts
	}

	failures := make([]AttemptFailure, 0, len(attempts))
	for _, a := range attempts {
		result, err := a.Run()
		if err == nil && accept != nil {
			err = accept(result)
		}
		if err == nil {
			return result, a.Name, nil
		}
		failures = append(failures, AttemptFailure{Name: a.Name, Err: err})
	}
	return zero, "", &AttemptsError{Failures: failures}
}
