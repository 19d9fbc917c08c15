package pipeline

import (
	"context"
	"errors"
	"fmt"

	"vidshrink/internal/encoder"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation = errors.New("invalid request")
	ErrProbe      = errors.New("probe failed")
	ErrEncode     = errors.New("encode failed")
	ErrCancelled  = errors.New("cancelled")

	// ErrTargetNotFullyMet is a warning carried in FinalResult.Warning, never
	// returned as an error.
	ErrTargetNotFullyMet = errors.New("target size not fully met")
)

// Failure is the error returned by CompressToTarget and Plan.
type Failure struct {
	Kind       error // one of the Err* kinds above
	Attempt    int   // attempt index, -1 when no encode ran
	ExitCode   int   // encoder exit code, 0 when not applicable
	Diagnostic string
	Err        error
}

func (f *Failure) Error() string {
	msg := f.Kind.Error()
	if f.Attempt >= 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, f.Attempt+1)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

func validationErr(format string, args ...any) error {
	return &Failure{Kind: ErrValidation, Attempt: -1, Err: fmt.Errorf(format, args...)}
}

func cancelled(attempt int, err error) error {
	return &Failure{Kind: ErrCancelled, Attempt: attempt, Err: err}
}

// encodeFailure classifies an encoder error.
func encodeFailure(attempt int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelled(attempt, err)
	}
	f := &Failure{Kind: ErrEncode, Attempt: attempt, Err: err}
	var exitErr *encoder.ExitError
	if errors.As(err, &exitErr) {
		f.ExitCode = exitErr.Code
		f.Diagnostic = exitErr.Diagnostic
	}
	return f
}
