package pipeline

import "errors"

var (
	// ErrOSINTDisabled is returned when no username checker is configured.
	ErrOSINTDisabled = errors.New("pipeline: osint enrichment is not configured")

	// ErrRepliesDisabled is returned when no reply suggester is configured.
	ErrRepliesDisabled = errors.New("pipeline: reply suggestions are not configured")

	ErrEmptyImage = errors.New("pipeline: image is empty")
)

// InputError marks a request the caller can fix.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return e.Err.Error()
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func invalid(msg string) error {
	return &InputError{Err: errors.New(msg)}
}
