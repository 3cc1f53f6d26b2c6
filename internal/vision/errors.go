package vision

import (
	"errors"
	"fmt"
)

var (
	ErrNoCandidates = errors.New("vision: model returned no candidates")
	ErrEmptyOutput  = errors.New("vision: model returned empty content")
	ErrNoJSON       = errors.New("vision: no JSON object found in model output")
	ErrEmptyImage   = errors.New("vision: image payload is empty")
)

// AnalysisFailedError carries the raw model output when it could not be
// turned into an analysis. Raw is empty when the call itself failed.
type AnalysisFailedError struct {
	Raw string
	Err error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("vision: analysis failed: %v", e.Err)
}

func (e *AnalysisFailedError) Unwrap() error {
	return e.Err
}
