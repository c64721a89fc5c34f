package agent

import "fmt"

// UpstreamError reports a failed call to the main model service. It is the
// only failure inside a turn the pipeline does not absorb.
type UpstreamError struct {
	Model string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream model %s: %v", e.Model, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
