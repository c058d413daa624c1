package gemini

import (
	"errors"
	"fmt"
)

// ErrUnavailable indicates the capability cannot be invoked because no API
// key is configured. Retrying later (after configuration) is always safe.
var ErrUnavailable = errors.New("gemini: api key not configured")

// UpstreamError wraps a malformed or failed prediction response. Callers
// treat it as a recoverable per-item failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// DiscoveryError wraps a failed discovery step with the step name attached.
// No partial store commit follows a discovery failure.
type DiscoveryError struct {
	Step string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery %s step: %v", e.Step, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
