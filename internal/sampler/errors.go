package sampler

import (
	"errors"
	"fmt"
)

// ErrNoBackend is returned by the update probe when no supported package
// manager was found on the host.
var ErrNoBackend = errors.New("no supported package manager found")

// CollectionError means a core metric could not be read and no snapshot was
// produced for the cycle.
type CollectionError struct {
	Metric string
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting %s: %v", e.Metric, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// ProbeError means the update-status probe failed; the snapshot carries the
// default update fields instead.
type ProbeError struct {
	Backend string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing updates with %s: %v", e.Backend, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

var errEmptyCPUTimes = errors.New("no cpu times reported")
