package shm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every VerifyConfig failure.
	ErrInvalidConfig = errors.New("invalid region config")
	// ErrDisposed is returned by RefreshRegistrations on a disposed region.
	ErrDisposed = errors.New("region disposed")
)

// ConstructionError reports a failure to open or map the backing object.
// The region is unusable after it.
type ConstructionError struct {
	Op   string // "open" or "map"
	Path string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("shm %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
