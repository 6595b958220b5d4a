//go:build !unix && !windows

package shm

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("shared memory is not supported on " + runtime.GOOS)

type hostPlatform struct{}

func (hostPlatform) Open(string) (Handle, error)             { return 0, errUnsupported }
func (hostPlatform) Map(Handle, int64, int) ([]byte, error) { return nil, errUnsupported }
func (hostPlatform) Unmap([]byte) error                     { return errUnsupported }
func (hostPlatform) Close(Handle) error                     { return errUnsupported }
