package adapter

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"

	internalhealth "github.com/srediag/cosim-shm/internal/health"
	"github.com/srediag/cosim-shm/pkg/shm"
)

// NewHealthHandler returns a healthcheck handler serving /live and /ready for
// every region in reg. A region is live while it is not disposed, and ready
// while its backing object still exists and covers the mapped window.
func NewHealthHandler(reg *shm.Registry) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("regions-mapped", func() error {
		var err error
		reg.Range(func(name string, r *shm.Region) {
			if err == nil && r.Disposed() {
				err = fmt.Errorf("region %s is disposed", name)
			}
		})
		return err
	})
	h.AddReadinessCheck("backing-objects", func() error {
		var err error
		reg.Range(func(name string, r *shm.Region) {
			if err != nil {
				return
			}
			if cerr := internalhealth.CheckBackingObject(r.Path(), uint64(r.Offset())+r.Size()); cerr != nil {
				err = fmt.Errorf("region %s: %w", name, cerr)
			}
		})
		return err
	})
	return h
}
