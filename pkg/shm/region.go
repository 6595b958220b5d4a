package shm

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	internalshm "github.com/srediag/cosim-shm/internal/shm"
)

// Region is a window of a host shared-memory backing object exposed as
// addressable guest RAM. Another process mapping the same backing object
// observes every write as soon as it retires.
//
// Reads and writes perform no bounds or lifecycle checks; the caller keeps
// offsets within [0, Size()) and stops using the region after Dispose.
type Region struct {
	cfg      Config
	id       string
	platform Platform
	tracer   trace.Tracer

	handle internalshm.Handle
	mem    []byte
	base   unsafe.Pointer
	size   uint64

	disposed atomic.Bool

	resetMu  sync.Mutex
	segments atomic.Pointer[SegmentIndex]

	notifier *Broadcaster
	metrics  *metrics
	pool     *ants.Pool
}

// Open opens the backing object named by cfg.Path, maps cfg.Size bytes of it
// starting at cfg.Offset and segments the mapping. Failures to open or map are
// returned as *ConstructionError.
func Open(ctx context.Context, cfg Config) (*Region, error) {
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Platform == nil {
		cfg.Platform = HostPlatform()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("")
	}

	r := &Region{
		cfg:      cfg,
		id:       uuid.NewString(),
		platform: cfg.Platform,
		tracer:   tracer,
		size:     cfg.Size,
	}
	ctx, span := tracer.Start(ctx, "shm.Open", trace.WithAttributes(
		attribute.String("region", cfg.name()),
		attribute.String("region.id", r.id),
		attribute.String("path", cfg.Path),
		attribute.Int64("offset", cfg.Offset),
		attribute.Int64("size", int64(cfg.Size)),
	))
	defer span.End()

	handle, err := r.openBacking(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &ConstructionError{Op: "open", Path: cfg.Path, Err: err}
	}
	mem, err := cfg.Platform.Map(handle, cfg.Offset, int(cfg.Size))
	if err != nil {
		if cerr := cfg.Platform.Close(handle); cerr != nil {
			internalLogger().warnf("region %s: close after failed map: %v", cfg.name(), cerr)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, &ConstructionError{Op: "map", Path: cfg.Path, Err: err}
	}
	r.handle = handle
	r.mem = mem
	r.base = unsafe.Pointer(unsafe.SliceData(mem))

	if cfg.FanoutWorkers > 0 {
		if r.pool, err = ants.NewPool(cfg.FanoutWorkers); err != nil {
			internalLogger().warnf("region %s: fanout pool: %v, invalidating inline", cfg.name(), err)
			r.pool = nil
		}
	}
	r.metrics = newMetrics(cfg)
	r.notifier = newBroadcaster(cfg.Machine, r, r.metrics, r.pool)
	r.Reset()

	internalLogger().infof("region %s (%s): mapped %s offset=%d size=%d segments=%d",
		cfg.name(), r.id, cfg.Path, cfg.Offset, cfg.Size, r.Segments().Count())
	return r, nil
}

func (r *Region) openBacking(ctx context.Context) (internalshm.Handle, error) {
	var handle internalshm.Handle
	op := func() error {
		h, err := r.platform.Open(r.cfg.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return backoff.Permanent(err)
		}
		handle = h
		return nil
	}
	if r.cfg.OpenRetries == 0 {
		return r.platform.Open(r.cfg.Path)
	}

	interval := r.cfg.OpenRetryInterval
	if interval == 0 {
		interval = defaultOpenRetryInterval
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = interval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, r.cfg.OpenRetries), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		internalLogger().infof("region %s: backing object not ready (%v), retrying in %s", r.cfg.name(), err, wait)
	})
	return handle, err
}

// Reset computes the segmentation if it has never been computed. A region
// that already has segment descriptors keeps them, together with every
// materialized pointer.
func (r *Region) Reset() {
	if r.segments.Load() != nil {
		return
	}
	r.resetMu.Lock()
	defer r.resetMu.Unlock()
	if r.segments.Load() != nil {
		return
	}
	idx := newSegmentIndex(r.base, r.size, SegmentSizeFor(r.size, r.cfg.SegmentSize))
	if r.metrics != nil {
		idx.onTouch = r.metrics.touches.Inc
	}
	r.segments.Store(idx)
}

// Segments returns the region's segment index.
func (r *Region) Segments() *SegmentIndex {
	return r.segments.Load()
}

// Touch materializes the direct pointer of segment i.
func (r *Region) Touch(i int) unsafe.Pointer {
	return r.Segments().Touch(i)
}

// RefreshRegistrations drops the cached registration set so that the next
// write resolves base addresses from the router again.
func (r *Region) RefreshRegistrations() error {
	if r.disposed.Load() {
		return ErrDisposed
	}
	r.notifier.Refresh()
	return nil
}

// Invalidator returns the broadcaster that propagates this region's writes.
func (r *Region) Invalidator() *Broadcaster {
	return r.notifier
}

// Dispose unmaps the region and closes the backing object handle. Only the
// first call does any work; later calls return nil. Both steps are attempted
// and the first error is returned.
func (r *Region) Dispose() error {
	if !r.disposed.CompareAndSwap(false, true) {
		return nil
	}
	_, span := r.tracer.Start(context.Background(), "shm.Dispose", trace.WithAttributes(
		attribute.String("region", r.cfg.name()),
		attribute.String("region.id", r.id),
	))
	defer span.End()

	if r.pool != nil {
		r.pool.Release()
	}
	err := r.platform.Unmap(r.mem)
	if err != nil {
		internalLogger().errorf("region %s: unmap: %v", r.cfg.name(), err)
	}
	if cerr := r.platform.Close(r.handle); cerr != nil {
		internalLogger().errorf("region %s: close: %v", r.cfg.name(), cerr)
		if err == nil {
			err = cerr
		}
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	internalLogger().infof("region %s (%s): disposed", r.cfg.name(), r.id)
	return nil
}

// Disposed reports whether Dispose has been called.
func (r *Region) Disposed() bool { return r.disposed.Load() }

// Name implements api.Peripheral.
func (r *Region) Name() string { return r.cfg.name() }

// Size returns the region size in bytes. It also implements api.Peripheral.
func (r *Region) Size() uint64 { return r.size }

// Path returns the backing object path.
func (r *Region) Path() string { return r.cfg.Path }

// Offset returns the region's offset within the backing object.
func (r *Region) Offset() int64 { return r.cfg.Offset }

// ID returns the region's instance id.
func (r *Region) ID() string { return r.id }
