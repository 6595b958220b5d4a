package shm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tailscale/hujson"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/cosim-shm/api"
	internalshm "github.com/srediag/cosim-shm/internal/shm"
)

const defaultOpenRetryInterval = 100 * time.Millisecond

// Platform opens and maps backing objects. See HostPlatform.
type Platform = internalshm.Platform

// HostPlatform returns the operating system's shared-memory platform.
func HostPlatform() Platform {
	return internalshm.Host()
}

// Config holds region construction parameters.
type Config struct {
	// Name identifies the region to the address-space router and in metrics.
	// Defaults to the base name of Path.
	Name string
	// Path is the backing object, which must already exist.
	Path string
	// Offset is the byte offset into the backing object at which the region
	// begins. It need not be page aligned.
	Offset int64
	// Size is the region size in bytes, fixed for the region's lifetime.
	Size uint64
	// SegmentSize overrides the computed segment size when non-zero.
	SegmentSize uint64

	// OpenRetries is how many times opening is retried while the backing
	// object does not exist yet. Zero fails on the first attempt.
	OpenRetries       uint64
	OpenRetryInterval time.Duration

	// FanoutWorkers, when positive, dispatches invalidations to execution
	// units on a worker pool of that size.
	FanoutWorkers int

	Platform   Platform
	Machine    api.Machine
	Meter      metric.Meter
	Tracer     trace.Tracer
	Registerer prometheus.Registerer
}

// DefaultConfig returns a Config for the conventional backing object. Size
// must still be set.
func DefaultConfig() Config {
	return Config{
		Path:              DefaultPath,
		OpenRetryInterval: defaultOpenRetryInterval,
	}
}

// VerifyConfig checks cfg for values the region cannot be built from.
func VerifyConfig(cfg Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidConfig)
	}
	if cfg.Size == 0 {
		return fmt.Errorf("%w: size must be positive", ErrInvalidConfig)
	}
	if cfg.Size > math.MaxInt {
		return fmt.Errorf("%w: size %d exceeds the address space", ErrInvalidConfig, cfg.Size)
	}
	if cfg.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidConfig, cfg.Offset)
	}
	if cfg.FanoutWorkers < 0 {
		return fmt.Errorf("%w: negative fanout workers %d", ErrInvalidConfig, cfg.FanoutWorkers)
	}
	if cfg.OpenRetryInterval < 0 {
		return fmt.Errorf("%w: negative open retry interval", ErrInvalidConfig)
	}
	return nil
}

// fileConfig is the JSONC form of the serialisable Config fields.
type fileConfig struct {
	Name              *string `json:"name"`
	Path              *string `json:"path"`
	Offset            *int64  `json:"offset"`
	Size              *uint64 `json:"size"`
	SegmentSize       *uint64 `json:"segment_size"`
	OpenRetries       *uint64 `json:"open_retries"`
	OpenRetryInterval *string `json:"open_retry_interval"`
	FanoutWorkers     *int    `json:"fanout_workers"`
}

// LoadConfigFile reads a JSONC config file over DefaultConfig. Comments and
// trailing commas are allowed; unknown keys are rejected.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses JSONC config bytes over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalidConfig, err)
	}
	var fc fileConfig
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := DefaultConfig()
	if fc.Name != nil {
		cfg.Name = *fc.Name
	}
	if fc.Path != nil {
		cfg.Path = *fc.Path
	}
	if fc.Offset != nil {
		cfg.Offset = *fc.Offset
	}
	if fc.Size != nil {
		cfg.Size = *fc.Size
	}
	if fc.SegmentSize != nil {
		cfg.SegmentSize = *fc.SegmentSize
	}
	if fc.OpenRetries != nil {
		cfg.OpenRetries = *fc.OpenRetries
	}
	if fc.OpenRetryInterval != nil {
		d, err := time.ParseDuration(*fc.OpenRetryInterval)
		if err != nil {
			return Config{}, fmt.Errorf("%w: open_retry_interval: %w", ErrInvalidConfig, err)
		}
		cfg.OpenRetryInterval = d
	}
	if fc.FanoutWorkers != nil {
		cfg.FanoutWorkers = *fc.FanoutWorkers
	}
	return cfg, nil
}

func (cfg Config) name() string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return filepath.Base(cfg.Path)
}
