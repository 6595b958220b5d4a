package shm

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	internalshm "github.com/srediag/cosim-shm/internal/shm"
)

type RegionTestSuite struct {
	suite.Suite
}

func TestRegionTestSuite(t *testing.T) {
	suite.Run(t, new(RegionTestSuite))
}

func (s *RegionTestSuite) memConfig(p *internalshm.MemoryPlatform, size uint64) Config {
	cfg := DefaultConfig()
	cfg.Path = testPath
	cfg.Size = size
	cfg.Platform = p
	return cfg
}

func (s *RegionTestSuite) TestOpen() {
	r, p, _ := openMemRegion(s.T(), 100_000, nil)
	s.Require().Equal(uint64(100_000), r.Size())
	s.Require().Equal(testPath, r.Name())
	s.Require().NotEmpty(r.ID())
	s.Require().Equal(2, r.Segments().Count())
	s.Require().False(r.Disposed())

	opens, maps, _, _ := p.Stats()
	s.Require().Equal(1, opens)
	s.Require().Equal(1, maps)
}

func (s *RegionTestSuite) TestOpenMissingBackingObject() {
	p := internalshm.NewMemoryPlatform()
	r, err := Open(context.Background(), s.memConfig(p, 4096))
	s.Require().Nil(r)
	var ce *ConstructionError
	s.Require().ErrorAs(err, &ce)
	s.Require().Equal("open", ce.Op)
	s.Require().Equal(testPath, ce.Path)
	s.Require().ErrorIs(err, fs.ErrNotExist)
}

func (s *RegionTestSuite) TestOpenMapFailureClosesHandle() {
	p := internalshm.NewMemoryPlatform()
	p.Create(testPath, 4096)
	p.MapErr = errors.New("no address space")

	r, err := Open(context.Background(), s.memConfig(p, 4096))
	s.Require().Nil(r)
	var ce *ConstructionError
	s.Require().ErrorAs(err, &ce)
	s.Require().Equal("map", ce.Op)
	s.Require().Zero(p.OpenHandles())
}

func (s *RegionTestSuite) TestOpenWindowBeyondObject() {
	p := internalshm.NewMemoryPlatform()
	p.Create(testPath, 4096)
	_, err := Open(context.Background(), s.memConfig(p, 8192))
	var ce *ConstructionError
	s.Require().ErrorAs(err, &ce)
	s.Require().Equal("map", ce.Op)
}

func (s *RegionTestSuite) TestOpenInvalidConfig() {
	p := internalshm.NewMemoryPlatform()
	_, err := Open(context.Background(), s.memConfig(p, 0))
	s.Require().ErrorIs(err, ErrInvalidConfig)
}

func (s *RegionTestSuite) TestOpenRetriesUntilBackingObjectExists() {
	p := internalshm.NewMemoryPlatform()
	cfg := s.memConfig(p, 4096)
	cfg.OpenRetries = 50
	cfg.OpenRetryInterval = 2 * time.Millisecond

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Create(testPath, 4096)
	}()
	r, err := Open(context.Background(), cfg)
	s.Require().NoError(err)
	s.Require().NoError(r.Dispose())
}

func (s *RegionTestSuite) TestOpenRetriesExhausted() {
	p := internalshm.NewMemoryPlatform()
	cfg := s.memConfig(p, 4096)
	cfg.OpenRetries = 2
	cfg.OpenRetryInterval = time.Millisecond

	_, err := Open(context.Background(), cfg)
	var ce *ConstructionError
	s.Require().ErrorAs(err, &ce)
	s.Require().ErrorIs(err, fs.ErrNotExist)
}

func (s *RegionTestSuite) TestOpenRetryHonoursContext() {
	p := internalshm.NewMemoryPlatform()
	cfg := s.memConfig(p, 4096)
	cfg.OpenRetries = 1000
	cfg.OpenRetryInterval = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Open(ctx, cfg)
	s.Require().Error(err)
}

func (s *RegionTestSuite) TestDisposeTwice() {
	r, p, _ := openMemRegion(s.T(), 4096, nil)
	s.Require().NoError(r.Dispose())
	s.Require().True(r.Disposed())
	s.Require().NoError(r.Dispose())

	_, _, unmaps, closes := p.Stats()
	s.Require().Equal(1, unmaps)
	s.Require().Equal(1, closes)
	s.Require().Zero(p.OpenHandles())
	s.Require().ErrorIs(r.RefreshRegistrations(), ErrDisposed)
}

func (s *RegionTestSuite) TestResetPreservesMaterializedPointers() {
	r, _, _ := openMemRegion(s.T(), 1<<20, nil)
	idx := r.Segments()
	p3 := r.Touch(3)
	p7 := r.Touch(7)

	r.Reset()
	s.Require().Same(idx, r.Segments())
	s.Require().Equal(p3, r.Segments().Pointer(3))
	s.Require().Equal(p7, r.Segments().Pointer(7))
	s.Require().Equal([]int{3, 7}, r.Segments().Touched())
}

func (s *RegionTestSuite) TestResetComputesMissingSegmentation() {
	r, _, _ := openMemRegion(s.T(), 100_000, nil)
	r.segments.Store(nil)
	r.Reset()
	s.Require().NotNil(r.Segments())
	s.Require().Equal(2, r.Segments().Count())
}

func (s *RegionTestSuite) TestSegmentSizeOverride() {
	r, _, _ := openMemRegion(s.T(), 10_000, func(cfg *Config) { cfg.SegmentSize = 4096 })
	s.Require().Equal(3, r.Segments().Count())
	s.Require().Equal(uint64(10_000-2*4096), r.Segments().Describe(2).Size)
}

func (s *RegionTestSuite) TestMappingOffset() {
	r, _, backing := openMemRegion(s.T(), 4096, func(cfg *Config) { cfg.Offset = 8192 })
	r.Write8(10, 0x5a)
	s.Require().Equal(byte(0x5a), backing[8192+10])
	s.Require().Equal(int64(8192), r.Offset())
}

// Two regions over one backing object stand in for the emulator and the
// co-simulator: each sees the other's writes.
func (s *RegionTestSuite) TestSharedBackingObjectIsCoherent() {
	p := internalshm.NewMemoryPlatform()
	p.Create(testPath, 1<<16)
	a, err := Open(context.Background(), s.memConfig(p, 1<<16))
	s.Require().NoError(err)
	defer a.Dispose()
	b, err := Open(context.Background(), s.memConfig(p, 1<<16))
	s.Require().NoError(err)
	defer b.Dispose()

	a.Write64(0x40, 0x0123456789abcdef)
	s.Require().Equal(uint64(0x0123456789abcdef), b.Read64(0x40))
	b.WriteBytes(0x100, []byte("from the co-simulator"))
	s.Require().Equal([]byte("from the co-simulator"), a.ReadBytes(0x100, 21))
}
