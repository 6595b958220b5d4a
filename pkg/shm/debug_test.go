package shm

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/cosim-shm/api"
)

func TestDump(t *testing.T) {
	r, _, _ := openMemRegion(t, 4096, nil)
	r.WriteBytes(0x10, []byte("shared\x00ram"))

	var out bytes.Buffer
	require.NoError(t, Dump(&out, r, 0x10, 20))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "00000010  73 68 61 72 65 64 00 72 61 6d 00 00 00 00 00 00  |shared.ram......|", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "00000020  00 00 00 00"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], "|....|"), lines[1])
}

func TestDebugRegionDetail(t *testing.T) {
	r, _, _ := openMemRegion(t, 100_000, nil)
	r.Touch(1)

	var out bytes.Buffer
	DebugRegionDetail(&out, r)
	s := out.String()
	assert.Contains(t, s, "region:"+testPath)
	assert.Contains(t, s, "segments:2 segmentSize:65536 touched:1")
	assert.Contains(t, s, "  *[  1] offset:0x00010000 size:0x000086a0")
	assert.Contains(t, s, "   [  0] offset:0x00000000 size:0x00010000")
}

func TestLoggerLevels(t *testing.T) {
	var out bytes.Buffer
	SetLogOutput(&out)
	defer SetLogOutput(nil)
	prev := int(level.Load())
	defer SetLogLevel(prev)

	SetLogLevel(LevelWarn)
	internalLogger().infof("hidden %d", 1)
	assert.Empty(t, out.String())
	internalLogger().warnf("shown %d", 2)
	assert.Contains(t, out.String(), "Warn")
	assert.Contains(t, out.String(), "shown 2")
	assert.Contains(t, out.String(), "debug_test.go:")

	out.Reset()
	SetLogLevel(LevelNoPrint)
	internalLogger().errorf("silenced")
	assert.Empty(t, out.String())

	SetLogLevel(99)
	assert.Equal(t, LevelNoPrint, int(level.Load()))
}

func TestSetLogOutputWhileLogging(t *testing.T) {
	prev := int(level.Load())
	defer SetLogLevel(prev)
	defer SetLogOutput(nil)
	SetLogLevel(LevelInfo)
	SetLogOutput(io.Discard)

	router := newFakeRouter(testPath, 0x1000)
	r, _, _ := openMemRegion(t, 4096, func(cfg *Config) {
		cfg.Machine = &fakeMachine{router: router, units: []api.ExecutionUnit{plainUnit{"dma"}}}
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				SetLogOutput(io.Discard)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Invalidator().Registrations()
				assert.NoError(t, r.RefreshRegistrations())
			}
		}()
	}
	wg.Wait()

	var out bytes.Buffer
	SetLogOutput(&out)
	require.NoError(t, r.RefreshRegistrations())
	r.Invalidator().Registrations()
	require.NoError(t, r.RefreshRegistrations())
	assert.Contains(t, out.String(), "registration cache dropped")
}
