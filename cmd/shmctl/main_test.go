package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/cosim-shm/pkg/shm"
)

func TestParseFlags(t *testing.T) {
	cfg, opts, err := parseFlags([]string{"-s", "65536", "-b", "0x1000", "--base", "0x8000_0000", "--trace-invalidations"})
	require.NoError(t, err)
	assert.Equal(t, shm.DefaultPath, cfg.Path)
	assert.Equal(t, uint64(65536), cfg.Size)
	assert.Equal(t, []uint64{0x1000, 0x8000_0000}, opts.bases)
	assert.True(t, opts.traceInvalidations)
}

func TestParseFlagsOverConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shmctl.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// board RAM
		"path": "/dev/shm/board",
		"size": 4096,
		"open_retries": 3,
	}`), 0o600))

	cfg, _, err := parseFlags([]string{"-c", path, "--size", "8192", "-n", "sysram"})
	require.NoError(t, err)
	assert.Equal(t, "/dev/shm/board", cfg.Path)
	assert.Equal(t, uint64(8192), cfg.Size)
	assert.Equal(t, uint64(3), cfg.OpenRetries)
	assert.Equal(t, "sysram", cfg.Name)
}

func TestParseFlagsErrors(t *testing.T) {
	_, _, err := parseFlags(nil)
	require.ErrorIs(t, err, shm.ErrInvalidConfig)

	_, _, err = parseFlags([]string{"-s", "4096", "-b", "nowhere"})
	require.Error(t, err)

	_, _, err = parseFlags([]string{"--no-such-flag"})
	require.Error(t, err)
}
