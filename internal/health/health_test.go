package health

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckBackingObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ram")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o600))

	assert.NoError(t, CheckBackingObject(path, 4096))
	assert.Error(t, CheckBackingObject(path, 4097))
	assert.Error(t, CheckBackingObject(filepath.Join(dir, "absent"), 1))
	assert.Error(t, CheckBackingObject(dir, 1))
	assert.NoError(t, CheckBackingObject("Local\\cosim-ram", 1<<30))
}

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(filepath.Join(t.TempDir(), "ram"))
	require.NoError(t, err)
	assert.NotZero(t, free)
}
