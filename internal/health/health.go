// Package health contains probes for the filesystem that holds shared-memory backing objects.
package health

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// CheckBackingObject reports whether the backing object at path exists and is
// large enough to map need bytes. Windows mapping names are not files and are
// not checked.
func CheckBackingObject(path string, need uint64) error {
	if !filepath.IsAbs(path) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("backing object: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("backing object %s is a directory", path)
	}
	if uint64(info.Size()) < need {
		return fmt.Errorf("backing object %s holds %d bytes, need %d", path, info.Size(), need)
	}
	return nil
}

// FreeSpace returns the free bytes on the filesystem holding path.
func FreeSpace(path string) (uint64, error) {
	stat, err := disk.Usage(filepath.Dir(path))
	if err != nil {
		return 0, fmt.Errorf("disk usage: %w", err)
	}
	return stat.Free, nil
}
