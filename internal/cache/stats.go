package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Stats summarizes cache disk usage.
type Stats struct {
	Files     int
	TotalSize int64
}

// CollectStats walks a cache root and totals file count and bytes. A
// missing root counts as an empty cache.
func CollectStats(root string) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Files++
		stats.TotalSize += info.Size()
		return nil
	})
	if os.IsNotExist(err) {
		return stats, nil
	}
	return stats, err
}

// HumanBytes renders a byte count in binary units.
func HumanBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
