package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/contriboss/rv/internal/config"
	"github.com/contriboss/rv/internal/logger"
)

// InstalledTool is one tools/<gem>@<version> entry.
type InstalledTool struct {
	Name    string `json:"gem_name"`
	Version string `json:"version"`
	Dir     string `json:"-"`
}

// List enumerates the installed tool directories, sorted by gem name.
// Directory names that are not <gem>@<version> are skipped with a note.
func List(cfg *config.Config) ([]InstalledTool, error) {
	entries, err := os.ReadDir(cfg.ToolsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read the rv tool directory: %w", err)
	}

	var out []InstalledTool
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, version, ok := strings.Cut(entry.Name(), "@")
		if !ok || strings.HasSuffix(version, ".staging") {
			logger.Debug("skipping unrecognized tool directory", "name", entry.Name())
			continue
		}
		out = append(out, InstalledTool{
			Name:    name,
			Version: version,
			Dir:     filepath.Join(cfg.ToolsDir(), entry.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// Uninstall removes every installed version of a gem along with its
// trampolines.
func Uninstall(cfg *config.Config, gemName string) (int, error) {
	installed, err := List(cfg)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, tool := range installed {
		if tool.Name != gemName {
			continue
		}
		if manifest, err := ReadManifest(tool.Dir); err == nil {
			for _, exe := range manifest.Executables {
				target := filepath.Join(cfg.BinDir, exe)
				if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
					logger.Warn("failed to remove trampoline", "path", target, "error", err)
				}
			}
		}
		if err := os.RemoveAll(tool.Dir); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", tool.Dir, err)
		}
		removed++
	}
	return removed, nil
}
