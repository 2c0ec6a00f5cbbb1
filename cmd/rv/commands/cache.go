package commands

import (
	"fmt"
	"os"

	"github.com/contriboss/rv/internal/cache"
	"github.com/contriboss/rv/internal/config"
)

// RunCache dispatches `rv cache {stats, clean}`.
func RunCache(args []string) error {
	if len(args) < 1 {
		return usageErrorf("usage: rv cache {stats|clean}")
	}
	if args[0] != "stats" && args[0] != "clean" {
		return usageErrorf("unknown cache subcommand %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()

	switch args[0] {
	case "stats":
		stats, err := cfg.Cache.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", dimStyle.Render("location:"), cfg.Cache.Root())
		fmt.Printf("%s %d\n", dimStyle.Render("files:"), stats.Files)
		fmt.Printf("%s %s\n", dimStyle.Render("size:"), cache.HumanBytes(stats.TotalSize))
		return nil
	case "clean":
		if cfg.Cache.IsTemporary() {
			return nil
		}
		root := cfg.Cache.Root()
		if err := os.RemoveAll(root); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", successStyle.Render("Removed"), root)
		return nil
	}
	return nil
}
