package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/contriboss/rv/internal/cache"
	"github.com/contriboss/rv/internal/checksum"
	"github.com/contriboss/rv/internal/config"
	"github.com/contriboss/rv/internal/lockfile"
)

// RunCI implements `rv ci`: parse the lockfile strictly and verify every
// CHECKSUMS entry whose archive is in the local cache. Merge conflicts,
// malformed sections, and digest mismatches all fail the build.
func RunCI(args []string) error {
	fs := flag.NewFlagSet("ci", flag.ContinueOnError)
	lockPath := fs.String("lockfile", "Gemfile.lock", "lockfile to verify")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}

	lock, err := lockfile.ParseFile(*lockPath)
	if err != nil {
		return fmt.Errorf("lockfile check failed: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()

	if !lock.HasChecksums {
		fmt.Printf("%s has no CHECKSUMS section; nothing to verify\n", *lockPath)
		return nil
	}

	verified, missing := 0, 0
	for i := range lock.Checksums {
		entry := &lock.Checksums[i]
		sha := ""
		for _, pair := range entry.Entries {
			if strings.EqualFold(pair.Algorithm, "sha256") {
				sha = pair.Value
			}
		}
		if sha == "" {
			continue
		}

		path, ok := cfg.Cache.Get(cache.BucketArchives, sha)
		if !ok {
			missing++
			continue
		}
		if err := verifyCachedArchive(path, entry.FullName(), sha); err != nil {
			return err
		}
		verified++
	}

	fmt.Printf("%s %d archive(s) verified, %d not cached, %d gem(s) locked\n",
		successStyle.Render("ok:"), verified, missing, len(lock.Checksums))
	return nil
}

func verifyCachedArchive(path, fullName, expectedSHA256 string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	cr := checksum.NewReader(file)
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return err
	}
	return cr.Verify(fullName+".gem", checksum.SHA256, expectedSHA256)
}
