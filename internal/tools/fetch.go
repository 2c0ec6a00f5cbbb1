package tools

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/contriboss/rv/internal/gemserver"
	"github.com/contriboss/rv/internal/logger"
	"github.com/contriboss/rv/internal/registry"
)

// defaultFanOut bounds concurrent index fetches and archive downloads.
const defaultFanOut = 8

// releaseSource is the index half of the gemserver client, separated for
// tests.
type releaseSource interface {
	GetVersions(ctx context.Context, gem string) ([]gemserver.Release, error)
}

// fallbackSource wraps the compact-index client with the JSON API: servers
// without the compact index answer 404 on /info, and the registry covers
// versions and dependencies (but not checksums) in that case.
type fallbackSource struct {
	primary  releaseSource
	registry *registry.Client
}

func (f *fallbackSource) GetVersions(ctx context.Context, gem string) ([]gemserver.Release, error) {
	releases, err := f.primary.GetVersions(ctx, gem)
	if err == nil || f.registry == nil {
		return releases, err
	}
	var status *gemserver.StatusError
	if errors.As(err, &status) && status.Code == 404 {
		logger.Debug("compact index unavailable, falling back to JSON API", "gem", gem)
		return f.registry.GetVersions(ctx, gem)
	}
	return nil, err
}

// fetchTransitive walks the dependency frontier breadth-first, fetching
// /info for every reachable gem with bounded fan-out. Already-seen gems
// short-circuit, which also makes dependency cycles terminate.
func fetchTransitive(ctx context.Context, source releaseSource, root string, rootReleases []gemserver.Release, workers int) (map[string][]gemserver.Release, error) {
	if workers <= 0 {
		workers = defaultFanOut
	}

	info := map[string][]gemserver.Release{root: rootReleases}
	var mu sync.Mutex

	frontier := depsOf(rootReleases, info)
	for len(frontier) > 0 {
		g, groupCtx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for _, gem := range frontier {
			gem := gem
			g.Go(func() error {
				releases, err := source.GetVersions(groupCtx, gem)
				if err != nil {
					return err
				}
				mu.Lock()
				info[gem] = releases
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		next := map[string]bool{}
		for _, gem := range frontier {
			for _, dep := range depsOf(info[gem], info) {
				next[dep] = true
			}
		}
		frontier = frontier[:0]
		for gem := range next {
			frontier = append(frontier, gem)
		}
	}

	return info, nil
}

// depsOf lists dependency gem names of the releases that are not yet in
// the info map.
func depsOf(releases []gemserver.Release, info map[string][]gemserver.Release) []string {
	seen := map[string]bool{}
	var out []string
	for _, release := range releases {
		for _, dep := range release.Deps {
			if seen[dep.Name] {
				continue
			}
			seen[dep.Name] = true
			if _, fetched := info[dep.Name]; !fetched {
				out = append(out, dep.Name)
			}
		}
	}
	return out
}
