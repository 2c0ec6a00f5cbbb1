package resolver

import (
	"fmt"
	"slices"

	"github.com/contriboss/pubgrub-go"
	"github.com/contriboss/rv/internal/gemserver"
	"github.com/contriboss/rv/internal/platform"
)

// indexSource implements pubgrub.Source over a prefetched gem index. All
// releases are registered before solving starts, so the solver never does
// I/O and resolution is deterministic regardless of fetch order.
type indexSource struct {
	host     platform.Platform
	releases map[string][]gemserver.Release
	admitPre map[string]bool
}

func newIndexSource(info map[string][]gemserver.Release, host platform.Platform, rootGem string, rootVP VersionPlatform) *indexSource {
	src := &indexSource{
		host:     host,
		releases: info,
		admitPre: make(map[string]bool),
	}

	// Prereleases are opt-in: a gem admits them when some constraint on it
	// names a prerelease version, or when the root pin itself is one.
	for _, releases := range info {
		for _, release := range releases {
			for _, dep := range release.Deps {
				if dep.Constraints.AdmitsPrerelease() {
					src.admitPre[dep.Name] = true
				}
			}
		}
	}
	if rootVP.Version.IsPrerelease() {
		src.admitPre[rootGem] = true
	}

	return src
}

// GetVersions returns every registered (version, platform) for a gem,
// sorted ascending so the solver prefers the last entry: highest version,
// then native over universal. Prereleases are filtered out unless admitted;
// a gem with only prereleases keeps them.
func (s *indexSource) GetVersions(name pubgrub.Name) ([]pubgrub.Version, error) {
	gem := name.Value()
	releases, ok := s.releases[gem]
	if !ok {
		return nil, fmt.Errorf("gem %s is not in the resolution index", gem)
	}

	versions := make([]pubgrub.Version, 0, len(releases))
	var skippedPre int
	for _, release := range releases {
		if release.Version.IsPrerelease() && !s.admitPre[gem] {
			skippedPre++
			continue
		}
		versions = append(versions, &vpVersion{
			vp:   VersionPlatform{Version: release.Version, Platform: release.Platform},
			host: s.host,
		})
	}
	if len(versions) == 0 && skippedPre > 0 {
		for _, release := range releases {
			versions = append(versions, &vpVersion{
				vp:   VersionPlatform{Version: release.Version, Platform: release.Platform},
				host: s.host,
			})
		}
	}

	slices.SortFunc(versions, func(a, b pubgrub.Version) int {
		return a.Sort(b)
	})
	return versions, nil
}

// GetDependencies returns the dependency terms of one release.
func (s *indexSource) GetDependencies(name pubgrub.Name, version pubgrub.Version) ([]pubgrub.Term, error) {
	gem := name.Value()
	vp, ok := version.(*vpVersion)
	if !ok {
		return nil, fmt.Errorf("unexpected version type %T for gem %s", version, gem)
	}

	for _, release := range s.releases[gem] {
		if !release.Version.Equal(vp.vp.Version) || !release.Platform.Equal(vp.vp.Platform) {
			continue
		}
		terms := make([]pubgrub.Term, 0, len(release.Deps))
		for _, dep := range release.Deps {
			terms = append(terms, pubgrub.NewTerm(
				pubgrub.MakeName(dep.Name),
				conditionFor(dep.Constraints, s.host),
			))
		}
		return terms, nil
	}
	return nil, fmt.Errorf("version %s not found for gem %s", version, gem)
}
