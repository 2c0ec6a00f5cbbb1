// Package resolver selects one (version, platform) per gem with PubGrub.
//
// The solver's version type is a (gem version, gem platform) pair. Ordering
// is version first, then platform, with the ruby sentinel lowest and the
// host platform highest; the solver picks the highest admissible value, so
// ties on version prefer a native release over the universal one.
package resolver

import (
	"github.com/contriboss/pubgrub-go"
	"github.com/contriboss/rv/internal/gemver"
	"github.com/contriboss/rv/internal/platform"
)

// VersionPlatform is the atomic unit the resolver selects.
type VersionPlatform struct {
	Version  gemver.Version
	Platform platform.Platform
}

// String renders "version" or "version-platform".
func (vp VersionPlatform) String() string {
	if vp.Platform.IsRuby() {
		return vp.Version.String()
	}
	return vp.Version.String() + "-" + vp.Platform.String()
}

// Compare orders pairs lexicographically relative to a host platform:
// version, then platform with ruby < other platforms (lexicographic) < host.
func (vp VersionPlatform) Compare(other VersionPlatform, host platform.Platform) int {
	if cmp := vp.Version.Compare(other.Version); cmp != 0 {
		return cmp
	}
	ra, rb := platformRank(vp.Platform, host), platformRank(other.Platform, host)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	return vp.Platform.Compare(other.Platform)
}

func platformRank(p, host platform.Platform) int {
	switch {
	case p.IsRuby():
		return 0
	case p.Equal(host):
		return 2
	default:
		return 1
	}
}

// vpVersion adapts VersionPlatform to pubgrub.Version. The host platform is
// captured at construction because Sort has no side channel.
type vpVersion struct {
	vp   VersionPlatform
	host platform.Platform
}

func (v *vpVersion) String() string { return v.vp.String() }

// Sort compares with another pubgrub version.
func (v *vpVersion) Sort(other pubgrub.Version) int {
	o, ok := other.(*vpVersion)
	if !ok {
		if v.String() < other.String() {
			return -1
		}
		if v.String() > other.String() {
			return 1
		}
		return 0
	}
	return v.vp.Compare(o.vp, v.host)
}
