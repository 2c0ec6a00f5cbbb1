package resolver

import (
	"github.com/contriboss/pubgrub-go"
	"github.com/contriboss/rv/internal/gemver"
	"github.com/contriboss/rv/internal/platform"
)

// rangeFor converts one gem constraint into a version set over
// (version, platform) pairs. The lower endpoint pairs the constraint
// version with the ruby platform and the upper endpoint pairs it with the
// host platform, so both universal and host-specific releases of the same
// version satisfy "= v".
func rangeFor(c gemver.Constraint, host platform.Platform) pubgrub.VersionSet {
	minV := &vpVersion{vp: VersionPlatform{Version: c.Version, Platform: platform.Ruby}, host: host}
	maxV := &vpVersion{vp: VersionPlatform{Version: c.Version, Platform: host}, host: host}

	switch c.Op {
	case gemver.OpEqual:
		return pubgrub.NewVersionRangeSet(minV, true, maxV, true)
	case gemver.OpNotEqual:
		return pubgrub.NewVersionRangeSet(minV, true, maxV, true).Complement()
	case gemver.OpGreater:
		return pubgrub.NewLowerBoundVersionSet(maxV, false)
	case gemver.OpLess:
		return pubgrub.NewUpperBoundVersionSet(minV, false)
	case gemver.OpGreaterEq:
		return pubgrub.NewLowerBoundVersionSet(minV, true)
	case gemver.OpLessEq:
		return pubgrub.NewUpperBoundVersionSet(maxV, true)
	case gemver.OpPessimistic:
		// The upper bound is the next series with a sentinel alphabetic
		// segment, excluding that series' prereleases as well.
		sentinel, err := gemver.Parse(c.Version.Bump().String() + ".A")
		if err != nil {
			return pubgrub.FullVersionSet()
		}
		upper := &vpVersion{vp: VersionPlatform{Version: sentinel, Platform: platform.Ruby}, host: host}
		return pubgrub.NewLowerBoundVersionSet(minV, true).
			Intersection(pubgrub.NewUpperBoundVersionSet(upper, false))
	}
	return pubgrub.FullVersionSet()
}

// conditionFor converts a constraint list into a pubgrub condition by
// intersecting the per-constraint ranges. An empty list is the full set.
func conditionFor(list gemver.ConstraintList, host platform.Platform) pubgrub.Condition {
	set := pubgrub.FullVersionSet()
	for _, c := range list {
		set = set.Intersection(rangeFor(c, host))
		if set.IsEmpty() {
			break
		}
	}
	return pubgrub.NewVersionSetCondition(set)
}
