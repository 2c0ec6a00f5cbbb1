package resolver

import (
	"strings"

	"github.com/contriboss/rv/internal/platform"
	"github.com/contriboss/rv/internal/ruby"
)

// EngineCompatible reports whether a release platform can run on the given
// Ruby engine: java-platform gems need JRuby, and JRuby runs nothing else
// that is platform-specific unless it is java.
func EngineCompatible(engine string, p platform.Platform) bool {
	if p.IsRuby() {
		return true
	}
	raw := p.String()
	isJava := raw == "java" || strings.HasSuffix(raw, "-java")

	switch ruby.NormalizeEngine(engine) {
	case ruby.EngineJRuby:
		return isJava
	default:
		return !isJava
	}
}

// FilterByEngine drops the (version, platform) pairs an engine cannot load.
func FilterByEngine(engine string, candidates []VersionPlatform) []VersionPlatform {
	var out []VersionPlatform
	for _, vp := range candidates {
		if EngineCompatible(engine, vp.Platform) {
			out = append(out, vp)
		}
	}
	return out
}
