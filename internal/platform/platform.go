// Package platform models RubyGems platform identifiers: the universal
// "ruby" sentinel and cpu-os[-abi] triples like x86_64-linux or
// arm64-darwin-24.
package platform

import (
	"runtime"
	"strings"
)

// Platform is one of Ruby (the pure-Ruby sentinel), a cpu-os[-abi] triple,
// or an unknown form retained verbatim.
type Platform struct {
	ruby bool
	CPU  string
	OS   string
	ABI  string
	raw  string // set only for unknown forms
}

// Ruby is the universal platform.
var Ruby = Platform{ruby: true}

// Parse parses a platform string. "ruby" yields the sentinel; two- and
// three-part forms split into cpu/os/abi; anything else is kept verbatim
// and compares by its raw string.
func Parse(s string) Platform {
	s = strings.TrimSpace(s)
	if s == "" || s == "ruby" {
		return Ruby
	}
	parts := strings.Split(s, "-")
	switch len(parts) {
	case 2:
		return Platform{CPU: parts[0], OS: parts[1]}
	case 3:
		return Platform{CPU: parts[0], OS: parts[1], ABI: parts[2]}
	default:
		return Platform{raw: s}
	}
}

// IsRuby reports whether this is the universal platform.
func (p Platform) IsRuby() bool { return p.ruby }

// IsUnknown reports whether the platform was kept verbatim.
func (p Platform) IsUnknown() bool { return p.raw != "" }

// String round-trips the parsed form.
func (p Platform) String() string {
	switch {
	case p.ruby:
		return "ruby"
	case p.raw != "":
		return p.raw
	case p.ABI != "":
		return p.CPU + "-" + p.OS + "-" + p.ABI
	default:
		return p.CPU + "-" + p.OS
	}
}

// Compare orders platforms: Ruby first, then lexicographic by rendering.
func (p Platform) Compare(other Platform) int {
	switch {
	case p.ruby && other.ruby:
		return 0
	case p.ruby:
		return -1
	case other.ruby:
		return 1
	}
	return strings.Compare(p.String(), other.String())
}

// Equal is structural equality.
func (p Platform) Equal(other Platform) bool { return p.Compare(other) == 0 }

// Host returns the platform of the running machine in RubyGems terms.
func Host() Platform {
	cpu := runtime.GOARCH
	switch runtime.GOARCH {
	case "amd64":
		cpu = "x86_64"
	case "386":
		cpu = "x86"
	case "arm64":
		if runtime.GOOS != "darwin" {
			cpu = "aarch64"
		}
	}

	os := runtime.GOOS
	if runtime.GOOS == "windows" {
		os = "mingw32"
	}

	return Platform{CPU: cpu, OS: os}
}

// Matches reports whether a gem advertising platform p can run on host.
// Ruby releases are universal; specific releases must agree on cpu and os,
// with the abi left free (arm64-darwin-24 runs on arm64-darwin).
func (p Platform) Matches(host Platform) bool {
	if p.ruby {
		return true
	}
	if p.raw != "" || host.raw != "" {
		return p.String() == host.String()
	}
	return p.CPU == host.CPU && p.OS == host.OS
}
