// Package gemserver talks to RubyGems-compatible servers over the compact
// index protocol: GET /info/<gem> returns one text line per release, and
// GET /gems/<name>-<version>[-<platform>].gem returns the archive.
package gemserver

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/contriboss/rv/internal/gemver"
	"github.com/contriboss/rv/internal/logger"
	"github.com/contriboss/rv/internal/platform"
)

// Dep is one runtime dependency of a release.
type Dep struct {
	Name        string
	Constraints gemver.ConstraintList
}

// Metadata is the post-pipe section of an info line.
type Metadata struct {
	Checksum            []byte // SHA-256 of the gem archive
	RubyConstraints     gemver.ConstraintList
	RubygemsConstraints gemver.ConstraintList
}

// Release is one line of /info/<gem>: a (version, platform) pair with its
// dependencies and metadata.
type Release struct {
	Version  gemver.Version
	Platform platform.Platform
	Deps     []Dep
	Metadata Metadata
}

// FullName renders name-version[-platform] for a given gem name.
func (r *Release) FullName(gem string) string {
	if r.Platform.IsRuby() {
		return fmt.Sprintf("%s-%s", gem, r.Version)
	}
	return fmt.Sprintf("%s-%s-%s", gem, r.Version, r.Platform)
}

// Info line grammar failures.
type LineError struct {
	Line   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("malformed info line %q: %s", e.Line, e.Reason)
}

// ParseBody parses a full /info/<gem> response body. The leading "---"
// separator and blank lines are skipped.
func ParseBody(body string) ([]Release, error) {
	var releases []Release
	for _, line := range strings.Split(body, "\n") {
		if line == "" || line == "---" {
			continue
		}
		release, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}
	return releases, nil
}

// ParseLine parses one info line:
//
//	8.1.2 activesupport:= 8.1.2,globalid:>= 0.3.6|checksum:908d...,ruby:>= 3.2.0
func ParseLine(line string) (Release, error) {
	versionPart, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Release{}, &LineError{Line: line, Reason: "missing a space"}
	}
	depsPart, metaPart, ok := strings.Cut(rest, "|")
	if !ok {
		return Release{}, &LineError{Line: line, Reason: "missing a pipe"}
	}

	versionStr, platformStr := splitVersionPlatform(versionPart)
	version, err := gemver.Parse(versionStr)
	if err != nil {
		return Release{}, fmt.Errorf("info line %q: %w", line, err)
	}

	release := Release{Version: version, Platform: platform.Parse(platformStr)}

	if depsPart != "" {
		for _, depStr := range strings.Split(depsPart, ",") {
			name, constraints, ok := strings.Cut(depStr, ":")
			if !ok {
				return Release{}, &LineError{Line: line, Reason: "missing a colon"}
			}
			list, err := parseConstraintGroup(constraints)
			if err != nil {
				return Release{}, fmt.Errorf("info line %q: %w", line, err)
			}
			release.Deps = append(release.Deps, Dep{Name: name, Constraints: list})
		}
	}

	for _, field := range strings.Split(metaPart, ",") {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			return Release{}, &LineError{Line: line, Reason: "missing a colon"}
		}
		switch key {
		case "checksum":
			sum, err := hex.DecodeString(value)
			if err != nil {
				return Release{}, fmt.Errorf("info line %q: bad checksum: %w", line, err)
			}
			release.Metadata.Checksum = sum
		case "ruby":
			list, err := parseConstraintGroup(value)
			if err != nil {
				return Release{}, fmt.Errorf("info line %q: %w", line, err)
			}
			release.Metadata.RubyConstraints = list
		case "rubygems":
			list, err := parseConstraintGroup(value)
			if err != nil {
				return Release{}, fmt.Errorf("info line %q: %w", line, err)
			}
			release.Metadata.RubygemsConstraints = list
		default:
			logger.Warn("unknown info metadata key", "key", key, "field", field)
		}
	}

	return release, nil
}

// parseConstraintGroup parses "&"-joined constraints, the compact index's
// conjunction syntax.
func parseConstraintGroup(s string) (gemver.ConstraintList, error) {
	var list gemver.ConstraintList
	for _, part := range strings.Split(s, "&") {
		c, err := gemver.ParseConstraint(part)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, nil
}

func splitVersionPlatform(s string) (string, string) {
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}
