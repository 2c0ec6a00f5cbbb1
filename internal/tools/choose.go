package tools

import (
	"fmt"
	"strings"

	"github.com/contriboss/rv/internal/config"
	"github.com/contriboss/rv/internal/gemver"
	"github.com/contriboss/rv/internal/ruby"
)

// ErrNoRubies means no interpreter is installed or otherwise available.
var ErrNoRubies = fmt.Errorf("no Ruby interpreters are available")

// NoMatchingRubyError means rubies exist but none satisfies the selected
// gems' interpreter requirements.
type NoMatchingRubyError struct {
	Requirements gemver.ConstraintList
}

func (e *NoMatchingRubyError) Error() string {
	return fmt.Sprintf("no available Ruby satisfies %s", e.Requirements.String())
}

// chooseRuby picks the interpreter to run a tool: the highest installed
// Ruby satisfying every selected release's ruby constraint, then the
// highest remote one. Prereleases are considered only when nothing else
// matches.
func chooseRuby(installed []config.RubyInstall, remote []ruby.Version, constraints gemver.ConstraintList) (ruby.Version, error) {
	installedVersions := make([]ruby.Version, len(installed))
	for i, install := range installed {
		installedVersions[i] = install.Version
	}

	if chosen, ok := selectRubyVersion(installedVersions, constraints, false); ok {
		return chosen, nil
	}
	if chosen, ok := selectRubyVersion(remote, constraints, false); ok {
		return chosen, nil
	}
	if chosen, ok := selectRubyVersion(remote, constraints, true); ok {
		return chosen, nil
	}
	if chosen, ok := selectRubyVersion(installedVersions, constraints, true); ok {
		return chosen, nil
	}

	if len(installedVersions) == 0 && len(remote) == 0 {
		return ruby.Version{}, ErrNoRubies
	}
	return ruby.Version{}, &NoMatchingRubyError{Requirements: constraints}
}

// selectRubyVersion finds the highest candidate meeting the constraints.
// Candidates are scanned from the top after sorting ascending.
func selectRubyVersion(candidates []ruby.Version, constraints gemver.ConstraintList, matchPrereleases bool) (ruby.Version, bool) {
	sorted := append([]ruby.Version(nil), candidates...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Compare(sorted[j]) > 0; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		candidate := sorted[i]
		if candidate.IsPrerelease() && !matchPrereleases {
			continue
		}
		if rubySatisfiesConstraints(candidate, constraints) {
			return candidate, true
		}
	}
	return ruby.Version{}, false
}

// rubySatisfiesConstraints evaluates gemserver ruby requirements against an
// interpreter version by mapping it into the gem version grammar.
func rubySatisfiesConstraints(version ruby.Version, constraints gemver.ConstraintList) bool {
	if len(constraints) == 0 {
		return true
	}
	gemVersion, err := gemver.Parse(strings.ReplaceAll(version.GemVersionString(), "-", "."))
	if err != nil {
		return false
	}
	return constraints.SatisfiedBy(gemVersion)
}
