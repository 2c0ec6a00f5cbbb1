package config

import (
	"path/filepath"
	"strings"

	"github.com/contriboss/rv/internal/ruby"
)

// RubyInstall is an interpreter on disk under <data>/rubies/<id>/.
type RubyInstall struct {
	Version ruby.Version
	Root    string
}

// BinDir is where the interpreter's executables live.
func (r RubyInstall) BinDir() string { return filepath.Join(r.Root, "bin") }

// EnvVar is one variable to export.
type EnvVar struct {
	Name  string
	Value string
}

// UnsetVars are cleared before activating a Ruby so stale state from other
// version managers cannot leak through.
var UnsetVars = []string{
	"RUBY_ROOT", "RUBY_ENGINE", "RUBY_VERSION", "RUBYOPT",
	"GEM_ROOT", "GEM_HOME", "GEM_PATH",
}

// EnvFor computes the environment for running under the given Ruby.
// environ carries the prior process environment (only the PATH and the
// UnsetVars entries matter).
//
// PATH is rebuilt by dropping prior entries that live under the previous
// ruby or gem bin directories (or any segment of the previous GEM_PATH),
// then prepending the new Ruby's bin, GEM_HOME/bin and GEM_ROOT/bin.
// Entries from unrelated directories are preserved.
func EnvFor(install RubyInstall, gemHome, gemRoot string, environ map[string]string) ([]string, []EnvVar) {
	unset := append([]string(nil), UnsetVars...)

	newPath := rebuildPath(environ, install.BinDir(), gemHome, gemRoot)
	gemPath := strings.Join([]string{gemHome, gemRoot}, string(filepath.ListSeparator))

	set := []EnvVar{
		{Name: "PATH", Value: newPath},
		{Name: "RUBY_ROOT", Value: install.Root},
		{Name: "RUBY_ENGINE", Value: install.Version.Engine},
		{Name: "RUBY_VERSION", Value: install.Version.Number()},
		{Name: "GEM_ROOT", Value: gemRoot},
		{Name: "GEM_HOME", Value: gemHome},
		{Name: "GEM_PATH", Value: gemPath},
	}
	return unset, set
}

func rebuildPath(environ map[string]string, rubyBin, gemHome, gemRoot string) string {
	var stale []string
	for _, root := range []string{environ["RUBY_ROOT"], environ["GEM_ROOT"], environ["GEM_HOME"]} {
		if root != "" {
			stale = append(stale, filepath.Join(root, "bin"))
		}
	}
	for _, segment := range filepath.SplitList(environ["GEM_PATH"]) {
		if segment != "" {
			stale = append(stale, segment)
		}
	}

	var kept []string
	for _, entry := range filepath.SplitList(environ["PATH"]) {
		if entry == "" || underAny(entry, stale) {
			continue
		}
		kept = append(kept, entry)
	}

	front := []string{rubyBin, filepath.Join(gemHome, "bin"), filepath.Join(gemRoot, "bin")}
	seen := map[string]bool{}
	var out []string
	for _, entry := range append(front, kept...) {
		if seen[entry] {
			continue
		}
		seen[entry] = true
		out = append(out, entry)
	}
	return strings.Join(out, string(filepath.ListSeparator))
}

// underAny reports whether entry equals or lives under any of the roots.
func underAny(entry string, roots []string) bool {
	clean := filepath.Clean(entry)
	for _, root := range roots {
		root = filepath.Clean(root)
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
