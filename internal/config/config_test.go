package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/contriboss/rv/internal/ruby"
)

func TestRubiesDiscovery(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir()}
	for _, name := range []string{"ruby-3.2.9", "ruby-3.4.2", "jruby-9.4.13.0", "not-a-ruby", "scratch.tmp"} {
		if err := os.MkdirAll(filepath.Join(cfg.RubiesDir(), name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	installs := cfg.Rubies()
	if len(installs) != 3 {
		t.Fatalf("installs = %+v", installs)
	}
	// Sorted ascending; engines sort before numbers within an engine.
	last := installs[len(installs)-1]
	if last.Version.Engine != "ruby" || last.Version.Minor != 4 {
		t.Errorf("highest = %s", last.Version)
	}
}

func TestMatchingRuby(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir()}
	for _, name := range []string{"ruby-3.2.9", "ruby-3.4.2"} {
		if err := os.MkdirAll(filepath.Join(cfg.RubiesDir(), name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	req := requestFor(t, "3.2")
	install, ok := cfg.MatchingRuby(req)
	if !ok || install.Version.Patch != 9 {
		t.Errorf("install = %+v ok=%v", install, ok)
	}

	if _, ok := cfg.MatchingRuby(requestFor(t, "3.9")); ok {
		t.Error("3.9 should not match")
	}
}

func TestXDGDirs(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	t.Setenv("RV_CACHE_DIR", "")
	if got := UserCacheDir(); got != filepath.Join("/xdg/cache", "rv") {
		t.Errorf("cache dir = %q", got)
	}

	t.Setenv("RV_CACHE_DIR", "/custom")
	if got := UserCacheDir(); got != "/custom" {
		t.Errorf("cache dir override = %q", got)
	}

	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	t.Setenv("RV_DATA_DIR", "")
	if got := UserDataDir(); got != filepath.Join("/xdg/data", "rv") {
		t.Errorf("data dir = %q", got)
	}
}

func requestFor(t *testing.T, s string) ruby.Request {
	t.Helper()
	req, err := ruby.ParseRequest(s)
	if err != nil {
		t.Fatal(err)
	}
	return req
}
