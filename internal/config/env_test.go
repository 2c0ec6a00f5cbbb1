package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/contriboss/rv/internal/ruby"
)

func testInstall(t *testing.T, root string) RubyInstall {
	t.Helper()
	version, err := ruby.ParseVersion("ruby-3.4.2")
	if err != nil {
		t.Fatal(err)
	}
	return RubyInstall{Version: version, Root: root}
}

func TestEnvForSetsAndUnsets(t *testing.T) {
	install := testInstall(t, "/data/rubies/ruby-3.4.2")
	unset, set := EnvFor(install, "/data/tools/demo@1.0.0", "/data/rubies/ruby-3.4.2/lib/gems", map[string]string{
		"PATH": "/usr/bin:/bin",
	})

	for _, name := range []string{"RUBY_ROOT", "RUBY_ENGINE", "RUBY_VERSION", "RUBYOPT", "GEM_ROOT", "GEM_HOME", "GEM_PATH"} {
		found := false
		for _, u := range unset {
			if u == name {
				found = true
			}
		}
		if !found {
			t.Errorf("%s missing from unset list", name)
		}
	}

	vars := map[string]string{}
	for _, v := range set {
		vars[v.Name] = v.Value
	}
	if vars["RUBY_ENGINE"] != "ruby" || vars["RUBY_VERSION"] != "3.4.2" {
		t.Errorf("ruby vars = %q %q", vars["RUBY_ENGINE"], vars["RUBY_VERSION"])
	}
	wantGemPath := "/data/tools/demo@1.0.0" + string(filepath.ListSeparator) + "/data/rubies/ruby-3.4.2/lib/gems"
	if vars["GEM_PATH"] != wantGemPath {
		t.Errorf("GEM_PATH = %q", vars["GEM_PATH"])
	}
}

func TestEnvForPathSurgery(t *testing.T) {
	install := testInstall(t, "/new/ruby")
	prior := map[string]string{
		"PATH": strings.Join([]string{
			"/old/ruby/bin",     // under prior RUBY_ROOT: dropped
			"/usr/local/bin",    // unrelated: preserved
			"/old/gemhome/bin",  // under prior GEM_HOME: dropped
			"/old/gempath/seg1", // under prior GEM_PATH segment: dropped
			"/usr/bin",
		}, string(filepath.ListSeparator)),
		"RUBY_ROOT": "/old/ruby",
		"GEM_HOME":  "/old/gemhome",
		"GEM_PATH":  "/old/gempath/seg1" + string(filepath.ListSeparator) + "/old/gempath/seg2",
	}

	_, set := EnvFor(install, "/new/gemhome", "/new/gemroot", prior)
	var path string
	for _, v := range set {
		if v.Name == "PATH" {
			path = v.Value
		}
	}
	entries := filepath.SplitList(path)

	want := []string{
		"/new/ruby/bin", "/new/gemhome/bin", "/new/gemroot/bin",
		"/usr/local/bin", "/usr/bin",
	}
	if len(entries) != len(want) {
		t.Fatalf("path entries = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, entries[i], want[i])
		}
	}
}

func TestEnvForPreservesUnknownEntries(t *testing.T) {
	install := testInstall(t, "/r")
	prior := map[string]string{"PATH": "/somewhere/odd:/another/place"}
	_, set := EnvFor(install, "/gh", "/gr", prior)
	for _, v := range set {
		if v.Name == "PATH" {
			if !strings.Contains(v.Value, "/somewhere/odd") || !strings.Contains(v.Value, "/another/place") {
				t.Errorf("unknown entries should be preserved: %q", v.Value)
			}
		}
	}
}
