package resolver

import (
	"errors"
	"testing"

	"github.com/contriboss/rv/internal/gemserver"
	"github.com/contriboss/rv/internal/gemver"
	"github.com/contriboss/rv/internal/platform"
)

var testHost = platform.Parse("arm64-darwin")

func release(version, plat string, deps ...gemserver.Dep) gemserver.Release {
	return gemserver.Release{
		Version:  gemver.MustParse(version),
		Platform: platform.Parse(plat),
		Deps:     deps,
	}
}

func dep(name, constraints string) gemserver.Dep {
	list, err := gemver.ParseConstraintList(constraints)
	if err != nil {
		panic(err)
	}
	return gemserver.Dep{Name: name, Constraints: list}
}

// A small index mirroring nokogiri's shape: a native release alongside the
// universal one, plus a transitive dep.
func nokogiriIndex() map[string][]gemserver.Release {
	return map[string][]gemserver.Release{
		"nokogiri": {
			release("1.18.0", "", dep("racc", "~> 1.4")),
			release("1.19.0", "", dep("racc", "~> 1.4")),
			release("1.19.0", "arm64-darwin", dep("racc", "~> 1.4")),
			release("1.19.0", "x86_64-linux", dep("racc", "~> 1.4")),
		},
		"racc": {
			release("1.7.0", ""),
			release("1.8.1", ""),
		},
	}
}

func TestSolvePrefersNativeRelease(t *testing.T) {
	rootVP := VersionPlatform{Version: gemver.MustParse("1.19.0"), Platform: testHost}
	selected, err := Solve("nokogiri", rootVP, nokogiriIndex(), testHost)
	if err != nil {
		t.Fatal(err)
	}

	if len(selected) != 2 {
		t.Fatalf("selected = %v", selected)
	}
	noko := selected["nokogiri"]
	if noko.Version.String() != "1.19.0" || noko.Platform.String() != "arm64-darwin" {
		t.Errorf("nokogiri = %s", noko)
	}
	racc := selected["racc"]
	if racc.Version.String() != "1.8.1" || !racc.Platform.IsRuby() {
		t.Errorf("racc = %s", racc)
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	rootVP := VersionPlatform{Version: gemver.MustParse("1.19.0"), Platform: testHost}
	first, err := Solve("nokogiri", rootVP, nokogiriIndex(), testHost)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := Solve("nokogiri", rootVP, nokogiriIndex(), testHost)
		if err != nil {
			t.Fatal(err)
		}
		for name, vp := range first {
			if again[name].String() != vp.String() {
				t.Fatalf("run %d: %s = %s, want %s", i, name, again[name], vp)
			}
		}
	}
}

func TestSolveRespectsConstraints(t *testing.T) {
	info := map[string][]gemserver.Release{
		"app": {release("1.0.0", "", dep("lib", "< 2.0"))},
		"lib": {release("1.5.0", ""), release("2.0.0", "")},
	}
	rootVP := VersionPlatform{Version: gemver.MustParse("1.0.0"), Platform: platform.Ruby}
	selected, err := Solve("app", rootVP, info, testHost)
	if err != nil {
		t.Fatal(err)
	}
	if selected["lib"].Version.String() != "1.5.0" {
		t.Errorf("lib = %s", selected["lib"])
	}
}

func TestSolveConflict(t *testing.T) {
	info := map[string][]gemserver.Release{
		"app": {release("1.0.0", "", dep("a", ">= 0"), dep("b", ">= 0"))},
		"a":   {release("1.0.0", "", dep("shared", "< 1.0"))},
		"b":   {release("1.0.0", "", dep("shared", ">= 2.0"))},
		"shared": {
			release("0.9.0", ""),
			release("2.1.0", ""),
		},
	}
	rootVP := VersionPlatform{Version: gemver.MustParse("1.0.0"), Platform: platform.Ruby}
	_, err := Solve("app", rootVP, info, testHost)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Root != "app" {
		t.Errorf("root = %q", conflict.Root)
	}
}

func TestSolveToleratesCycles(t *testing.T) {
	info := map[string][]gemserver.Release{
		"a": {release("1.0.0", "", dep("b", ">= 1.0"))},
		"b": {release("1.0.0", "", dep("a", ">= 1.0"))},
	}
	rootVP := VersionPlatform{Version: gemver.MustParse("1.0.0"), Platform: platform.Ruby}
	selected, err := Solve("a", rootVP, info, testHost)
	if err != nil {
		t.Fatal(err)
	}
	if len(selected) != 2 {
		t.Errorf("selected = %v", selected)
	}
}

func TestPrereleasesExcludedByDefault(t *testing.T) {
	info := map[string][]gemserver.Release{
		"app": {release("1.0.0", "", dep("lib", ">= 1.0"))},
		"lib": {
			release("1.0.0", ""),
			release("1.1.0.rc1", ""),
		},
	}
	rootVP := VersionPlatform{Version: gemver.MustParse("1.0.0"), Platform: platform.Ruby}
	selected, err := Solve("app", rootVP, info, testHost)
	if err != nil {
		t.Fatal(err)
	}
	if selected["lib"].Version.String() != "1.0.0" {
		t.Errorf("lib = %s, prerelease should be excluded", selected["lib"])
	}
}

func TestPrereleasesAdmittedByPrereleaseConstraint(t *testing.T) {
	info := map[string][]gemserver.Release{
		"app": {release("1.0.0", "", dep("lib", ">= 1.1.0.rc1"))},
		"lib": {
			release("1.0.0", ""),
			release("1.1.0.rc1", ""),
		},
	}
	rootVP := VersionPlatform{Version: gemver.MustParse("1.0.0"), Platform: platform.Ruby}
	selected, err := Solve("app", rootVP, info, testHost)
	if err != nil {
		t.Fatal(err)
	}
	if selected["lib"].Version.String() != "1.1.0.rc1" {
		t.Errorf("lib = %s, prerelease should be admitted", selected["lib"])
	}
}

func TestVersionPlatformOrdering(t *testing.T) {
	v := gemver.MustParse("1.0.0")
	rubyVP := VersionPlatform{Version: v, Platform: platform.Ruby}
	linuxVP := VersionPlatform{Version: v, Platform: platform.Parse("x86_64-linux")}
	hostVP := VersionPlatform{Version: v, Platform: testHost}
	newer := VersionPlatform{Version: gemver.MustParse("1.0.1"), Platform: platform.Ruby}

	if rubyVP.Compare(linuxVP, testHost) != -1 {
		t.Error("ruby should sort below specific platforms")
	}
	if linuxVP.Compare(hostVP, testHost) != -1 {
		t.Error("host platform should sort above other platforms")
	}
	if hostVP.Compare(newer, testHost) != -1 {
		t.Error("version outranks platform")
	}
}

func TestEngineFilter(t *testing.T) {
	v := gemver.MustParse("1.0.0")
	candidates := []VersionPlatform{
		{Version: v, Platform: platform.Ruby},
		{Version: v, Platform: platform.Parse("java")},
		{Version: v, Platform: platform.Parse("x86_64-linux")},
	}

	jruby := FilterByEngine("jruby", candidates)
	if len(jruby) != 2 {
		t.Errorf("jruby candidates = %v", jruby)
	}
	mri := FilterByEngine("ruby", candidates)
	if len(mri) != 2 {
		t.Errorf("mri candidates = %v", mri)
	}
	for _, vp := range mri {
		if vp.Platform.String() == "java" {
			t.Error("mri should not see java platform gems")
		}
	}
}
