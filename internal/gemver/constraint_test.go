package gemver

import (
	"errors"
	"testing"
)

func TestParseConstraint(t *testing.T) {
	cases := []struct {
		in      string
		op      Op
		version string
	}{
		{"= 1.0.0", OpEqual, "1.0.0"},
		{"=1.0.0", OpEqual, "1.0.0"},
		{"1.0.0", OpEqual, "1.0.0"},
		{"!= 2.0", OpNotEqual, "2.0"},
		{"> 1", OpGreater, "1"},
		{"< 3.2", OpLess, "3.2"},
		{">= 0.3.6", OpGreaterEq, "0.3.6"},
		{"<=  4.0", OpLessEq, "4.0"},
		{"~> 3.0.3", OpPessimistic, "3.0.3"},
	}
	for _, tc := range cases {
		c, err := ParseConstraint(tc.in)
		if err != nil {
			t.Fatalf("ParseConstraint(%q): %v", tc.in, err)
		}
		if c.Op != tc.op || c.Version.String() != tc.version {
			t.Errorf("ParseConstraint(%q) = %v %v", tc.in, c.Op, c.Version)
		}
	}
}

func TestParseConstraintUnknownOp(t *testing.T) {
	var unknown *UnknownOpError
	for _, in := range []string{"=> 1.0", "~< 1.0", "<> 2.0"} {
		_, err := ParseConstraint(in)
		if !errors.As(err, &unknown) {
			t.Errorf("ParseConstraint(%q): expected UnknownOpError, got %v", in, err)
		}
	}
}

func TestPessimisticConstraint(t *testing.T) {
	c, err := ParseConstraint("~> 3.0.3")
	if err != nil {
		t.Fatal(err)
	}
	accepts := []string{"3.0.3", "3.0.4", "3.0.99"}
	rejects := []string{"3.0.2", "3.1.0", "4.0"}
	for _, in := range accepts {
		if !c.SatisfiedBy(MustParse(in)) {
			t.Errorf("~> 3.0.3 should accept %s", in)
		}
	}
	for _, in := range rejects {
		if c.SatisfiedBy(MustParse(in)) {
			t.Errorf("~> 3.0.3 should reject %s", in)
		}
	}

	twoSeg, _ := ParseConstraint("~> 3.0")
	if !twoSeg.SatisfiedBy(MustParse("3.9")) {
		t.Error("~> 3.0 should accept 3.9")
	}
	if twoSeg.SatisfiedBy(MustParse("4.0")) {
		t.Error("~> 3.0 should reject 4.0")
	}
}

func TestPessimisticPrereleaseIncludesFinalRelease(t *testing.T) {
	c, err := ParseConstraint("~> 1.0.0.rc1")
	if err != nil {
		t.Fatal(err)
	}
	if !c.SatisfiedBy(MustParse("1.0.0")) {
		t.Error("~> 1.0.0.rc1 should include 1.0.0")
	}
	if !c.SatisfiedBy(MustParse("1.0.0.rc2")) {
		t.Error("~> 1.0.0.rc1 should include 1.0.0.rc2")
	}
	if c.SatisfiedBy(MustParse("1.1.0")) {
		t.Error("~> 1.0.0.rc1 should exclude 1.1.0")
	}
}

func TestConstraintListIntersection(t *testing.T) {
	a, _ := ParseConstraintList(">= 1.0")
	b, _ := ParseConstraintList("< 2.0")
	c, _ := ParseConstraintList("!= 1.5")

	left := a.Intersect(b).Intersect(c)
	right := a.Intersect(b.Intersect(c))

	probes := []string{"0.9", "1.0", "1.4", "1.5", "1.9", "2.0"}
	for _, p := range probes {
		v := MustParse(p)
		if left.SatisfiedBy(v) != right.SatisfiedBy(v) {
			t.Errorf("intersection not associative at %s", p)
		}
	}

	// Empty intersection is the universal range.
	var empty ConstraintList
	if !empty.SatisfiedBy(MustParse("0.0.1")) {
		t.Error("empty constraint list should accept everything")
	}
}

func TestAdmitsPrerelease(t *testing.T) {
	plain, _ := ParseConstraintList(">= 1.0, < 2.0")
	if plain.AdmitsPrerelease() {
		t.Error("release-only constraints should not admit prereleases")
	}
	pre, _ := ParseConstraintList(">= 1.0.0.rc1")
	if !pre.AdmitsPrerelease() {
		t.Error("a prerelease constraint version should admit prereleases")
	}
}
