package ruby

import (
	"fmt"
	"strings"
)

// Version is a specific, runnable Ruby: a Request with major, minor and
// patch all present.
type Version struct {
	Engine     string
	Major      int
	Minor      int
	Patch      int
	Tiny       *int
	Prerelease string
}

// Missing-field errors when narrowing a Request to a Version.
var (
	ErrMissingMajor = fmt.Errorf("missing major version")
	ErrMissingMinor = fmt.Errorf("missing minor version")
	ErrMissingPatch = fmt.Errorf("missing patch version")
)

// ParseVersion parses a fully specified interpreter version such as
// "ruby-3.4.2", "jruby-9.4.13.0" or "3.5.0-preview1".
func ParseVersion(input string) (Version, error) {
	req, err := ParseRequest(input)
	if err != nil {
		return Version{}, err
	}
	return req.ToVersion()
}

// ToVersion narrows a request to a version, failing when the request is a
// range rather than a specific release.
func (r Request) ToVersion() (Version, error) {
	if r.Major == nil {
		return Version{}, ErrMissingMajor
	}
	if r.Minor == nil {
		return Version{}, ErrMissingMinor
	}
	if r.Patch == nil {
		return Version{}, ErrMissingPatch
	}
	return Version{
		Engine:     r.Engine,
		Major:      *r.Major,
		Minor:      *r.Minor,
		Patch:      *r.Patch,
		Tiny:       r.Tiny,
		Prerelease: r.Prerelease,
	}, nil
}

// Satisfies reports whether this version is inside the range the request
// names: every set field of the request must match.
func (v Version) Satisfies(req Request) bool {
	if v.Engine != req.Engine {
		return false
	}
	if req.Major != nil && v.Major != *req.Major {
		return false
	}
	if req.Minor != nil && v.Minor != *req.Minor {
		return false
	}
	if req.Patch != nil && v.Patch != *req.Patch {
		return false
	}
	if req.Tiny != nil && (v.Tiny == nil || *v.Tiny != *req.Tiny) {
		return false
	}
	return req.Prerelease == "" || v.Prerelease == req.Prerelease
}

// Number renders the version without the engine: "3.4.2" or
// "9.4.13.0-preview1".
func (v Version) Number() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Tiny != nil {
		fmt.Fprintf(&b, ".%d", *v.Tiny)
	}
	if v.Prerelease != "" {
		b.WriteString("-")
		b.WriteString(v.Prerelease)
	}
	return b.String()
}

// String renders the canonical "engine-number" form; parse and render
// round-trip over the released Ruby corpus.
func (v Version) String() string {
	return v.Engine + "-" + v.Number()
}

// IsPrerelease reports whether this is a preview, rc or dev build.
func (v Version) IsPrerelease() bool { return v.Prerelease != "" }

// GemVersionString converts the numeric part into gem-version grammar
// ("3.5.0-preview1" becomes "3.5.0.preview1") so interpreter requirements
// from the gemserver can be checked with internal/gemver. The engine never
// enters the string; it would be read as a prerelease segment.
func (v Version) GemVersionString() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Tiny != nil {
		s += fmt.Sprintf(".%d", *v.Tiny)
	}
	if v.Prerelease != "" {
		s += "." + v.Prerelease
	}
	return s
}

// Compare orders versions by engine, then numbers; a release outranks a
// prerelease of the same number.
func (v Version) Compare(other Version) int {
	if v.Engine != other.Engine {
		return strings.Compare(v.Engine, other.Engine)
	}
	nums := func(x Version) [4]int {
		tiny := 0
		if x.Tiny != nil {
			tiny = *x.Tiny
		}
		return [4]int{x.Major, x.Minor, x.Patch, tiny}
	}
	a, b := nums(v), nums(other)
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case v.Prerelease == other.Prerelease:
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	}
	return strings.Compare(v.Prerelease, other.Prerelease)
}
