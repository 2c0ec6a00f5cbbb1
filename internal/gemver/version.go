// Package gemver implements RubyGems-style version parsing, ordering and the
// associated constraint language.
//
// Gem versions are not semver: any number of segments is allowed, alphabetic
// runs mark prereleases, and trailing zero segments are insignificant
// ("1.0" == "1.0.0"). Keep this package distinct from internal/ruby, which
// parses interpreter versions with a stricter grammar.
package gemver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed gem version. The original string is retained for
// rendering; comparison runs over the canonical segment list (alphabetics
// lowercased, trailing numeric zeros trimmed).
type Version struct {
	original string
	segments []Segment
}

// Segment is one comparison unit of a version: either a non-negative integer
// or a lowercase alphabetic token. Numeric segments outrank alphabetic ones
// at the same position.
type Segment struct {
	Numeric bool
	Num     int64
	Str     string
}

func numSegment(n int64) Segment  { return Segment{Numeric: true, Num: n} }
func strSegment(s string) Segment { return Segment{Str: strings.ToLower(s)} }

// ErrEmpty is returned when parsing an empty version string.
var ErrEmpty = fmt.Errorf("empty version")

// BadCharError reports a character outside [0-9A-Za-z.] or a misplaced dot.
type BadCharError struct {
	Input string
	Pos   int
}

func (e *BadCharError) Error() string {
	return fmt.Sprintf("invalid character at position %d in version %q", e.Pos, e.Input)
}

// Parse parses a gem version string. Accepted input is a nonempty string of
// [0-9A-Za-z.] with no leading, trailing, or doubled dots.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, ErrEmpty
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '.':
			if i == 0 || i == len(s)-1 || s[i-1] == '.' {
				return Version{}, &BadCharError{Input: s, Pos: i}
			}
		default:
			return Version{}, &BadCharError{Input: s, Pos: i}
		}
	}
	return Version{original: s, segments: canonicalSegments(s)}, nil
}

// MustParse is Parse for version literals in tests and fixtures.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// canonicalSegments splits on dots, partitions each component into maximal
// digit and alphabetic runs, and trims trailing numeric zeros.
func canonicalSegments(s string) []Segment {
	var segments []Segment
	for _, part := range strings.Split(s, ".") {
		start := 0
		for start < len(part) {
			end := start
			digits := part[start] >= '0' && part[start] <= '9'
			for end < len(part) && (part[end] >= '0' && part[end] <= '9') == digits {
				end++
			}
			run := part[start:end]
			if digits {
				n, _ := strconv.ParseInt(run, 10, 64)
				segments = append(segments, numSegment(n))
			} else {
				segments = append(segments, strSegment(run))
			}
			start = end
		}
	}
	return trimTrailingZeros(segments)
}

func trimTrailingZeros(segments []Segment) []Segment {
	i := len(segments)
	for i > 0 && segments[i-1].Numeric && segments[i-1].Num == 0 {
		i--
	}
	if i == 0 {
		return []Segment{numSegment(0)}
	}
	return segments[:i]
}

// String renders the version as originally written.
func (v Version) String() string {
	if v.original == "" {
		return "0"
	}
	return v.original
}

// Segments returns the canonical segment list.
func (v Version) Segments() []Segment { return v.segments }

// IsPrerelease reports whether any segment is alphabetic.
func (v Version) IsPrerelease() bool {
	for _, seg := range v.segments {
		if !seg.Numeric {
			return true
		}
	}
	return false
}

func segmentAt(segments []Segment, i int) Segment {
	if i < len(segments) {
		return segments[i]
	}
	return numSegment(0)
}

// Compare returns -1, 0 or 1. Numeric segments compare by magnitude,
// alphabetic segments lexicographically, and numeric outranks alphabetic.
// Missing trailing segments count as zero.
func (v Version) Compare(other Version) int {
	n := len(v.segments)
	if len(other.segments) > n {
		n = len(other.segments)
	}
	for i := 0; i < n; i++ {
		left, right := segmentAt(v.segments, i), segmentAt(other.segments, i)
		switch {
		case left.Numeric && right.Numeric:
			if left.Num != right.Num {
				if left.Num < right.Num {
					return -1
				}
				return 1
			}
		case left.Numeric:
			return 1
		case right.Numeric:
			return -1
		default:
			if left.Str != right.Str {
				if left.Str < right.Str {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}

// Equal reports canonical equality: "1.0" equals "1.0.0".
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// Bump returns the next version of the series: alphabetic segments and
// everything after them are discarded, the final remaining segment is
// dropped when more than one is left, and the new last segment is
// incremented. Bump of "1.2.3" is "1.3"; bump of "1.0.0.rc1" is "1.1".
func (v Version) Bump() Version {
	// Segments are taken as written, so trailing zeros count here.
	var numeric []int64
	for _, part := range strings.Split(v.original, ".") {
		end := 0
		for end < len(part) && part[end] >= '0' && part[end] <= '9' {
			end++
		}
		if end == 0 {
			break
		}
		n, _ := strconv.ParseInt(part[:end], 10, 64)
		numeric = append(numeric, n)
		if end < len(part) {
			break
		}
	}
	if len(numeric) == 0 {
		numeric = []int64{0}
	}
	if len(numeric) > 1 {
		numeric = numeric[:len(numeric)-1]
	}
	numeric[len(numeric)-1]++

	parts := make([]string, len(numeric))
	for i, n := range numeric {
		parts[i] = strconv.FormatInt(n, 10)
	}
	bumped, _ := Parse(strings.Join(parts, "."))
	return bumped
}

// fromSegments builds a version whose rendering is the canonical form.
func fromSegments(segments []Segment) Version {
	segments = trimTrailingZeros(append([]Segment(nil), segments...))
	parts := make([]string, len(segments))
	for i, seg := range segments {
		if seg.Numeric {
			parts[i] = strconv.FormatInt(seg.Num, 10)
		} else {
			parts[i] = seg.Str
		}
	}
	return Version{original: strings.Join(parts, "."), segments: segments}
}
