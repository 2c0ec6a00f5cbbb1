// Package ruby parses Ruby interpreter identifiers and discovers which Ruby
// a project asks for.
//
// Interpreter versions use a stricter grammar than gem versions: at most
// four numeric segments, an optional engine prefix, an optional prerelease
// suffix. Do not feed these through internal/gemver's parser directly.
package ruby

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is a possibly-partial Ruby version: "3.2" or "jruby-9.4" leave
// trailing fields unset. A fully specified request can become a Version.
type Request struct {
	Engine     string
	Major      *int
	Minor      *int
	Patch      *int
	Tiny       *int
	Prerelease string
}

// Request parse failures.
var (
	ErrEmptyInput   = fmt.Errorf("empty input")
	ErrEmptyVersion = fmt.Errorf("empty version")
)

// InvalidVersionError reports input whose version part is not numeric.
type InvalidVersionError struct {
	Input string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version format: %s", e.Input)
}

// TooManySegmentsError reports more than four numeric segments, which gem
// versions allow but interpreter versions forbid.
type TooManySegmentsError struct {
	Input string
}

func (e *TooManySegmentsError) Error() string {
	return fmt.Sprintf("invalid version %s, no more than 4 numbers are allowed", e.Input)
}

// InvalidPartError reports a single non-numeric version component.
type InvalidPartError struct {
	Which string
	Input string
}

func (e *InvalidPartError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Which, e.Input)
}

// ParseRequest parses `(engine '-')? major ('.' minor ('.' patch ('.'
// tiny)?)?)? ('-' prerelease)?`. The engine defaults to "ruby" when the
// input leads with a digit. "dev" alone after the engine is a prerelease
// with no numbers ("jruby-dev").
func ParseRequest(input string) (Request, error) {
	if input == "" {
		return Request{}, ErrEmptyInput
	}

	engine := "ruby"
	rest := input
	if !isDigit(input[0]) {
		if idx := strings.IndexByte(input, '-'); idx >= 0 {
			engine, rest = input[:idx], input[idx+1:]
		} else {
			engine, rest = input, ""
			if engine == "dev" {
				engine, rest = "ruby", "dev"
			} else {
				return Request{}, ErrEmptyVersion
			}
		}
	}
	if rest == "" {
		return Request{}, ErrEmptyVersion
	}

	var numbers, prerelease string
	if !isDigit(rest[0]) {
		if rest != "dev" {
			return Request{}, &InvalidVersionError{Input: input}
		}
		prerelease = rest
	} else if idx := strings.IndexByte(rest, '-'); idx >= 0 {
		numbers, prerelease = rest[:idx], rest[idx+1:]
	} else {
		numbers = rest
	}

	req := Request{Engine: engine, Prerelease: prerelease}
	if numbers != "" {
		segments := strings.Split(numbers, ".")
		if len(segments) > 4 {
			return Request{}, &TooManySegmentsError{Input: input}
		}
		names := []string{"major version", "minor version", "patch version", "tiny version"}
		slots := []**int{&req.Major, &req.Minor, &req.Patch, &req.Tiny}
		for i, seg := range segments {
			n, err := strconv.Atoi(seg)
			if err != nil || seg == "" {
				return Request{}, &InvalidPartError{Which: names[i], Input: input}
			}
			v := n
			*slots[i] = &v
		}
	}
	return req, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// String renders the canonical form: engine, then "-major.minor.patch.tiny"
// for the fields that are set, then "-prerelease".
func (r Request) String() string {
	var b strings.Builder
	b.WriteString(r.Engine)
	if r.Major != nil {
		fmt.Fprintf(&b, "-%d", *r.Major)
		if r.Minor != nil {
			fmt.Fprintf(&b, ".%d", *r.Minor)
			if r.Patch != nil {
				fmt.Fprintf(&b, ".%d", *r.Patch)
				if r.Tiny != nil {
					fmt.Fprintf(&b, ".%d", *r.Tiny)
				}
			}
		}
	}
	if r.Prerelease != "" {
		b.WriteString("-")
		b.WriteString(r.Prerelease)
	}
	return b.String()
}
