package lockfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

type parseState int

const (
	stateTop parseState = iota
	stateSource
	stateSpecs
	statePlatforms
	stateDeps
	stateChecksums
	stateRuby
	stateBundled
	stateSkip
)

var (
	specRegex     = regexp.MustCompile(`^([A-Za-z0-9._\-]+) \(([^)]+)\)$`)
	depRegex      = regexp.MustCompile(`^([A-Za-z0-9._\-]+)(?: \(([^)]+)\))?$`)
	checksumRegex = regexp.MustCompile(`^([A-Za-z0-9._\-]+) \(([^)]+)\) (.+)$`)
	fieldRegex    = regexp.MustCompile(`^([a-z_]+): ?(.*)$`)
)

// knownSourceFields lists the header keys each source kind accepts. PLUGIN
// SOURCE blocks take arbitrary plugin options.
var knownSourceFields = map[SourceKind]map[string]bool{
	GemSource:  {"remote": true},
	GitSource:  {"remote": true, "revision": true, "ref": true, "branch": true, "tag": true, "submodules": true, "glob": true},
	PathSource: {"remote": true, "glob": true},
}

// Parse reads a lockfile in strict mode: unknown sections, unknown source
// fields and malformed lines are errors.
func Parse(r io.Reader) (*Lockfile, error) {
	return parse(r, true)
}

// ParseLax reads a lockfile in lax mode: offending lines are skipped and
// recorded as diagnostics. Merge conflicts, tabs and truncated sections
// still abort.
func ParseLax(r io.Reader) (*Lockfile, error) {
	return parse(r, false)
}

// ParseFile parses a lockfile from disk in strict mode.
func ParseFile(path string) (*Lockfile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lockfile: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

type parser struct {
	strict bool
	lf     *Lockfile
	state  parseState
	lineNo int

	curSource int // index into lf.Sources, -1 when none
	curSpec   int // index into current source's Specs, -1 when none
}

func parse(r io.Reader, strict bool) (*Lockfile, error) {
	p := &parser{strict: strict, lf: &Lockfile{}, curSource: -1, curSpec: -1}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.lineNo++
		if err := p.line(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading lockfile: %w", err)
	}
	if err := p.endSection(); err != nil {
		return nil, err
	}
	return p.lf, nil
}

func (p *parser) fail(kind ErrorKind, detail string) error {
	return &ParseError{Line: p.lineNo, Kind: kind, Detail: detail}
}

// skip records a diagnostic in lax mode or fails in strict mode.
func (p *parser) skip(kind ErrorKind, detail string) error {
	if p.strict {
		return p.fail(kind, detail)
	}
	msg := string(kind)
	if detail != "" {
		msg += ": " + detail
	}
	p.lf.Diagnostics = append(p.lf.Diagnostics, Diagnostic{Line: p.lineNo, Message: msg})
	return nil
}

func (p *parser) line(line string) error {
	for _, marker := range []string{"<<<<<<<", "=======", ">>>>>>>"} {
		if strings.HasPrefix(line, marker) {
			return p.fail(KindMergeConflict, line)
		}
	}

	if strings.TrimSpace(line) == "" {
		return p.endSection()
	}

	indent := 0
	for indent < len(line) && line[indent] == ' ' {
		indent++
	}
	if indent < len(line) && line[indent] == '\t' {
		return p.fail(KindInvalidIndentation, "tab character in indentation")
	}
	content := line[indent:]

	if indent == 0 {
		return p.sectionHeader(content)
	}

	switch p.state {
	case stateSkip:
		return nil
	case stateSource:
		return p.sourceHeaderLine(indent, content)
	case stateSpecs:
		return p.specLine(indent, content)
	case statePlatforms:
		if indent != 2 {
			return p.skip(KindInvalidIndentation, content)
		}
		p.lf.Platforms = append(p.lf.Platforms, content)
		return nil
	case stateDeps:
		if indent != 2 {
			return p.skip(KindInvalidIndentation, content)
		}
		return p.dependencyLine(content)
	case stateChecksums:
		if indent != 2 {
			return p.skip(KindInvalidIndentation, content)
		}
		return p.checksumLine(content)
	case stateRuby:
		p.lf.RubyVersion = content
		return nil
	case stateBundled:
		p.lf.BundledWith = content
		return nil
	default: // stateTop
		return p.skip(KindInvalidIndentation, content)
	}
}

func (p *parser) sectionHeader(content string) error {
	if err := p.endSection(); err != nil {
		return err
	}

	switch content {
	case string(GemSource), string(GitSource), string(PathSource), string(PluginSource):
		p.lf.Sources = append(p.lf.Sources, Source{Kind: SourceKind(content)})
		p.curSource = len(p.lf.Sources) - 1
		p.state = stateSource
	case "PLATFORMS":
		p.state = statePlatforms
	case "DEPENDENCIES":
		p.state = stateDeps
	case "CHECKSUMS":
		p.lf.HasChecksums = true
		p.state = stateChecksums
	case "RUBY VERSION":
		p.state = stateRuby
	case "BUNDLED WITH":
		p.state = stateBundled
	default:
		if err := p.skip(KindUnexpectedSection, content); err != nil {
			return err
		}
		p.state = stateSkip
	}
	return nil
}

func (p *parser) sourceHeaderLine(indent int, content string) error {
	if indent != 2 {
		return p.skip(KindInvalidIndentation, content)
	}
	if content == "specs:" {
		p.state = stateSpecs
		return nil
	}

	m := fieldRegex.FindStringSubmatch(content)
	if m == nil {
		return p.skip(KindInvalidSpecification, content)
	}
	key, value := m[1], m[2]

	src := &p.lf.Sources[p.curSource]
	if known, restricted := knownSourceFields[src.Kind]; restricted && !known[key] {
		return p.skip(KindUnknownSourceField, key)
	}
	src.Fields = append(src.Fields, Field{Key: key, Value: value})
	return nil
}

func (p *parser) specLine(indent int, content string) error {
	src := &p.lf.Sources[p.curSource]

	switch indent {
	case 4:
		m := specRegex.FindStringSubmatch(content)
		if m == nil {
			p.curSpec = -1
			return p.skip(KindInvalidSpecification, content)
		}
		version, plat := splitVersionPlatform(m[2])
		src.Specs = append(src.Specs, Spec{Name: m[1], Version: version, Platform: plat})
		p.curSpec = len(src.Specs) - 1
		return nil
	case 6:
		if p.curSpec < 0 {
			return p.skip(KindInvalidDependency, content)
		}
		m := depRegex.FindStringSubmatch(content)
		if m == nil {
			return p.skip(KindInvalidDependency, content)
		}
		dep := Dependency{Name: m[1]}
		if m[2] != "" {
			dep.Constraints = splitConstraints(m[2])
		}
		spec := &src.Specs[p.curSpec]
		spec.Dependencies = append(spec.Dependencies, dep)
		return nil
	default:
		return p.skip(KindInvalidIndentation, content)
	}
}

func (p *parser) dependencyLine(content string) error {
	pinned := strings.HasSuffix(content, "!")
	entry := strings.TrimSuffix(content, "!")

	m := depRegex.FindStringSubmatch(entry)
	if m == nil {
		return p.skip(KindInvalidDependency, content)
	}
	dep := Dependency{Name: m[1], Pinned: pinned}
	if m[2] != "" {
		dep.Constraints = splitConstraints(m[2])
	}
	p.lf.Dependencies = append(p.lf.Dependencies, dep)
	return nil
}

func (p *parser) checksumLine(content string) error {
	m := checksumRegex.FindStringSubmatch(content)
	if m == nil {
		return p.skip(KindInvalidChecksum, content)
	}
	version, plat := splitVersionPlatform(m[2])
	checksum := Checksum{Name: m[1], Version: version, Platform: plat}
	for _, pair := range strings.Split(m[3], ",") {
		algo, value, ok := strings.Cut(pair, "=")
		if !ok || algo == "" || value == "" {
			return p.skip(KindInvalidChecksum, pair)
		}
		checksum.Entries = append(checksum.Entries, ChecksumEntry{Algorithm: algo, Value: value})
	}
	p.lf.Checksums = append(p.lf.Checksums, checksum)
	return nil
}

// endSection closes the current section at a blank line, a new header, or
// EOF, validating block invariants.
func (p *parser) endSection() error {
	if (p.state == stateSource || p.state == stateSpecs) && p.curSource >= 0 {
		src := &p.lf.Sources[p.curSource]
		if src.Kind == GitSource && src.Revision() == "" {
			return &UnexpectedEOFError{Section: string(GitSource), Missing: "revision"}
		}
	}
	p.state = stateTop
	p.curSource = -1
	p.curSpec = -1
	return nil
}

func splitConstraints(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
