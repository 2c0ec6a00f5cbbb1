// Package scriptmeta reads the inline frontmatter of Ruby scripts:
//
//	# /// script
//	# requires-ruby = "3.4"
//	# ///
//
// The block starts at the literal `# /// script` line and ends at `# ///`.
package scriptmeta

import (
	"strings"

	"github.com/contriboss/rv/internal/logger"
	"github.com/contriboss/rv/internal/ruby"
)

// Metadata is the parsed script block.
type Metadata struct {
	RequiresRuby *ruby.Request
}

// Parse scans script content for a metadata block. It returns nil when the
// opening marker never appears. A block left open at EOF is discarded with
// a warning. Inside the block each line must be `#` or `# <body>`; bodies
// are key = "value" assignments. Unknown keys warn and are ignored.
func Parse(content string) *Metadata {
	inBlock := false
	closed := false
	meta := &Metadata{}
	found := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "# /// script" {
			inBlock = true
			found = true
			continue
		}
		if inBlock && trimmed == "# ///" {
			closed = true
			break
		}
		if !inBlock {
			continue
		}

		var body string
		switch {
		case trimmed == "#":
			continue
		case strings.HasPrefix(trimmed, "# "):
			body = trimmed[2:]
		default:
			logger.Warn("script metadata line missing '# ' prefix", "line", line)
			continue
		}

		key, value, ok := parseAssignment(body)
		if !ok {
			continue
		}
		switch key {
		case "requires-ruby":
			request, err := ruby.ParseRequest(value)
			if err != nil {
				logger.Warn("invalid ruby version in script metadata", "value", value, "error", err)
				continue
			}
			meta.RequiresRuby = &request
		default:
			logger.Warn("unknown script metadata key", "key", key)
		}
	}

	if !found {
		return nil
	}
	if !closed {
		logger.Warn("script metadata block not closed before end of file; ignoring it")
		return nil
	}
	return meta
}

// parseAssignment splits `key = "value"`.
func parseAssignment(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	key, rest, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	value := strings.TrimSpace(rest)
	if !strings.HasPrefix(value, `"`) || !strings.HasSuffix(value, `"`) || len(value) < 2 {
		return "", "", false
	}
	return strings.TrimSpace(key), value[1 : len(value)-1], true
}
