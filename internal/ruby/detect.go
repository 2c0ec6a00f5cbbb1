package ruby

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/contriboss/gemfile-go/gemfile"
	"github.com/pelletier/go-toml/v2"
)

// RequestedRuby walks from startDir up to the filesystem root looking for a
// project-level Ruby request. In each directory `.ruby-version` is checked
// first (the entire content, trimmed, is the request), then `.tool-versions`
// (the first line beginning "ruby " supplies it). The first match wins.
// Returns the request and the file that supplied it, or nil when no
// directory declares one.
func RequestedRuby(startDir string) (*Request, string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", err
	}

	for {
		if path := filepath.Join(dir, ".ruby-version"); fileExists(path) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, "", err
			}
			req, err := ParseRequest(strings.TrimSpace(string(data)))
			if err != nil {
				return nil, path, err
			}
			return &req, path, nil
		}
		if path := filepath.Join(dir, ".tool-versions"); fileExists(path) {
			if raw := toolVersionsRuby(path); raw != "" {
				req, err := ParseRequest(raw)
				if err != nil {
					return nil, path, err
				}
				return &req, path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

// DetectRequest resolves a Ruby request from the ambient environment.
// Priority:
//  1. RBENV_VERSION / ASDF_RUBY_VERSION environment variables
//  2. the project's .ruby-version / .tool-versions walk
//  3. mise.toml / .mise.toml
//  4. the Gemfile's ruby directive
func DetectRequest(projectDir, gemfilePath string) *Request {
	if raw := requestFromEnv(); raw != "" {
		if req, err := ParseRequest(normalizeRawVersion(raw)); err == nil {
			return &req
		}
	}

	if req, _, err := RequestedRuby(projectDir); err == nil && req != nil {
		return req
	}

	for _, name := range []string{"mise.toml", ".mise.toml"} {
		if path := walkUpForFile(projectDir, name); path != "" {
			if raw := miseTomlRuby(path); raw != "" {
				if req, err := ParseRequest(normalizeRawVersion(raw)); err == nil {
					return &req
				}
			}
		}
	}

	if gemfilePath != "" {
		if raw := gemfileRubyDirective(gemfilePath); raw != "" {
			if req, err := ParseRequest(normalizeRawVersion(raw)); err == nil {
				return &req
			}
		}
	}

	return nil
}

func requestFromEnv() string {
	if v := os.Getenv("RBENV_VERSION"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := os.Getenv("ASDF_RUBY_VERSION"); v != "" {
		return strings.TrimSpace(v)
	}
	return ""
}

// normalizeRawVersion strips constraint operators and patchlevel suffixes
// that version-manager files sometimes carry: ">= 3.0" -> "3.0",
// "3.2.2p53" -> "3.2.2".
func normalizeRawVersion(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, prefix := range []string{">=", "~>", ">"} {
		raw = strings.TrimPrefix(raw, prefix)
	}
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, 'p'); idx > 0 && isDigit(raw[0]) {
		if idx+1 < len(raw) && isDigit(raw[idx+1]) {
			raw = raw[:idx]
		}
	}
	return raw
}

// walkUpForFile walks from startDir to the filesystem root looking for
// filename, stopping early at the home directory.
func walkUpForFile(startDir, filename string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	homeDir, _ := os.UserHomeDir()

	for {
		candidate := filepath.Join(dir, filename)
		if fileExists(candidate) {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir || dir == homeDir {
			return ""
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func toolVersionsRuby(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "ruby" {
			return fields[1]
		}
	}
	return ""
}

func miseTomlRuby(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var config struct {
		Tools map[string]any `toml:"tools"`
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return ""
	}
	if raw, ok := config.Tools["ruby"].(string); ok {
		return raw
	}
	return ""
}

// gemfileRubyDirective extracts the `ruby "..."` directive from a Gemfile.
func gemfileRubyDirective(gemfilePath string) string {
	parser := gemfile.NewGemfileParser(gemfilePath)
	parsed, err := parser.Parse()
	if err != nil {
		return ""
	}
	return parsed.RubyVersion
}
