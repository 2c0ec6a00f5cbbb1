package lockfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	indent2 = "  "
	indent3 = "   "
	indent4 = "    "
	indent6 = "      "
)

// Render serializes a lockfile back to Gemfile.lock text. Output preserves
// the parsed ordering, so Render(Parse(x)) is byte-identical to x up to
// trailing-newline normalization.
func Render(lf *Lockfile) string {
	var b strings.Builder
	_ = write(lf, &b)
	return b.String()
}

// Write serializes a lockfile to the given writer.
func Write(lf *Lockfile, w io.Writer) error {
	return write(lf, w)
}

// WriteFile writes a lockfile to disk.
func WriteFile(lf *Lockfile, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create lockfile: %w", err)
	}
	defer file.Close()
	return write(lf, file)
}

func write(lf *Lockfile, w io.Writer) error {
	buf := bufio.NewWriter(w)

	for i := range lf.Sources {
		writeSource(buf, &lf.Sources[i])
		buf.WriteString("\n")
	}

	if len(lf.Platforms) > 0 {
		buf.WriteString("PLATFORMS\n")
		for _, plat := range lf.Platforms {
			buf.WriteString(indent2 + plat + "\n")
		}
		buf.WriteString("\n")
	}

	buf.WriteString("DEPENDENCIES\n")
	for i := range lf.Dependencies {
		buf.WriteString(indent2 + renderDependency(&lf.Dependencies[i]) + "\n")
	}

	if lf.HasChecksums {
		buf.WriteString("\nCHECKSUMS\n")
		for i := range lf.Checksums {
			buf.WriteString(indent2 + renderChecksum(&lf.Checksums[i]) + "\n")
		}
	}

	if lf.RubyVersion != "" {
		buf.WriteString("\nRUBY VERSION\n")
		buf.WriteString(indent3 + lf.RubyVersion + "\n")
	}

	if lf.BundledWith != "" {
		buf.WriteString("\nBUNDLED WITH\n")
		buf.WriteString(indent3 + lf.BundledWith + "\n")
	}

	return buf.Flush()
}

func writeSource(buf *bufio.Writer, src *Source) {
	buf.WriteString(string(src.Kind) + "\n")
	for _, f := range src.Fields {
		buf.WriteString(indent2 + f.Key + ": " + f.Value + "\n")
	}
	buf.WriteString(indent2 + "specs:\n")
	for i := range src.Specs {
		spec := &src.Specs[i]
		versionPlatform := spec.Version
		if spec.Platform != "" {
			versionPlatform += "-" + spec.Platform
		}
		fmt.Fprintf(buf, "%s%s (%s)\n", indent4, spec.Name, versionPlatform)
		for j := range spec.Dependencies {
			buf.WriteString(indent6 + renderDependency(&spec.Dependencies[j]) + "\n")
		}
	}
}

func renderDependency(dep *Dependency) string {
	out := dep.Name
	if len(dep.Constraints) > 0 {
		out += " (" + strings.Join(dep.Constraints, ", ") + ")"
	}
	if dep.Pinned {
		out += "!"
	}
	return out
}

func renderChecksum(c *Checksum) string {
	versionPlatform := c.Version
	if c.Platform != "" {
		versionPlatform += "-" + c.Platform
	}
	pairs := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		pairs[i] = e.Algorithm + "=" + e.Value
	}
	return fmt.Sprintf("%s (%s) %s", c.Name, versionPlatform, strings.Join(pairs, ","))
}
