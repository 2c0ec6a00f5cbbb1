package gempack

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/contriboss/rv/internal/checksum"
)

const sampleSpecYAML = `--- !ruby/object:Gem::Specification
name: demo
version: !ruby/object:Gem::Version
  version: 1.2.3
platform: ruby
authors:
- Alice
-
- Bob
email:
- alice@example.com
-
dependencies:
- !ruby/object:Gem::Dependency
  name: racc
  requirement: !ruby/object:Gem::Requirement
    requirements:
    - - "~>"
      - !ruby/object:Gem::Version
        version: '1.4'
  type: :runtime
- !ruby/object:Gem::Dependency
  name: rspec
  requirement: !ruby/object:Gem::Requirement
    requirements:
    - - ">="
      - !ruby/object:Gem::Version
        version: '3.0'
  type: :development
homepage: https://example.com/demo
summary: A demo gem
description: A longer description of the demo gem.
licenses:
- MIT
executables:
- demo
required_ruby_version: !ruby/object:Gem::Requirement
  requirements:
  - - ">="
    - !ruby/object:Gem::Version
      version: 3.2.0
`

type payloadEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func tarBytes(t *testing.T, entries []payloadEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.body)),
			Typeflag: typeflag,
			Linkname: e.linkname,
		}
		if typeflag == tar.TypeDir || typeflag == tar.TypeSymlink {
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// buildGem assembles a .gem archive in memory.
func buildGem(t *testing.T, specYAML string, payload []payloadEntry, checksumsYAML string) *bytes.Reader {
	t.Helper()
	metadataGz := gzipBytes(t, []byte(specYAML))
	dataGz := gzipBytes(t, tarBytes(t, payload))

	members := []payloadEntry{
		{name: "metadata.gz", body: string(metadataGz)},
		{name: "data.tar.gz", body: string(dataGz)},
	}
	if checksumsYAML != "" {
		members = append(members, payloadEntry{
			name: "checksums.yaml.gz",
			body: string(gzipBytes(t, []byte(checksumsYAML))),
		})
	}
	return bytes.NewReader(tarBytes(t, members))
}

func defaultPayload() []payloadEntry {
	return []payloadEntry{
		{name: "lib", typeflag: tar.TypeDir},
		{name: "lib/demo.rb", body: "module Demo; end\n"},
		{name: "bin/demo", body: "#!/usr/bin/env ruby\nputs 'demo'\n"},
	}
}

func TestSpec(t *testing.T) {
	pkg, err := Open(buildGem(t, sampleSpecYAML, defaultPayload(), ""))
	if err != nil {
		t.Fatal(err)
	}
	spec, err := pkg.Spec()
	if err != nil {
		t.Fatal(err)
	}

	if spec.Name != "demo" || spec.Version != "1.2.3" || spec.Platform != "ruby" {
		t.Errorf("spec = %s %s %s", spec.Name, spec.Version, spec.Platform)
	}
	if spec.Homepage != "https://example.com/demo" || spec.Summary != "A demo gem" {
		t.Errorf("spec metadata = %q %q", spec.Homepage, spec.Summary)
	}
	if len(spec.Licenses) != 1 || spec.Licenses[0] != "MIT" {
		t.Errorf("licenses = %v", spec.Licenses)
	}
	if len(spec.Executables) != 1 || spec.Executables[0] != "demo" {
		t.Errorf("executables = %v", spec.Executables)
	}
	if len(spec.RequiredRubyVersion) != 1 || spec.RequiredRubyVersion[0] != ">= 3.2.0" {
		t.Errorf("required ruby = %v", spec.RequiredRubyVersion)
	}

	// Null entries keep their positions.
	if len(spec.Authors) != 3 || spec.Authors[1] != nil || *spec.Authors[2] != "Bob" {
		t.Errorf("authors = %v", spec.Authors)
	}
	if len(spec.Email) != 2 || spec.Email[1] != nil || *spec.Email[0] != "alice@example.com" {
		t.Errorf("email = %v", spec.Email)
	}

	if len(spec.Dependencies) != 2 {
		t.Fatalf("dependencies = %v", spec.Dependencies)
	}
	racc := spec.Dependencies[0]
	if racc.Name != "racc" || !racc.Runtime() || racc.Constraints[0] != "~> 1.4" {
		t.Errorf("racc dep = %+v", racc)
	}
	if spec.Dependencies[1].Runtime() {
		t.Error("rspec should be a development dependency")
	}
}

func TestDataStreaming(t *testing.T) {
	pkg, err := Open(buildGem(t, sampleSpecYAML, defaultPayload(), ""))
	if err != nil {
		t.Fatal(err)
	}
	data, err := pkg.Data()
	if err != nil {
		t.Fatal(err)
	}

	var paths []string
	for {
		entry, r, err := data.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, entry.Path)
		if entry.IsFile() {
			body, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if entry.Path == "lib/demo.rb" && string(body) != "module Demo; end\n" {
				t.Errorf("lib/demo.rb body = %q", body)
			}
		}
	}
	if len(paths) != 3 || paths[0] != "lib" || paths[2] != "bin/demo" {
		t.Errorf("paths = %v", paths)
	}
}

func TestUnsafeEntryRejected(t *testing.T) {
	payload := []payloadEntry{
		{name: "../../etc/passwd", body: "oops"},
	}
	pkg, err := Open(buildGem(t, sampleSpecYAML, payload, ""))
	if err != nil {
		t.Fatal(err)
	}
	data, err := pkg.Data()
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = data.Next()
	var unsafe *UnsafeEntryError
	if !errors.As(err, &unsafe) {
		t.Fatalf("expected UnsafeEntryError, got %v", err)
	}
}

func TestUnsafeSymlinkRejected(t *testing.T) {
	payload := []payloadEntry{
		{name: "lib/evil", typeflag: tar.TypeSymlink, linkname: "../../outside"},
	}
	pkg, err := Open(buildGem(t, sampleSpecYAML, payload, ""))
	if err != nil {
		t.Fatal(err)
	}
	data, err := pkg.Data()
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = data.Next()
	var unsafe *UnsafeEntryError
	if !errors.As(err, &unsafe) {
		t.Fatalf("expected UnsafeEntryError, got %v", err)
	}

	// A symlink inside the tree is fine.
	okPayload := []payloadEntry{
		{name: "lib/real.rb", body: "x"},
		{name: "lib/alias.rb", typeflag: tar.TypeSymlink, linkname: "real.rb"},
	}
	pkg, _ = Open(buildGem(t, sampleSpecYAML, okPayload, ""))
	data, _ = pkg.Data()
	for {
		_, _, err := data.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("in-tree symlink should pass: %v", err)
		}
	}
}

func TestUnexpectedMember(t *testing.T) {
	members := []payloadEntry{
		{name: "metadata.gz", body: "x"},
		{name: "data.tar.gz", body: "x"},
		{name: "surprise.txt", body: "x"},
	}
	_, err := Open(bytes.NewReader(tarBytes(t, members)))
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestMissingMembers(t *testing.T) {
	members := []payloadEntry{{name: "metadata.gz", body: "x"}}
	_, err := Open(bytes.NewReader(tarBytes(t, members)))
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError for missing data.tar.gz, got %v", err)
	}
}

func TestOldFormatRejected(t *testing.T) {
	old := []byte("--- !ruby/object:Gem::Specification\nname: ancient\n")
	_, err := Open(bytes.NewReader(old))
	if !errors.Is(err, ErrOldFormat) {
		t.Fatalf("expected ErrOldFormat, got %v", err)
	}

	_, err = Open(bytes.NewReader([]byte("complete garbage, not a tar at all")))
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestChecksumsPlainAndBinary(t *testing.T) {
	plain := "---\nSHA256:\n  metadata.gz: abc123\n  data.tar.gz: def456\nSHA1:\n  metadata.gz: ignored\n"
	sums, err := ParseChecksums([]byte(plain))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := sums.Get("SHA256", "data.tar.gz"); got != "def456" {
		t.Errorf("sha256 data.tar.gz = %q", got)
	}
	if _, ok := sums.Get("SHA1", "metadata.gz"); !ok {
		t.Error("SHA1 entries should still parse")
	}

	// The !binary representation base64-encodes keys and values.
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	binary := fmt.Sprintf("---\n!binary \"%s\":\n  !binary \"%s\": !binary \"%s\"\n",
		b64("SHA256"), b64("data.tar.gz"), b64("cafe01"))
	sums, err = ParseChecksums([]byte(binary))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := sums.Get("SHA256", "data.tar.gz"); got != "cafe01" {
		t.Errorf("binary-form sha256 = %q", got)
	}
}

func TestVerify(t *testing.T) {
	metadataGz := gzipBytes(t, []byte(sampleSpecYAML))
	dataGz := gzipBytes(t, tarBytes(t, defaultPayload()))

	metaSum := sha256.Sum256(metadataGz)
	dataSum := sha256.Sum256(dataGz)
	checksums := fmt.Sprintf("---\nSHA256:\n  metadata.gz: %s\n  data.tar.gz: %s\n",
		hex.EncodeToString(metaSum[:]), hex.EncodeToString(dataSum[:]))

	members := []payloadEntry{
		{name: "metadata.gz", body: string(metadataGz)},
		{name: "data.tar.gz", body: string(dataGz)},
		{name: "checksums.yaml.gz", body: string(gzipBytes(t, []byte(checksums)))},
	}
	pkg, err := Open(bytes.NewReader(tarBytes(t, members)))
	if err != nil {
		t.Fatal(err)
	}
	if !pkg.HasChecksums() {
		t.Fatal("expected checksums member")
	}
	if err := pkg.Verify(nil); err != nil {
		t.Errorf("verify should pass: %v", err)
	}

	// An external expectation that disagrees with the archive fails, even
	// though the in-archive checksums match.
	goodHex := hex.EncodeToString(dataSum[:])
	flipped := "0"
	if goodHex[0] == '0' {
		flipped = "1"
	}
	external := map[string]map[string]string{
		"data.tar.gz": {"SHA256": flipped + goodHex[1:]},
	}
	if err := pkg.Verify(external); err == nil {
		t.Error("conflicting external checksum should fail verification")
	}
}

func TestVerifyMismatch(t *testing.T) {
	checksums := "---\nSHA256:\n  data.tar.gz: " + strings.Repeat("0", 64) + "\n"
	pkg, err := Open(buildGem(t, sampleSpecYAML, defaultPayload(), checksums))
	if err != nil {
		t.Fatal(err)
	}
	err = pkg.Verify(nil)
	var mismatch *checksum.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	if mismatch.File != "data.tar.gz" || mismatch.Algorithm != "SHA256" {
		t.Errorf("mismatch = %+v", mismatch)
	}
}
