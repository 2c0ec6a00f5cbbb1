// Package gempack reads .gem archives: an outer tar holding metadata.gz
// (gzipped YAML spec), data.tar.gz (gzipped tar of the payload) and
// optionally checksums.yaml.gz.
//
// The spec and checksums members are small and buffered; the payload is
// streamed one entry at a time.
package gempack

import (
	"archive/tar"
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Member names of the gem envelope.
const (
	memberMetadata  = "metadata.gz"
	memberData      = "data.tar.gz"
	memberDataXz    = "data.tar.xz"
	memberChecksums = "checksums.yaml.gz"
)

// Package is an opened .gem archive.
type Package struct {
	src        io.ReadSeeker
	dataMember string // data.tar.gz or data.tar.xz
	metadata   []byte // compressed metadata.gz bytes
	checksums  []byte // compressed checksums.yaml.gz bytes, nil when absent

	spec      *Specification
	sums      *Checksums
	specError error
}

// Open scans the outer tar and buffers the small members. The payload
// member is located again on each Data call so it can be streamed.
func Open(src io.ReadSeeker) (*Package, error) {
	p := &Package{src: src}

	tr := tar.NewReader(src)
	first := true
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if first {
				return nil, classifyNonTar(src)
			}
			return nil, &TarError{Err: err}
		}
		first = false

		switch header.Name {
		case memberMetadata:
			p.metadata, err = io.ReadAll(tr)
		case memberData, memberDataXz:
			p.dataMember = header.Name
			_, err = io.Copy(io.Discard, tr)
		case memberChecksums:
			p.checksums, err = io.ReadAll(tr)
		default:
			return nil, &FormatError{Message: "unexpected member " + header.Name}
		}
		if err != nil {
			return nil, &TarError{Member: header.Name, Err: err}
		}
	}

	if p.metadata == nil {
		return nil, &FormatError{Message: "metadata.gz not found"}
	}
	if p.dataMember == "" {
		return nil, &FormatError{Message: "data.tar.gz not found"}
	}
	return p, nil
}

// classifyNonTar distinguishes the pre-2007 gem format from garbage. Old
// gems were a YAML document with embedded base64, not a tar archive.
func classifyNonTar(src io.ReadSeeker) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return &FormatError{Message: "not a tar archive"}
	}
	head := make([]byte, 64)
	n, _ := io.ReadFull(src, head)
	head = head[:n]

	s := string(head)
	if strings.HasPrefix(s, "--- !ruby") || strings.HasPrefix(s, "MD5SUM =") {
		return ErrOldFormat
	}
	return &FormatError{Message: "not a tar archive"}
}

// HasChecksums reports whether the gem ships checksums.yaml.gz.
func (p *Package) HasChecksums() bool { return p.checksums != nil }

// gunzip fully decompresses a buffered member.
func gunzip(member string, compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &FormatError{Message: member + " is not gzip data"}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &TarError{Member: member, Err: err}
	}
	return out, nil
}

// payloadReader seeks back through the outer tar and opens a decompressing
// reader over the data member.
func (p *Package) payloadReader() (io.Reader, error) {
	if _, err := p.src.Seek(0, io.SeekStart); err != nil {
		return nil, &TarError{Err: err}
	}
	tr := tar.NewReader(p.src)
	for {
		header, err := tr.Next()
		if err != nil {
			return nil, &TarError{Err: err}
		}
		if header.Name != p.dataMember {
			continue
		}
		if p.dataMember == memberDataXz {
			xr, err := xz.NewReader(tr)
			if err != nil {
				return nil, &FormatError{Message: "data.tar.xz is not xz data"}
			}
			return xr, nil
		}
		zr, err := gzip.NewReader(tr)
		if err != nil {
			return nil, &FormatError{Message: "data.tar.gz is not gzip data"}
		}
		return zr, nil
	}
}

// rawMember re-reads one outer member as a stream. Used by Verify so large
// payloads are hashed without buffering.
func (p *Package) rawMember(name string) (io.Reader, error) {
	if _, err := p.src.Seek(0, io.SeekStart); err != nil {
		return nil, &TarError{Err: err}
	}
	tr := tar.NewReader(p.src)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, &FormatError{Message: name + " not found"}
		}
		if err != nil {
			return nil, &TarError{Err: err}
		}
		if header.Name == name {
			return tr, nil
		}
	}
}
