package gempack

import (
	"archive/tar"
	"io"
	"path"
	"strings"
)

// EntryKind classifies payload entries.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDirectory
	EntrySymlink
)

// Entry is one file of the gem payload.
type Entry struct {
	Path string
	Size int64
	Mode int64
	Kind EntryKind
	// LinkTarget is set for symlinks.
	LinkTarget string
}

// IsFile reports whether the entry is a regular file.
func (e *Entry) IsFile() bool { return e.Kind == EntryFile }

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool { return e.Kind == EntryDirectory }

// DataReader streams data.tar.gz one entry at a time. The reader returned
// by Next is valid until the following Next call.
type DataReader struct {
	tr *tar.Reader
}

// Data opens the payload for streaming.
func (p *Package) Data() (*DataReader, error) {
	payload, err := p.payloadReader()
	if err != nil {
		return nil, err
	}
	return &DataReader{tr: tar.NewReader(payload)}, nil
}

// Next advances to the next payload entry. It returns io.EOF at the end.
// Entry paths are sanitized: absolute paths and ".." traversal fail with
// UnsafeEntryError before any content is exposed.
func (d *DataReader) Next() (*Entry, io.Reader, error) {
	for {
		header, err := d.tr.Next()
		if err == io.EOF {
			return nil, nil, io.EOF
		}
		if err != nil {
			return nil, nil, &TarError{Member: memberData, Err: err}
		}

		var kind EntryKind
		switch header.Typeflag {
		case tar.TypeReg:
			kind = EntryFile
		case tar.TypeDir:
			kind = EntryDirectory
		case tar.TypeSymlink, tar.TypeLink:
			kind = EntrySymlink
		default:
			continue // character devices etc. have no place in a gem
		}

		clean, err := sanitizeEntryPath(header.Name)
		if err != nil {
			return nil, nil, err
		}
		entry := &Entry{
			Path: clean,
			Size: header.Size,
			Mode: header.Mode,
			Kind: kind,
		}
		if kind == EntrySymlink {
			if err := sanitizeLinkTarget(clean, header.Linkname); err != nil {
				return nil, nil, err
			}
			entry.LinkTarget = header.Linkname
		}
		return entry, d.tr, nil
	}
}

// sanitizeEntryPath normalizes a payload path and rejects anything that
// could land outside the extraction root.
func sanitizeEntryPath(name string) (string, error) {
	if name == "" {
		return "", &UnsafeEntryError{Path: name}
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", &UnsafeEntryError{Path: name}
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", &UnsafeEntryError{Path: name}
	}
	return clean, nil
}

// sanitizeLinkTarget rejects symlink targets that resolve outside the
// extraction root, evaluated relative to the link's own directory.
func sanitizeLinkTarget(entryPath, target string) error {
	if target == "" || path.IsAbs(target) || strings.HasPrefix(target, "/") {
		return &UnsafeEntryError{Path: entryPath + " -> " + target}
	}
	resolved := path.Clean(path.Join(path.Dir(entryPath), target))
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return &UnsafeEntryError{Path: entryPath + " -> " + target}
	}
	return nil
}
