package gempack

import "fmt"

// FormatError reports a structurally invalid .gem archive.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid gem format: %s", e.Message)
}

// ErrOldFormat is returned for pre-2007 gems, which were not tar envelopes.
var ErrOldFormat = fmt.Errorf("unsupported old gem format")

// TarError reports a failure inside one of the tar layers.
type TarError struct {
	Member string
	Err    error
}

func (e *TarError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("tar error in %s: %v", e.Member, e.Err)
	}
	return fmt.Sprintf("tar error: %v", e.Err)
}

func (e *TarError) Unwrap() error { return e.Err }

// YamlError reports unparseable YAML in metadata.gz or checksums.yaml.gz.
type YamlError struct {
	Member string
	Err    error
}

func (e *YamlError) Error() string {
	return fmt.Sprintf("YAML error in %s: %v", e.Member, e.Err)
}

func (e *YamlError) Unwrap() error { return e.Err }

// UnsafeEntryError reports a payload path that would escape the extraction
// root: absolute paths, ".." traversal, or symlinks pointing outside.
type UnsafeEntryError struct {
	Path string
}

func (e *UnsafeEntryError) Error() string {
	return fmt.Sprintf("unsafe archive entry: %s", e.Path)
}
