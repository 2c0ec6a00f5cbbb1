package gempack

import (
	"encoding/base64"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/contriboss/rv/internal/checksum"
)

// Checksums maps algorithm name to per-file hex digests, as recorded in
// checksums.yaml.gz.
type Checksums struct {
	Algorithms map[string]map[string]string
}

// Get returns the recorded digest for a file under one algorithm.
func (c *Checksums) Get(algorithm, file string) (string, bool) {
	files, ok := c.Algorithms[strings.ToUpper(algorithm)]
	if !ok {
		return "", false
	}
	value, ok := files[file]
	return value, ok
}

// IsEmpty reports whether no digests were recorded.
func (c *Checksums) IsEmpty() bool { return len(c.Algorithms) == 0 }

// Checksums lazily parses checksums.yaml.gz. Gems without the member yield
// an empty set.
func (p *Package) Checksums() (*Checksums, error) {
	if p.sums != nil {
		return p.sums, nil
	}
	if p.checksums == nil {
		p.sums = &Checksums{Algorithms: map[string]map[string]string{}}
		return p.sums, nil
	}

	raw, err := gunzip(memberChecksums, p.checksums)
	if err != nil {
		return nil, err
	}
	sums, err := ParseChecksums(raw)
	if err != nil {
		return nil, err
	}
	p.sums = sums
	return sums, nil
}

// ParseChecksums parses the checksums YAML. Two representations exist: a
// plain mapping of strings, and one where keys and values carry the YAML
// !binary tag and are base64-encoded. Both decode to the same structure.
func ParseChecksums(data []byte) (*Checksums, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &YamlError{Member: memberChecksums, Err: err}
	}

	out := &Checksums{Algorithms: map[string]map[string]string{}}
	if root.Kind == 0 || len(root.Content) == 0 {
		return out, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return out, nil
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		algoNode, filesNode := doc.Content[i], doc.Content[i+1]
		algo, err := scalarValue(algoNode)
		if err != nil {
			return nil, err
		}
		if filesNode.Kind != yaml.MappingNode {
			continue
		}
		files := map[string]string{}
		for j := 0; j+1 < len(filesNode.Content); j += 2 {
			file, err := scalarValue(filesNode.Content[j])
			if err != nil {
				return nil, err
			}
			digest, err := scalarValue(filesNode.Content[j+1])
			if err != nil {
				return nil, err
			}
			files[file] = digest
		}
		out.Algorithms[strings.ToUpper(algo)] = files
	}
	return out, nil
}

// scalarValue reads a scalar node, base64-decoding !binary-tagged content.
func scalarValue(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", &YamlError{Member: memberChecksums, Err: io.ErrUnexpectedEOF}
	}
	if node.Tag == "!binary" || node.Tag == "!!binary" {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(node.Value))
		if err != nil {
			return "", &YamlError{Member: memberChecksums, Err: err}
		}
		return string(decoded), nil
	}
	return node.Value, nil
}

// Verify recomputes the digests of metadata.gz and the payload member while
// re-reading them and compares against checksums.yaml.gz plus any external
// expectations (file -> algorithm -> hex, typically from a lockfile's
// CHECKSUMS section). Disagreement from either side fails; SHA-1 entries
// are parsed but never count.
func (p *Package) Verify(external map[string]map[string]string) error {
	internal, err := p.Checksums()
	if err != nil {
		return err
	}

	for _, member := range []string{memberMetadata, p.dataMember} {
		reader, err := p.rawMember(member)
		if err != nil {
			return err
		}
		cr := checksum.NewReader(reader)
		if _, err := io.Copy(io.Discard, cr); err != nil {
			return &TarError{Member: member, Err: err}
		}

		for algo, files := range internal.Algorithms {
			expected, ok := files[member]
			if !ok || !checksum.Trusted(algo) {
				continue
			}
			if err := cr.Verify(member, algo, expected); err != nil {
				return err
			}
		}
		for algo, expected := range external[member] {
			if !checksum.Trusted(algo) {
				continue
			}
			if err := cr.Verify(member, algo, expected); err != nil {
				return err
			}
		}
	}
	return nil
}
