package gempack

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/contriboss/rv/internal/logger"
)

// Specification is the documented field set of a gem's metadata YAML
// (!ruby/object:Gem::Specification). Class tags are ignored; fields outside
// this set are dropped by the YAML decoder without a warning.
//
// Authors and Email keep nil entries so positions still line up when a gem
// lists an author without a matching email.
type Specification struct {
	Name                    string
	Version                 string
	Platform                string
	Dependencies            []SpecDependency
	Authors                 []*string
	Email                   []*string
	Homepage                string
	Summary                 string
	Description             string
	Licenses                []string
	Files                   []string
	Executables             []string
	Extensions              []string
	RequiredRubyVersion     []string
	RequiredRubygemsVersion []string
}

// SpecDependency is one Gem::Dependency entry.
type SpecDependency struct {
	Name        string
	Type        string // ":runtime" or ":development"
	Constraints []string
}

// Runtime reports whether the dependency is needed at run time.
func (d SpecDependency) Runtime() bool {
	return d.Type == "" || strings.TrimPrefix(d.Type, ":") == "runtime"
}

var rubyTagPattern = regexp.MustCompile(`!ruby/object:[A-Za-z:]+`)

// stripRubyYAMLTags removes the Ruby class tags the YAML decoder cannot
// resolve; the underlying structure parses fine without them.
func stripRubyYAMLTags(data []byte) []byte {
	return rubyTagPattern.ReplaceAll(data, nil)
}

// Spec lazily decompresses metadata.gz and parses the specification.
func (p *Package) Spec() (*Specification, error) {
	if p.spec != nil || p.specError != nil {
		return p.spec, p.specError
	}

	raw, err := gunzip(memberMetadata, p.metadata)
	if err != nil {
		p.specError = err
		return nil, err
	}
	spec, err := ParseSpecification(raw)
	if err != nil {
		p.specError = err
		return nil, err
	}
	p.spec = spec
	return spec, nil
}

// rawSpec mirrors the YAML document shape after tag stripping.
type rawSpec struct {
	Name         string       `yaml:"name"`
	Version      versionField `yaml:"version"`
	Platform     string       `yaml:"platform"`
	Dependencies []rawDep     `yaml:"dependencies"`
	Authors      []*string    `yaml:"authors"`
	Email        yaml.Node    `yaml:"email"`
	Homepage     string       `yaml:"homepage"`
	Summary      string       `yaml:"summary"`
	Description  string       `yaml:"description"`
	Licenses     []string     `yaml:"licenses"`
	License      string       `yaml:"license"`
	Files        []string     `yaml:"files"`
	Executables  []string     `yaml:"executables"`
	Extensions   []string     `yaml:"extensions"`
	RequiredRuby rawReq       `yaml:"required_ruby_version"`
	RequiredGems rawReq       `yaml:"required_rubygems_version"`
}

type rawDep struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Requirement rawReq `yaml:"requirement"`
	// Old gems used version_requirements instead of requirement.
	VersionRequirements rawReq `yaml:"version_requirements"`
}

// versionField accepts both `version: 1.2.3` and the nested
// `version: {version: 1.2.3}` left behind by a stripped Gem::Version tag.
type versionField struct {
	Value string
}

func (v *versionField) UnmarshalYAML(node *yaml.Node) error {
	var plain string
	if err := node.Decode(&plain); err == nil && plain != "" {
		v.Value = plain
		return nil
	}
	var nested struct {
		Version string `yaml:"version"`
	}
	if err := node.Decode(&nested); err == nil {
		v.Value = nested.Version
	}
	return nil
}

// rawReq is a stripped Gem::Requirement: a list of [op, version] pairs.
type rawReq struct {
	Constraints []string
}

func (r *rawReq) UnmarshalYAML(node *yaml.Node) error {
	var doc struct {
		Requirements [][]yaml.Node `yaml:"requirements"`
	}
	if err := node.Decode(&doc); err != nil {
		return nil // tolerate odd shapes; the field stays empty
	}
	for _, pair := range doc.Requirements {
		if len(pair) != 2 {
			continue
		}
		var op string
		if err := pair[0].Decode(&op); err != nil {
			continue
		}
		var version versionField
		if err := pair[1].Decode(&version); err != nil || version.Value == "" {
			continue
		}
		r.Constraints = append(r.Constraints, op+" "+version.Value)
	}
	return nil
}

// ParseSpecification parses a gem metadata YAML document.
func ParseSpecification(data []byte) (*Specification, error) {
	cleaned := stripRubyYAMLTags(data)

	var raw rawSpec
	if err := yaml.Unmarshal(cleaned, &raw); err != nil {
		return nil, &YamlError{Member: memberMetadata, Err: err}
	}
	if raw.Name == "" {
		return nil, &YamlError{Member: memberMetadata, Err: fmt.Errorf("specification has no name")}
	}

	spec := &Specification{
		Name:                    raw.Name,
		Version:                 raw.Version.Value,
		Platform:                raw.Platform,
		Authors:                 raw.Authors,
		Email:                   decodeEmail(raw.Email),
		Homepage:                raw.Homepage,
		Summary:                 raw.Summary,
		Description:             raw.Description,
		Licenses:                raw.Licenses,
		Files:                   raw.Files,
		Executables:             raw.Executables,
		Extensions:              raw.Extensions,
		RequiredRubyVersion:     raw.RequiredRuby.Constraints,
		RequiredRubygemsVersion: raw.RequiredGems.Constraints,
	}
	if len(spec.Licenses) == 0 && raw.License != "" {
		spec.Licenses = []string{raw.License}
	}
	if spec.Platform == "" {
		spec.Platform = "ruby"
	}

	for _, dep := range raw.Dependencies {
		constraints := dep.Requirement.Constraints
		if len(constraints) == 0 {
			constraints = dep.VersionRequirements.Constraints
		}
		if dep.Name == "" {
			logger.Warn("skipping dependency without a name", "gem", raw.Name)
			continue
		}
		spec.Dependencies = append(spec.Dependencies, SpecDependency{
			Name:        dep.Name,
			Type:        dep.Type,
			Constraints: constraints,
		})
	}

	return spec, nil
}

// decodeEmail accepts a scalar email, a sequence of emails, or null;
// sequence entries may themselves be null.
func decodeEmail(node yaml.Node) []*string {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return []*string{nil}
		}
		s := node.Value
		return []*string{&s}
	case yaml.SequenceNode:
		out := make([]*string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Tag == "!!null" {
				out = append(out, nil)
				continue
			}
			s := item.Value
			out = append(out, &s)
		}
		return out
	default:
		return nil
	}
}
