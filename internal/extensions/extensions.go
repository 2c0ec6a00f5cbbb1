// Package extensions detects and builds native extensions of installed
// tool gems. Building requires a working Ruby on the machine; callers
// usually detect first and decide whether a missing toolchain is fatal.
package extensions

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	rubyext "github.com/contriboss/ruby-extension-go"

	"github.com/contriboss/rv/internal/ruby"
)

// BuildConfig controls extension builds for one install run.
type BuildConfig struct {
	SkipExtensions bool
	Verbose        bool
	Parallel       int
	RubyPath       string
	GemHome        string
	GemPath        string
}

// Builder compiles extensions through ruby-extension-go.
type Builder struct {
	factory *rubyext.BuilderFactory
	config  *BuildConfig
}

// NewBuilder creates an extension builder.
func NewBuilder(config *BuildConfig) *Builder {
	if config == nil {
		config = &BuildConfig{Parallel: 4}
	}
	return &Builder{factory: rubyext.NewBuilderFactory(), config: config}
}

// BuildResult reports what happened for one gem.
type BuildResult struct {
	GemName    string
	Extensions []string
	Success    bool
	Skipped    bool
}

// Detect returns the extension build files under gemDir/ext that apply to
// the given engine. Java build files only count on JRuby.
func Detect(gemDir, engine string) ([]string, error) {
	extDir := filepath.Join(gemDir, "ext")
	if _, err := os.Stat(extDir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	isJRuby := ruby.NormalizeEngine(engine) == ruby.EngineJRuby
	var found []string
	err := filepath.WalkDir(extDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))

		isRubyBuild := name == "extconf.rb" || name == "mkrf_conf.rb" || name == "Rakefile" ||
			name == "configure"
		isModernBuild := name == "CMakeLists.txt" || name == "Cargo.toml" || name == "Makefile"
		isJavaFile := name == "build.xml" || name == "pom.xml" || ext == ".java"

		if isJavaFile && !isJRuby {
			return nil
		}
		if isRubyBuild || isModernBuild || isJavaFile {
			rel, err := filepath.Rel(gemDir, path)
			if err != nil {
				return err
			}
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Build compiles a gem's extensions in place. Engines without native
// extension support, and gems without extensions, come back Skipped.
func (b *Builder) Build(ctx context.Context, gemDir, gemName, engine string) (*BuildResult, error) {
	result := &BuildResult{GemName: gemName}

	if b.config.SkipExtensions || !ruby.EngineSupportsNativeExtensions(engine) {
		result.Skipped = true
		result.Success = true
		return result, nil
	}

	found, err := Detect(gemDir, engine)
	if err != nil {
		return result, fmt.Errorf("failed to scan %s for extensions: %w", gemName, err)
	}
	if len(found) == 0 {
		result.Skipped = true
		result.Success = true
		return result, nil
	}

	rubyPath := b.config.RubyPath
	if rubyPath == "" {
		rubyPath = "ruby"
	}
	if _, err := exec.LookPath(rubyPath); err != nil {
		return result, fmt.Errorf("ruby not found (required to build extensions for %s): %w", gemName, err)
	}

	buildConfig := &rubyext.BuildConfig{
		GemDir:   gemDir,
		RubyPath: rubyPath,
		Verbose:  b.config.Verbose,
		Parallel: b.config.Parallel,
		Env:      b.gemEnvironment(),
	}

	results, err := b.factory.BuildAllExtensions(ctx, buildConfig, found)
	if err != nil {
		return result, fmt.Errorf("extension build failed for %s: %w", gemName, err)
	}
	for _, extResult := range results {
		if extResult == nil {
			continue
		}
		if !extResult.Success {
			return result, fmt.Errorf("extension build failed for %s:\n%s",
				gemName, strings.Join(extResult.Output, "\n"))
		}
	}

	result.Extensions = found
	result.Success = true
	return result, nil
}

func (b *Builder) gemEnvironment() []string {
	env := os.Environ()
	if b.config.GemHome != "" {
		env = append(env, "GEM_HOME="+b.config.GemHome)
	}
	if b.config.GemPath != "" {
		env = append(env, "GEM_PATH="+b.config.GemPath)
	}
	return env
}
