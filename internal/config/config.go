package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/contriboss/rv/internal/cache"
	"github.com/contriboss/rv/internal/logger"
	"github.com/contriboss/rv/internal/ruby"
)

// DefaultGemServer is used when neither rv.toml nor the command line names
// a server.
const DefaultGemServer = "https://rubygems.org"

// Config is the resolved runtime configuration.
type Config struct {
	DataDir   string
	BinDir    string
	GemServer string
	Cache     *cache.Cache
}

// fileConfig is the rv.toml schema.
type fileConfig struct {
	Ruby struct {
		IndexURL string `toml:"index-url"`
	} `toml:"ruby"`
}

// Load resolves configuration from the environment, rv.toml and defaults,
// and opens the cache (temporary when RV_NO_CACHE is set).
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:   UserDataDir(),
		BinDir:    UserBinDir(),
		GemServer: DefaultGemServer,
	}

	if path := filepath.Join(UserConfigDir(), "rv.toml"); fileReadable(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			logger.Warn("ignoring unparseable config file", "path", path, "error", err)
		} else if fc.Ruby.IndexURL != "" {
			cfg.GemServer = fc.Ruby.IndexURL
		}
	}

	noCache := os.Getenv("RV_NO_CACHE") != ""
	c, err := cache.FromSettings(noCache, os.Getenv("RV_CACHE_DIR"), UserCacheDir())
	if err != nil {
		return nil, err
	}
	cfg.Cache = c
	return cfg, nil
}

// RubiesDir is where interpreters are installed.
func (c *Config) RubiesDir() string { return filepath.Join(c.DataDir, "rubies") }

// ToolsDir is where tool trees are installed.
func (c *Config) ToolsDir() string { return filepath.Join(c.DataDir, "tools") }

// Rubies lists the installed interpreters, sorted ascending by version.
// Directory names that do not parse as Ruby identifiers are skipped.
func (c *Config) Rubies() []RubyInstall {
	entries, err := os.ReadDir(c.RubiesDir())
	if err != nil {
		return nil
	}

	var installs []RubyInstall
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		version, err := ruby.ParseVersion(entry.Name())
		if err != nil {
			logger.Debug("skipping unrecognized ruby directory", "name", entry.Name())
			continue
		}
		installs = append(installs, RubyInstall{
			Version: version,
			Root:    filepath.Join(c.RubiesDir(), entry.Name()),
		})
	}

	sort.Slice(installs, func(i, j int) bool {
		return installs[i].Version.Compare(installs[j].Version) < 0
	})
	return installs
}

// MatchingRuby returns the highest installed Ruby satisfying the request.
func (c *Config) MatchingRuby(req ruby.Request) (RubyInstall, bool) {
	installs := c.Rubies()
	for i := len(installs) - 1; i >= 0; i-- {
		if installs[i].Version.Satisfies(req) {
			return installs[i], true
		}
	}
	return RubyInstall{}, false
}

func fileReadable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
