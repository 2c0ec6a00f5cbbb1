// Package registry is the fallback metadata path for gem servers that do
// not serve the compact index: the classic rubygems.org JSON API.
// Responses carry versions and dependency requirements but no checksums,
// so installs served from here cannot be digest-verified against the index.
package registry

import (
	"context"
	"fmt"

	rubygems "github.com/contriboss/rubygems-client-go"

	"github.com/contriboss/rv/internal/gemserver"
	"github.com/contriboss/rv/internal/gemver"
	"github.com/contriboss/rv/internal/platform"
)

// Client queries a rubygems.org-compatible JSON API.
type Client struct {
	client  *rubygems.Client
	baseURL string
}

// NewClient creates a client for the given API base URL; empty means
// rubygems.org.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://rubygems.org"
	}
	return &Client{
		client:  rubygems.NewClientWithBaseURL(baseURL),
		baseURL: baseURL,
	}
}

// BaseURL returns the API endpoint this client queries.
func (c *Client) BaseURL() string { return c.baseURL }

// GetVersions lists a gem's releases through the JSON API, shaped like
// compact-index releases so the resolver can consume either source. The
// checksum metadata stays empty.
func (c *Client) GetVersions(ctx context.Context, gem string) ([]gemserver.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	versions, err := c.client.GetGemVersions(gem)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for %s: %w", gem, err)
	}

	releases := make([]gemserver.Release, 0, len(versions))
	for _, raw := range versions {
		versionStr, platformStr := splitVersionPlatform(raw)
		version, err := gemver.Parse(versionStr)
		if err != nil {
			continue // tolerate versions outside the gem grammar
		}
		release := gemserver.Release{Version: version, Platform: platform.Parse(platformStr)}

		info, err := c.client.GetGemInfo(gem, versionStr)
		if err == nil {
			for _, dep := range info.Dependencies.Runtime {
				constraints, err := gemver.ParseConstraintList(dep.Requirements)
				if err != nil {
					continue
				}
				release.Deps = append(release.Deps, gemserver.Dep{
					Name:        dep.Name,
					Constraints: constraints,
				})
			}
		}
		releases = append(releases, release)
	}
	return releases, nil
}

func splitVersionPlatform(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}
