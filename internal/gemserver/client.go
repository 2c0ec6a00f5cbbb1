package gemserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/contriboss/rv/internal/logger"
)

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// GemNotFoundError is returned when /info/<gem> has an empty body, the
// compact index's way of saying the gem does not exist.
type GemNotFoundError struct {
	Gem    string
	Server string
}

func (e *GemNotFoundError) Error() string {
	return fmt.Sprintf("the requested gem %s was not found on the gem server %s", e.Gem, e.Server)
}

// StatusError is a non-success HTTP response that survived retries.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Client fetches compact index data and gem archives from one server.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

// NewClient creates a client for a gem server base URL. A bare token embedded
// in the URL (token@host) is lifted into an Authorization header;
// user:password@host credentials stay in the URL and are sent as basic auth.
func NewClient(baseURL string) (*Client, error) {
	cleanURL, authHeader, err := extractAuth(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gem server URL %q: %w", baseURL, err)
	}
	return &Client{
		baseURL:    cleanURL,
		authHeader: authHeader,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// BaseURL returns the server URL this client queries. A bearer token is not
// part of it; user:password credentials are.
func (c *Client) BaseURL() string { return c.baseURL }

// extractAuth strips userinfo from a URL and returns the header value to
// send instead. A bare username (or one paired with x-oauth-basic) is a
// bearer token; user:password pairs become basic auth via the request URL.
func extractAuth(rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if parsed.User == nil {
		return rawURL, "", nil
	}

	username := parsed.User.Username()
	password, hasPassword := parsed.User.Password()
	parsed.User = nil

	if username != "" && (!hasPassword || password == "" || password == "x-oauth-basic") {
		return parsed.String(), "Bearer " + username, nil
	}
	basic := url.UserPassword(username, password)
	parsed.User = basic
	return parsed.String(), "", nil
}

// GetVersions fetches and parses /info/<gem>. Transport errors and 5xx
// responses are retried with exponential backoff up to three attempts.
func (c *Client) GetVersions(ctx context.Context, gem string) ([]Release, error) {
	body, err := c.fetch(ctx, "/info/"+gem)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &GemNotFoundError{Gem: gem, Server: c.baseURL}
	}
	return ParseBody(string(body))
}

// DownloadGem streams /gems/<fullName>.gem into w. fullName is
// name-version[-platform].
func (c *Client) DownloadGem(ctx context.Context, fullName string, w io.Writer) error {
	resp, err := c.do(ctx, "/gems/"+fullName+".gem")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to download %s.gem: %w", fullName, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	return body, nil
}

// do issues a GET with the retry policy: transport failures and 5xx retry,
// other statuses surface immediately.
func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	requestURL := c.baseURL + path

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			logger.Debug("retrying request", "url", requestURL, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.authHeader != "" {
			req.Header.Set("Authorization", c.authHeader)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, URL: requestURL}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, URL: requestURL}
		}
		return resp, nil
	}
	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", requestURL, maxAttempts, lastErr)
}
