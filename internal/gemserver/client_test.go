package gemserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info/rake" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("---\n13.0.0 |checksum:00\n13.3.0 |checksum:01\n"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	releases, err := client.GetVersions(context.Background(), "rake")
	if err != nil {
		t.Fatal(err)
	}
	if len(releases) != 2 || releases[1].Version.String() != "13.3.0" {
		t.Errorf("releases = %+v", releases)
	}
}

func TestGetVersionsGemNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Empty body means the gem does not exist.
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	_, err := client.GetVersions(context.Background(), "no-such-gem")
	var notFound *GemNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected GemNotFoundError, got %v", err)
	}
	if notFound.Gem != "no-such-gem" {
		t.Errorf("gem = %q", notFound.Gem)
	}
}

func TestRetryOn5xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("---\n1.0.0 |checksum:00\n"))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	releases, err := client.GetVersions(context.Background(), "flaky")
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(releases) != 1 {
		t.Errorf("releases = %+v", releases)
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	_, err := client.GetVersions(context.Background(), "denied")
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusForbidden {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDownloadGem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gems/rake-13.0.0.gem" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("gem bytes"))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	var buf strings.Builder
	if err := client.DownloadGem(context.Background(), "rake-13.0.0", &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "gem bytes" {
		t.Errorf("body = %q", buf.String())
	}
}

func TestAuthTokenFromURL(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("---\n1.0.0 |checksum:00\n"))
	}))
	defer server.Close()

	withToken := strings.Replace(server.URL, "http://", "http://sekrit@", 1)
	client, err := NewClient(withToken)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(client.BaseURL(), "sekrit") {
		t.Error("credentials should be stripped from the base URL")
	}
	if _, err := client.GetVersions(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("authorization = %q", gotAuth)
	}
}
