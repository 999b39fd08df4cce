package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestGateway(baseURL, token string) *Gateway {
	return NewGateway(config.GatewayConfig{
		BaseURL: baseURL,
		Token:   token,
		Lang:    "en",
		Timeout: 5 * time.Second,
	}, 1<<20, testLogger)
}

func TestGatewayFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/googlebot-view" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("url") != "https://example.com/" {
			t.Errorf("url param = %q", r.URL.Query().Get("url"))
		}
		w.Write([]byte("<html><body>crawler view</body></html>"))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL, "secret")
	res, err := g.Fetch(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.OK || res.StatusCode != 200 {
		t.Errorf("result = %+v", res)
	}
	if res.HTML != "<html><body>crawler view</body></html>" {
		t.Errorf("html = %q", res.HTML)
	}
}

func TestGatewayUnavailableWithoutToken(t *testing.T) {
	g := newTestGateway("https://api.example", "")
	err := g.Available(context.Background())
	if err == nil {
		t.Fatal("expected unavailable without token")
	}
	if !errors.Is(err, types.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGatewayTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL, "expired")
	_, err := g.Fetch(context.Background(), "https://example.com/")
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for 401, got %v", err)
	}
}

func TestGatewayRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL, "secret")
	if _, err := g.Fetch(context.Background(), "https://example.com/"); err == nil {
		t.Fatal("expected error for 429")
	}
}

func TestGatewayCanonical(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/canonical" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"canonical": "https://example.com/", "firstIndexed": "2019-04-02", "lastIndexed": "2024-01-15", "relatedDomains": ["example.net"]}`))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL, "secret")
	info, err := g.Canonical(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if info.Canonical != "https://example.com/" || info.FirstIndexed != "2019-04-02" {
		t.Errorf("info = %+v", info)
	}
	if len(info.RelatedDomains) != 1 || info.RelatedDomains[0] != "example.net" {
		t.Errorf("related = %v", info.RelatedDomains)
	}
}

func TestGatewayCachedView(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/google-cache" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("X-Cache-Date", "2024-02-10")
		w.Write([]byte("<html>cached</html>"))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL, "secret")
	html, date, err := g.CachedView(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("CachedView: %v", err)
	}
	if html != "<html>cached</html>" || date != "2024-02-10" {
		t.Errorf("html = %q, date = %q", html, date)
	}
}
