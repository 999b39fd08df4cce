package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

func newTestRender(endpoint, key string) *Render {
	return NewRender(config.RenderConfig{
		Endpoint: endpoint,
		APIKey:   key,
		Timeout:  5 * time.Second,
	}, 1<<20, testLogger)
}

func TestRenderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "apikey" || pass != "" {
			t.Errorf("basic auth = %q/%q ok=%v", user, pass, ok)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["browserHtml"] != true {
			t.Errorf("browserHtml = %v", body["browserHtml"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"browserHtml": "<html>rendered</html>",
			"statusCode":  200,
			"url":         "https://example.com/final",
		})
	}))
	defer srv.Close()

	s := newTestRender(srv.URL, "apikey")
	res, err := s.Fetch(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.HTML != "<html>rendered</html>" || res.FinalURL != "https://example.com/final" {
		t.Errorf("result = %+v", res)
	}
}

func TestRenderUnavailableWithoutKey(t *testing.T) {
	s := newTestRender("https://render.example", "")
	if err := s.Available(context.Background()); !errors.Is(err, types.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRenderInvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := newTestRender(srv.URL, "bad")
	_, err := s.Fetch(context.Background(), "https://example.com/")
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for 401, got %v", err)
	}
}

func TestRenderEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"browserHtml": "", "statusCode": 200})
	}))
	defer srv.Close()

	s := newTestRender(srv.URL, "apikey")
	if _, err := s.Fetch(context.Background(), "https://example.com/"); !errors.Is(err, types.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestRenderTargetSiteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(520)
	}))
	defer srv.Close()

	s := newTestRender(srv.URL, "apikey")
	if _, err := s.Fetch(context.Background(), "https://example.com/"); err == nil {
		t.Fatal("expected error for 520")
	}
}
