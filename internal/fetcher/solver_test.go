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

func newTestSolver(url string) *Solver {
	return NewSolver(config.SolverConfig{
		URL:     url,
		Timeout: 5 * time.Second,
	}, config.DefaultCrawlerUA, testLogger)
}

func solverMux(t *testing.T, solveFn http.HandlerFunc) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1", solveFn)
	return mux
}

func TestSolverFetch(t *testing.T) {
	srv := httptest.NewServer(solverMux(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["cmd"] != "request.get" {
			t.Errorf("cmd = %v", body["cmd"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"message": "Challenge solved!",
			"solution": map[string]any{
				"response": "<html>solved</html>",
				"status":   200,
				"url":      "https://example.com/",
			},
		})
	}))
	defer srv.Close()

	s := newTestSolver(srv.URL + "/v1")
	res, err := s.Fetch(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.HTML != "<html>solved</html>" || res.StatusCode != 200 {
		t.Errorf("result = %+v", res)
	}
}

func TestSolverAvailableProbesHealth(t *testing.T) {
	srv := httptest.NewServer(solverMux(t, func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	s := newTestSolver(srv.URL + "/v1")
	if err := s.Available(context.Background()); err != nil {
		t.Errorf("expected available, got %v", err)
	}
}

func TestSolverUnavailableWithoutURL(t *testing.T) {
	s := newTestSolver("")
	if err := s.Available(context.Background()); !errors.Is(err, types.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSolverUnreachable(t *testing.T) {
	s := newTestSolver("http://127.0.0.1:1/v1")
	if err := s.Available(context.Background()); err == nil {
		t.Fatal("expected error for unreachable solver")
	}
}

func TestSolverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(solverMux(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"message": "challenge not solved",
		})
	}))
	defer srv.Close()

	s := newTestSolver(srv.URL + "/v1")
	if _, err := s.Fetch(context.Background(), "https://example.com/"); err == nil {
		t.Fatal("expected error for solver failure status")
	}
}
