package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Solver fetches pages through a self-hosted challenge-solving
// service. The service drives its own browser through anti-bot
// interstitials and returns the page behind them, so it handles
// challenges the plain browser strategies cannot clear.
type Solver struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
	logger    *slog.Logger
}

// NewSolver creates the challenge-solver strategy. An empty URL leaves
// the strategy registered but unavailable.
func NewSolver(cfg config.SolverConfig, userAgent string, logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Solver{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
		// Solving a challenge can take most of a minute; give the HTTP
		// client headroom beyond the solver's own budget.
		client: newHTTPClient(timeout + 15*time.Second),
		logger: logger.With("component", "solver"),
	}
}

func (s *Solver) Name() string            { return "solver" }
func (s *Solver) CloakedProvenance() bool { return false }

// Available probes the solver's health endpoint.
func (s *Solver) Available(ctx context.Context) error {
	if s.baseURL == "" {
		return &types.ConfigError{Strategy: s.Name(), Reason: "no solver URL"}
	}

	probe := strings.TrimSuffix(s.baseURL, "/v1") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("solver unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solver health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Fetch asks the solver to retrieve a URL, clearing any anti-bot
// challenge in the way.
func (s *Solver) Fetch(ctx context.Context, target string) (*types.RawResult, error) {
	start := time.Now()

	payload, err := json.Marshal(map[string]any{
		"cmd":        "request.get",
		"url":        target,
		"maxTimeout": s.timeout.Milliseconds(),
		"headers": map[string]string{
			"User-Agent": s.userAgent,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solver: HTTP %d", resp.StatusCode)
	}

	var out struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Solution struct {
			Response string `json:"response"`
			Status   int    `json:"status"`
			URL      string `json:"url"`
		} `json:"solution"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode solver response: %w", err)
	}

	if out.Status != "ok" {
		return nil, fmt.Errorf("solver: %s", out.Message)
	}
	if out.Solution.Response == "" {
		return nil, types.ErrEmptyResponse
	}

	status := out.Solution.Status
	if status == 0 {
		status = http.StatusOK
	}

	s.logger.Debug("solver fetch complete", "url", target, "bytes", len(out.Solution.Response), "duration", time.Since(start))
	return types.SuccessResult(out.Solution.Response, status, out.Solution.URL, time.Since(start)), nil
}

func (s *Solver) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
