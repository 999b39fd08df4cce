// Package api exposes the analysis engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alex4udak-blip/SEO-Pocket/internal/archive"
	"github.com/alex4udak-blip/SEO-Pocket/internal/cloaking"
	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/seo"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Analyzer is the engine surface the API needs.
type Analyzer interface {
	Acquire(ctx context.Context, url string, identity types.Identity, opts types.Options) *types.Outcome
	Health(ctx context.Context) map[string]any
}

// Server is the HTTP API server.
type Server struct {
	srv        *http.Server
	mux        *http.ServeMux
	analyzer   Analyzer
	extractor  *seo.Extractor
	comparator *cloaking.Comparator
	archive    *archive.Client
	shutdown   time.Duration
	logger     *slog.Logger
}

// NewServer creates the API server. archiveClient may be nil, which
// disables archive dates in analyze responses.
func NewServer(cfg config.ServerConfig, analyzer Analyzer, extractor *seo.Extractor, comparator *cloaking.Comparator, archiveClient *archive.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mux:        http.NewServeMux(),
		analyzer:   analyzer,
		extractor:  extractor,
		comparator: comparator,
		archive:    archiveClient,
		shutdown:   cfg.ShutdownTimeout,
		logger:     logger.With("component", "api_server"),
	}
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.logRequests(s.mux),
	}
	return s
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdown)
		defer cancel()
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/crawler-view", s.handleCrawlerView)
	s.mux.HandleFunc("GET /api/crawler-view/raw", s.handleCrawlerViewRaw)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
}

// analyzeParams are accepted as query parameters on GET and as a JSON
// body on POST.
type analyzeParams struct {
	URL            string `json:"url"`
	DetectCloaking bool   `json:"detect_cloaking"`
	IncludeHTML    bool   `json:"include_html"`
	SkipCache      bool   `json:"skip_cache"`
	SkipGateway    bool   `json:"skip_gateway"`
}

type analyzeResponse struct {
	URL               string           `json:"url"`
	FinalURL          string           `json:"final_url"`
	Strategy          string           `json:"strategy"`
	Cached            bool             `json:"cached"`
	CloakedProvenance bool             `json:"cloaked_provenance"`
	ElapsedMS         int64            `json:"elapsed_ms"`
	Metadata          *seo.Metadata    `json:"metadata,omitempty"`
	Cloaking          *cloaking.Report `json:"cloaking,omitempty"`
	Archive           *archive.Dates   `json:"archive,omitempty"`
	HTML              string           `json:"html,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	params, err := s.decodeAnalyzeParams(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.URL == "" {
		s.jsonError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := config.ValidateURL(params.URL); err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	opts := types.Options{NoCache: params.SkipCache, SkipGateway: params.SkipGateway}

	crawler := s.analyzer.Acquire(ctx, params.URL, types.IdentityCrawler, opts)
	if !crawler.Success {
		s.jsonError(w, http.StatusBadGateway, crawler.Err.Error())
		return
	}

	resp := &analyzeResponse{
		URL:               params.URL,
		FinalURL:          crawler.FinalURL,
		Strategy:          crawler.Strategy,
		Cached:            crawler.Cached,
		CloakedProvenance: crawler.CloakedProvenance,
		ElapsedMS:         crawler.Elapsed.Milliseconds(),
	}

	meta, err := s.extractor.Extract(crawler.HTML, crawler.FinalURL)
	if err != nil {
		s.logger.Warn("metadata extraction failed", "url", params.URL, "error", err)
	} else {
		resp.Metadata = meta
	}

	if params.DetectCloaking {
		visitor := s.analyzer.Acquire(ctx, params.URL, types.IdentityVisitor, opts)
		if visitor.Success {
			resp.Cloaking = s.comparator.Compare(crawler.HTML, visitor.HTML)
		} else {
			s.logger.Warn("visitor view unavailable, skipping cloaking check", "url", params.URL, "error", visitor.Err)
		}
	}

	if s.archive != nil {
		dates, err := s.archive.Dates(ctx, params.URL)
		if err != nil {
			s.logger.Warn("archive lookup failed", "url", params.URL, "error", err)
		} else {
			resp.Archive = dates
		}
	}

	if params.IncludeHTML {
		resp.HTML = crawler.HTML
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) decodeAnalyzeParams(r *http.Request) (*analyzeParams, error) {
	params := &analyzeParams{}
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(params); err != nil {
			return nil, fmt.Errorf("invalid JSON body")
		}
		return params, nil
	}

	q := r.URL.Query()
	params.URL = q.Get("url")
	params.DetectCloaking = boolParam(q.Get("detect_cloaking"))
	params.IncludeHTML = boolParam(q.Get("include_html"))
	params.SkipCache = boolParam(q.Get("skip_cache"))
	params.SkipGateway = boolParam(q.Get("skip_gateway"))
	return params, nil
}

func (s *Server) handleCrawlerView(w http.ResponseWriter, r *http.Request) {
	out, status, errMsg := s.fetchView(r)
	if errMsg != "" {
		s.jsonError(w, status, errMsg)
		return
	}

	meta, _ := s.extractor.Extract(out.HTML, out.FinalURL)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"url":                r.URL.Query().Get("url"),
		"final_url":          out.FinalURL,
		"strategy":           out.Strategy,
		"cached":             out.Cached,
		"cloaked_provenance": out.CloakedProvenance,
		"status_code":        out.StatusCode,
		"length":             len(out.HTML),
		"elapsed_ms":         out.Elapsed.Milliseconds(),
		"metadata":           meta,
	})
}

func (s *Server) handleCrawlerViewRaw(w http.ResponseWriter, r *http.Request) {
	out, status, errMsg := s.fetchView(r)
	if errMsg != "" {
		s.jsonError(w, status, errMsg)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Fetch-Strategy", out.Strategy)
	w.Header().Set("X-Fetch-Cached", strconv.FormatBool(out.Cached))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out.HTML))
}

// fetchView resolves the url/mode query parameters and runs one
// acquisition for the view endpoints.
func (s *Server) fetchView(r *http.Request) (*types.Outcome, int, string) {
	target := r.URL.Query().Get("url")
	if target == "" {
		return nil, http.StatusBadRequest, "url is required"
	}
	if err := config.ValidateURL(target); err != nil {
		return nil, http.StatusBadRequest, err.Error()
	}

	identity := types.IdentityCrawler
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "crawler":
	case "visitor":
		identity = types.IdentityVisitor
	default:
		return nil, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode)
	}

	opts := types.Options{NoCache: boolParam(r.URL.Query().Get("skip_cache"))}
	out := s.analyzer.Acquire(r.Context(), target, identity, opts)
	if !out.Success {
		return nil, http.StatusBadGateway, out.Err.Error()
	}
	return out, 0, ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.analyzer.Health(r.Context())
	health["status"] = "ok"
	health["version"] = config.Version
	s.jsonResponse(w, http.StatusOK, health)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, msg string) {
	s.jsonResponse(w, status, map[string]string{"error": msg})
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
