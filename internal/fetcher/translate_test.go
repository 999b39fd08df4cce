package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

func newTestTranslate(enabled bool) *Translate {
	return NewTranslate(config.TranslateConfig{
		Enabled:    enabled,
		Timeout:    5 * time.Second,
		RatePerSec: 100,
		Burst:      10,
	}, config.DefaultVisitorUA, 1<<20, testLogger)
}

func TestBuildTranslateURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			"https://example.com/page",
			"https://example-com.translate.goog/page?_x_tr_sl=auto&_x_tr_tl=en&_x_tr_hl=en",
		},
		{
			"https://shop.example.co.uk/",
			"https://shop-example-co-uk.translate.goog/?_x_tr_sl=auto&_x_tr_tl=en&_x_tr_hl=en",
		},
		{
			"https://example.com/search?q=widgets&page=2",
			"https://example-com.translate.goog/search?_x_tr_sl=auto&_x_tr_tl=en&_x_tr_hl=en&q=widgets&page=2",
		},
		{
			"https://example.com",
			"https://example-com.translate.goog/?_x_tr_sl=auto&_x_tr_tl=en&_x_tr_hl=en",
		},
	}

	for _, tc := range cases {
		got, err := buildTranslateURL(tc.in)
		if err != nil {
			t.Errorf("buildTranslateURL(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("buildTranslateURL(%q)\n got  %s\n want %s", tc.in, got, tc.want)
		}
	}
}

func TestBuildTranslateURLRejectsHostless(t *testing.T) {
	if _, err := buildTranslateURL("/relative/path"); !errors.Is(err, types.ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestStripTranslateWrapper(t *testing.T) {
	html := `<html><head>` +
		`<script src="https://www.gstatic.com/_/translate_http/_/js/foo.js"></script>` +
		`<link href="https://www.gstatic.com/_/translate_http/_/css/bar.css" rel="stylesheet">` +
		`<meta http-equiv="X-Translated-By" content="Google">` +
		`<meta http-equiv="X-Translated-To" content="en">` +
		`<meta name="robots" content="none">` +
		`<link href="https://fonts.googleapis.com/css?family=Roboto" rel="stylesheet">` +
		`<script>function gtElInit() { window._x = 1; }</script>` +
		`<title>Page</title></head><body>content</body></html>`

	out := stripTranslateWrapper(html)
	for _, leftover := range []string{"translate_http", "X-Translated", `content="none"`, "fonts.googleapis", "gtElInit"} {
		if strings.Contains(out, leftover) {
			t.Errorf("wrapper fragment %q still present", leftover)
		}
	}
	if !strings.Contains(out, "<title>Page</title>") || !strings.Contains(out, "content") {
		t.Error("original document content was damaged")
	}
}

func TestRewriteTranslateLinks(t *testing.T) {
	html := `<a href="https://example-com.translate.goog/about?_x_tr_sl=auto&_x_tr_tl=en&_x_tr_hl=en">About</a>` +
		`<img src="https://example-com.translate.goog/logo.png">`

	out := rewriteTranslateLinks(html, "example.com")
	if strings.Contains(out, "translate.goog") {
		t.Errorf("proxied host left in output: %s", out)
	}
	if !strings.Contains(out, `href="https://example.com/about"`) {
		t.Errorf("href not rewritten: %s", out)
	}
	if !strings.Contains(out, "https://example.com/logo.png") {
		t.Errorf("src not rewritten: %s", out)
	}
}

func TestTranslateUnavailableWhenDisabled(t *testing.T) {
	s := newTestTranslate(false)
	if err := s.Available(context.Background()); !errors.Is(err, types.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTranslateRejectsUnreachableInterstitial(t *testing.T) {
	page := "<html><body>Can&#39;t reach this website" + strings.Repeat(" filler", 300) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	s := newTestTranslate(true)
	// Point the client at the test server regardless of the proxied URL.
	s.client = srv.Client()
	s.client.Transport = rewriteHost(srv)

	if _, err := s.Fetch(context.Background(), "https://example.com/"); err == nil {
		t.Fatal("unreachable interstitial must be rejected")
	}
}

func TestTranslateRejectsTinyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	s := newTestTranslate(true)
	s.client = srv.Client()
	s.client.Transport = rewriteHost(srv)

	if _, err := s.Fetch(context.Background(), "https://example.com/"); err == nil {
		t.Fatal("tiny document must be rejected")
	}
}

// rewriteHost redirects any outgoing request to the test server.
func rewriteHost(srv *httptest.Server) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = strings.TrimPrefix(srv.URL, "http://")
		return http.DefaultTransport.RoundTrip(req)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
