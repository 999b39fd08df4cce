package block

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const cleanHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Acme Widgets - Home</title>
    <meta name="description" content="Widgets for every occasion">
</head>
<body>
    <h1>Welcome to Acme</h1>
    <p>We sell widgets in many sizes.</p>
</body>
</html>`

const challengeHTML = `<!DOCTYPE html>
<html>
<head><title>Just a moment...</title></head>
<body>
    <p>Checking your browser before accessing example.com.</p>
    <div id="cf-browser-verification"></div>
</body>
</html>`

// --- Classify Tests ---

func TestClassifyBlockedStatuses(t *testing.T) {
	d := NewDetector(testLogger)

	for _, status := range []int{401, 403, 429, 503} {
		if v := d.Classify(cleanHTML, status); v != VerdictBlocked {
			t.Errorf("status %d: expected VerdictBlocked, got %s", status, v)
		}
	}
}

func TestClassifyStatusWinsOverBody(t *testing.T) {
	d := NewDetector(testLogger)

	// A blocking status is a hard block even when the body looks
	// like a challenge page.
	if v := d.Classify(challengeHTML, 503); v != VerdictBlocked {
		t.Errorf("expected VerdictBlocked, got %s", v)
	}
}

func TestClassifyCleanContent(t *testing.T) {
	d := NewDetector(testLogger)

	if v := d.Classify(cleanHTML, 200); v != VerdictSuccess {
		t.Errorf("expected VerdictSuccess, got %s", v)
	}
}

func TestClassifyEmptyBody(t *testing.T) {
	d := NewDetector(testLogger)

	if v := d.Classify("", 200); v != VerdictSuccess {
		t.Errorf("expected VerdictSuccess for empty body, got %s", v)
	}
}

func TestClassifyChallengeSignatures(t *testing.T) {
	d := NewDetector(testLogger)

	phrases := []string{
		"Just a moment",
		"Checking your browser",
		"DDoS protection by",
		"Ray ID: 86a1f2",
		"cf-browser-verification",
		"window._cf_chl_opt",
		"/cdn-cgi/challenge-platform/",
	}
	for _, phrase := range phrases {
		body := "<html><body><p>" + phrase + "</p></body></html>"
		if v := d.Classify(body, 200); v != VerdictChallenged {
			t.Errorf("phrase %q: expected VerdictChallenged, got %s", phrase, v)
		}
	}
}

func TestClassifyBlockingTitle(t *testing.T) {
	d := NewDetector(testLogger)

	cases := []struct {
		name string
		html string
	}{
		{"access denied", `<html><head><title>Access Denied</title></head><body>nope</body></html>`},
		{"403 forbidden", `<html><head><title>403 Forbidden</title></head><body>nginx</body></html>`},
		{"title with attributes", `<html><head><title data-i18n="x">Blocked</title></head><body>x</body></html>`},
		{"whitespace around title", "<html><head><title>\n  Access Denied\n</title></head><body>x</body></html>"},
	}
	for _, tc := range cases {
		if v := d.Classify(tc.html, 200); v != VerdictBlocked {
			t.Errorf("%s: expected VerdictBlocked, got %s", tc.name, v)
		}
	}
}

func TestClassifyTitleExactMatchOnly(t *testing.T) {
	d := NewDetector(testLogger)

	// "Error 404 - Page Not Found" contains "error" but is not the
	// error page title itself.
	body := `<html><head><title>Error 404 - Page Not Found</title></head><body>missing</body></html>`
	if v := d.Classify(body, 200); v != VerdictSuccess {
		t.Errorf("expected VerdictSuccess for partial title match, got %s", v)
	}
}

func TestClassifyCustomLists(t *testing.T) {
	d := NewDetector(testLogger,
		WithSignatures([]string{"robot check"}),
		WithBlockingTitles([]string{"go away"}),
		WithBlockedStatuses([]int{418}),
	)

	if v := d.Classify("<html><body>Robot Check required</body></html>", 200); v != VerdictChallenged {
		t.Errorf("custom signature: expected VerdictChallenged, got %s", v)
	}
	if v := d.Classify("<html><head><title>Go Away</title></head><body>x</body></html>", 200); v != VerdictBlocked {
		t.Errorf("custom title: expected VerdictBlocked, got %s", v)
	}
	if v := d.Classify(cleanHTML, 418); v != VerdictBlocked {
		t.Errorf("custom status: expected VerdictBlocked, got %s", v)
	}
	// Default lists are replaced, not appended.
	if v := d.Classify(challengeHTML, 200); v != VerdictSuccess {
		t.Errorf("default signatures should be replaced, got %s", v)
	}
	if v := d.Classify(cleanHTML, 403); v != VerdictSuccess {
		t.Errorf("custom statuses replace defaults, 403 should no longer block, got %s", v)
	}
}

func TestVerdictString(t *testing.T) {
	if VerdictSuccess.String() != "success" || VerdictBlocked.String() != "blocked" || VerdictChallenged.String() != "challenged" {
		t.Errorf("unexpected verdict strings: %s %s %s", VerdictSuccess, VerdictBlocked, VerdictChallenged)
	}
	if !VerdictSuccess.Acceptable() || VerdictBlocked.Acceptable() || VerdictChallenged.Acceptable() {
		t.Error("only VerdictSuccess should be acceptable")
	}
}

// --- Benchmarks ---

func BenchmarkClassifyClean(b *testing.B) {
	d := NewDetector(testLogger)
	body := cleanHTML + strings.Repeat("<p>filler paragraph</p>\n", 200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Classify(body, 200)
	}
}
