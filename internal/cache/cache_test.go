package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeStore is an in-test external backend with injectable failures.
type fakeStore struct {
	data   map[string]string
	getErr error
	setErr error
	gets   int
	sets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Name() string { return "fake" }

func (f *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	f.gets++
	if f.getErr != nil {
		return "", false, f.getErr
	}
	html, ok := f.data[key]
	return html, ok, nil
}

func (f *fakeStore) Set(_ context.Context, key, html string) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = html
	return nil
}

func (f *fakeStore) Close() error { return nil }

// --- Key Tests ---

func TestKeyStable(t *testing.T) {
	k1 := Key("https://example.com/page?q=1")
	k2 := Key("https://example.com/page?q=1")
	if k1 != k2 {
		t.Errorf("same URL produced different keys: %s vs %s", k1, k2)
	}
	if len(k1) != 32 {
		t.Errorf("expected 32-char key, got %d chars", len(k1))
	}
}

func TestKeyNormalization(t *testing.T) {
	if Key("HTTPS://Example.COM/path") != Key("https://example.com/path") {
		t.Error("scheme/host case should not change the key")
	}
	if Key("https://example.com/path#section") != Key("https://example.com/path") {
		t.Error("fragment should not change the key")
	}
	if Key("https://example.com/path?a=1") == Key("https://example.com/path?a=2") {
		t.Error("different query strings must produce different keys")
	}
	if Key("https://example.com/Path") == Key("https://example.com/path") {
		t.Error("path case must be preserved")
	}
}

// --- MemoryStore Tests ---

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	current := time.Now()
	s.now = func() time.Time { return current }

	if err := s.Set(context.Background(), "k", "<html>x</html>"); err != nil {
		t.Fatalf("set: %v", err)
	}

	html, ok, _ := s.Get(context.Background(), "k")
	if !ok || html != "<html>x</html>" {
		t.Fatalf("expected hit, got ok=%v html=%q", ok, html)
	}

	// Just inside the TTL.
	current = current.Add(time.Hour - time.Second)
	if _, ok, _ := s.Get(context.Background(), "k"); !ok {
		t.Error("entry expired too early")
	}

	// At the TTL boundary the entry is gone and removed.
	current = current.Add(2 * time.Second)
	if _, ok, _ := s.Get(context.Background(), "k"); ok {
		t.Error("entry should have expired")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be deleted, have %d entries", s.Len())
	}
}

func TestMemoryStoreMiss(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	if _, ok, err := s.Get(context.Background(), "absent"); ok || err != nil {
		t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

// --- HTMLCache Tests ---

func TestCacheRoundTrip(t *testing.T) {
	c := New(time.Hour, nil, testLogger)
	ctx := context.Background()

	url := "https://example.com/product"
	if _, ok := c.Get(ctx, url); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Set(ctx, url, "<html>content</html>")
	html, ok := c.Get(ctx, url)
	if !ok || html != "<html>content</html>" {
		t.Fatalf("expected hit, got ok=%v html=%q", ok, html)
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := New(time.Hour, nil, testLogger)
	ctx := context.Background()

	c.Set(ctx, "https://example.com", "<html>old</html>")
	c.Set(ctx, "https://example.com", "<html>new</html>")

	html, ok := c.Get(ctx, "https://example.com")
	if !ok || html != "<html>new</html>" {
		t.Fatalf("expected wholesale overwrite, got ok=%v html=%q", ok, html)
	}
}

func TestCacheWriteThrough(t *testing.T) {
	ext := newFakeStore()
	c := New(time.Hour, ext, testLogger)
	ctx := context.Background()

	c.Set(ctx, "https://example.com", "<html>x</html>")

	if ext.sets != 1 {
		t.Errorf("expected 1 external set, got %d", ext.sets)
	}
	if c.local.Len() != 1 {
		t.Errorf("expected local copy, have %d entries", c.local.Len())
	}

	// External is consulted first on reads.
	if _, ok := c.Get(ctx, "https://example.com"); !ok {
		t.Fatal("expected hit")
	}
	if ext.gets != 1 {
		t.Errorf("expected external get first, got %d gets", ext.gets)
	}
}

func TestCacheExternalErrorsDegradeToMiss(t *testing.T) {
	ext := newFakeStore()
	ext.getErr = errors.New("connection refused")
	ext.setErr = errors.New("connection refused")
	c := New(time.Hour, ext, testLogger)
	ctx := context.Background()

	// Set must not fail; the local store still takes the write.
	c.Set(ctx, "https://example.com", "<html>x</html>")

	// Get falls back to the local store despite the external error.
	html, ok := c.Get(ctx, "https://example.com")
	if !ok || html != "<html>x</html>" {
		t.Fatalf("expected local fallback hit, got ok=%v html=%q", ok, html)
	}
}

func TestCacheBackendName(t *testing.T) {
	if got := New(time.Hour, nil, testLogger).Backend(); got != "memory" {
		t.Errorf("expected memory, got %s", got)
	}
	if got := New(time.Hour, newFakeStore(), testLogger).Backend(); got != "fake+memory" {
		t.Errorf("expected fake+memory, got %s", got)
	}
}

func TestCacheDefaultTTL(t *testing.T) {
	c := New(0, nil, testLogger)
	if c.TTL() != DefaultTTL {
		t.Errorf("expected DefaultTTL, got %v", c.TTL())
	}
}

// --- Benchmarks ---

func BenchmarkCacheGet(b *testing.B) {
	c := New(time.Hour, nil, testLogger)
	ctx := context.Background()
	c.Set(ctx, "https://example.com/page", "<html>content</html>")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(ctx, "https://example.com/page")
	}
}
