package fetcher

import (
	"context"
	"testing"

	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

type stubStrategy struct {
	name    string
	cloaked bool
}

func (s *stubStrategy) Name() string                    { return s.name }
func (s *stubStrategy) CloakedProvenance() bool         { return s.cloaked }
func (s *stubStrategy) Available(context.Context) error { return nil }
func (s *stubStrategy) Close() error                    { return nil }

func (s *stubStrategy) Fetch(context.Context, string) (*types.RawResult, error) {
	return types.SuccessResult("<html></html>", 200, "", 0), nil
}

func TestRegistryOrdered(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "solver"}, 5)
	r.Register(&stubStrategy{name: "gateway", cloaked: true}, 0)
	r.Register(&stubStrategy{name: "render"}, 2)

	ordered := r.Ordered()
	want := []string{"gateway", "render", "solver"}
	if len(ordered) != len(want) {
		t.Fatalf("len = %d, want %d", len(ordered), len(want))
	}
	for i, name := range want {
		if ordered[i].Name() != name {
			t.Errorf("ordered[%d] = %s, want %s", i, ordered[i].Name(), name)
		}
	}
}

func TestRegistryReplaceOnReRegister(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "gateway"}, 0)
	r.Register(&stubStrategy{name: "gateway", cloaked: true}, 3)

	if len(r.Ordered()) != 1 {
		t.Fatalf("re-registering must replace, got %d entries", len(r.Ordered()))
	}
	if !r.Get("gateway").CloakedProvenance() {
		t.Error("replacement strategy not in effect")
	}
}

func TestRegistryDescribe(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "gateway", cloaked: true}, 0, "api")
	r.Register(&stubStrategy{name: "browser"}, 1)

	descs := r.Describe()
	if len(descs) != 2 {
		t.Fatalf("len = %d", len(descs))
	}
	if descs[0].Name != "gateway" || !descs[0].CloakedProvenance || descs[0].Tags[0] != "api" {
		t.Errorf("descs[0] = %+v", descs[0])
	}
	if descs[1].Name != "browser" || descs[1].Priority != 1 {
		t.Errorf("descs[1] = %+v", descs[1])
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if r.Get("missing") != nil {
		t.Error("unknown name should return nil")
	}
}
