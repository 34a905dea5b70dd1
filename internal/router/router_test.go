package router

import (
	"math"
	"testing"
)

func TestResolveDefault(t *testing.T) {
	r := New(nil, "")
	spec, err := r.Resolve(TaskDraft)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if spec.Model != "gpt-4o" {
		t.Errorf("expected gpt-4o for draft, got %q", spec.Model)
	}
}

func TestResolveOverride(t *testing.T) {
	r := New(map[string]string{TaskDraft: "llama3:70b"}, "")
	spec, err := r.Resolve(TaskDraft)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if spec.Model != "llama3:70b" {
		t.Errorf("expected override llama3:70b, got %q", spec.Model)
	}
}

func TestResolveUnknownTask(t *testing.T) {
	r := New(nil, "")
	if _, err := r.Resolve("translate"); err == nil {
		t.Error("expected error for unrouted task")
	}
}

func TestFallbackChain(t *testing.T) {
	r := New(nil, "")
	spec, ok := r.Fallback("gpt-4o")
	if !ok {
		t.Fatal("expected a fallback for gpt-4o")
	}
	if spec.Model != "gpt-4.1" {
		t.Errorf("expected gpt-4.1 fallback, got %q", spec.Model)
	}

	if _, ok := r.Fallback("qwen2.5:7b"); ok {
		t.Error("expected no fallback for local model")
	}
}

func TestSpecCarriesPrice(t *testing.T) {
	spec := Spec("gpt-4o")
	if spec.Model != "gpt-4o" {
		t.Errorf("expected model preserved, got %q", spec.Model)
	}
	if spec.Price.InputPerMTok != 2.50 || spec.Price.OutputPerMTok != 10.00 {
		t.Errorf("expected the price table entry, got %+v", spec.Price)
	}

	unknown := Spec("gpt-99")
	if unknown.Price != (Price{}) {
		t.Errorf("expected zero price for unknown model, got %+v", unknown.Price)
	}
}

func TestCostDeterministic(t *testing.T) {
	spec := ModelSpec{Price: Price{InputPerMTok: 2.50, OutputPerMTok: 10.00}}
	got := Cost(spec, 1000, 2000)
	want := 0.0025 + 0.02
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected cost %v, got %v", want, got)
	}

	free := ModelSpec{}
	if Cost(free, 5000, 5000) != 0 {
		t.Error("expected zero cost for unpriced model")
	}
}
