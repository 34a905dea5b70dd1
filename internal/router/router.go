package router

import "fmt"

// RoutingVersion identifies the task/model table in effect. Persisted on
// every generation call record so routing changes are auditable.
const RoutingVersion = "2026-08-01"

// Logical task keys used by the stage processors.
const (
	TaskResearch        = "research"
	TaskOutline         = "outline"
	TaskDraft           = "draft"
	TaskHumanize        = "humanize"
	TaskOptimize        = "optimize"
	TaskMeta            = "meta"
	TaskReview          = "review"
	TaskKeywordResearch = "keyword_research"
)

// Price holds per-model token rates in USD per million tokens, plus an
// optional flat per-request fee.
type Price struct {
	InputPerMTok  float64
	OutputPerMTok float64
	FlatFee       float64
}

// ModelSpec is a resolved provider/model pair with its price.
type ModelSpec struct {
	Model string
	Price Price
}

// defaultRoutes maps each task to exactly one default model.
var defaultRoutes = map[string]string{
	TaskResearch:        "gpt-4o-mini",
	TaskOutline:         "gpt-4o-mini",
	TaskDraft:           "gpt-4o",
	TaskHumanize:        "gpt-4o",
	TaskOptimize:        "gpt-4o-mini",
	TaskMeta:            "gpt-4o-mini",
	TaskReview:          "gpt-4o",
	TaskKeywordResearch: "gpt-4o-mini",
}

// prices is the static per-model price table. Cost is computed from this
// once per call and persisted; it is never recomputed later.
var prices = map[string]Price{
	"gpt-4o":      {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4.1":     {InputPerMTok: 2.00, OutputPerMTok: 8.00},
	"qwen2.5:7b":  {},
	"llama3:70b":  {},
}

// fallbacks names the substitute model tried when the primary is
// exhausted or its breaker is open.
var fallbacks = map[string]string{
	"gpt-4o":      "gpt-4.1",
	"gpt-4o-mini": "gpt-4o",
	"gpt-4.1":     "gpt-4o-mini",
}

// Router maps logical task names to concrete models.
type Router struct {
	overrides     map[string]string
	reviewerModel string
}

// New creates a router, applying config overrides on top of the defaults.
func New(overrides map[string]string, reviewerModel string) *Router {
	return &Router{overrides: overrides, reviewerModel: reviewerModel}
}

// Resolve returns the model for a logical task.
func (r *Router) Resolve(task string) (ModelSpec, error) {
	model, ok := r.overrides[task]
	if !ok || model == "" {
		model, ok = defaultRoutes[task]
		if !ok {
			return ModelSpec{}, fmt.Errorf("no route for task %q", task)
		}
	}
	return ModelSpec{Model: model, Price: prices[model]}, nil
}

// ReviewerModel returns the escalation model used by the finalize stage's
// auto-approval gate.
func (r *Router) ReviewerModel() ModelSpec {
	model := r.reviewerModel
	if model == "" {
		model = defaultRoutes[TaskReview]
	}
	return ModelSpec{Model: model, Price: prices[model]}
}

// Spec returns the ModelSpec for an explicitly named model, carrying
// its entry from the price table. Unknown models get a zero price.
func Spec(model string) ModelSpec {
	return ModelSpec{Model: model, Price: prices[model]}
}

// Fallback returns the substitute for a model, if one is configured.
func (r *Router) Fallback(model string) (ModelSpec, bool) {
	next, ok := fallbacks[model]
	if !ok {
		return ModelSpec{}, false
	}
	return ModelSpec{Model: next, Price: prices[next]}, true
}

// Cost computes the deterministic cost of a call in USD.
func Cost(spec ModelSpec, inputTokens, outputTokens int) float64 {
	p := spec.Price
	return p.FlatFee +
		float64(inputTokens)*p.InputPerMTok/1e6 +
		float64(outputTokens)*p.OutputPerMTok/1e6
}
