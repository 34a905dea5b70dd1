package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/router"
)

// Recorder persists the governance record written for every generation
// call. *database.DB satisfies it.
type Recorder interface {
	InsertGenerationCall(c database.GenerationCall) (int64, error)
}

// Options select the route and audit metadata for one generation call.
type Options struct {
	Task          string
	ArticleID     *int64
	ModelOverride string // explicit escalation, e.g. the reviewer model
	PromptVersion string
	Temperature   float64
	MaxTokens     int
}

// Result is the outcome of a generation call with its telemetry.
type Result struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
	DurationMs   int64
	FallbackUsed bool
	Attempts     int
}

// Client performs generation calls wrapped in a circuit breaker and a
// bounded retry policy, recording a governance row per call. It is built
// at the process's dependency root and injected; there is no global
// client instance. One Client is shared by every pool worker, so the
// breaker map is guarded.
type Client struct {
	provider    Provider
	router      *router.Router
	recorder    Recorder
	policy      RetryPolicy
	mu          sync.Mutex
	breakers    map[string]*Breaker
	temperature float64
	maxTokens   int
}

// NewClient creates a generation client.
func NewClient(provider Provider, r *router.Router, recorder Recorder, temperature float64, maxTokens int) *Client {
	if temperature == 0 {
		temperature = 0.7
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Client{
		provider:    provider,
		router:      r,
		recorder:    recorder,
		policy:      DefaultRetryPolicy(),
		breakers:    make(map[string]*Breaker),
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// SetRetryPolicy replaces the default retry policy.
func (c *Client) SetRetryPolicy(p RetryPolicy) { c.policy = p }

func (c *Client) breaker(provider string) *Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[provider]
	if !ok {
		b = NewBreaker(5, 30*time.Second)
		c.breakers[provider] = b
	}
	return b
}

// Generate performs one logical generation: resolve the model, call the
// provider under retry and circuit breaking, substitute the fallback
// model if the primary is exhausted, and persist the call record.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	spec, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, attempts, err := c.call(ctx, prompt, spec.Model, opts)
	fallbackUsed := false

	if err != nil && (IsRetryable(err) || errors.Is(err, ErrBreakerOpen)) {
		if fb, ok := c.router.Fallback(spec.Model); ok {
			log.Printf("model %s unavailable (%v), falling back to %s", spec.Model, err, fb.Model)
			var fbAttempts int
			resp, fbAttempts, err = c.call(ctx, prompt, fb.Model, opts)
			attempts += fbAttempts
			if err == nil {
				spec = fb
				fallbackUsed = true
			}
		}
	}
	if err != nil {
		c.recordFailure(prompt, opts, spec.Model, attempts, time.Since(start).Milliseconds(), err)
		return nil, err
	}

	durationMs := time.Since(start).Milliseconds()
	cost := router.Cost(spec, resp.InputTokens, resp.OutputTokens)

	result := &Result{
		Content:      resp.Content,
		Model:        spec.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         cost,
		DurationMs:   durationMs,
		FallbackUsed: fallbackUsed,
		Attempts:     attempts,
	}

	c.record(prompt, opts, result)
	return result, nil
}

func (c *Client) resolve(opts Options) (router.ModelSpec, error) {
	if opts.ModelOverride != "" {
		// Overridden calls still cost: look the model up in the price
		// table instead of fabricating a zero-priced spec.
		return router.Spec(opts.ModelOverride), nil
	}
	return c.router.Resolve(opts.Task)
}

// call runs the retry loop for a single model under its provider breaker.
func (c *Client) call(ctx context.Context, prompt, model string, opts Options) (*Response, int, error) {
	b := c.breaker(c.provider.Name())

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	var resp *Response
	attempts, err := c.policy.retry(ctx, func() error {
		if !b.Allow() {
			return ErrBreakerOpen
		}
		var callErr error
		resp, callErr = c.provider.Chat(ctx, Request{
			Model:       model,
			Messages:    []Message{{Role: "user", Content: prompt}},
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if callErr != nil {
			b.Failure()
			return callErr
		}
		b.Success()
		return nil
	})
	return resp, attempts, err
}

// record persists the governance row. Every invocation gets one, reviewer
// and failed calls included; a storage failure is logged, not propagated,
// so audit trouble never fails a generation that already succeeded.
func (c *Client) record(prompt string, opts Options, r *Result) {
	c.insertCall(prompt, opts, database.GenerationCall{
		ResolvedModel: r.Model,
		FallbackUsed:  r.FallbackUsed,
		InputTokens:   r.InputTokens,
		OutputTokens:  r.OutputTokens,
		Cost:          r.Cost,
		DurationMs:    r.DurationMs,
	})
}

// recordFailure writes the audit row for an invocation that produced no
// content. Tokens and cost stay zero; the error text is preserved.
func (c *Client) recordFailure(prompt string, opts Options, model string, attempts int, durationMs int64, callErr error) {
	note := fmt.Sprintf("%v (after %d attempts)", callErr, attempts)
	c.insertCall(prompt, opts, database.GenerationCall{
		ResolvedModel: model,
		DurationMs:    durationMs,
		ErrorNote:     &note,
	})
}

func (c *Client) insertCall(prompt string, opts Options, call database.GenerationCall) {
	if c.recorder == nil {
		return
	}

	hash := sha256.Sum256([]byte(prompt))
	promptVersion := opts.PromptVersion
	if promptVersion == "" {
		promptVersion = "v1"
	}

	call.ArticleID = opts.ArticleID
	call.TaskKey = opts.Task
	call.PromptVersion = promptVersion
	call.RoutingVersion = router.RoutingVersion
	call.PromptHash = hex.EncodeToString(hash[:])
	call.PromptBody = prompt

	if _, err := c.recorder.InsertGenerationCall(call); err != nil {
		log.Printf("failed to record generation call for task %s: %v", opts.Task, err)
	}
}

// StructuredInstruction is appended to prompts whose callers parse the
// response as JSON.
const StructuredInstruction = "\n\nRespond with raw JSON only. No markdown fencing, no commentary."

// GenerateStructured generates and strictly parses a JSON response into
// out. A response that still fails after fence stripping and control
// character repair returns a *ParseError so callers can apply
// format-specific recovery.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, opts Options, out any) (*Result, error) {
	result, err := c.Generate(ctx, prompt+StructuredInstruction, opts)
	if err != nil {
		return nil, err
	}

	raw := ExtractJSON(result.Content)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		repaired := RepairJSON(raw)
		if repairErr := json.Unmarshal([]byte(repaired), out); repairErr != nil {
			return result, &ParseError{Raw: result.Content, Err: err}
		}
	}
	return result, nil
}
