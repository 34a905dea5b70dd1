package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/ContentForge/internal/config"
	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/research"
	"github.com/TobiSchelling/ContentForge/internal/router"
)

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	script []any // error or string content
	calls  int
}

func (p *scriptedProvider) Name() string       { return "openai" }
func (p *scriptedProvider) IsConfigured() bool { return true }

func (p *scriptedProvider) Chat(_ context.Context, req llm.Request) (*llm.Response, error) {
	var step any = "ok"
	if p.calls < len(p.script) {
		step = p.script[p.calls]
	}
	p.calls++
	if err, ok := step.(error); ok {
		return nil, err
	}
	return &llm.Response{
		Content:      step.(string),
		Model:        req.Model,
		InputTokens:  100,
		OutputTokens: 200,
	}, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Quality.MinWords = 40
	cfg.Quality.BurstinessThreshold = 0.35
	cfg.Quality.DuplicateThreshold = 0.4
	cfg.Queue.MaxAttempts = 3
	cfg.Research.CacheTTLHours = 72
	return cfg
}

func testDeps(t *testing.T, script []any) (*Deps, *database.DB) {
	t.Helper()
	db := openTestDB(t)
	provider := &scriptedProvider{script: script}
	client := llm.NewClient(provider, router.New(nil, "gpt-4o"), db, 0.7, 2048)
	cache := research.NewCache(db, research.NewLive(client, nil, 3), 72)
	return &Deps{Cfg: testConfig(), DB: db, Client: client, Cache: cache}, db
}

// cleanBody builds markdown that clears every quality gate: enough
// words, alternating sentence lengths, no banned vocabulary.
func cleanBody(wordTarget int) string {
	var b strings.Builder
	b.WriteString("# Best Hiking Boots\n\nShort answer first.\n\n## What We Tested\n\n")
	long := "We walked close to ninety miles across wet granite, loose scree and one deeply regrettable bog to see which pairs kept their shape and their grip."
	short := "Some did not."
	for quickWordCount(b.String()) < wordTarget {
		b.WriteString(long + " " + short + " ")
	}
	return b.String()
}

func quickWordCount(s string) int { return len(strings.Fields(s)) }

func TestClassifyContentType(t *testing.T) {
	tests := []struct {
		keyword string
		want    string
	}{
		{"best hiking boots", TypeListicle},
		{"10 camping hacks for beginners", TypeListicle},
		{"hiking boots vs trail runners", TypeComparison},
		{"difference between down and synthetic", TypeComparison},
		{"backpacking calorie calculator", TypeCalculator},
		{"how much water to carry hiking", TypeCalculator},
		{"how to waterproof leather boots", TypeHowTo},
		{"osprey atmos 65 review", TypeReview},
		{"Elvis memorabilia collecting", TypeGuide},
		{"canvas tent care", TypeGuide},
	}
	for _, tt := range tests {
		if got := ClassifyContentType(tt.keyword); got != tt.want {
			t.Errorf("ClassifyContentType(%q) = %s, want %s", tt.keyword, got, tt.want)
		}
	}
}

func TestWordTarget(t *testing.T) {
	if got := wordTarget(TypeCalculator, 900); got != 500 {
		t.Errorf("calculator target = %d, want 500", got)
	}
	if got := wordTarget(TypeHowTo, 2000); got != 2000 {
		t.Errorf("target below configured minimum: got %d, want 2000", got)
	}
	if got := wordTarget(TypeGuide, 900); got != 1800 {
		t.Errorf("guide target = %d, want 1800", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Best Hiking Boots of 2026", "best-hiking-boots-of-2026"},
		{"  What's the Deal with Gaiters?!  ", "what-s-the-deal-with-gaiters"},
		{"Boots & Socks: A Pairing", "boots-socks-a-pairing"},
	}
	for _, tt := range tests {
		if got := slugify(tt.title); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}

	long := slugify(strings.Repeat("waterproof ", 20))
	if len(long) > 80 {
		t.Errorf("slug not capped: %d chars", len(long))
	}
	if strings.HasSuffix(long, "-") {
		t.Errorf("capped slug ends mid-separator: %q", long)
	}
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		keyword, niche, want string
	}{
		{"best mortgage rates", "personal finance", "high"},
		{"plantar fasciitis treatment for hikers", "hiking", "high"},
		{"best protein supplement", "fitness", "medium"},
		{"canvas tent care", "camping", "low"},
	}
	for _, tt := range tests {
		if got := classifyRisk(tt.keyword, tt.niche); got != tt.want {
			t.Errorf("classifyRisk(%q, %q) = %s, want %s", tt.keyword, tt.niche, got, tt.want)
		}
	}
}

func TestDeriveVoiceSeedIsStable(t *testing.T) {
	domain := &database.Domain{Name: "hikinggearlab.com", Niche: "outdoor gear"}
	first := deriveVoiceSeed(domain)
	if first == "" {
		t.Fatal("empty voice seed")
	}
	for i := 0; i < 5; i++ {
		if got := deriveVoiceSeed(domain); got != first {
			t.Fatalf("voice seed changed between derivations: %q vs %q", first, got)
		}
	}
}

func TestDraftFailsShortBody(t *testing.T) {
	deps, db := testDeps(t, []any{"# Too Short\n\nNot enough words here."})
	domainID, _ := db.InsertDomain("hikinggearlab.com", "outdoor gear", 5)
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)

	outline := `{"working_title":"t","content_type":"listicle","word_target":40,"sections":[{"heading":"h","points":["p"]}]}`
	if err := db.UpdateArticleOutline(articleID, outline); err != nil {
		t.Fatalf("store outline: %v", err)
	}

	job := claimStageJob(t, db, database.JobGenerateDraft, articleID, domainID)
	if _, err := deps.Draft(context.Background(), job); err == nil {
		t.Fatal("expected short draft to fail the word-count gate")
	} else if !strings.Contains(err.Error(), "too short") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDraftFailsBannedPatterns(t *testing.T) {
	body := cleanBody(60) + "\n\nLet me delve into the robust landscape of boots.\n"
	deps, db := testDeps(t, []any{body})
	domainID, _ := db.InsertDomain("hikinggearlab.com", "outdoor gear", 5)
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)

	outline := `{"working_title":"t","content_type":"listicle","word_target":40,"sections":[{"heading":"h","points":["p"]}]}`
	if err := db.UpdateArticleOutline(articleID, outline); err != nil {
		t.Fatalf("store outline: %v", err)
	}

	job := claimStageJob(t, db, database.JobGenerateDraft, articleID, domainID)
	if _, err := deps.Draft(context.Background(), job); err == nil {
		t.Fatal("expected banned patterns to fail the gate")
	}

	events, err := db.GetEvents(database.EventGateViolation, 10)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 gate event, got %d", len(events))
	}
}

func TestHumanizePersistsVoiceSeedOnce(t *testing.T) {
	body := cleanBody(60)
	deps, db := testDeps(t, []any{body, body})
	domainID, _ := db.InsertDomain("hikinggearlab.com", "outdoor gear", 5)
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)
	seedBody(t, db, articleID, cleanBody(60))

	job := claimStageJob(t, db, database.JobHumanize, articleID, domainID)
	if _, err := deps.Humanize(context.Background(), job); err != nil {
		t.Fatalf("humanize: %v", err)
	}
	// Settle the claimed job so the next claim for the article is allowed.
	if err := db.CompleteJob(job.ID, "humanized", 0, 0); err != nil {
		t.Fatalf("complete job: %v", err)
	}

	domain, _ := db.GetDomain(domainID)
	if domain.VoiceSeed == nil || *domain.VoiceSeed == "" {
		t.Fatal("voice seed not persisted")
	}
	seed := *domain.VoiceSeed

	job = claimStageJob(t, db, database.JobHumanize, articleID, domainID)
	if _, err := deps.Humanize(context.Background(), job); err != nil {
		t.Fatalf("second humanize: %v", err)
	}
	domain, _ = db.GetDomain(domainID)
	if *domain.VoiceSeed != seed {
		t.Errorf("voice seed changed between runs: %q vs %q", seed, *domain.VoiceSeed)
	}
}

func TestOptimizeInjectsInternalLinksOnlyWhenEnabled(t *testing.T) {
	body := cleanBody(60)
	deps, db := testDeps(t, []any{body, body})
	deps.Cfg.Features.InternalLinking = true

	domainID, err := db.InsertDomain("hikinggearlab.com", "outdoor gear", 5)
	if err != nil {
		t.Fatalf("insert domain: %v", err)
	}
	if err := db.SetDomainFlags(domainID, true, false); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	offID, err := db.InsertDomain("plainsite.com", "misc", 5)
	if err != nil {
		t.Fatalf("insert second domain: %v", err)
	}

	publishArticle(t, db, domainID, "trail runner sizing", "Trail Runner Sizing", "trail-runner-sizing")

	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)
	seedBody(t, db, articleID, cleanBody(60))

	job := claimStageJob(t, db, database.JobSEOOptimize, articleID, domainID)
	if _, err := deps.Optimize(context.Background(), job); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	a, _ := db.GetArticle(articleID)
	if !strings.Contains(*a.Body, "[Trail Runner Sizing](/trail-runner-sizing)") {
		t.Error("expected internal link to published article")
	}

	// Domain flag off: no links even with the feature enabled globally.
	otherID, _ := db.InsertArticle(offID, "misc keyword", nil)
	seedBody(t, db, otherID, cleanBody(60))
	job = claimStageJob(t, db, database.JobSEOOptimize, otherID, offID)
	if _, err := deps.Optimize(context.Background(), job); err != nil {
		t.Fatalf("optimize without flag: %v", err)
	}
	a, _ = db.GetArticle(otherID)
	if strings.Contains(*a.Body, "Related reading") {
		t.Error("internal links injected although the domain flag is off")
	}
}

func TestFinalizeFailClosedOnReviewerError(t *testing.T) {
	meta := `{"title":"Best Hiking Boots Tested","meta_description":"Ninety miles of testing."}`
	reviewerErr := &llm.APIError{Provider: "openai", Status: 500, Message: "down"}
	deps, db := testDeps(t, []any{meta, reviewerErr, reviewerErr, reviewerErr, reviewerErr, reviewerErr, reviewerErr})
	deps.Cfg.Features.AIReviewer = true
	deps.Cfg.Routing.ReviewerModel = "gpt-4o"
	deps.Client.SetRetryPolicy(llm.RetryPolicy{MaxAttempts: 2, Retryable: llm.IsRetryable})

	domainID, err := db.InsertDomain("hikinggearlab.com", "outdoor gear", 5)
	if err != nil {
		t.Fatalf("insert domain: %v", err)
	}
	if err := db.SetDomainFlags(domainID, false, true); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)
	seedBody(t, db, articleID, cleanBody(60))

	job := claimStageJob(t, db, database.JobGenerateMeta, articleID, domainID)
	if _, err := deps.Finalize(context.Background(), job); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	a, _ := db.GetArticle(articleID)
	if a.Status != database.StatusReview {
		t.Errorf("reviewer failure must route to human review, got status %s", a.Status)
	}
	events, err := db.GetEvents(database.EventReviewNeeded, 10)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected a review event for the waiting article, got %d", len(events))
	}
}

func TestFinalizeAutoApprovesOnCleanVerdict(t *testing.T) {
	meta := `{"title":"Best Hiking Boots Tested","meta_description":"Ninety miles of testing."}`
	verdict := `{"verdict":"approve","flags":[],"human_review_required":false}`
	deps, db := testDeps(t, []any{meta, verdict})
	deps.Cfg.Features.AIReviewer = true
	deps.Cfg.Routing.ReviewerModel = "gpt-4o"

	domainID, err := db.InsertDomain("hikinggearlab.com", "outdoor gear", 5)
	if err != nil {
		t.Fatalf("insert domain: %v", err)
	}
	if err := db.SetDomainFlags(domainID, false, true); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)
	seedBody(t, db, articleID, cleanBody(60))

	job := claimStageJob(t, db, database.JobGenerateMeta, articleID, domainID)
	if _, err := deps.Finalize(context.Background(), job); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	a, _ := db.GetArticle(articleID)
	if a.Status != database.StatusApproved {
		t.Errorf("clean verdict should auto-approve, got status %s", a.Status)
	}
	if a.Slug == nil || *a.Slug != "best-hiking-boots-tested" {
		t.Errorf("unexpected slug: %v", a.Slug)
	}
}

func TestFinalizeFlaggedVerdictRequiresHuman(t *testing.T) {
	meta := `{"title":"Best Hiking Boots Tested","meta_description":"Ninety miles of testing."}`
	verdict := `{"verdict":"approve","flags":["thin section on sizing"],"human_review_required":false}`
	deps, db := testDeps(t, []any{meta, verdict})
	deps.Cfg.Features.AIReviewer = true
	deps.Cfg.Routing.ReviewerModel = "gpt-4o"

	domainID, err := db.InsertDomain("hikinggearlab.com", "outdoor gear", 5)
	if err != nil {
		t.Fatalf("insert domain: %v", err)
	}
	if err := db.SetDomainFlags(domainID, false, true); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)
	seedBody(t, db, articleID, cleanBody(60))

	job := claimStageJob(t, db, database.JobGenerateMeta, articleID, domainID)
	if _, err := deps.Finalize(context.Background(), job); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	a, _ := db.GetArticle(articleID)
	if a.Status != database.StatusReview {
		t.Errorf("flagged verdict must not auto-approve, got status %s", a.Status)
	}
}

// TestPipelineAdvancesThroughAllStages drives one article end to end
// through the queue: six stages in order, six generation calls recorded,
// a revision per content-mutating stage, final status review.
func TestPipelineAdvancesThroughAllStages(t *testing.T) {
	researchJSON := `{"statistics":["82% of blisters trace to fit, 2024 retailer data"],"quotes":[],"competitor_angles":["most lists never weigh the boots"],"sources":[{"title":"Footwear Fit Study","url":"https://example.com/fit"}]}`
	outlineJSON := `{"working_title":"Best Hiking Boots","sections":[{"heading":"Top Picks","points":["weight","grip"]},{"heading":"How We Tested","points":["miles walked"]}]}`
	body := cleanBody(60)
	meta := `{"title":"Best Hiking Boots Tested","meta_description":"Ninety miles of testing."}`

	deps, db := testDeps(t, []any{researchJSON, outlineJSON, body, body, body, meta})

	domainID, err := db.InsertDomain("hikinggearlab.com", "outdoor gear", 5)
	if err != nil {
		t.Fatalf("insert domain: %v", err)
	}
	articleID, err := db.InsertArticle(domainID, "best hiking boots", []string{"hiking boot sizing"})
	if err != nil {
		t.Fatalf("insert article: %v", err)
	}
	if _, err := db.InsertJob(database.JobResearch, &articleID, domainID, nil, 100, 3); err != nil {
		t.Fatalf("enqueue research: %v", err)
	}

	reg := Registry(deps)
	var completed []string
	for i := 0; i < 10; i++ {
		job, err := db.ClaimNextJob("e2e-worker")
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if job == nil {
			break
		}
		if err := queue.Execute(context.Background(), db, reg, job); err != nil {
			t.Fatalf("execute %s: %v", job.Type, err)
		}
		completed = append(completed, job.Type)
	}

	wantOrder := strings.Join(StageOrder, ",")
	if got := strings.Join(completed, ","); got != wantOrder {
		t.Fatalf("stage order = %s, want %s", got, wantOrder)
	}

	a, err := db.GetArticle(articleID)
	if err != nil || a == nil {
		t.Fatalf("get article: %v", err)
	}
	if a.Status != database.StatusReview {
		t.Errorf("final status = %s, want review", a.Status)
	}
	if a.WordCount < deps.Cfg.Quality.MinWords {
		t.Errorf("word count %d below minimum %d", a.WordCount, deps.Cfg.Quality.MinWords)
	}
	if a.Fingerprint == nil || len(a.Signature) == 0 {
		t.Error("reviewable article missing fingerprint or signature")
	}
	if a.ContentType == nil || *a.ContentType != TypeListicle {
		t.Errorf("content type = %v, want listicle", a.ContentType)
	}

	calls, err := db.GetGenerationCalls(articleID)
	if err != nil {
		t.Fatalf("get calls: %v", err)
	}
	if len(calls) != 6 {
		t.Errorf("expected 6 generation calls, got %d", len(calls))
	}

	revisions, err := db.GetRevisions(articleID)
	if err != nil {
		t.Fatalf("get revisions: %v", err)
	}
	wantStages := []string{"outline", "draft", "humanize", "optimize", "finalize"}
	if len(revisions) != len(wantStages) {
		t.Fatalf("expected %d revisions, got %d", len(wantStages), len(revisions))
	}
	for i, rev := range revisions {
		if rev.Stage != wantStages[i] {
			t.Errorf("revision %d stage = %s, want %s", i, rev.Stage, wantStages[i])
		}
	}
}

func claimStageJob(t *testing.T, db *database.DB, jobType string, articleID, domainID int64) *database.Job {
	t.Helper()
	if _, err := db.InsertJob(jobType, &articleID, domainID, nil, 100, 3); err != nil {
		t.Fatalf("insert job: %v", err)
	}
	job, err := db.ClaimNextJob("test-worker")
	if err != nil || job == nil {
		t.Fatalf("claim job: %v", err)
	}
	return job
}

// seedBody stores a gate-passing body directly, standing in for the
// upstream stages.
func seedBody(t *testing.T, db *database.DB, articleID int64, body string) {
	t.Helper()
	if err := db.UpdateArticleBody(articleID, body, quickWordCount(body), "fp-"+fmt.Sprint(articleID), []uint64{1, 2, 3}); err != nil {
		t.Fatalf("seed body: %v", err)
	}
}

func publishArticle(t *testing.T, db *database.DB, domainID int64, keyword, title, slug string) {
	t.Helper()
	id, err := db.InsertArticle(domainID, keyword, nil)
	if err != nil {
		t.Fatalf("insert article: %v", err)
	}
	seedBody(t, db, id, cleanBody(60))
	if err := db.UpdateArticleMeta(id, title, slug, "meta", "low"); err != nil {
		t.Fatalf("set meta: %v", err)
	}
	if err := db.SetArticleStatus(id, database.StatusPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}
}
