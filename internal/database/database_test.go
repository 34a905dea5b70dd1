package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testDomain(t *testing.T, db *DB) int64 {
	t.Helper()
	id, err := db.InsertDomain("hikinggearlab.com", "outdoor gear", 1)
	if err != nil {
		t.Fatalf("insert domain: %v", err)
	}
	return id
}

func TestInsertAndGetArticle(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)

	id, err := db.InsertArticle(domainID, "best hiking boots", []string{"hiking boots review", "trail boots"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero article ID")
	}

	a, err := db.GetArticle(id)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if a == nil {
		t.Fatal("expected article")
	}
	if a.Status != StatusDraft {
		t.Errorf("expected draft status, got %q", a.Status)
	}
	if len(a.SecondaryKeywords) != 2 {
		t.Errorf("expected 2 secondary keywords, got %v", a.SecondaryKeywords)
	}
}

func TestUpdateArticleBodyMovesCountAndFingerprintTogether(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	id, _ := db.InsertArticle(domainID, "best hiking boots", nil)

	if err := db.UpdateArticleBody(id, "Some body text here.", 4, "abc123", []uint64{1, 2, 3}); err != nil {
		t.Fatalf("update body: %v", err)
	}

	a, _ := db.GetArticle(id)
	if a.Body == nil || *a.Body != "Some body text here." {
		t.Error("expected body to be stored")
	}
	if a.WordCount != 4 {
		t.Errorf("expected word count 4, got %d", a.WordCount)
	}
	if a.Fingerprint == nil || *a.Fingerprint != "abc123" {
		t.Error("expected fingerprint abc123")
	}
	if len(a.Signature) != 3 {
		t.Errorf("expected signature of 3 hashes, got %v", a.Signature)
	}
	if a.GenerationPasses != 1 {
		t.Errorf("expected 1 generation pass, got %d", a.GenerationPasses)
	}
}

func TestReviewRequiresBody(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	id, _ := db.InsertArticle(domainID, "best hiking boots", nil)

	if err := db.SetArticleStatus(id, StatusReview); err == nil {
		t.Error("expected error moving empty article to review")
	}

	db.UpdateArticleBody(id, "A real body.", 3, "fp", []uint64{1})
	if err := db.SetArticleStatus(id, StatusReview); err != nil {
		t.Errorf("expected review transition to succeed: %v", err)
	}

	a, _ := db.GetArticle(id)
	if a.Status != StatusReview {
		t.Errorf("expected review status, got %q", a.Status)
	}
}

func TestClaimNextJobOrdering(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)

	low, _ := db.InsertJob(JobResearch, nil, domainID, nil, 200, 3)
	high, _ := db.InsertJob(JobKeywordResearch, nil, domainID, nil, 10, 3)

	j, err := db.ClaimNextJob("worker-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if j == nil || j.ID != high {
		t.Fatalf("expected lowest-priority-number job %d first, got %+v", high, j)
	}
	if j.Status != JobProcessing {
		t.Errorf("expected processing status, got %q", j.Status)
	}
	if j.ClaimedBy == nil || *j.ClaimedBy != "worker-1" {
		t.Error("expected claim ownership recorded")
	}

	j2, _ := db.ClaimNextJob("worker-2")
	if j2 == nil || j2.ID != low {
		t.Fatalf("expected job %d second, got %+v", low, j2)
	}

	j3, _ := db.ClaimNextJob("worker-3")
	if j3 != nil {
		t.Errorf("expected no claimable work, got %+v", j3)
	}
}

func TestClaimSkipsArticleWithProcessingJob(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)

	first, _ := db.InsertJob(JobResearch, &articleID, domainID, nil, 100, 3)
	db.InsertJob(JobGenerateOutline, &articleID, domainID, nil, 100, 3)

	j, _ := db.ClaimNextJob("worker-1")
	if j == nil || j.ID != first {
		t.Fatalf("expected job %d, got %+v", first, j)
	}

	// Second job targets the same article and must wait.
	j2, _ := db.ClaimNextJob("worker-2")
	if j2 != nil {
		t.Errorf("expected same-article job to be skipped, got %+v", j2)
	}

	if err := db.CompleteJob(first, "done", 0, 0); err != nil {
		t.Fatalf("complete: %v", err)
	}

	j3, _ := db.ClaimNextJob("worker-2")
	if j3 == nil {
		t.Fatal("expected successor claimable after completion")
	}
}

// Two workers can select sibling pending jobs for one article before
// either updates; the claim itself must reject the second.
func TestClaimUpdateRechecksArticleExclusion(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)

	first, _ := db.InsertJob(JobResearch, &articleID, domainID, nil, 100, 3)
	second, _ := db.InsertJob(JobGenerateOutline, &articleID, domainID, nil, 100, 3)

	j, _ := db.ClaimNextJob("worker-1")
	if j == nil || j.ID != first {
		t.Fatalf("expected job %d, got %+v", first, j)
	}

	// worker-2 already holds the sibling as its candidate.
	claimed, err := db.claimJob(second, "worker-2")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed {
		t.Fatal("claim must fail while a sibling job is processing")
	}

	sibling, _ := db.GetJob(second)
	if sibling.Status != JobPending {
		t.Errorf("sibling job status = %s, want pending", sibling.Status)
	}

	if err := db.CompleteJob(first, "done", 0, 0); err != nil {
		t.Fatalf("complete: %v", err)
	}
	claimed, err = db.claimJob(second, "worker-2")
	if err != nil || !claimed {
		t.Fatalf("expected claim to succeed after completion, got %v, %v", claimed, err)
	}
}

func TestCompleteRequiresProcessing(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	id, _ := db.InsertJob(JobResearch, nil, domainID, nil, 100, 3)

	if err := db.CompleteJob(id, "done", 0, 0); err == nil {
		t.Error("expected error completing a pending job")
	}
}

func TestFailJobRetriesThenTerminal(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	id, _ := db.InsertJob(JobResearch, nil, domainID, nil, 100, 2)

	db.ClaimNextJob("worker-1")
	terminal, err := db.FailJob(id, "provider error")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if terminal {
		t.Error("first failure should not be terminal")
	}

	j, _ := db.GetJob(id)
	if j.Status != JobPending {
		t.Errorf("expected pending after first failure, got %q", j.Status)
	}
	if j.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", j.Attempts)
	}

	db.ClaimNextJob("worker-1")
	terminal, _ = db.FailJob(id, "provider error again")
	if !terminal {
		t.Error("second failure should be terminal with max_attempts=2")
	}
	j, _ = db.GetJob(id)
	if j.Status != JobFailed {
		t.Errorf("expected failed, got %q", j.Status)
	}
}

func TestRecoverStaleJobs(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)

	stale, _ := db.InsertJob(JobResearch, nil, domainID, nil, 100, 3)
	fresh, _ := db.InsertJob(JobResearch, nil, domainID, nil, 100, 3)
	db.ClaimNextJob("worker-1")
	db.ClaimNextJob("worker-2")

	// Backdate the first claim past the threshold.
	if _, err := db.conn.Exec(
		"UPDATE jobs SET claimed_at = datetime('now', '-20 minutes') WHERE id = ?", stale,
	); err != nil {
		t.Fatalf("backdating claim: %v", err)
	}

	n, err := db.RecoverStaleJobs(15 * 60)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered job, got %d", n)
	}

	j, _ := db.GetJob(stale)
	if j.Status != JobPending {
		t.Errorf("expected stale job reset to pending, got %q", j.Status)
	}
	if j.Attempts != 1 {
		t.Errorf("expected attempts incremented, got %d", j.Attempts)
	}

	j2, _ := db.GetJob(fresh)
	if j2.Status != JobProcessing {
		t.Errorf("expected fresh claim untouched, got %q", j2.Status)
	}
}

func TestRecoverStaleJobsStrictlyGreater(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	id, _ := db.InsertJob(JobResearch, nil, domainID, nil, 100, 3)
	db.ClaimNextJob("worker-1")

	// A job claimed just now has processing age ~0 and must not be reclaimed.
	n, err := db.RecoverStaleJobs(0)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	_ = n

	j, _ := db.GetJob(id)
	if j.Status != JobProcessing && j.Attempts > 1 {
		t.Errorf("job reclaimed too eagerly: %+v", j)
	}
}

func TestGenerationCallAudit(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)

	_, err := db.InsertGenerationCall(GenerationCall{
		ArticleID:      &articleID,
		TaskKey:        "draft",
		ResolvedModel:  "gpt-4o-mini",
		PromptVersion:  "v3",
		RoutingVersion: "2026-08-01",
		FallbackUsed:   true,
		PromptHash:     "deadbeef",
		PromptBody:     "Write the article.",
		InputTokens:    1200,
		OutputTokens:   2400,
		Cost:           0.0042,
		DurationMs:     8300,
	})
	if err != nil {
		t.Fatalf("insert call: %v", err)
	}

	calls, err := db.GetGenerationCalls(articleID)
	if err != nil {
		t.Fatalf("get calls: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if !calls[0].FallbackUsed {
		t.Error("expected fallback_used recorded")
	}
	if calls[0].Cost != 0.0042 {
		t.Errorf("expected cost persisted, got %v", calls[0].Cost)
	}

	// Failed invocations land in the same audit trail.
	note := "500 from provider (after 3 attempts)"
	_, err = db.InsertGenerationCall(GenerationCall{
		ArticleID:      &articleID,
		TaskKey:        "draft",
		ResolvedModel:  "gpt-4o-mini",
		PromptVersion:  "v3",
		RoutingVersion: "2026-08-01",
		PromptHash:     "deadbeef",
		PromptBody:     "Write the article.",
		ErrorNote:      &note,
	})
	if err != nil {
		t.Fatalf("insert failed call: %v", err)
	}
	calls, err = db.GetGenerationCalls(articleID)
	if err != nil {
		t.Fatalf("get calls: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[1].ErrorNote == nil || *calls[1].ErrorNote != note {
		t.Errorf("expected error note persisted, got %v", calls[1].ErrorNote)
	}
	if calls[1].Cost != 0 {
		t.Errorf("failed call cost = %v, want 0", calls[1].Cost)
	}
}

func TestRevisionLifecycle(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	articleID, _ := db.InsertArticle(domainID, "best hiking boots", nil)

	before := "old body"
	after := "new body"
	_, err := db.InsertRevision(Revision{
		ArticleID:  articleID,
		Stage:      "humanize",
		BodyBefore: &before,
		BodyAfter:  &after,
	})
	if err != nil {
		t.Fatalf("insert revision: %v", err)
	}

	revisions, _ := db.GetRevisions(articleID)
	if len(revisions) != 1 {
		t.Fatalf("expected 1 revision, got %d", len(revisions))
	}
	if revisions[0].Stage != "humanize" {
		t.Errorf("expected humanize stage, got %q", revisions[0].Stage)
	}
}

func TestCacheEntryFreshness(t *testing.T) {
	db := openTestDB(t)

	db.InsertCacheEntry("hash1", "best hiking boots", `{"stats":[]}`, nil, 5, 72)

	// Expired row for the same hash.
	id, _ := db.InsertCacheEntry("hash1", "best hiking boots", `{"stats":["old"]}`, nil, 5, 72)
	db.conn.Exec("UPDATE research_cache SET expires_at = datetime('now', '-1 hour') WHERE id = ?", id)

	entries, err := db.GetFreshCacheEntries("hash1", 0)
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the fresh entry, got %d", len(entries))
	}

	// Priority filter.
	entries, _ = db.GetFreshCacheEntries("hash1", 6)
	if len(entries) != 0 {
		t.Errorf("expected no entries above priority 5, got %d", len(entries))
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	domainID := testDomain(t, db)
	db.InsertArticle(domainID, "best hiking boots", nil)
	db.InsertJob(JobResearch, nil, domainID, nil, 100, 3)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Domains != 1 {
		t.Errorf("expected 1 domain, got %d", stats.Domains)
	}
	if stats.TotalArticles != 1 {
		t.Errorf("expected 1 article, got %d", stats.TotalArticles)
	}
	if stats.PendingJobs != 1 {
		t.Errorf("expected 1 pending job, got %d", stats.PendingJobs)
	}
}
