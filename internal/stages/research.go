package stages

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/research"
)

// Research runs the first stage: consult the research cache (live
// provider behind it) and persist the structured findings on the article.
func (d *Deps) Research(ctx context.Context, job *database.Job) (*queue.Result, error) {
	article, err := d.loadArticle(job)
	if err != nil {
		return nil, err
	}
	domain, err := d.loadDomain(job.DomainID)
	if err != nil {
		return nil, err
	}

	lookup, err := d.Cache.Lookup(ctx, article.Keyword, domain.ID, domain.Priority, &article.ID)
	if err != nil {
		return nil, err
	}
	if lookup.CacheStatus == research.StatusMiss {
		// A refresh job is already queued; retrying gives it time to land.
		return nil, fmt.Errorf("no research available for %q yet", article.Keyword)
	}

	payload, err := lookup.Data.Marshal()
	if err != nil {
		return nil, err
	}
	if err := d.DB.UpdateArticleResearch(article.ID, payload); err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("research stored (cache %s, %d sources)",
		lookup.CacheStatus, len(lookup.Data.Sources))
	return succeed(job, summary, 0), nil
}

// RefreshCache handles the background refresh_research_cache job enqueued
// on a cache miss.
func (d *Deps) RefreshCache(ctx context.Context, job *database.Job) (*queue.Result, error) {
	var payload struct {
		Query    string `json:"query"`
		Priority int    `json:"priority"`
	}
	if err := parsePayload(job, &payload); err != nil {
		return nil, err
	}
	if payload.Query == "" {
		return nil, fmt.Errorf("refresh job %d has no query", job.ID)
	}

	if err := d.Cache.Refresh(ctx, payload.Query, payload.Priority); err != nil {
		return nil, err
	}
	return &queue.Result{Summary: fmt.Sprintf("cache refreshed for %q", payload.Query)}, nil
}
