package stages

import (
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/ContentForge/internal/config"
	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/research"
)

// Deps is the dependency root shared by all stage handlers. Built once
// at process start and injected; stages hold no state of their own.
type Deps struct {
	Cfg    *config.Config
	DB     *database.DB
	Client *llm.Client
	Cache  *research.Cache
}

// Registry maps every job type to its handler. Stage jobs advance one
// article; keyword_research and refresh_research_cache serve a domain.
func Registry(d *Deps) queue.Registry {
	return queue.Registry{
		database.JobResearch:        d.Research,
		database.JobGenerateOutline: d.Outline,
		database.JobGenerateDraft:   d.Draft,
		database.JobHumanize:        d.Humanize,
		database.JobSEOOptimize:     d.Optimize,
		database.JobGenerateMeta:    d.Finalize,
		database.JobKeywordResearch: d.KeywordResearch,
		database.JobRefreshCache:    d.RefreshCache,
	}
}

// StageOrder is the fixed article pipeline. Each stage enqueues the next
// as its successor.
var StageOrder = []string{
	database.JobResearch,
	database.JobGenerateOutline,
	database.JobGenerateDraft,
	database.JobHumanize,
	database.JobSEOOptimize,
	database.JobGenerateMeta,
}

// nextStage returns the successor stage type, or "" for the last stage.
func nextStage(current string) string {
	for i, s := range StageOrder {
		if s == current && i+1 < len(StageOrder) {
			return StageOrder[i+1]
		}
	}
	return ""
}

// loadArticle re-reads the authoritative article row for a stage job.
// Payloads carry only IDs, so stale queue rows can never feed a stage.
func (d *Deps) loadArticle(job *database.Job) (*database.Article, error) {
	if job.ArticleID == nil {
		return nil, fmt.Errorf("job %d (%s) has no article", job.ID, job.Type)
	}
	article, err := d.DB.GetArticle(*job.ArticleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, fmt.Errorf("article %d not found", *job.ArticleID)
	}
	return article, nil
}

func parsePayload(job *database.Job, out any) error {
	if job.Payload == nil {
		return fmt.Errorf("job %d (%s) has no payload", job.ID, job.Type)
	}
	return json.Unmarshal([]byte(*job.Payload), out)
}

func (d *Deps) loadDomain(domainID int64) (*database.Domain, error) {
	domain, err := d.DB.GetDomain(domainID)
	if err != nil {
		return nil, err
	}
	if domain == nil {
		return nil, fmt.Errorf("domain %d not found", domainID)
	}
	return domain, nil
}

// succeed builds the standard stage outcome: summary plus the successor
// job for the next stage, inheriting the current job's priority.
func succeed(job *database.Job, summary string, cost float64) *queue.Result {
	result := &queue.Result{Summary: summary, Cost: cost}
	if next := nextStage(job.Type); next != "" {
		result.Successors = append(result.Successors, queue.SuccessorJob{
			Type:      next,
			ArticleID: job.ArticleID,
			DomainID:  job.DomainID,
			Priority:  job.Priority,
		})
	}
	return result
}

// snapshot captures an article's mutable content fields before an
// AI-mutating stage runs.
type snapshot struct {
	title *string
	body  *string
	meta  *string
}

func takeSnapshot(a *database.Article) snapshot {
	return snapshot{title: a.Title, body: a.Body, meta: a.MetaDescription}
}

// recordRevision persists the before/after pair for one stage, re-reading
// the article so the "after" side reflects what was actually stored.
func (d *Deps) recordRevision(articleID int64, stage string, before snapshot) error {
	after, err := d.DB.GetArticle(articleID)
	if err != nil {
		return err
	}
	if after == nil {
		return fmt.Errorf("article %d disappeared during %s", articleID, stage)
	}
	_, err = d.DB.InsertRevision(database.Revision{
		ArticleID:   articleID,
		Stage:       stage,
		TitleBefore: before.title,
		TitleAfter:  after.Title,
		BodyBefore:  before.body,
		BodyAfter:   after.Body,
		MetaBefore:  before.meta,
		MetaAfter:   after.MetaDescription,
	})
	return err
}
