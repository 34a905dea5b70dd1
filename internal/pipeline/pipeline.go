package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/ContentForge/internal/config"
	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/research"
	"github.com/TobiSchelling/ContentForge/internal/router"
	"github.com/TobiSchelling/ContentForge/internal/stages"
)

// StepResult is the outcome of one executed job.
type StepResult struct {
	JobID   int64
	Type    string
	Summary string
	Err     error
}

// Result holds the results of a synchronous pipeline run.
type Result struct {
	Steps []StepResult
}

// Pipeline owns the wired dependency graph: provider, router, generation
// client, research cache and stage registry. Everything is constructed
// here and injected; no package holds global state.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	deps     *stages.Deps
	registry queue.Registry
}

// New wires the pipeline from configuration.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	r := router.New(cfg.Routing.Overrides, cfg.Routing.ReviewerModel)
	client := llm.NewClient(buildProvider(cfg), r, db,
		cfg.Generation.Temperature, cfg.Generation.MaxTokens)

	live := research.NewLive(client, cfg.Research.FeedURLs, cfg.Research.MaxCompetitors)
	cache := research.NewCache(db, live, cfg.Research.CacheTTLHours)

	deps := &stages.Deps{Cfg: cfg, DB: db, Client: client, Cache: cache}
	return &Pipeline{
		cfg:      cfg,
		db:       db,
		deps:     deps,
		registry: stages.Registry(deps),
	}
}

func buildProvider(cfg *config.Config) llm.Provider {
	timeout := time.Duration(cfg.Generation.TimeoutSecs) * time.Second
	if cfg.Generation.Provider == "ollama" {
		return llm.NewOllamaProvider(cfg.Generation.OllamaURL, timeout)
	}
	return llm.NewOpenAIProvider(cfg.Generation.BaseURL, cfg.Generation.APIKeyEnv, timeout)
}

// NewPool builds the worker pool for the work command.
func (p *Pipeline) NewPool() *queue.Pool {
	return queue.NewPool(p.db, p.registry,
		p.cfg.Queue.Workers,
		time.Duration(p.cfg.Queue.PollIntervalSecs)*time.Second,
		p.cfg.SweepInterval(),
		p.cfg.StaleAge(),
	)
}

// Enqueue creates a draft article for a keyword and queues its first
// stage. The rest of the pipeline advances through successor jobs.
func (p *Pipeline) Enqueue(domainName, keyword string, secondary []string, priority int) (int64, error) {
	domain, err := p.db.GetDomainByName(domainName)
	if err != nil {
		return 0, err
	}
	if domain == nil {
		return 0, fmt.Errorf("domain %q not registered", domainName)
	}

	articleID, err := p.db.InsertArticle(domain.ID, keyword, secondary)
	if err != nil {
		return 0, err
	}
	if _, err := p.db.InsertJob(database.JobResearch, &articleID, domain.ID, nil,
		priority, p.cfg.Queue.MaxAttempts); err != nil {
		return 0, err
	}
	return articleID, nil
}

// EnqueueKeywordResearch queues a topic-discovery job for a domain.
func (p *Pipeline) EnqueueKeywordResearch(domainName string) (int64, error) {
	domain, err := p.db.GetDomainByName(domainName)
	if err != nil {
		return 0, err
	}
	if domain == nil {
		return 0, fmt.Errorf("domain %q not registered", domainName)
	}
	return p.db.InsertJob(database.JobKeywordResearch, nil, domain.ID, nil,
		100, p.cfg.Queue.MaxAttempts)
}

// Run drains the queue synchronously in claim order, one job at a time.
// Used by the run command; the work command uses the pool instead.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}

	// Recover anything a previous crashed run left behind.
	if n, err := p.db.RecoverStaleJobs(int(p.cfg.StaleAge().Seconds())); err == nil && n > 0 {
		log.Printf("recovered %d stale job locks", n)
	}

	for {
		if ctx.Err() != nil {
			return r
		}
		job, err := p.db.ClaimNextJob("run-driver")
		if err != nil {
			r.Steps = append(r.Steps, StepResult{Err: err})
			return r
		}
		if job == nil {
			return r
		}

		step := StepResult{JobID: job.ID, Type: job.Type}
		if err := queue.Execute(ctx, p.db, p.registry, job); err != nil {
			step.Err = err
		} else if settled, err := p.db.GetJob(job.ID); err == nil && settled != nil {
			if settled.Result != nil {
				step.Summary = *settled.Result
			}
			if settled.Status != database.JobCompleted && settled.Error != nil {
				step.Err = fmt.Errorf("%s", *settled.Error)
			}
		}
		r.Steps = append(r.Steps, step)
	}
}

// DryRun reports what a run would process without executing anything.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}
	pending, err := p.db.GetJobsByStatus(database.JobPending)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Err: err})
		return r
	}
	for _, j := range pending {
		article := "no article"
		if j.ArticleID != nil {
			article = fmt.Sprintf("article %d", *j.ArticleID)
		}
		r.Steps = append(r.Steps, StepResult{
			JobID:   j.ID,
			Type:    j.Type,
			Summary: fmt.Sprintf("[dry-run] would process %s (%s, priority %d)", j.Type, article, j.Priority),
		})
	}
	return r
}
