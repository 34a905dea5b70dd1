package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/ContentForge/internal/database"
)

// Handler processes one claimed job and reports its outcome.
type Handler func(ctx context.Context, job *database.Job) (*Result, error)

// Registry maps a job type to its handler.
type Registry map[string]Handler

// SuccessorJob describes the next pipeline stage a handler wants enqueued.
type SuccessorJob struct {
	Type        string
	ArticleID   *int64
	DomainID    int64
	Payload     *string
	Priority    int
	MaxAttempts int
}

// Result is a successful handler outcome.
type Result struct {
	Summary    string
	Cost       float64
	DurationMs int64
	Successors []SuccessorJob
}

// Execute runs one claimed job through its handler and settles the job
// row. Successors are enqueued before the job is marked completed, so a
// crash between the two leaves a duplicate stage rather than a hole in
// the pipeline. On terminal failure the article reverts to draft and a
// failure event is recorded.
func Execute(ctx context.Context, db *database.DB, reg Registry, job *database.Job) error {
	handler, ok := reg[job.Type]
	if !ok {
		return settleFailure(db, job, fmt.Sprintf("no handler registered for job type %s", job.Type))
	}

	start := time.Now()
	result, err := handler(ctx, job)
	if err != nil {
		return settleFailure(db, job, err.Error())
	}
	if result == nil {
		result = &Result{}
	}

	for _, s := range result.Successors {
		maxAttempts := s.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = job.MaxAttempts
		}
		if _, err := db.InsertJob(s.Type, s.ArticleID, s.DomainID, s.Payload, s.Priority, maxAttempts); err != nil {
			return settleFailure(db, job, fmt.Sprintf("enqueue successor %s: %v", s.Type, err))
		}
	}

	durationMs := result.DurationMs
	if durationMs == 0 {
		durationMs = time.Since(start).Milliseconds()
	}
	return db.CompleteJob(job.ID, result.Summary, result.Cost, durationMs)
}

func settleFailure(db *database.DB, job *database.Job, errMsg string) error {
	terminal, err := db.FailJob(job.ID, errMsg)
	if err != nil {
		return err
	}
	if !terminal {
		log.Printf("job %d (%s) failed, will retry: %s", job.ID, job.Type, errMsg)
		return nil
	}

	log.Printf("job %d (%s) failed terminally: %s", job.ID, job.Type, errMsg)
	if job.ArticleID != nil {
		if err := db.SetArticleStatus(*job.ArticleID, database.StatusDraft); err != nil {
			log.Printf("failed to revert article %d to draft: %v", *job.ArticleID, err)
		}
	}
	detail := fmt.Sprintf("job %s failed after %d attempts: %s", job.Type, job.MaxAttempts, errMsg)
	if _, err := db.InsertEvent(database.EventJobFailed, job.ArticleID, &job.DomainID, detail); err != nil {
		log.Printf("failed to record failure event for job %d: %v", job.ID, err)
	}
	return nil
}
