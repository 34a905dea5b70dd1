package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/ContentForge/internal/database"
)

// Pool runs a fixed set of workers that claim and execute jobs, plus a
// ticker-driven sweeper that recovers stale processing locks.
type Pool struct {
	db           *database.DB
	registry     Registry
	workerCount  int
	pollInterval time.Duration
	sweepEvery   time.Duration
	staleAge     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool over the given handler registry.
func NewPool(db *database.DB, reg Registry, workerCount int, pollInterval, sweepEvery, staleAge time.Duration) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		db:           db,
		registry:     reg,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		sweepEvery:   sweepEvery,
		staleAge:     staleAge,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the workers and the stale-lock sweeper.
func (p *Pool) Start() {
	log.Printf("Starting worker pool: %d workers, poll every %v", p.workerCount, p.pollInterval)

	for i := 0; i < p.workerCount; i++ {
		workerID := "worker-" + uuid.NewString()[:8]
		p.wg.Add(1)
		go p.worker(workerID)
	}

	if p.sweepEvery > 0 {
		p.wg.Add(1)
		go p.sweeper()
	}
}

// Stop cancels all workers and waits for in-flight jobs to settle.
func (p *Pool) Stop() {
	log.Println("Stopping worker pool...")
	p.cancel()
	p.wg.Wait()
	log.Println("Worker pool stopped")
}

func (p *Pool) worker(workerID string) {
	defer p.wg.Done()
	log.Printf("%s started", workerID)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		// Drain claimable work before sleeping.
		for {
			if p.ctx.Err() != nil {
				log.Printf("%s stopping", workerID)
				return
			}
			job, err := p.db.ClaimNextJob(workerID)
			if err != nil {
				log.Printf("%s claim error: %v", workerID, err)
				break
			}
			if job == nil {
				break
			}
			p.run(workerID, job)
		}

		select {
		case <-p.ctx.Done():
			log.Printf("%s stopping", workerID)
			return
		case <-ticker.C:
		}
	}
}

func (p *Pool) run(workerID string, job *database.Job) {
	start := time.Now()
	log.Printf("%s processing job %d (%s)", workerID, job.ID, job.Type)

	if err := Execute(p.ctx, p.db, p.registry, job); err != nil {
		log.Printf("%s could not settle job %d: %v", workerID, job.ID, err)
		return
	}
	log.Printf("%s finished job %d in %v", workerID, job.ID, time.Since(start).Round(time.Millisecond))
}

func (p *Pool) sweeper() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			n, err := p.db.RecoverStaleJobs(int(p.staleAge.Seconds()))
			if err != nil {
				log.Printf("stale lock sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("recovered %d stale job locks", n)
			}
		}
	}
}
