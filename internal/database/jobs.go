package database

import (
	"database/sql"
	"fmt"
)

const jobColumns = `id, type, article_id, domain_id, status, priority, attempts, max_attempts,
	payload, result, error, cost, duration_ms, claimed_by, claimed_at, started_at, completed_at, created_at`

// InsertJob enqueues a job in pending status. Returns the ID.
func (db *DB) InsertJob(jobType string, articleID *int64, domainID int64, payload *string, priority, maxAttempts int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO jobs (type, article_id, domain_id, status, priority, payload, max_attempts)
		VALUES (?, ?, ?, 'pending', ?, ?, ?)`,
		jobType, articleID, domainID, priority, payload, maxAttempts,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetJob returns a job by ID, or nil if absent.
func (db *DB) GetJob(jobID int64) (*Job, error) {
	row := db.conn.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// ClaimNextJob atomically moves the best pending job to processing for the
// given worker. The claim is a compare-and-set on status; losing a race
// simply means trying the next candidate. Articles with a job already
// processing are skipped so one article advances one stage at a time.
// Returns nil when no claimable work exists.
func (db *DB) ClaimNextJob(workerID string) (*Job, error) {
	for i := 0; i < 5; i++ {
		row := db.conn.QueryRow(
			`SELECT id FROM jobs
			WHERE status = 'pending'
			AND (article_id IS NULL OR article_id NOT IN
				(SELECT article_id FROM jobs WHERE status = 'processing' AND article_id IS NOT NULL))
			ORDER BY priority ASC, id ASC LIMIT 1`,
		)
		var id int64
		if err := row.Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, err
		}

		claimed, err := db.claimJob(id, workerID)
		if err != nil {
			return nil, err
		}
		if claimed {
			return db.GetJob(id)
		}
		// Lost the race, pick again.
	}
	return nil, nil
}

// claimJob is the compare-and-set half of ClaimNextJob. The article
// exclusion is re-checked inside the UPDATE: two workers holding
// candidates for the same article must not both win, or two stages
// would mutate the article concurrently.
func (db *DB) claimJob(jobID int64, workerID string) (bool, error) {
	result, err := db.conn.Exec(
		`UPDATE jobs SET status = 'processing', claimed_by = ?, claimed_at = datetime('now'),
		started_at = COALESCE(started_at, datetime('now'))
		WHERE id = ? AND status = 'pending'
		AND (article_id IS NULL OR article_id NOT IN
			(SELECT article_id FROM jobs WHERE status = 'processing' AND article_id IS NOT NULL))`,
		workerID, jobID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteJob marks a processing job completed with a result summary and
// telemetry. Callers must have already enqueued any successor job.
func (db *DB) CompleteJob(jobID int64, result string, cost float64, durationMs int64) error {
	res, err := db.conn.Exec(
		`UPDATE jobs SET status = 'completed', result = ?, cost = ?, duration_ms = ?,
		completed_at = datetime('now') WHERE id = ? AND status = 'processing'`,
		result, cost, durationMs, jobID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %d is not processing", jobID)
	}
	return nil
}

// FailJob records a failure. The job returns to pending while attempts
// remain, otherwise it becomes terminally failed.
func (db *DB) FailJob(jobID int64, errMsg string) (terminal bool, err error) {
	j, err := db.GetJob(jobID)
	if err != nil {
		return false, err
	}
	if j == nil {
		return false, fmt.Errorf("job %d not found", jobID)
	}

	attempts := j.Attempts + 1
	status := JobPending
	if attempts >= j.MaxAttempts {
		status = JobFailed
	}

	_, err = db.conn.Exec(
		`UPDATE jobs SET status = ?, attempts = ?, error = ?, claimed_by = NULL, claimed_at = NULL,
		completed_at = CASE WHEN ? = 'failed' THEN datetime('now') ELSE completed_at END
		WHERE id = ?`,
		status, attempts, errMsg, status, jobID,
	)
	if err != nil {
		return false, err
	}
	return status == JobFailed, nil
}

// RecoverStaleJobs resets jobs stuck in processing strictly longer than
// maxAgeSecs, incrementing their attempt count. Returns how many were reset.
func (db *DB) RecoverStaleJobs(maxAgeSecs int) (int, error) {
	result, err := db.conn.Exec(
		`UPDATE jobs SET status = 'pending', attempts = attempts + 1,
		claimed_by = NULL, claimed_at = NULL, error = 'stale lock recovered'
		WHERE status = 'processing'
		AND claimed_at IS NOT NULL
		AND (julianday('now') - julianday(claimed_at)) * 86400.0 > ?`,
		float64(maxAgeSecs),
	)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// GetJobsByStatus returns jobs with the given status, oldest first.
func (db *DB) GetJobsByStatus(status string) ([]Job, error) {
	rows, err := db.conn.Query(
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id ASC`, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// GetJobsForArticle returns all jobs for an article, oldest first.
func (db *DB) GetJobsForArticle(articleID int64) ([]Job, error) {
	rows, err := db.conn.Query(
		`SELECT `+jobColumns+` FROM jobs WHERE article_id = ? ORDER BY id ASC`, articleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CountPendingJobs returns how many pending jobs exist for a job type.
func (db *DB) CountPendingJobs(jobType string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE type = ? AND status = 'pending'`, jobType,
	).Scan(&n)
	return n, err
}

// CountPendingJobsMatching returns how many pending jobs of a type carry
// the needle in their payload. Used to deduplicate per-query work.
func (db *DB) CountPendingJobsMatching(jobType, payloadNeedle string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE type = ? AND status = 'pending'
		AND payload LIKE '%' || ? || '%'`, jobType, payloadNeedle,
	).Scan(&n)
	return n, err
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Type, &j.ArticleID, &j.DomainID, &j.Status, &j.Priority,
			&j.Attempts, &j.MaxAttempts, &j.Payload, &j.Result, &j.Error, &j.Cost, &j.DurationMs,
			&j.ClaimedBy, &j.ClaimedAt, &j.StartedAt, &j.CompletedAt, &j.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	if err := row.Scan(&j.ID, &j.Type, &j.ArticleID, &j.DomainID, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.Payload, &j.Result, &j.Error, &j.Cost, &j.DurationMs,
		&j.ClaimedBy, &j.ClaimedAt, &j.StartedAt, &j.CompletedAt, &j.CreatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}
