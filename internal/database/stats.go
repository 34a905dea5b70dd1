package database

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM domains", &s.Domains},
		{"SELECT COUNT(*) FROM articles", &s.TotalArticles},
		{"SELECT COUNT(*) FROM articles WHERE status = 'review'", &s.InReview},
		{"SELECT COUNT(*) FROM articles WHERE status = 'approved'", &s.Approved},
		{"SELECT COUNT(*) FROM jobs WHERE status = 'pending'", &s.PendingJobs},
		{"SELECT COUNT(*) FROM jobs WHERE status = 'processing'", &s.ProcessingJobs},
		{"SELECT COUNT(*) FROM jobs WHERE status = 'failed'", &s.FailedJobs},
		{"SELECT COUNT(*) FROM generation_calls", &s.GenerationCalls},
		{"SELECT COUNT(*) FROM research_cache", &s.CacheEntries},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	if err := db.conn.QueryRow(
		"SELECT COALESCE(SUM(cost), 0) FROM generation_calls",
	).Scan(&s.TotalCost); err != nil {
		return nil, err
	}

	return s, nil
}
