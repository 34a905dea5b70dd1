package database

import "database/sql"

// InsertCacheEntry writes an immutable research cache row.
func (db *DB) InsertCacheEntry(queryHash, queryText, payload string, sourceModel *string, domainPriority, ttlHours int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO research_cache
		(query_hash, query_text, payload, source_model, domain_priority, expires_at)
		VALUES (?, ?, ?, ?, ?, datetime('now', '+' || ? || ' hours'))`,
		queryHash, queryText, payload, sourceModel, domainPriority, ttlHours,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetFreshCacheEntries returns unexpired entries for a query hash whose
// domain priority is at least minPriority. Expired or lower-priority rows
// are skipped, not deleted; pruning is a housekeeping concern.
func (db *DB) GetFreshCacheEntries(queryHash string, minPriority int) ([]CacheEntry, error) {
	rows, err := db.conn.Query(
		`SELECT id, query_hash, query_text, payload, source_model, domain_priority, fetched_at, expires_at
		FROM research_cache
		WHERE query_hash = ? AND domain_priority >= ?
		AND (expires_at IS NULL OR expires_at > datetime('now'))
		ORDER BY id ASC`,
		queryHash, minPriority,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCacheEntries(rows)
}

// PruneExpiredCacheEntries deletes rows past expiry. Run from housekeeping
// only; read paths never delete.
func (db *DB) PruneExpiredCacheEntries() (int, error) {
	result, err := db.conn.Exec(
		`DELETE FROM research_cache WHERE expires_at IS NOT NULL AND expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func scanCacheEntries(rows *sql.Rows) ([]CacheEntry, error) {
	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		if err := rows.Scan(&e.ID, &e.QueryHash, &e.QueryText, &e.Payload,
			&e.SourceModel, &e.DomainPriority, &e.FetchedAt, &e.ExpiresAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
