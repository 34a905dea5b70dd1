package database

// InsertEvent records a notification/audit event for collaborators.
func (db *DB) InsertEvent(kind string, articleID, domainID *int64, detail string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO events (kind, article_id, domain_id, detail) VALUES (?, ?, ?, ?)`,
		kind, articleID, domainID, detail,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetEvents returns the most recent events of a kind, newest first.
// Pass an empty kind for all events.
func (db *DB) GetEvents(kind string, limit int) ([]Event, error) {
	query := `SELECT id, kind, article_id, domain_id, detail, created_at FROM events`
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.ArticleID, &e.DomainID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
