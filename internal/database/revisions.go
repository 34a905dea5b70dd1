package database

// InsertRevision stores a before/after snapshot for an AI-mutating stage.
func (db *DB) InsertRevision(r Revision) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO revisions
		(article_id, stage, title_before, title_after, body_before, body_after, meta_before, meta_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ArticleID, r.Stage, r.TitleBefore, r.TitleAfter,
		r.BodyBefore, r.BodyAfter, r.MetaBefore, r.MetaAfter,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRevisions returns all revisions for an article, oldest first.
func (db *DB) GetRevisions(articleID int64) ([]Revision, error) {
	rows, err := db.conn.Query(
		`SELECT id, article_id, stage, title_before, title_after,
		body_before, body_after, meta_before, meta_after, created_at
		FROM revisions WHERE article_id = ? ORDER BY id ASC`, articleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.ArticleID, &r.Stage, &r.TitleBefore, &r.TitleAfter,
			&r.BodyBefore, &r.BodyAfter, &r.MetaBefore, &r.MetaAfter, &r.CreatedAt); err != nil {
			return nil, err
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}
