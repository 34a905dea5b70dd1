package database

// InsertGenerationCall appends an audit row for one provider invocation.
// Rows are never updated after insert.
func (db *DB) InsertGenerationCall(c GenerationCall) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO generation_calls
		(article_id, task_key, resolved_model, prompt_version, routing_version,
		fallback_used, prompt_hash, prompt_body, input_tokens, output_tokens, cost, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ArticleID, c.TaskKey, c.ResolvedModel, c.PromptVersion, c.RoutingVersion,
		boolToInt(c.FallbackUsed), c.PromptHash, c.PromptBody,
		c.InputTokens, c.OutputTokens, c.Cost, c.DurationMs, c.ErrorNote,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetGenerationCalls returns all call records for an article, oldest first.
func (db *DB) GetGenerationCalls(articleID int64) ([]GenerationCall, error) {
	rows, err := db.conn.Query(
		`SELECT id, article_id, task_key, resolved_model, prompt_version, routing_version,
		fallback_used, prompt_hash, prompt_body, input_tokens, output_tokens, cost, duration_ms, error, created_at
		FROM generation_calls WHERE article_id = ? ORDER BY id ASC`, articleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []GenerationCall
	for rows.Next() {
		var c GenerationCall
		var fallback int
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.TaskKey, &c.ResolvedModel, &c.PromptVersion,
			&c.RoutingVersion, &fallback, &c.PromptHash, &c.PromptBody,
			&c.InputTokens, &c.OutputTokens, &c.Cost, &c.DurationMs, &c.ErrorNote, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.FallbackUsed = fallback != 0
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
