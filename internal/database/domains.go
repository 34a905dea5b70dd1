package database

import "database/sql"

// InsertDomain inserts a domain. Returns the ID.
func (db *DB) InsertDomain(name, niche string, priority int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO domains (name, niche, priority) VALUES (?, ?, ?)`,
		name, niche, priority,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetDomain returns a domain by ID.
func (db *DB) GetDomain(id int64) (*Domain, error) {
	row := db.conn.QueryRow(
		`SELECT id, name, niche, voice_seed, priority, internal_linking, ai_reviewer, created_at
		FROM domains WHERE id = ?`, id,
	)
	return scanDomain(row)
}

// GetDomainByName returns a domain by name.
func (db *DB) GetDomainByName(name string) (*Domain, error) {
	row := db.conn.QueryRow(
		`SELECT id, name, niche, voice_seed, priority, internal_linking, ai_reviewer, created_at
		FROM domains WHERE name = ?`, name,
	)
	return scanDomain(row)
}

// GetAllDomains returns all domains ordered by name.
func (db *DB) GetAllDomains() ([]Domain, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, niche, voice_seed, priority, internal_linking, ai_reviewer, created_at
		FROM domains ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []Domain
	for rows.Next() {
		var d Domain
		var linking, reviewer int
		if err := rows.Scan(&d.ID, &d.Name, &d.Niche, &d.VoiceSeed, &d.Priority,
			&linking, &reviewer, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.InternalLinking = linking != 0
		d.AIReviewer = reviewer != 0
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// SetVoiceSeed persists the per-domain voice seed. Written once, then stable.
func (db *DB) SetVoiceSeed(domainID int64, seed string) error {
	_, err := db.conn.Exec("UPDATE domains SET voice_seed = ? WHERE id = ?", seed, domainID)
	return err
}

// SetDomainFlags updates the per-domain feature flags.
func (db *DB) SetDomainFlags(domainID int64, internalLinking, aiReviewer bool) error {
	_, err := db.conn.Exec(
		"UPDATE domains SET internal_linking = ?, ai_reviewer = ? WHERE id = ?",
		boolToInt(internalLinking), boolToInt(aiReviewer), domainID,
	)
	return err
}

func scanDomain(row *sql.Row) (*Domain, error) {
	var d Domain
	var linking, reviewer int
	if err := row.Scan(&d.ID, &d.Name, &d.Niche, &d.VoiceSeed, &d.Priority,
		&linking, &reviewer, &d.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.InternalLinking = linking != 0
	d.AIReviewer = reviewer != 0
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
