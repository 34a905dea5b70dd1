package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const articleColumns = `id, domain_id, keyword, secondary_keywords, content_type, status,
	title, slug, meta_description, body_md, word_count, research_json, outline_json,
	generation_passes, fingerprint, signature_json, risk_level, created_at, updated_at`

// InsertArticle creates a new article in draft status. Returns the ID.
func (db *DB) InsertArticle(domainID int64, keyword string, secondaryKeywords []string) (int64, error) {
	kwJSON, err := marshalStrings(secondaryKeywords)
	if err != nil {
		return 0, err
	}
	result, err := db.conn.Exec(
		`INSERT INTO articles (domain_id, keyword, secondary_keywords, status)
		VALUES (?, ?, ?, 'draft')`,
		domainID, keyword, kwJSON,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetArticle returns a single article by ID, or nil if absent.
func (db *DB) GetArticle(articleID int64) (*Article, error) {
	row := db.conn.QueryRow(
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, articleID,
	)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetPublishedArticles returns published articles for a domain, used as
// internal-link candidates.
func (db *DB) GetPublishedArticles(domainID int64) ([]Article, error) {
	return db.queryArticles(
		`SELECT `+articleColumns+` FROM articles
		WHERE domain_id = ? AND status = 'published' ORDER BY updated_at DESC`, domainID,
	)
}

// GetArticlesByStatus returns articles with the given status, newest first.
func (db *DB) GetArticlesByStatus(status string) ([]Article, error) {
	return db.queryArticles(
		`SELECT `+articleColumns+` FROM articles WHERE status = ? ORDER BY updated_at DESC`, status,
	)
}

// GetArticlesWithSignatures returns all articles that carry a duplicate
// signature, for cross-domain comparison.
func (db *DB) GetArticlesWithSignatures() ([]Article, error) {
	return db.queryArticles(
		`SELECT ` + articleColumns + ` FROM articles WHERE signature_json IS NOT NULL`,
	)
}

// UpdateArticleBody writes a new body together with its word count,
// fingerprint and duplicate signature. These four always move together.
func (db *DB) UpdateArticleBody(articleID int64, body string, wordCount int, fingerprint string, signature []uint64) error {
	sigJSON, err := marshalSignature(signature)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		`UPDATE articles SET body_md = ?, word_count = ?, fingerprint = ?, signature_json = ?,
		generation_passes = generation_passes + 1, updated_at = datetime('now') WHERE id = ?`,
		body, wordCount, fingerprint, sigJSON, articleID,
	)
	return err
}

// UpdateArticleResearch stores the structured research payload.
func (db *DB) UpdateArticleResearch(articleID int64, researchJSON string) error {
	_, err := db.conn.Exec(
		`UPDATE articles SET research_json = ?, updated_at = datetime('now') WHERE id = ?`,
		researchJSON, articleID,
	)
	return err
}

// UpdateArticleContentType stores the content type chosen at outline time.
func (db *DB) UpdateArticleContentType(articleID int64, contentType string) error {
	_, err := db.conn.Exec(
		`UPDATE articles SET content_type = ?, updated_at = datetime('now') WHERE id = ?`,
		contentType, articleID,
	)
	return err
}

// UpdateArticleOutline stores the structured outline payload.
func (db *DB) UpdateArticleOutline(articleID int64, outlineJSON string) error {
	_, err := db.conn.Exec(
		`UPDATE articles SET outline_json = ?, updated_at = datetime('now') WHERE id = ?`,
		outlineJSON, articleID,
	)
	return err
}

// UpdateArticleMeta stores title, slug, meta description and risk level.
func (db *DB) UpdateArticleMeta(articleID int64, title, slug, metaDescription, riskLevel string) error {
	_, err := db.conn.Exec(
		`UPDATE articles SET title = ?, slug = ?, meta_description = ?, risk_level = ?,
		updated_at = datetime('now') WHERE id = ?`,
		title, slug, metaDescription, riskLevel, articleID,
	)
	return err
}

// SetArticleStatus transitions an article's lifecycle status. Moving to
// review or approved requires a non-empty body and a fingerprint.
func (db *DB) SetArticleStatus(articleID int64, status string) error {
	if status == StatusReview || status == StatusApproved {
		a, err := db.GetArticle(articleID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("article %d not found", articleID)
		}
		if a.Body == nil || *a.Body == "" {
			return fmt.Errorf("article %d cannot enter %s with empty body", articleID, status)
		}
		if a.Fingerprint == nil {
			return fmt.Errorf("article %d cannot enter %s without fingerprint", articleID, status)
		}
	}
	_, err := db.conn.Exec(
		`UPDATE articles SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, articleID,
	)
	return err
}

func (db *DB) queryArticles(query string, args ...any) ([]Article, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticleRows(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row *sql.Row) (*Article, error)       { return scanArticleFrom(row) }
func scanArticleRows(rows *sql.Rows) (*Article, error) { return scanArticleFrom(rows) }

func scanArticleFrom(s rowScanner) (*Article, error) {
	var a Article
	var kwJSON, sigJSON *string
	if err := s.Scan(&a.ID, &a.DomainID, &a.Keyword, &kwJSON, &a.ContentType, &a.Status,
		&a.Title, &a.Slug, &a.MetaDescription, &a.Body, &a.WordCount, &a.ResearchJSON,
		&a.OutlineJSON, &a.GenerationPasses, &a.Fingerprint, &sigJSON, &a.RiskLevel,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if kwJSON != nil {
		if err := json.Unmarshal([]byte(*kwJSON), &a.SecondaryKeywords); err != nil {
			a.SecondaryKeywords = nil
		}
	}
	if sigJSON != nil {
		if err := json.Unmarshal([]byte(*sigJSON), &a.Signature); err != nil {
			a.Signature = nil
		}
	}
	return &a, nil
}

func marshalStrings(values []string) (*string, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func marshalSignature(sig []uint64) (*string, error) {
	if sig == nil {
		return nil, nil
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}
