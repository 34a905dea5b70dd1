package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/quality"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/router"
)

const draftPrompt = `Write a complete %s article in markdown for %s, a site about %s.

Target keyword: %s
%s
Follow this outline exactly, one ## section per heading:
%s

Research material. Use the statistics and cite sources inline where they support a claim:
%s

Rules:
- Around %d words of body text.
- Plain, direct prose. Short paragraphs. No filler transitions.
- Use only plain hyphens, never em or en dashes.
- Start with the title as a # heading, then go straight into the content.%s

Respond with ONLY the markdown article, no commentary.`

const calculatorNote = `
- This is a calculator page: describe each input (%s), explain the formula in prose, and keep it brief.`

const comparisonNote = `
- Include one markdown comparison table with these columns: %s.`

// Draft renders the full article body from the persisted outline and
// runs it through the word-count, banned-pattern and burstiness gates.
func (d *Deps) Draft(ctx context.Context, job *database.Job) (*queue.Result, error) {
	article, err := d.loadArticle(job)
	if err != nil {
		return nil, err
	}
	domain, err := d.loadDomain(job.DomainID)
	if err != nil {
		return nil, err
	}
	outline, err := loadOutline(article)
	if err != nil {
		return nil, err
	}

	var typeNote string
	switch {
	case outline.ContentType == TypeCalculator && len(outline.CalculatorInputs) > 0:
		typeNote = fmt.Sprintf(calculatorNote, strings.Join(outline.CalculatorInputs, ", "))
	case outline.ContentType == TypeComparison && len(outline.TableColumns) > 0:
		typeNote = fmt.Sprintf(comparisonNote, strings.Join(outline.TableColumns, ", "))
	}

	before := takeSnapshot(article)
	result, err := d.Client.Generate(ctx,
		fmt.Sprintf(draftPrompt, outline.ContentType, domain.Name, domain.Niche,
			article.Keyword, secondaryKeywordLine(article), renderOutline(outline),
			researchSummary(article, 8), outline.WordTarget, typeNote),
		llm.Options{Task: router.TaskDraft, ArticleID: &article.ID},
	)
	if err != nil {
		return nil, err
	}

	body := quality.SanitizeDashes(result.Content)
	wordCount, err := d.checkGates(article, outline.ContentType, body)
	if err != nil {
		return nil, err
	}

	if err := d.persistBody(article.ID, body, wordCount); err != nil {
		return nil, err
	}
	if err := d.recordRevision(article.ID, "draft", before); err != nil {
		return nil, err
	}

	return succeed(job, fmt.Sprintf("draft: %d words", wordCount), result.Cost), nil
}

// checkGates runs the pre-persistence quality gates and returns the prose
// word count. A violation fails the stage so the queue's retry budget
// drives regeneration.
func (d *Deps) checkGates(article *database.Article, contentType, body string) (int, error) {
	wordCount := quality.WordCount(body)
	if !shortFormType(contentType) && wordCount < d.Cfg.Quality.MinWords {
		return 0, fmt.Errorf("body too short: %d words, need %d", wordCount, d.Cfg.Quality.MinWords)
	}

	if violations := quality.ScanBanned(body); len(violations) > 0 {
		d.recordGateEvent(article, "banned_patterns", violations3(violations))
		return 0, fmt.Errorf("banned patterns present: %s", violations3(violations))
	}

	score := quality.Burstiness(body)
	if score.Sentences >= 5 && score.Score < d.Cfg.Quality.BurstinessThreshold {
		d.recordGateEvent(article, "burstiness",
			fmt.Sprintf("score %.3f below %.2f", score.Score, d.Cfg.Quality.BurstinessThreshold))
		return 0, fmt.Errorf("burstiness %.3f below threshold %.2f",
			score.Score, d.Cfg.Quality.BurstinessThreshold)
	}

	return wordCount, nil
}

// persistBody writes the body with its derived word count, fingerprint
// and duplicate signature in one update.
func (d *Deps) persistBody(articleID int64, body string, wordCount int) error {
	return d.DB.UpdateArticleBody(articleID, body, wordCount,
		quality.Fingerprint(body), quality.Signature(body))
}

func (d *Deps) recordGateEvent(article *database.Article, gate, detail string) {
	_, _ = d.DB.InsertEvent(database.EventGateViolation, &article.ID, &article.DomainID,
		fmt.Sprintf("%s: %s", gate, detail))
}

// violations3 summarizes up to three violations for error text.
func violations3(violations []quality.Violation) string {
	var parts []string
	for i, v := range violations {
		if i == 3 {
			parts = append(parts, fmt.Sprintf("and %d more", len(violations)-3))
			break
		}
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}

// renderOutline formats the outline sections for a prompt.
func renderOutline(o *Outline) string {
	var b strings.Builder
	for _, s := range o.Sections {
		b.WriteString("## " + s.Heading + "\n")
		for _, p := range s.Points {
			b.WriteString("- " + p + "\n")
		}
	}
	return b.String()
}
