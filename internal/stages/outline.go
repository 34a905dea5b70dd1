package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/research"
	"github.com/TobiSchelling/ContentForge/internal/router"
)

const outlinePrompt = `You are planning a %s article for %s, a site about %s.

Target keyword: %s
Word target: around %d words.
%s
Research findings to work from:
%s

Plan a structure that answers the searcher's intent directly. Front-load the answer; no throat-clearing intro sections.

Respond with ONLY this JSON:
{
    "working_title": "a specific, non-clickbait title",
    "sections": [
        {"heading": "section heading", "points": ["concrete point to cover", "another point"]}
    ],
    "calculator_inputs": ["input field name"],
    "table_columns": ["comparison column name"]
}
Leave calculator_inputs empty unless this is a calculator page; leave table_columns empty unless this is a comparison.`

// Outline is the persisted plan the draft stage renders from.
type Outline struct {
	WorkingTitle     string           `json:"working_title"`
	ContentType      string           `json:"content_type"`
	WordTarget       int              `json:"word_target"`
	Sections         []OutlineSection `json:"sections"`
	CalculatorInputs []string         `json:"calculator_inputs,omitempty"`
	TableColumns     []string         `json:"table_columns,omitempty"`
}

// OutlineSection is one planned heading with the points it must cover.
type OutlineSection struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points"`
}

// Outline classifies the article's content type, generates the heading
// plan and per-type configuration, and persists both on the article row.
func (d *Deps) Outline(ctx context.Context, job *database.Job) (*queue.Result, error) {
	article, err := d.loadArticle(job)
	if err != nil {
		return nil, err
	}
	domain, err := d.loadDomain(job.DomainID)
	if err != nil {
		return nil, err
	}

	contentType := ClassifyContentType(article.Keyword)
	if err := d.DB.UpdateArticleContentType(article.ID, contentType); err != nil {
		return nil, err
	}

	target := wordTarget(contentType, d.Cfg.Quality.MinWords)
	before := takeSnapshot(article)

	var generated Outline
	result, err := d.Client.GenerateStructured(ctx,
		fmt.Sprintf(outlinePrompt, contentType, domain.Name, domain.Niche,
			article.Keyword, target, secondaryKeywordLine(article),
			researchSummary(article, 8)),
		llm.Options{Task: router.TaskOutline, ArticleID: &article.ID},
		&generated,
	)
	if err != nil {
		return nil, err
	}
	if len(generated.Sections) == 0 {
		return nil, fmt.Errorf("outline for article %d came back without sections", article.ID)
	}

	generated.ContentType = contentType
	generated.WordTarget = target

	raw, err := json.Marshal(generated)
	if err != nil {
		return nil, err
	}
	if err := d.DB.UpdateArticleOutline(article.ID, string(raw)); err != nil {
		return nil, err
	}
	if err := d.recordRevision(article.ID, "outline", before); err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("outline: %d sections, %s, target %d words",
		len(generated.Sections), contentType, target)
	return succeed(job, summary, result.Cost), nil
}

// loadOutline parses the persisted outline for a downstream stage.
func loadOutline(article *database.Article) (*Outline, error) {
	if article.OutlineJSON == nil || *article.OutlineJSON == "" {
		return nil, fmt.Errorf("article %d has no outline", article.ID)
	}
	var o Outline
	if err := json.Unmarshal([]byte(*article.OutlineJSON), &o); err != nil {
		return nil, fmt.Errorf("article %d outline unparseable: %w", article.ID, err)
	}
	return &o, nil
}

// secondaryKeywordLine formats the article's secondary keywords for a
// prompt, or an empty string when there are none.
func secondaryKeywordLine(article *database.Article) string {
	if len(article.SecondaryKeywords) == 0 {
		return ""
	}
	return "Secondary keywords to work in: " + strings.Join(article.SecondaryKeywords, ", ") + "\n"
}

// researchSummary renders the stored research findings as prompt
// material, capping each list so prompts stay bounded.
func researchSummary(article *database.Article, perList int) string {
	if article.ResearchJSON == nil {
		return "(no research available)"
	}
	data, err := research.ParseData(*article.ResearchJSON)
	if err != nil {
		return "(no research available)"
	}

	var b strings.Builder
	writeList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		if len(items) > perList {
			items = items[:perList]
		}
		b.WriteString(label + ":\n")
		for _, item := range items {
			b.WriteString("- " + item + "\n")
		}
	}
	writeList("Statistics", data.Statistics)
	writeList("Quotes", data.Quotes)
	writeList("Competing articles cover", data.CompetitorAngles)

	if len(data.Sources) > 0 {
		sources := data.Sources
		if len(sources) > perList {
			sources = sources[:perList]
		}
		b.WriteString("Sources:\n")
		for _, s := range sources {
			b.WriteString(fmt.Sprintf("- %s (%s)\n", s.Title, s.URL))
		}
	}

	if b.Len() == 0 {
		return "(no research available)"
	}
	return b.String()
}
