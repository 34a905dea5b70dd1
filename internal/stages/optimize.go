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

const optimizePrompt = `Tune this article for search without making it read optimized.

Target keyword: %s (current density %.1f per 1000 words, aim for 3-6)
%s
Work the keyword into headings and body where it fits naturally. Never stuff it; rephrase around it instead. Keep the structure, facts and voice exactly as they are. Use only plain hyphens, never em or en dashes.

Article:
%s

Respond with ONLY the optimized markdown article, no commentary.`

// maxInternalLinks caps how many related articles get appended.
const maxInternalLinks = 3

// Optimize runs the keyword-density pass and, when the domain has
// internal linking enabled, appends links to published articles of the
// same domain.
func (d *Deps) Optimize(ctx context.Context, job *database.Job) (*queue.Result, error) {
	article, err := d.loadArticle(job)
	if err != nil {
		return nil, err
	}
	domain, err := d.loadDomain(job.DomainID)
	if err != nil {
		return nil, err
	}
	if article.Body == nil || *article.Body == "" {
		return nil, fmt.Errorf("article %d has no body to optimize", article.ID)
	}

	density := keywordDensity(*article.Body, article.Keyword)
	before := takeSnapshot(article)

	result, err := d.Client.Generate(ctx,
		fmt.Sprintf(optimizePrompt, article.Keyword, density,
			secondaryKeywordLine(article), *article.Body),
		llm.Options{Task: router.TaskOptimize, ArticleID: &article.ID},
	)
	if err != nil {
		return nil, err
	}

	body := quality.SanitizeDashes(result.Content)

	linked := 0
	if d.Cfg.Features.InternalLinking && domain.InternalLinking {
		body, linked, err = d.appendInternalLinks(body, domain, article.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := d.persistBody(article.ID, body, quality.WordCount(body)); err != nil {
		return nil, err
	}
	if err := d.recordRevision(article.ID, "optimize", before); err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("optimized: density %.1f, %d internal links", density, linked)
	return succeed(job, summary, result.Cost), nil
}

// appendInternalLinks adds a related-reading section pointing at
// published articles of the same domain. Candidates without a slug or
// title are skipped; the article never links to itself.
func (d *Deps) appendInternalLinks(body string, domain *database.Domain, selfID int64) (string, int, error) {
	candidates, err := d.DB.GetPublishedArticles(domain.ID)
	if err != nil {
		return body, 0, err
	}

	var links []string
	for _, c := range candidates {
		if c.ID == selfID || c.Slug == nil || c.Title == nil {
			continue
		}
		links = append(links, fmt.Sprintf("- [%s](/%s)", *c.Title, *c.Slug))
		if len(links) == maxInternalLinks {
			break
		}
	}
	if len(links) == 0 {
		return body, 0, nil
	}

	body = strings.TrimRight(body, "\n") + "\n\n## Related reading\n\n" +
		strings.Join(links, "\n") + "\n"
	return body, len(links), nil
}

// keywordDensity counts keyword occurrences per 1000 prose words.
func keywordDensity(body, keyword string) float64 {
	words := quality.WordCount(body)
	if words == 0 {
		return 0
	}
	hits := strings.Count(strings.ToLower(body), strings.ToLower(keyword))
	return float64(hits) / float64(words) * 1000
}
