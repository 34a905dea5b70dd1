package stages

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/quality"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/router"
)

const metaPrompt = `Write the title and meta description for this article.

Target keyword: %s
Article:
%s

The title must contain the keyword, stay under 60 characters, and promise exactly what the article delivers. The meta description must stay under 155 characters and give the searcher a reason to click without clickbait.

Respond with ONLY this JSON:
{"title": "...", "meta_description": "..."}`

const reviewPrompt = `You are the final editorial reviewer for an article about to be published on %s.

Check for: factual claims without support, keyword stuffing, robotic phrasing, thin sections, anything a careful human editor would bounce.

Article title: %s
Article:
%s

Respond with ONLY this JSON:
{"verdict": "approve" or "reject", "flags": ["specific problem", ...], "human_review_required": true or false}`

// riskRules classify topic sensitivity. Money and health topics carry
// the highest review burden regardless of the reviewer verdict.
var riskRules = []struct {
	level   string
	pattern *regexp.Regexp
}{
	{"high", regexp.MustCompile(`(?i)\b(medical|health|symptom|treatment|medication|dosage|diagnosis|loan|mortgage|invest|investment|insurance|tax|taxes|credit|retirement|legal|lawyer|lawsuit)\b`)},
	{"medium", regexp.MustCompile(`(?i)\b(diet|supplement|fitness|safety|money|salary|cost|pricing|career|visa|immigration)\b`)},
}

// classifyRisk maps a keyword and niche onto low, medium or high.
func classifyRisk(keyword, niche string) string {
	text := keyword + " " + niche
	for _, rule := range riskRules {
		if rule.pattern.MatchString(text) {
			return rule.level
		}
	}
	return "low"
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a title into a URL slug, capped at 80 characters on a
// word boundary.
func slugify(title string) string {
	slug := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > 80 {
		slug = slug[:80]
		if i := strings.LastIndex(slug, "-"); i > 0 {
			slug = slug[:i]
		}
	}
	return slug
}

// reviewVerdict is the structured reviewer response.
type reviewVerdict struct {
	Verdict             string   `json:"verdict"`
	Flags               []string `json:"flags"`
	HumanReviewRequired bool     `json:"human_review_required"`
}

// Finalize derives title, meta description and slug, classifies risk,
// runs the cross-domain duplicate sweep, consults the optional reviewer
// model and sets the article's final status. The last stage enqueues no
// successor.
func (d *Deps) Finalize(ctx context.Context, job *database.Job) (*queue.Result, error) {
	article, err := d.loadArticle(job)
	if err != nil {
		return nil, err
	}
	domain, err := d.loadDomain(job.DomainID)
	if err != nil {
		return nil, err
	}
	if article.Body == nil || *article.Body == "" {
		return nil, fmt.Errorf("article %d has no body to finalize", article.ID)
	}

	before := takeSnapshot(article)

	var meta struct {
		Title           string `json:"title"`
		MetaDescription string `json:"meta_description"`
	}
	result, err := d.Client.GenerateStructured(ctx,
		fmt.Sprintf(metaPrompt, article.Keyword, *article.Body),
		llm.Options{Task: router.TaskMeta, ArticleID: &article.ID},
		&meta,
	)
	if err != nil {
		return nil, err
	}
	if meta.Title == "" {
		return nil, fmt.Errorf("meta generation for article %d returned no title", article.ID)
	}

	riskLevel := classifyRisk(article.Keyword, domain.Niche)
	title := quality.SanitizeDashes(meta.Title)
	description := quality.SanitizeDashes(meta.MetaDescription)
	if err := d.DB.UpdateArticleMeta(article.ID, title, slugify(title), description, riskLevel); err != nil {
		return nil, err
	}

	duplicates := d.duplicateSweep(article)

	status := database.StatusReview
	verdict := "human review"
	if d.Cfg.Features.AIReviewer && domain.AIReviewer {
		if d.autoApprove(ctx, article, domain, title) {
			status = database.StatusApproved
			verdict = "auto-approved"
		}
	}
	if err := d.DB.SetArticleStatus(article.ID, status); err != nil {
		return nil, err
	}
	if status == database.StatusReview {
		if _, err := d.DB.InsertEvent(database.EventReviewNeeded, &article.ID, &article.DomainID,
			fmt.Sprintf("%q is ready for human review", title)); err != nil {
			log.Printf("failed to record review event for article %d: %v", article.ID, err)
		}
	}
	if err := d.recordRevision(article.ID, "finalize", before); err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("finalized: %s, risk %s, %d duplicate warnings", verdict, riskLevel, duplicates)
	return succeed(job, summary, result.Cost), nil
}

// autoApprove consults the reviewer model. Approval requires an explicit
// approve verdict, zero flags, and the reviewer stating no human review
// is needed. Any reviewer error means no: a broken reviewer must never
// wave articles through.
func (d *Deps) autoApprove(ctx context.Context, article *database.Article, domain *database.Domain, title string) bool {
	var verdict reviewVerdict
	_, err := d.Client.GenerateStructured(ctx,
		fmt.Sprintf(reviewPrompt, domain.Name, title, *article.Body),
		llm.Options{
			Task:          router.TaskReview,
			ArticleID:     &article.ID,
			ModelOverride: d.Cfg.Routing.ReviewerModel,
		},
		&verdict,
	)
	if err != nil {
		log.Printf("reviewer call failed for article %d, routing to human review: %v", article.ID, err)
		return false
	}
	return verdict.Verdict == "approve" && len(verdict.Flags) == 0 && !verdict.HumanReviewRequired
}

// duplicateSweep compares the article's signature against every other
// signed article across all domains and records an advisory event per
// near-duplicate. Advisory only; duplication never blocks finalization.
func (d *Deps) duplicateSweep(article *database.Article) int {
	current, err := d.DB.GetArticle(article.ID)
	if err != nil || current == nil || len(current.Signature) == 0 {
		return 0
	}

	others, err := d.DB.GetArticlesWithSignatures()
	if err != nil {
		log.Printf("duplicate sweep failed for article %d: %v", article.ID, err)
		return 0
	}

	warnings := 0
	for _, other := range others {
		if other.ID == current.ID {
			continue
		}
		similarity := quality.Jaccard(current.Signature, other.Signature)
		if similarity >= d.Cfg.Quality.DuplicateThreshold {
			warnings++
			detail := fmt.Sprintf("similarity %.2f with article %d (%q, domain %d)",
				similarity, other.ID, other.Keyword, other.DomainID)
			if _, err := d.DB.InsertEvent(database.EventDuplicateWarning, &current.ID, &current.DomainID, detail); err != nil {
				log.Printf("failed to record duplicate warning: %v", err)
			}
		}
	}
	return warnings
}
