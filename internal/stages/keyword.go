package stages

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/router"
)

const keywordPrompt = `Suggest article topics for %s, a site about %s.

Propose %d target keywords a small site could realistically rank for. Favor specific long-tail keywords over broad head terms; skip anything already covered:
%s

Respond with ONLY this JSON:
{
    "keywords": [
        {"keyword": "primary target keyword", "secondary": ["supporting keyword", "another"]}
    ]
}`

// keywordBatchSize is how many article ideas one keyword_research job
// produces.
const keywordBatchSize = 5

// KeywordResearch generates new target keywords for a domain, creates a
// draft article per keyword and enqueues its research stage. Articles
// enter the pipeline here or via the enqueue command; the stages are the
// same either way.
func (d *Deps) KeywordResearch(ctx context.Context, job *database.Job) (*queue.Result, error) {
	domain, err := d.loadDomain(job.DomainID)
	if err != nil {
		return nil, err
	}

	existing, err := d.existingKeywords(domain.ID)
	if err != nil {
		return nil, err
	}

	var response struct {
		Keywords []struct {
			Keyword   string   `json:"keyword"`
			Secondary []string `json:"secondary"`
		} `json:"keywords"`
	}
	result, err := d.Client.GenerateStructured(ctx,
		fmt.Sprintf(keywordPrompt, domain.Name, domain.Niche, keywordBatchSize, existing),
		llm.Options{Task: router.TaskKeywordResearch},
		&response,
	)
	if err != nil {
		return nil, err
	}
	if len(response.Keywords) == 0 {
		return nil, fmt.Errorf("keyword research for domain %d returned nothing", domain.ID)
	}

	outcome := &queue.Result{Cost: result.Cost}
	created := 0
	for _, k := range response.Keywords {
		if k.Keyword == "" || created == keywordBatchSize {
			continue
		}
		articleID, err := d.DB.InsertArticle(domain.ID, k.Keyword, k.Secondary)
		if err != nil {
			return nil, err
		}
		id := articleID
		outcome.Successors = append(outcome.Successors, queue.SuccessorJob{
			Type:      database.JobResearch,
			ArticleID: &id,
			DomainID:  domain.ID,
			Priority:  job.Priority,
		})
		created++
	}

	outcome.Summary = fmt.Sprintf("keyword research: %d articles queued", created)
	return outcome, nil
}

// existingKeywords lists the domain's current article keywords so the
// model does not repeat them.
func (d *Deps) existingKeywords(domainID int64) (string, error) {
	published, err := d.DB.GetPublishedArticles(domainID)
	if err != nil {
		return "", err
	}
	if len(published) == 0 {
		return "(nothing yet)", nil
	}
	out := ""
	for _, a := range published {
		out += "- " + a.Keyword + "\n"
	}
	return out, nil
}
