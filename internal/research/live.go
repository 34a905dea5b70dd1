package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/router"
)

const maxFeedItems = 10

const researchPrompt = `You are a research assistant gathering material for an article about: %s

Collect concrete, verifiable findings. Prefer numbers with years attached and quotes with named speakers. Skip anything you are not confident about.

Respond with ONLY this JSON:
{
    "statistics": ["statistic with source year, e.g. '43%% of US households owned X in 2024'"],
    "quotes": ["short quote with attribution"],
    "competitor_angles": ["angle existing articles on this topic take"],
    "sources": [{"title": "source title", "url": "https://..."}]
}`

// Live gathers research findings on a cache miss: a structured model
// call, a sweep over configured news feeds, and readability extraction
// from a few competitor pages. Each channel degrades independently.
type Live struct {
	client         *llm.Client
	feedURLs       []string
	maxCompetitors int
	httpClient     *http.Client
}

// NewLive creates a live research provider. feedURLs may contain a %s
// placeholder that is replaced with the escaped query.
func NewLive(client *llm.Client, feedURLs []string, maxCompetitors int) *Live {
	if maxCompetitors <= 0 {
		maxCompetitors = 3
	}
	return &Live{
		client:         client,
		feedURLs:       feedURLs,
		maxCompetitors: maxCompetitors,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Research fetches findings for a query. Returns the merged data and the
// model that produced the structured portion. Feed and page extraction
// failures are logged and skipped; only a total model failure is an error.
func (l *Live) Research(ctx context.Context, query string, articleID *int64) (*Data, string, error) {
	data, model, err := l.modelResearch(ctx, query, articleID)
	if err != nil {
		return nil, "", err
	}

	feedData := l.feedSweep(ctx, query)
	data.Merge(feedData)

	competitors := l.competitorAngles(ctx, feedData.Sources)
	data.Merge(&Data{CompetitorAngles: competitors})

	return data, model, nil
}

// modelResearch asks the model for structured findings. If the response
// cannot be parsed even after repair, the citation fallback supplies
// generic sources so downstream stages still have something to cite.
func (l *Live) modelResearch(ctx context.Context, query string, articleID *int64) (*Data, string, error) {
	var data Data
	result, err := l.client.GenerateStructured(ctx, fmt.Sprintf(researchPrompt, query), llm.Options{
		Task:      router.TaskResearch,
		ArticleID: articleID,
	}, &data)

	var parseErr *llm.ParseError
	if errors.As(err, &parseErr) {
		log.Printf("research response unparseable for %q, using citation fallback", query)
		return &Data{Sources: FallbackCitations(query)}, result.Model, nil
	}
	if err != nil {
		return nil, "", err
	}
	return &data, result.Model, nil
}

// feedSweep parses each configured feed for the query and turns recent
// items into sources and competitor angles.
func (l *Live) feedSweep(ctx context.Context, query string) *Data {
	data := &Data{}
	if len(l.feedURLs) == 0 {
		return data
	}

	parser := gofeed.NewParser()
	for _, raw := range l.feedURLs {
		feedURL := raw
		if strings.Contains(raw, "%s") {
			feedURL = fmt.Sprintf(raw, url.QueryEscape(query))
		}

		feed, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			log.Printf("failed to parse feed %s: %v", feedURL, err)
			continue
		}

		count := 0
		for _, item := range feed.Items {
			if count >= maxFeedItems {
				break
			}
			title := strings.TrimSpace(item.Title)
			if title == "" || item.Link == "" {
				continue
			}
			data.Sources = append(data.Sources, Source{Title: title, URL: item.Link})
			data.CompetitorAngles = append(data.CompetitorAngles, title)
			count++
		}
	}
	return data
}

// competitorAngles fetches up to maxCompetitors source pages and extracts
// a readable lead from each. A failed fetch skips the page.
func (l *Live) competitorAngles(ctx context.Context, sources []Source) []string {
	var angles []string
	for _, s := range sources {
		if len(angles) >= l.maxCompetitors {
			break
		}
		lead, err := l.extractLead(ctx, s.URL)
		if err != nil || lead == "" {
			continue
		}
		angles = append(angles, fmt.Sprintf("%s: %s", s.Title, lead))
	}
	return angles
}

func (l *Live) extractLead(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "ContentForge/1.0 (research)")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: %s", pageURL, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < 100 {
		return "", nil
	}
	words := strings.Fields(text)
	if len(words) > 60 {
		words = words[:60]
	}
	return strings.Join(words, " "), nil
}

// FallbackCitations returns a generic citation list keyed on the query's
// apparent niche. Used when the structured research response cannot be
// parsed, so articles never ship without a source section.
func FallbackCitations(query string) []Source {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "loan", "mortgage", "invest", "tax", "insurance", "credit", "retirement"):
		return []Source{
			{Title: "Consumer Financial Protection Bureau", URL: "https://www.consumerfinance.gov/"},
			{Title: "Federal Reserve Economic Data", URL: "https://fred.stlouisfed.org/"},
			{Title: "Bureau of Labor Statistics", URL: "https://www.bls.gov/"},
		}
	case containsAny(q, "health", "diet", "fitness", "symptom", "sleep", "vitamin"):
		return []Source{
			{Title: "Centers for Disease Control and Prevention", URL: "https://www.cdc.gov/"},
			{Title: "National Institutes of Health", URL: "https://www.nih.gov/"},
			{Title: "Mayo Clinic", URL: "https://www.mayoclinic.org/"},
		}
	case containsAny(q, "software", "app", "laptop", "phone", "ai", "cloud", "vpn"):
		return []Source{
			{Title: "Pew Research Center: Internet & Technology", URL: "https://www.pewresearch.org/internet/"},
			{Title: "Stack Overflow Developer Survey", URL: "https://survey.stackoverflow.co/"},
		}
	default:
		return []Source{
			{Title: "Pew Research Center", URL: "https://www.pewresearch.org/"},
			{Title: "U.S. Census Bureau", URL: "https://www.census.gov/"},
		}
	}
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
