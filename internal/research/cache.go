package research

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/ContentForge/internal/database"
)

// maxRanked is how many eligible cache entries are merged into a result.
const maxRanked = 5

// LiveProvider fetches research findings when the cache cannot serve a
// query.
type LiveProvider interface {
	Research(ctx context.Context, query string, articleID *int64) (*Data, string, error)
}

// Lookup is the outcome of a cache consultation.
type Lookup struct {
	Data        *Data
	CacheStatus string
}

// Cache serves research results from SQLite, falling back to a live
// provider on miss. Entries are immutable; staleness and priority are
// checked at read time and expired rows are skipped, never deleted.
type Cache struct {
	db       *database.DB
	live     LiveProvider
	ttlHours int
}

// NewCache creates a research cache.
func NewCache(db *database.DB, live LiveProvider, ttlHours int) *Cache {
	if ttlHours <= 0 {
		ttlHours = 72
	}
	return &Cache{db: db, live: live, ttlHours: ttlHours}
}

// Lookup serves a query at the given domain priority. On a cache miss it
// falls back to the live provider; if that also fails it returns an
// explicitly empty result and enqueues one background refresh job rather
// than blocking the caller.
func (c *Cache) Lookup(ctx context.Context, query string, domainID int64, domainPriority int, articleID *int64) (*Lookup, error) {
	hash := QueryHash(query)

	entries, err := c.db.GetFreshCacheEntries(hash, domainPriority)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		data := mergeRanked(query, entries)
		if !data.Empty() {
			return &Lookup{Data: data, CacheStatus: StatusHit}, nil
		}
	}

	if c.live != nil {
		data, sourceModel, liveErr := c.live.Research(ctx, query, articleID)
		if liveErr == nil && data != nil && !data.Empty() {
			if err := c.Store(query, data, sourceModel, domainPriority); err != nil {
				log.Printf("failed to cache research for %q: %v", query, err)
			}
			return &Lookup{Data: data, CacheStatus: StatusPartial}, nil
		}
		if liveErr != nil {
			log.Printf("live research failed for %q: %v", query, liveErr)
		}
	}

	// Nothing to serve. Schedule a background refresh, but only one per
	// query: piling up identical refresh jobs would amplify an outage,
	// while an unrelated query's refresh must not suppress this one.
	pending, err := c.db.CountPendingJobsMatching(database.JobRefreshCache, hash)
	if err == nil && pending == 0 {
		raw, _ := json.Marshal(map[string]any{"query": query, "query_hash": hash, "priority": domainPriority})
		payload := string(raw)
		if _, err := c.db.InsertJob(database.JobRefreshCache, nil, domainID, &payload, 50, 3); err != nil {
			log.Printf("failed to enqueue cache refresh for %q: %v", query, err)
		}
	}

	return &Lookup{Data: &Data{}, CacheStatus: StatusMiss}, nil
}

// Store writes an immutable cache entry for a query.
func (c *Cache) Store(query string, data *Data, sourceModel string, domainPriority int) error {
	payload, err := data.Marshal()
	if err != nil {
		return err
	}
	var model *string
	if sourceModel != "" {
		model = &sourceModel
	}
	_, err = c.db.InsertCacheEntry(QueryHash(query), NormalizeQuery(query), payload, model, domainPriority, c.ttlHours)
	return err
}

// Refresh re-fetches a query from the live provider and stores the
// result. Used by the refresh_research_cache job.
func (c *Cache) Refresh(ctx context.Context, query string, domainPriority int) error {
	if c.live == nil {
		return nil
	}
	data, sourceModel, err := c.live.Research(ctx, query, nil)
	if err != nil {
		return err
	}
	if data == nil || data.Empty() {
		return nil
	}
	if err := c.Store(query, data, sourceModel, domainPriority); err != nil {
		return err
	}
	if pruned, err := c.db.PruneExpiredCacheEntries(); err == nil && pruned > 0 {
		log.Printf("research cache: pruned %d expired entries", pruned)
	}
	return nil
}

// rankedEntry pairs a cache entry with its composite score.
type rankedEntry struct {
	entry database.CacheEntry
	score float64
}

// mergeRanked ranks eligible entries by 0.6·relevance + 0.3·recency +
// 0.1·domainPriority (each normalized 0-1) and merges the top entries in
// rank order. Ties break by entry ID, so the same inputs always produce
// the same result.
func mergeRanked(query string, entries []database.CacheEntry) *Data {
	ranked := make([]rankedEntry, 0, len(entries))
	oldest, newest := fetchedRange(entries)
	queryTokens := strings.Fields(NormalizeQuery(query))

	for _, e := range entries {
		score := 0.6*relevance(queryTokens, e.QueryText) +
			0.3*recency(e, oldest, newest) +
			0.1*priorityWeight(e.DomainPriority)
		ranked = append(ranked, rankedEntry{entry: e, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].entry.ID < ranked[j].entry.ID
	})
	if len(ranked) > maxRanked {
		ranked = ranked[:maxRanked]
	}

	merged := &Data{}
	for _, r := range ranked {
		data, err := ParseData(r.entry.Payload)
		if err != nil {
			log.Printf("skipping unparseable cache entry %d: %v", r.entry.ID, err)
			continue
		}
		merged.Merge(data)
	}
	return merged
}

// relevance is the fraction of query tokens present in the entry's
// normalized query text.
func relevance(queryTokens []string, entryQuery string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	entryTokens := make(map[string]bool)
	for _, t := range strings.Fields(entryQuery) {
		entryTokens[t] = true
	}
	matched := 0
	for _, t := range queryTokens {
		if entryTokens[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// recency maps fetch time onto 0-1 across the eligible set.
func recency(e database.CacheEntry, oldest, newest time.Time) float64 {
	if e.FetchedAt == nil || newest.Equal(oldest) {
		return 1
	}
	t, err := parseDBTime(*e.FetchedAt)
	if err != nil {
		return 0
	}
	return t.Sub(oldest).Seconds() / newest.Sub(oldest).Seconds()
}

func priorityWeight(p int) float64 {
	w := float64(p) / 10.0
	if w > 1 {
		w = 1
	}
	if w < 0 {
		w = 0
	}
	return w
}

func fetchedRange(entries []database.CacheEntry) (oldest, newest time.Time) {
	first := true
	for _, e := range entries {
		if e.FetchedAt == nil {
			continue
		}
		t, err := parseDBTime(*e.FetchedAt)
		if err != nil {
			continue
		}
		if first {
			oldest, newest = t, t
			first = false
			continue
		}
		if t.Before(oldest) {
			oldest = t
		}
		if t.After(newest) {
			newest = t
		}
	}
	return oldest, newest
}

func parseDBTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02 15:04:05", s)
}
