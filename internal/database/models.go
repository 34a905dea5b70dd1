package database

// Article lifecycle statuses.
const (
	StatusDraft     = "draft"
	StatusReview    = "review"
	StatusApproved  = "approved"
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// Job statuses.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Job types. The six stage jobs advance one article; keyword_research and
// refresh_research_cache are domain-level.
const (
	JobResearch        = "research"
	JobGenerateOutline = "generate_outline"
	JobGenerateDraft   = "generate_draft"
	JobHumanize        = "humanize"
	JobSEOOptimize     = "seo_optimize"
	JobGenerateMeta    = "generate_meta"
	JobKeywordResearch = "keyword_research"
	JobRefreshCache    = "refresh_research_cache"
)

// Domain represents a content property the factory writes for.
type Domain struct {
	ID              int64
	Name            string
	Niche           string
	VoiceSeed       *string
	Priority        int
	InternalLinking bool
	AIReviewer      bool
	CreatedAt       *string
}

// Article is the unit of work moving through the pipeline.
type Article struct {
	ID                int64
	DomainID          int64
	Keyword           string
	SecondaryKeywords []string
	ContentType       *string
	Status            string
	Title             *string
	Slug              *string
	MetaDescription   *string
	Body              *string
	WordCount         int
	ResearchJSON      *string
	OutlineJSON       *string
	GenerationPasses  int
	Fingerprint       *string
	Signature         []uint64
	RiskLevel         *string
	CreatedAt         *string
	UpdatedAt         *string
}

// Job is one queued unit of pipeline work.
type Job struct {
	ID          int64
	Type        string
	ArticleID   *int64
	DomainID    int64
	Status      string
	Priority    int
	Attempts    int
	MaxAttempts int
	Payload     *string
	Result      *string
	Error       *string
	Cost        float64
	DurationMs  int64
	ClaimedBy   *string
	ClaimedAt   *string
	StartedAt   *string
	CompletedAt *string
	CreatedAt   *string
}

// GenerationCall is the append-only audit row written for every provider
// invocation, reviewer calls included.
type GenerationCall struct {
	ID             int64
	ArticleID      *int64
	TaskKey        string
	ResolvedModel  string
	PromptVersion  string
	RoutingVersion string
	FallbackUsed   bool
	PromptHash     string
	PromptBody     string
	InputTokens    int
	OutputTokens   int
	Cost           float64
	DurationMs     int64
	ErrorNote      *string
	CreatedAt      *string
}

// Revision snapshots title/body/meta around an AI-mutating stage.
type Revision struct {
	ID          int64
	ArticleID   int64
	Stage       string
	TitleBefore *string
	TitleAfter  *string
	BodyBefore  *string
	BodyAfter   *string
	MetaBefore  *string
	MetaAfter   *string
	CreatedAt   *string
}

// CacheEntry is an immutable research cache row.
type CacheEntry struct {
	ID             int64
	QueryHash      string
	QueryText      string
	Payload        string
	SourceModel    *string
	DomainPriority int
	FetchedAt      *string
	ExpiresAt      *string
}

// Event is a notification/audit record for collaborators.
type Event struct {
	ID        int64
	Kind      string
	ArticleID *int64
	DomainID  *int64
	Detail    *string
	CreatedAt *string
}

// Event kinds.
const (
	EventGateViolation    = "gate_violation"
	EventDuplicateWarning = "duplicate_warning"
	EventReviewNeeded     = "review_needed"
	EventJobFailed        = "job_failed"
)

// Stats contains aggregate database statistics.
type Stats struct {
	Domains         int
	TotalArticles   int
	InReview        int
	Approved        int
	PendingJobs     int
	ProcessingJobs  int
	FailedJobs      int
	GenerationCalls int
	TotalCost       float64
	CacheEntries    int
}
