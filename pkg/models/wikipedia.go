package models

import "time"

// ============================================================================
// Raw (source shape)
// ============================================================================

// WikipediaRaw is one article row from the wikipedia relational source:
// articles joined with page_summaries on page id, long summaries only.
type WikipediaRaw struct {
	PageID         int64    `json:"page_id" db:"page_id"`
	Title          string   `json:"title" db:"title"`
	URL            string   `json:"url" db:"url"`
	ShortSummary   string   `json:"short_summary" db:"short_summary"`
	LongSummary    string   `json:"long_summary" db:"long_summary"`
	Categories     string   `json:"categories" db:"categories"`
	KeyTopics      []string `json:"key_topics" db:"-"`
	BestCity       string   `json:"best_city" db:"best_city"`
	BestState      string   `json:"best_state" db:"best_state"`
	Latitude       *float64 `json:"latitude" db:"latitude"`
	Longitude      *float64 `json:"longitude" db:"longitude"`
	RelevanceScore *float64 `json:"relevance_score" db:"relevance_score"`
	Confidence     *float64 `json:"confidence_score" db:"confidence_score"`

	CorruptRecord string `json:"-" db:"-"`
	SourceFile    string `json:"-" db:"-"`
}

// ============================================================================
// Silver
// ============================================================================

// WikipediaSilver is a cleaned, validated article row.
type WikipediaSilver struct {
	PageID       int64
	Title        string
	URL          string
	ShortSummary string
	LongSummary  string
	Categories   []string
	KeyTopics    []string

	BestCity  string
	BestState string

	CityNormalized  string
	StateNormalized string

	Latitude       *float64
	Longitude      *float64
	RelevanceScore *float64
	Confidence     *float64

	HasValidLocation    bool
	LocationSpecificity LocationSpecificity
	RelevanceCategory   RelevanceCategory

	DataQualityScore float64
	ValidationStatus ValidationStatus
	Issues           []ValidationIssue

	CorruptRecord string
	SourceFile    string
	IngestedAt    time.Time
	ProcessedAt   time.Time
}

// ============================================================================
// Gold
// ============================================================================

// WikipediaGold is a Silver row with correlation identity, resolved
// geography, and the canonical embedding text.
type WikipediaGold struct {
	WikipediaSilver

	CorrelationUUID   string
	CountyResolved    string
	ParentCity        string
	ParentCounty      string
	ParentState       string
	LocationHierarchy string

	// CityRelevance is the normalized city this article is most relevant to;
	// the enrichment joins match on it.
	CityRelevance   string
	LocationContext string

	OverallConfidence float64

	EmbeddingText string
}
