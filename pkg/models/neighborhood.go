package models

import "time"

// ============================================================================
// Raw (source shape)
// ============================================================================

// Demographics is the optional nested demographics block.
type Demographics struct {
	Population   *float64 `json:"population,omitempty"`
	Households   *float64 `json:"households,omitempty"`
	MedianAge    *float64 `json:"median_age,omitempty"`
	MedianIncome *float64 `json:"median_income,omitempty"`
}

// SchoolRatings holds 0-10 ratings per school level.
type SchoolRatings struct {
	Elementary *float64 `json:"elementary,omitempty"`
	Middle     *float64 `json:"middle,omitempty"`
	High       *float64 `json:"high,omitempty"`
}

// WikiLink is one correlated Wikipedia article reference.
type WikiLink struct {
	PageID       *int64   `json:"page_id,omitempty"`
	Title        string   `json:"title,omitempty"`
	URL          string   `json:"url,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Relationship string   `json:"relationship,omitempty"`
}

// ParentGeography names the wiki pages of the enclosing city and state.
type ParentGeography struct {
	CityWiki  string `json:"city_wiki,omitempty"`
	StateWiki string `json:"state_wiki,omitempty"`
}

// WikipediaCorrelations is the pre-correlated article structure carried by
// some neighborhood sources. Preserved verbatim through the tiers.
type WikipediaCorrelations struct {
	Primary         *WikiLink        `json:"primary,omitempty"`
	Related         []WikiLink       `json:"related,omitempty"`
	ParentGeography *ParentGeography `json:"parent_geography,omitempty"`
}

// NeighborhoodRaw is a neighborhood record as read from source.
type NeighborhoodRaw struct {
	NeighborhoodID   string                 `json:"neighborhood_id"`
	Name             string                 `json:"name,omitempty"`
	City             string                 `json:"city,omitempty"`
	State            string                 `json:"state,omitempty"`
	County           string                 `json:"county,omitempty"`
	Coordinates      *Coordinates           `json:"coordinates,omitempty"`
	Description      string                 `json:"description,omitempty"`
	Amenities        []string               `json:"amenities"`
	Characteristics  []string               `json:"characteristics"`
	Tags             []string               `json:"tags"`
	Demographics     *Demographics          `json:"demographics,omitempty"`
	SchoolRatings    *SchoolRatings         `json:"school_ratings,omitempty"`
	SafetyRating     *float64               `json:"safety_rating,omitempty"`
	WalkabilityScore *float64               `json:"walkability_score,omitempty"`
	AvgHomeValue     *float64               `json:"avg_home_value,omitempty"`
	Correlations     *WikipediaCorrelations `json:"wikipedia_correlations,omitempty"`

	CorruptRecord string `json:"-"`
	SourceFile    string `json:"-"`
}

// ============================================================================
// Silver
// ============================================================================

// NeighborhoodSilver is a cleaned, validated neighborhood row.
type NeighborhoodSilver struct {
	NeighborhoodID string
	Name           string
	City           string
	State          string
	County         string

	CityNormalized  string
	StateNormalized string

	Latitude  *float64
	Longitude *float64

	Description     string
	Amenities       []string
	Characteristics []string
	Tags            []string

	Population   *float64
	Households   *float64
	MedianAge    *float64
	MedianIncome *float64

	ElementaryRating *float64
	MiddleRating     *float64
	HighRating       *float64
	SafetyRating     *float64
	WalkabilityScore *float64
	AvgHomeValue     *float64

	DemographicCompleteness float64
	IncomeBracket           IncomeBracket

	Correlations *WikipediaCorrelations

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

// NeighborhoodGold is a Silver row with correlation identity, resolved
// geography, derived lifestyle scores, and the canonical embedding text.
type NeighborhoodGold struct {
	NeighborhoodSilver

	CorrelationUUID   string
	CountyResolved    string
	ParentCity        string
	ParentCounty      string
	ParentState       string
	LocationHierarchy string

	NightlifeScore      float64
	FamilyFriendlyScore float64
	CulturalScore       float64
	GreenSpaceScore     float64
	KnowledgeScore      float64

	EmbeddingText string
}
