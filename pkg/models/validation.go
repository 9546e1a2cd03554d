package models

// ============================================================================
// Validation Status
// ============================================================================

// ValidationStatus classifies a Silver row by its data quality score.
type ValidationStatus string

const (
	ValidationStatusValidated  ValidationStatus = "validated"
	ValidationStatusLowQuality ValidationStatus = "low_quality"
	ValidationStatusPending    ValidationStatus = "pending"
)

// ValidValidationStatuses contains all valid validation status values.
var ValidValidationStatuses = []ValidationStatus{
	ValidationStatusValidated,
	ValidationStatusLowQuality,
	ValidationStatusPending,
}

// IsValidValidationStatus checks if the given status is valid.
func IsValidValidationStatus(s ValidationStatus) bool {
	for _, v := range ValidValidationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// StatusForScore maps a quality score to a status given the entity threshold.
func StatusForScore(score, threshold float64) ValidationStatus {
	if score >= threshold {
		return ValidationStatusValidated
	}
	return ValidationStatusLowQuality
}

// ============================================================================
// Validation Issues
// ============================================================================

// ValidationIssue records one rule violation found while cleaning a row.
// Issues never drop the row; they lower its quality score and are persisted
// in-band so downstream consumers can inspect them.
type ValidationIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message,omitempty"`
}

// QualityThreshold returns the per-entity validation threshold.
func QualityThreshold(e Entity) float64 {
	switch e {
	case EntityProperty:
		return 0.4
	case EntityNeighborhood:
		return 0.3
	case EntityWikipedia:
		return 0.5
	default:
		return 0.5
	}
}

// ============================================================================
// Quality Distribution
// ============================================================================

// QualityDistribution buckets Silver quality scores for the run report.
type QualityDistribution struct {
	Poor      int64 `json:"poor"`      // [0, 0.25)
	Fair      int64 `json:"fair"`      // [0.25, 0.5)
	Good      int64 `json:"good"`      // [0.5, 0.75)
	Excellent int64 `json:"excellent"` // [0.75, 1.0]
}

// Add assigns one score to its bucket.
func (q *QualityDistribution) Add(score float64) {
	switch {
	case score < 0.25:
		q.Poor++
	case score < 0.5:
		q.Fair++
	case score < 0.75:
		q.Good++
	default:
		q.Excellent++
	}
}

// Total returns the number of scored rows.
func (q *QualityDistribution) Total() int64 {
	return q.Poor + q.Fair + q.Good + q.Excellent
}
