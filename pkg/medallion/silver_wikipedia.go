package medallion

import (
	"time"

	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/readers"
	"github.com/estategraph/estate-engine/pkg/store"
)

// Wikipedia quality weights; they sum to 1.0.
const (
	wikipediaWeightPageID   = 0.30
	wikipediaWeightTitle    = 0.30
	wikipediaWeightSummary  = 0.20
	wikipediaWeightLocation = 0.20

	// A location only counts as valid at or above this confidence.
	locationConfidenceFloor = 0.6
)

func wikipediaRawFromBronze(row map[string]any) models.WikipediaRaw {
	return models.WikipediaRaw{
		PageID:         rowInt64(row, "page_id"),
		Title:          rowString(row, "title"),
		URL:            rowString(row, "url"),
		ShortSummary:   rowString(row, "short_summary"),
		LongSummary:    rowString(row, "long_summary"),
		Categories:     rowString(row, "categories"),
		KeyTopics:      rowStrings(row, "key_topics"),
		BestCity:       rowString(row, "best_city"),
		BestState:      rowString(row, "best_state"),
		Latitude:       rowFloatPtr(row, "latitude"),
		Longitude:      rowFloatPtr(row, "longitude"),
		RelevanceScore: rowFloatPtr(row, "relevance_score"),
		Confidence:     rowFloatPtr(row, "confidence_score"),
		CorruptRecord:  rowString(row, "_corrupt_record"),
		SourceFile:     rowString(row, "source_file"),
	}
}

// CleanWikipedia applies the wikipedia Silver rules: text cleanup, topic and
// category normalization, the location confidence gate, specificity, and the
// relevance category.
func CleanWikipedia(raw models.WikipediaRaw, lk *Lookups, ingestedAt, processedAt time.Time) models.WikipediaSilver {
	v := newValidator()

	s := models.WikipediaSilver{
		PageID:        raw.PageID,
		Title:         cleanText(raw.Title),
		URL:           cleanText(raw.URL),
		ShortSummary:  cleanText(raw.ShortSummary),
		LongSummary:   cleanText(raw.LongSummary),
		Categories:    normalizeArray(readers.ParseStringList(raw.Categories)),
		KeyTopics:     normalizeArray(raw.KeyTopics),
		BestCity:      cleanText(raw.BestCity),
		BestState:     cleanText(raw.BestState),
		CorruptRecord: raw.CorruptRecord,
		SourceFile:    raw.SourceFile,
		IngestedAt:    ingestedAt,
		ProcessedAt:   processedAt,
	}
	s.CityNormalized = lk.NormalizeCity(s.BestCity)
	s.StateNormalized = lk.NormalizeState(s.BestState)

	s.Latitude = v.inRange("latitude", raw.Latitude, -90, 90)
	s.Longitude = v.inRange("longitude", raw.Longitude, -180, 180)
	s.RelevanceScore = v.nonNegative("relevance_score", raw.RelevanceScore)
	s.Confidence = v.inRange("confidence_score", raw.Confidence, 0, 1)

	var confidence, relevance float64
	if s.Confidence != nil {
		confidence = *s.Confidence
	}
	if s.RelevanceScore != nil {
		relevance = *s.RelevanceScore
	}
	s.HasValidLocation = (s.BestCity != "" || s.BestState != "") &&
		confidence >= locationConfidenceFloor
	s.LocationSpecificity = models.LocationSpecificityFor(s.BestCity, s.BestState)
	s.RelevanceCategory = models.RelevanceCategoryFor(confidence, relevance)

	s.DataQualityScore = wikipediaQualityScore(s)
	s.ValidationStatus = models.StatusForScore(s.DataQualityScore, models.QualityThreshold(models.EntityWikipedia))
	s.Issues = v.issues
	return s
}

func wikipediaQualityScore(s models.WikipediaSilver) float64 {
	var score float64
	if s.PageID > 0 {
		score += wikipediaWeightPageID
	}
	if s.Title != "" {
		score += wikipediaWeightTitle
	}
	if s.LongSummary != "" || s.ShortSummary != "" {
		score += wikipediaWeightSummary
	}
	if s.BestCity != "" || s.BestState != "" {
		score += wikipediaWeightLocation
	}
	return clamp(score, 0, 1)
}

func wikipediaSilverColumns() []store.Column {
	return []store.Column{
		{Name: "page_id", Type: store.TypeInteger},
		{Name: "title", Type: store.TypeText},
		{Name: "url", Type: store.TypeText},
		{Name: "short_summary", Type: store.TypeText},
		{Name: "long_summary", Type: store.TypeText},
		{Name: "categories", Type: store.TypeJSON},
		{Name: "key_topics", Type: store.TypeJSON},
		{Name: "best_city", Type: store.TypeText},
		{Name: "best_state", Type: store.TypeText},
		{Name: "city_normalized", Type: store.TypeText},
		{Name: "state_normalized", Type: store.TypeText},
		{Name: "latitude", Type: store.TypeReal},
		{Name: "longitude", Type: store.TypeReal},
		{Name: "relevance_score", Type: store.TypeReal},
		{Name: "confidence_score", Type: store.TypeReal},
		{Name: "has_valid_location", Type: store.TypeBool},
		{Name: "location_specificity", Type: store.TypeText},
		{Name: "relevance_category", Type: store.TypeText},
		{Name: "data_quality_score", Type: store.TypeReal},
		{Name: "validation_status", Type: store.TypeText},
		{Name: "validation_issues", Type: store.TypeJSON},
		{Name: "_corrupt_record", Type: store.TypeText},
		{Name: "source_file", Type: store.TypeText},
		{Name: "ingested_at", Type: store.TypeTimestamp},
		{Name: "processed_at", Type: store.TypeTimestamp},
	}
}

func wikipediaSilverRow(s models.WikipediaSilver) map[string]any {
	row := map[string]any{
		"categories":           s.Categories,
		"key_topics":           s.KeyTopics,
		"has_valid_location":   s.HasValidLocation,
		"location_specificity": string(s.LocationSpecificity),
		"relevance_category":   string(s.RelevanceCategory),
		"data_quality_score":   s.DataQualityScore,
		"validation_status":    string(s.ValidationStatus),
		"ingested_at":          s.IngestedAt,
		"processed_at":         s.ProcessedAt,
	}
	if s.PageID > 0 {
		row["page_id"] = s.PageID
	}
	putString(row, "title", s.Title)
	putString(row, "url", s.URL)
	putString(row, "short_summary", s.ShortSummary)
	putString(row, "long_summary", s.LongSummary)
	putString(row, "best_city", s.BestCity)
	putString(row, "best_state", s.BestState)
	putString(row, "city_normalized", s.CityNormalized)
	putString(row, "state_normalized", s.StateNormalized)
	putString(row, "_corrupt_record", s.CorruptRecord)
	putString(row, "source_file", s.SourceFile)
	put(row, "latitude", s.Latitude)
	put(row, "longitude", s.Longitude)
	put(row, "relevance_score", s.RelevanceScore)
	put(row, "confidence_score", s.Confidence)
	if len(s.Issues) > 0 {
		row["validation_issues"] = s.Issues
	}
	return row
}

func wikipediaSilverFromRow(row map[string]any) models.WikipediaSilver {
	s := models.WikipediaSilver{
		PageID:              rowInt64(row, "page_id"),
		Title:               rowString(row, "title"),
		URL:                 rowString(row, "url"),
		ShortSummary:        rowString(row, "short_summary"),
		LongSummary:         rowString(row, "long_summary"),
		Categories:          rowStrings(row, "categories"),
		KeyTopics:           rowStrings(row, "key_topics"),
		BestCity:            rowString(row, "best_city"),
		BestState:           rowString(row, "best_state"),
		CityNormalized:      rowString(row, "city_normalized"),
		StateNormalized:     rowString(row, "state_normalized"),
		Latitude:            rowFloatPtr(row, "latitude"),
		Longitude:           rowFloatPtr(row, "longitude"),
		RelevanceScore:      rowFloatPtr(row, "relevance_score"),
		Confidence:          rowFloatPtr(row, "confidence_score"),
		HasValidLocation:    rowBool(row, "has_valid_location"),
		LocationSpecificity: models.LocationSpecificity(rowString(row, "location_specificity")),
		RelevanceCategory:   models.RelevanceCategory(rowString(row, "relevance_category")),
		DataQualityScore:    rowFloat(row, "data_quality_score"),
		ValidationStatus:    models.ValidationStatus(rowString(row, "validation_status")),
		CorruptRecord:       rowString(row, "_corrupt_record"),
		SourceFile:          rowString(row, "source_file"),
		IngestedAt:          rowTime(row, "ingested_at"),
		ProcessedAt:         rowTime(row, "processed_at"),
	}
	if issues := rowJSON[[]models.ValidationIssue](row, "validation_issues"); issues != nil {
		s.Issues = *issues
	}
	return s
}
