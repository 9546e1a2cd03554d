package medallion

import (
	"time"

	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// Neighborhood quality weights; they sum to 1.0.
const (
	neighborhoodWeightID          = 0.25
	neighborhoodWeightName        = 0.25
	neighborhoodWeightCity        = 0.20
	neighborhoodWeightState       = 0.20
	neighborhoodWeightDescription = 0.10

	// Each demographic range violation costs this much quality.
	demographicViolationPenalty = 0.05
)

func neighborhoodRawFromBronze(row map[string]any) models.NeighborhoodRaw {
	return models.NeighborhoodRaw{
		NeighborhoodID:   rowString(row, "neighborhood_id"),
		Name:             rowString(row, "name"),
		City:             rowString(row, "city"),
		State:            rowString(row, "state"),
		County:           rowString(row, "county"),
		Coordinates:      rowJSON[models.Coordinates](row, "coordinates"),
		Description:      rowString(row, "description"),
		Amenities:        rowStrings(row, "amenities"),
		Characteristics:  rowStrings(row, "characteristics"),
		Tags:             rowStrings(row, "tags"),
		Demographics:     rowJSON[models.Demographics](row, "demographics"),
		SchoolRatings:    rowJSON[models.SchoolRatings](row, "school_ratings"),
		SafetyRating:     rowFloatPtr(row, "safety_rating"),
		WalkabilityScore: rowFloatPtr(row, "walkability_score"),
		AvgHomeValue:     rowFloatPtr(row, "avg_home_value"),
		Correlations:     rowJSON[models.WikipediaCorrelations](row, "wikipedia_correlations"),
		CorruptRecord:    rowString(row, "_corrupt_record"),
		SourceFile:       rowString(row, "source_file"),
	}
}

// CleanNeighborhood applies the neighborhood Silver rules: trimming, array
// normalization, demographic range validation with quality penalties,
// completeness, and the income bracket.
func CleanNeighborhood(raw models.NeighborhoodRaw, lk *Lookups, ingestedAt, processedAt time.Time) models.NeighborhoodSilver {
	v := newValidator()

	s := models.NeighborhoodSilver{
		NeighborhoodID:  cleanText(raw.NeighborhoodID),
		Name:            cleanText(raw.Name),
		City:            cleanText(raw.City),
		State:           cleanText(raw.State),
		County:          cleanText(raw.County),
		Description:     cleanText(raw.Description),
		Amenities:       normalizeArray(raw.Amenities),
		Characteristics: normalizeArray(raw.Characteristics),
		Tags:            normalizeArray(raw.Tags),
		Correlations:    raw.Correlations,
		CorruptRecord:   raw.CorruptRecord,
		SourceFile:      raw.SourceFile,
		IngestedAt:      ingestedAt,
		ProcessedAt:     processedAt,
	}
	s.CityNormalized = lk.NormalizeCity(s.City)
	s.StateNormalized = lk.NormalizeState(s.State)

	if raw.Coordinates != nil {
		s.Latitude = v.inRange("latitude", raw.Coordinates.Lat, -90, 90)
		s.Longitude = v.inRange("longitude", raw.Coordinates.Lon, -180, 180)
	}

	var demographicViolations int
	if raw.Demographics != nil {
		before := len(v.issues)
		s.Population = v.nonNegative("population", raw.Demographics.Population)
		s.Households = v.nonNegative("households", raw.Demographics.Households)
		s.MedianAge = v.inRange("median_age", raw.Demographics.MedianAge, 0, 120)
		s.MedianIncome = v.nonNegative("median_income", raw.Demographics.MedianIncome)
		demographicViolations = len(v.issues) - before
	}
	s.DemographicCompleteness = demographicCompleteness(s)
	s.IncomeBracket = models.IncomeBracketFor(s.MedianIncome)

	if raw.SchoolRatings != nil {
		s.ElementaryRating = v.inRange("school_ratings.elementary", raw.SchoolRatings.Elementary, 0, 10)
		s.MiddleRating = v.inRange("school_ratings.middle", raw.SchoolRatings.Middle, 0, 10)
		s.HighRating = v.inRange("school_ratings.high", raw.SchoolRatings.High, 0, 10)
	}
	s.SafetyRating = v.inRange("safety_rating", raw.SafetyRating, 0, 10)
	s.WalkabilityScore = v.inRange("walkability_score", raw.WalkabilityScore, 0, 100)
	s.AvgHomeValue = v.positive("avg_home_value", raw.AvgHomeValue)

	s.DataQualityScore = neighborhoodQualityScore(s, demographicViolations)
	s.ValidationStatus = models.StatusForScore(s.DataQualityScore, models.QualityThreshold(models.EntityNeighborhood))
	s.Issues = v.issues
	return s
}

// demographicCompleteness is the fraction of the four demographic fields
// still present after range validation.
func demographicCompleteness(s models.NeighborhoodSilver) float64 {
	var present int
	for _, f := range []*float64{s.Population, s.Households, s.MedianAge, s.MedianIncome} {
		if f != nil {
			present++
		}
	}
	return float64(present) / 4
}

func neighborhoodQualityScore(s models.NeighborhoodSilver, demographicViolations int) float64 {
	var score float64
	if s.NeighborhoodID != "" {
		score += neighborhoodWeightID
	}
	if s.Name != "" {
		score += neighborhoodWeightName
	}
	if s.City != "" {
		score += neighborhoodWeightCity
	}
	if s.State != "" {
		score += neighborhoodWeightState
	}
	if s.Description != "" {
		score += neighborhoodWeightDescription
	}
	score -= float64(demographicViolations) * demographicViolationPenalty
	return clamp(score, 0, 1)
}

func neighborhoodSilverColumns() []store.Column {
	return []store.Column{
		{Name: "neighborhood_id", Type: store.TypeText},
		{Name: "name", Type: store.TypeText},
		{Name: "city", Type: store.TypeText},
		{Name: "state", Type: store.TypeText},
		{Name: "county", Type: store.TypeText},
		{Name: "city_normalized", Type: store.TypeText},
		{Name: "state_normalized", Type: store.TypeText},
		{Name: "latitude", Type: store.TypeReal},
		{Name: "longitude", Type: store.TypeReal},
		{Name: "description", Type: store.TypeText},
		{Name: "amenities", Type: store.TypeJSON},
		{Name: "characteristics", Type: store.TypeJSON},
		{Name: "tags", Type: store.TypeJSON},
		{Name: "population", Type: store.TypeReal},
		{Name: "households", Type: store.TypeReal},
		{Name: "median_age", Type: store.TypeReal},
		{Name: "median_income", Type: store.TypeReal},
		{Name: "elementary_rating", Type: store.TypeReal},
		{Name: "middle_rating", Type: store.TypeReal},
		{Name: "high_rating", Type: store.TypeReal},
		{Name: "safety_rating", Type: store.TypeReal},
		{Name: "walkability_score", Type: store.TypeReal},
		{Name: "avg_home_value", Type: store.TypeReal},
		{Name: "demographic_completeness", Type: store.TypeReal},
		{Name: "income_bracket", Type: store.TypeText},
		{Name: "wikipedia_correlations", Type: store.TypeJSON},
		{Name: "data_quality_score", Type: store.TypeReal},
		{Name: "validation_status", Type: store.TypeText},
		{Name: "validation_issues", Type: store.TypeJSON},
		{Name: "_corrupt_record", Type: store.TypeText},
		{Name: "source_file", Type: store.TypeText},
		{Name: "ingested_at", Type: store.TypeTimestamp},
		{Name: "processed_at", Type: store.TypeTimestamp},
	}
}

func neighborhoodSilverRow(s models.NeighborhoodSilver) map[string]any {
	row := map[string]any{
		"amenities":                s.Amenities,
		"characteristics":          s.Characteristics,
		"tags":                     s.Tags,
		"demographic_completeness": s.DemographicCompleteness,
		"income_bracket":           string(s.IncomeBracket),
		"data_quality_score":       s.DataQualityScore,
		"validation_status":        string(s.ValidationStatus),
		"ingested_at":              s.IngestedAt,
		"processed_at":             s.ProcessedAt,
	}
	putString(row, "neighborhood_id", s.NeighborhoodID)
	putString(row, "name", s.Name)
	putString(row, "city", s.City)
	putString(row, "state", s.State)
	putString(row, "county", s.County)
	putString(row, "city_normalized", s.CityNormalized)
	putString(row, "state_normalized", s.StateNormalized)
	putString(row, "description", s.Description)
	putString(row, "_corrupt_record", s.CorruptRecord)
	putString(row, "source_file", s.SourceFile)
	put(row, "latitude", s.Latitude)
	put(row, "longitude", s.Longitude)
	put(row, "population", s.Population)
	put(row, "households", s.Households)
	put(row, "median_age", s.MedianAge)
	put(row, "median_income", s.MedianIncome)
	put(row, "elementary_rating", s.ElementaryRating)
	put(row, "middle_rating", s.MiddleRating)
	put(row, "high_rating", s.HighRating)
	put(row, "safety_rating", s.SafetyRating)
	put(row, "walkability_score", s.WalkabilityScore)
	put(row, "avg_home_value", s.AvgHomeValue)
	if s.Correlations != nil {
		row["wikipedia_correlations"] = s.Correlations
	}
	if len(s.Issues) > 0 {
		row["validation_issues"] = s.Issues
	}
	return row
}

func neighborhoodSilverFromRow(row map[string]any) models.NeighborhoodSilver {
	s := models.NeighborhoodSilver{
		NeighborhoodID:          rowString(row, "neighborhood_id"),
		Name:                    rowString(row, "name"),
		City:                    rowString(row, "city"),
		State:                   rowString(row, "state"),
		County:                  rowString(row, "county"),
		CityNormalized:          rowString(row, "city_normalized"),
		StateNormalized:         rowString(row, "state_normalized"),
		Latitude:                rowFloatPtr(row, "latitude"),
		Longitude:               rowFloatPtr(row, "longitude"),
		Description:             rowString(row, "description"),
		Amenities:               rowStrings(row, "amenities"),
		Characteristics:         rowStrings(row, "characteristics"),
		Tags:                    rowStrings(row, "tags"),
		Population:              rowFloatPtr(row, "population"),
		Households:              rowFloatPtr(row, "households"),
		MedianAge:               rowFloatPtr(row, "median_age"),
		MedianIncome:            rowFloatPtr(row, "median_income"),
		ElementaryRating:        rowFloatPtr(row, "elementary_rating"),
		MiddleRating:            rowFloatPtr(row, "middle_rating"),
		HighRating:              rowFloatPtr(row, "high_rating"),
		SafetyRating:            rowFloatPtr(row, "safety_rating"),
		WalkabilityScore:        rowFloatPtr(row, "walkability_score"),
		AvgHomeValue:            rowFloatPtr(row, "avg_home_value"),
		DemographicCompleteness: rowFloat(row, "demographic_completeness"),
		IncomeBracket:           models.IncomeBracket(rowString(row, "income_bracket")),
		Correlations:            rowJSON[models.WikipediaCorrelations](row, "wikipedia_correlations"),
		DataQualityScore:        rowFloat(row, "data_quality_score"),
		ValidationStatus:        models.ValidationStatus(rowString(row, "validation_status")),
		CorruptRecord:           rowString(row, "_corrupt_record"),
		SourceFile:              rowString(row, "source_file"),
		IngestedAt:              rowTime(row, "ingested_at"),
		ProcessedAt:             rowTime(row, "processed_at"),
	}
	if issues := rowJSON[[]models.ValidationIssue](row, "validation_issues"); issues != nil {
		s.Issues = *issues
	}
	return s
}
