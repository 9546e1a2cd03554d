package medallion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/estategraph/estate-engine/pkg/models"
)

// Embedding text templates. Each entity's text is assembled from fixed
// segments joined by " | "; missing values render as "N/A". The segment
// order is part of the data contract and versioned with the schema.

const segmentSeparator = " | "

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func floatOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func joinedOrNA(items []string) string {
	if len(items) == 0 {
		return "N/A"
	}
	return strings.Join(items, ", ")
}

// PropertyEmbeddingText renders the canonical property embedding text.
func PropertyEmbeddingText(s models.PropertySilver) string {
	title := s.Street
	if title == "" {
		title = "Property " + orNA(s.ListingID)
	}

	price := "N/A"
	if s.ListingPrice != nil {
		price = fmt.Sprintf("$%.0f", *s.ListingPrice)
	}
	location := strings.TrimSpace(s.CityNormalized + " " + s.StateNormalized)

	return strings.Join([]string{
		title,
		"Property Type: " + orNA(s.PropertyType),
		"Price: " + price,
		"Bedrooms: " + floatOrNA(s.Bedrooms),
		"Bathrooms: " + floatOrNA(s.Bathrooms),
		"Square Feet: " + floatOrNA(s.SquareFeet),
		"Location: " + orNA(location),
		"Features: " + joinedOrNA(s.Features),
		orNA(s.Description),
	}, segmentSeparator)
}

// NeighborhoodEmbeddingText renders the canonical neighborhood embedding text.
func NeighborhoodEmbeddingText(s models.NeighborhoodSilver) string {
	title := s.Name
	if title == "" {
		title = "Neighborhood " + orNA(s.NeighborhoodID)
	}

	location := s.CityNormalized
	if s.StateNormalized != "" {
		if location != "" {
			location += ", "
		}
		location += s.StateNormalized
	}

	return strings.Join([]string{
		title,
		"Neighborhood in " + orNA(location),
		"Income Bracket: " + orNA(string(s.IncomeBracket)),
		"Amenities: " + joinedOrNA(s.Amenities),
		"Characteristics: " + joinedOrNA(s.Characteristics),
		orNA(s.Description),
	}, segmentSeparator)
}

// WikipediaEmbeddingText renders the canonical article embedding text.
// The long summary is preferred, falling back to the short one.
func WikipediaEmbeddingText(s models.WikipediaSilver) string {
	location := strings.TrimSpace(s.CityNormalized + " " + s.StateNormalized)
	summary := s.LongSummary
	if summary == "" {
		summary = s.ShortSummary
	}

	return strings.Join([]string{
		orNA(s.Title),
		"Location: " + orNA(location),
		"Topics: " + joinedOrNA(s.KeyTopics),
		orNA(summary),
	}, segmentSeparator)
}
