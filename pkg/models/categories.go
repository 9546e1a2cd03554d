package models

// Categorical bands assigned at the Silver tier. Band edges are part of the
// data contract; changing them changes downstream schemas.

// ============================================================================
// Price Category (property)
// ============================================================================

type PriceCategory string

const (
	PriceBudget   PriceCategory = "budget"    // < 200k
	PriceMidRange PriceCategory = "mid-range" // < 500k
	PriceHighEnd  PriceCategory = "high-end"  // < 1M
	PriceLuxury   PriceCategory = "luxury"    // >= 1M
	PriceUnknown  PriceCategory = "unknown"
)

// PriceCategoryFor assigns the price band. A nil price is unknown.
func PriceCategoryFor(price *float64) PriceCategory {
	if price == nil || *price <= 0 {
		return PriceUnknown
	}
	switch {
	case *price < 200_000:
		return PriceBudget
	case *price < 500_000:
		return PriceMidRange
	case *price < 1_000_000:
		return PriceHighEnd
	default:
		return PriceLuxury
	}
}

// ============================================================================
// Size Category (property)
// ============================================================================

type SizeCategory string

const (
	SizeSmall      SizeCategory = "small"       // < 1000 sqft
	SizeMedium     SizeCategory = "medium"      // <= 2000 sqft
	SizeLarge      SizeCategory = "large"       // <= 3500 sqft
	SizeExtraLarge SizeCategory = "extra-large" // > 3500 sqft
	SizeUnknown    SizeCategory = "unknown"
)

// SizeCategoryFor assigns the square-footage band. A nil size is unknown.
func SizeCategoryFor(squareFeet *float64) SizeCategory {
	if squareFeet == nil || *squareFeet <= 0 {
		return SizeUnknown
	}
	switch {
	case *squareFeet < 1000:
		return SizeSmall
	case *squareFeet <= 2000:
		return SizeMedium
	case *squareFeet <= 3500:
		return SizeLarge
	default:
		return SizeExtraLarge
	}
}

// ============================================================================
// Income Bracket (neighborhood)
// ============================================================================

type IncomeBracket string

const (
	IncomeLow         IncomeBracket = "low"          // < 30k
	IncomeLowerMiddle IncomeBracket = "lower-middle" // < 60k
	IncomeMiddle      IncomeBracket = "middle"       // < 100k
	IncomeUpperMiddle IncomeBracket = "upper-middle" // < 150k
	IncomeHigh        IncomeBracket = "high"         // >= 150k
	IncomeUnknown     IncomeBracket = "unknown"
)

// IncomeBracketFor assigns the median-income band. A nil income is unknown.
func IncomeBracketFor(medianIncome *float64) IncomeBracket {
	if medianIncome == nil || *medianIncome < 0 {
		return IncomeUnknown
	}
	switch {
	case *medianIncome < 30_000:
		return IncomeLow
	case *medianIncome < 60_000:
		return IncomeLowerMiddle
	case *medianIncome < 100_000:
		return IncomeMiddle
	case *medianIncome < 150_000:
		return IncomeUpperMiddle
	default:
		return IncomeHigh
	}
}

// ============================================================================
// Location Specificity (wikipedia)
// ============================================================================

type LocationSpecificity string

const (
	LocationCityAndState LocationSpecificity = "city_and_state"
	LocationStateOnly    LocationSpecificity = "state_only"
	LocationCityOnly     LocationSpecificity = "city_only"
	LocationNone         LocationSpecificity = "none"
)

// LocationSpecificityFor classifies which location fields an article carries.
func LocationSpecificityFor(bestCity, bestState string) LocationSpecificity {
	switch {
	case bestCity != "" && bestState != "":
		return LocationCityAndState
	case bestState != "":
		return LocationStateOnly
	case bestCity != "":
		return LocationCityOnly
	default:
		return LocationNone
	}
}

// ============================================================================
// Relevance Category (wikipedia)
// ============================================================================

type RelevanceCategory string

const (
	RelevanceHigh     RelevanceCategory = "highly_relevant"
	RelevanceRelevant RelevanceCategory = "relevant"
	RelevanceMarginal RelevanceCategory = "marginal"
	RelevanceLow      RelevanceCategory = "low"
)

// RelevanceCategoryFor derives the band from a composite location-relevance
// score: confidence weighted at 0.6 plus normalized relevance weighted at 0.4.
// Missing inputs contribute zero.
func RelevanceCategoryFor(confidence, relevanceScore float64) RelevanceCategory {
	normalized := relevanceScore / 10
	if normalized > 1 {
		normalized = 1
	}
	if normalized < 0 {
		normalized = 0
	}
	composite := confidence*0.6 + normalized*0.4
	switch {
	case composite >= 0.8:
		return RelevanceHigh
	case composite >= 0.5:
		return RelevanceRelevant
	case composite >= 0.25:
		return RelevanceMarginal
	default:
		return RelevanceLow
	}
}
