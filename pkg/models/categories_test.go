package models

import "testing"

func f64(v float64) *float64 { return &v }

func TestPriceCategoryFor(t *testing.T) {
	tests := []struct {
		name  string
		price *float64
		want  PriceCategory
	}{
		{"nil price", nil, PriceUnknown},
		{"zero price", f64(0), PriceUnknown},
		{"negative price", f64(-1), PriceUnknown},
		{"budget", f64(150_000), PriceBudget},
		{"boundary 200k is mid-range", f64(200_000), PriceMidRange},
		{"mid-range", f64(450_000), PriceMidRange},
		{"boundary 500k is high-end", f64(500_000), PriceHighEnd},
		{"high-end", f64(800_000), PriceHighEnd},
		{"boundary 1M is luxury", f64(1_000_000), PriceLuxury},
		{"luxury", f64(2_500_000), PriceLuxury},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceCategoryFor(tt.price); got != tt.want {
				t.Errorf("PriceCategoryFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSizeCategoryFor(t *testing.T) {
	tests := []struct {
		name string
		sqft *float64
		want SizeCategory
	}{
		{"nil", nil, SizeUnknown},
		{"small", f64(800), SizeSmall},
		{"boundary 1000 is medium", f64(1000), SizeMedium},
		{"medium", f64(1999), SizeMedium},
		{"boundary 2000 is medium", f64(2000), SizeMedium},
		{"large", f64(2000), SizeLarge},
		{"boundary 3500 is extra-large", f64(3500), SizeExtraLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SizeCategoryFor(tt.sqft); got != tt.want {
				t.Errorf("SizeCategoryFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIncomeBracketFor(t *testing.T) {
	tests := []struct {
		name   string
		income *float64
		want   IncomeBracket
	}{
		{"nil", nil, IncomeUnknown},
		{"low", f64(25_000), IncomeLow},
		{"lower-middle", f64(45_000), IncomeLowerMiddle},
		{"middle", f64(75_000), IncomeMiddle},
		{"upper-middle", f64(120_000), IncomeUpperMiddle},
		{"high", f64(200_000), IncomeHigh},
		{"boundary 150k is high", f64(150_000), IncomeHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IncomeBracketFor(tt.income); got != tt.want {
				t.Errorf("IncomeBracketFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocationSpecificityFor(t *testing.T) {
	tests := []struct {
		name  string
		city  string
		state string
		want  LocationSpecificity
	}{
		{"both", "San Francisco", "California", LocationCityAndState},
		{"state only", "", "California", LocationStateOnly},
		{"city only", "San Francisco", "", LocationCityOnly},
		{"neither", "", "", LocationNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocationSpecificityFor(tt.city, tt.state); got != tt.want {
				t.Errorf("LocationSpecificityFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelevanceCategoryFor(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		relevance  float64
		want       RelevanceCategory
	}{
		{"high confidence high relevance", 0.9, 9, RelevanceHigh},
		{"confidence gate article with no relevance score", 0.85, 0, RelevanceRelevant},
		{"middling both", 0.5, 3, RelevanceMarginal},
		{"nothing", 0, 0, RelevanceLow},
		{"relevance clamps above 10", 0.5, 50, RelevanceRelevant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelevanceCategoryFor(tt.confidence, tt.relevance); got != tt.want {
				t.Errorf("RelevanceCategoryFor(%v, %v) = %q, want %q", tt.confidence, tt.relevance, got, tt.want)
			}
		})
	}
}
