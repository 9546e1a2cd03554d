package medallion

import (
	"time"

	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// propertyQualityWeights are the field-presence weights behind the property
// data_quality_score. They sum to 1.0 and are part of the data contract.
const (
	propertyWeightListingID   = 0.20
	propertyWeightPrice       = 0.20
	propertyWeightCity        = 0.15
	propertyWeightState       = 0.15
	propertyWeightSquareFeet  = 0.15
	propertyWeightDescription = 0.15
)

func propertyRawFromBronze(row map[string]any) models.PropertyRaw {
	return models.PropertyRaw{
		ListingID:       rowString(row, "listing_id"),
		Address:         rowJSON[models.Address](row, "address"),
		Coordinates:     rowJSON[models.Coordinates](row, "coordinates"),
		PropertyDetails: rowJSON[models.PropertyDetails](row, "property_details"),
		ListingPrice:    rowFloatPtr(row, "listing_price"),
		PricePerSqft:    rowFloatPtr(row, "price_per_sqft"),
		Description:     rowString(row, "description"),
		Features:        rowStrings(row, "features"),
		Amenities:       rowStrings(row, "amenities"),
		ListingDate:     rowString(row, "listing_date"),
		DaysOnMarket:    rowIntPtr(row, "days_on_market"),
		NeighborhoodID:  rowString(row, "neighborhood_id"),
		CorruptRecord:   rowString(row, "_corrupt_record"),
		SourceFile:      rowString(row, "source_file"),
	}
}

// CleanProperty applies the property Silver rules to one bronze row:
// flattening, trimming, range validation, normalization, derived scalars,
// and the quality score. Rows are never dropped; failures surface as nulled
// fields and recorded issues.
func CleanProperty(raw models.PropertyRaw, lk *Lookups, ingestedAt, processedAt time.Time) models.PropertySilver {
	v := newValidator()

	s := models.PropertySilver{
		ListingID:      cleanText(raw.ListingID),
		Description:    cleanText(raw.Description),
		Features:       normalizeArray(raw.Features),
		Amenities:      normalizeArray(raw.Amenities),
		ListingDate:    cleanText(raw.ListingDate),
		PriceHistory:   raw.PriceHistory,
		NeighborhoodID: cleanText(raw.NeighborhoodID),
		CorruptRecord:  raw.CorruptRecord,
		SourceFile:     raw.SourceFile,
		IngestedAt:     ingestedAt,
		ProcessedAt:    processedAt,
	}

	if raw.Address != nil {
		s.Street = cleanText(raw.Address.Street)
		s.City = cleanText(raw.Address.City)
		s.County = cleanText(raw.Address.County)
		s.State = cleanText(raw.Address.State)
		s.ZipCode = cleanText(raw.Address.Zip)
	}
	s.CityNormalized = lk.NormalizeCity(s.City)
	s.StateNormalized = lk.NormalizeState(s.State)

	if raw.Coordinates != nil {
		s.Latitude = v.inRange("latitude", raw.Coordinates.Lat, -90, 90)
		s.Longitude = v.inRange("longitude", raw.Coordinates.Lon, -180, 180)
	}

	s.ListingPrice = v.positive("listing_price", raw.ListingPrice)
	if raw.PropertyDetails != nil {
		d := raw.PropertyDetails
		s.SquareFeet = v.positive("square_feet", d.SquareFeet)
		s.Bedrooms = v.nonNegative("bedrooms", d.Bedrooms)
		s.Bathrooms = v.nonNegative("bathrooms", d.Bathrooms)
		s.PropertyType = cleanText(d.PropertyType)
		s.YearBuilt = v.intInRange("year_built", d.YearBuilt, 1800, 2100)
		s.LotSize = v.nonNegative("lot_size", d.LotSize)
		s.Stories = v.intInRange("stories", d.Stories, 1, 200)
		s.GarageSpaces = v.intInRange("garage_spaces", d.GarageSpaces, 0, 100)
	}
	s.DaysOnMarket = v.intInRange("days_on_market", raw.DaysOnMarket, 0, 100000)

	// Derived scalars. A recomputed price_per_sqft wins over the source value.
	s.PricePerSqft = v.positive("price_per_sqft", raw.PricePerSqft)
	if s.ListingPrice != nil && s.SquareFeet != nil {
		pps := *s.ListingPrice / *s.SquareFeet
		s.PricePerSqft = &pps
	}
	if s.ListingPrice != nil && s.Bedrooms != nil && *s.Bedrooms > 0 {
		ppb := *s.ListingPrice / *s.Bedrooms
		s.PricePerBedroom = &ppb
	}
	s.PriceCategory = models.PriceCategoryFor(s.ListingPrice)
	s.SizeCategory = models.SizeCategoryFor(s.SquareFeet)

	s.DataQualityScore = propertyQualityScore(s)
	s.ValidationStatus = models.StatusForScore(s.DataQualityScore, models.QualityThreshold(models.EntityProperty))
	s.Issues = v.issues
	return s
}

func propertyQualityScore(s models.PropertySilver) float64 {
	var score float64
	if s.ListingID != "" {
		score += propertyWeightListingID
	}
	if s.ListingPrice != nil {
		score += propertyWeightPrice
	}
	if s.City != "" {
		score += propertyWeightCity
	}
	if s.State != "" {
		score += propertyWeightState
	}
	if s.SquareFeet != nil {
		score += propertyWeightSquareFeet
	}
	if s.Description != "" {
		score += propertyWeightDescription
	}
	return clamp(score, 0, 1)
}

func propertySilverColumns() []store.Column {
	return []store.Column{
		{Name: "listing_id", Type: store.TypeText},
		{Name: "street", Type: store.TypeText},
		{Name: "city", Type: store.TypeText},
		{Name: "county", Type: store.TypeText},
		{Name: "state", Type: store.TypeText},
		{Name: "zip_code", Type: store.TypeText},
		{Name: "city_normalized", Type: store.TypeText},
		{Name: "state_normalized", Type: store.TypeText},
		{Name: "latitude", Type: store.TypeReal},
		{Name: "longitude", Type: store.TypeReal},
		{Name: "listing_price", Type: store.TypeReal},
		{Name: "price_per_sqft", Type: store.TypeReal},
		{Name: "price_per_bedroom", Type: store.TypeReal},
		{Name: "square_feet", Type: store.TypeReal},
		{Name: "bedrooms", Type: store.TypeReal},
		{Name: "bathrooms", Type: store.TypeReal},
		{Name: "property_type", Type: store.TypeText},
		{Name: "year_built", Type: store.TypeInteger},
		{Name: "lot_size", Type: store.TypeReal},
		{Name: "stories", Type: store.TypeInteger},
		{Name: "garage_spaces", Type: store.TypeInteger},
		{Name: "price_category", Type: store.TypeText},
		{Name: "size_category", Type: store.TypeText},
		{Name: "description", Type: store.TypeText},
		{Name: "features", Type: store.TypeJSON},
		{Name: "amenities", Type: store.TypeJSON},
		{Name: "listing_date", Type: store.TypeText},
		{Name: "days_on_market", Type: store.TypeInteger},
		{Name: "price_history", Type: store.TypeJSON},
		{Name: "neighborhood_id", Type: store.TypeText},
		{Name: "data_quality_score", Type: store.TypeReal},
		{Name: "validation_status", Type: store.TypeText},
		{Name: "validation_issues", Type: store.TypeJSON},
		{Name: "_corrupt_record", Type: store.TypeText},
		{Name: "source_file", Type: store.TypeText},
		{Name: "ingested_at", Type: store.TypeTimestamp},
		{Name: "processed_at", Type: store.TypeTimestamp},
	}
}

func propertySilverRow(s models.PropertySilver) map[string]any {
	row := map[string]any{
		"features":           s.Features,
		"amenities":          s.Amenities,
		"price_category":     string(s.PriceCategory),
		"size_category":      string(s.SizeCategory),
		"data_quality_score": s.DataQualityScore,
		"validation_status":  string(s.ValidationStatus),
		"ingested_at":        s.IngestedAt,
		"processed_at":       s.ProcessedAt,
	}
	putString(row, "listing_id", s.ListingID)
	putString(row, "street", s.Street)
	putString(row, "city", s.City)
	putString(row, "county", s.County)
	putString(row, "state", s.State)
	putString(row, "zip_code", s.ZipCode)
	putString(row, "city_normalized", s.CityNormalized)
	putString(row, "state_normalized", s.StateNormalized)
	putString(row, "property_type", s.PropertyType)
	putString(row, "description", s.Description)
	putString(row, "listing_date", s.ListingDate)
	putString(row, "neighborhood_id", s.NeighborhoodID)
	putString(row, "_corrupt_record", s.CorruptRecord)
	putString(row, "source_file", s.SourceFile)
	put(row, "latitude", s.Latitude)
	put(row, "longitude", s.Longitude)
	put(row, "listing_price", s.ListingPrice)
	put(row, "price_per_sqft", s.PricePerSqft)
	put(row, "price_per_bedroom", s.PricePerBedroom)
	put(row, "square_feet", s.SquareFeet)
	put(row, "bedrooms", s.Bedrooms)
	put(row, "bathrooms", s.Bathrooms)
	put(row, "year_built", s.YearBuilt)
	put(row, "lot_size", s.LotSize)
	put(row, "stories", s.Stories)
	put(row, "garage_spaces", s.GarageSpaces)
	put(row, "days_on_market", s.DaysOnMarket)
	if len(s.PriceHistory) > 0 {
		row["price_history"] = s.PriceHistory
	}
	if len(s.Issues) > 0 {
		row["validation_issues"] = s.Issues
	}
	return row
}

func propertySilverFromRow(row map[string]any) models.PropertySilver {
	s := models.PropertySilver{
		ListingID:        rowString(row, "listing_id"),
		Street:           rowString(row, "street"),
		City:             rowString(row, "city"),
		County:           rowString(row, "county"),
		State:            rowString(row, "state"),
		ZipCode:          rowString(row, "zip_code"),
		CityNormalized:   rowString(row, "city_normalized"),
		StateNormalized:  rowString(row, "state_normalized"),
		Latitude:         rowFloatPtr(row, "latitude"),
		Longitude:        rowFloatPtr(row, "longitude"),
		ListingPrice:     rowFloatPtr(row, "listing_price"),
		PricePerSqft:     rowFloatPtr(row, "price_per_sqft"),
		PricePerBedroom:  rowFloatPtr(row, "price_per_bedroom"),
		SquareFeet:       rowFloatPtr(row, "square_feet"),
		Bedrooms:         rowFloatPtr(row, "bedrooms"),
		Bathrooms:        rowFloatPtr(row, "bathrooms"),
		PropertyType:     rowString(row, "property_type"),
		YearBuilt:        rowIntPtr(row, "year_built"),
		LotSize:          rowFloatPtr(row, "lot_size"),
		Stories:          rowIntPtr(row, "stories"),
		GarageSpaces:     rowIntPtr(row, "garage_spaces"),
		PriceCategory:    models.PriceCategory(rowString(row, "price_category")),
		SizeCategory:     models.SizeCategory(rowString(row, "size_category")),
		Description:      rowString(row, "description"),
		Features:         rowStrings(row, "features"),
		Amenities:        rowStrings(row, "amenities"),
		ListingDate:      rowString(row, "listing_date"),
		DaysOnMarket:     rowIntPtr(row, "days_on_market"),
		NeighborhoodID:   rowString(row, "neighborhood_id"),
		DataQualityScore: rowFloat(row, "data_quality_score"),
		ValidationStatus: models.ValidationStatus(rowString(row, "validation_status")),
		CorruptRecord:    rowString(row, "_corrupt_record"),
		SourceFile:       rowString(row, "source_file"),
		IngestedAt:       rowTime(row, "ingested_at"),
		ProcessedAt:      rowTime(row, "processed_at"),
	}
	if history := rowJSON[[]models.PriceEvent](row, "price_history"); history != nil {
		s.PriceHistory = *history
	}
	if issues := rowJSON[[]models.ValidationIssue](row, "validation_issues"); issues != nil {
		s.Issues = *issues
	}
	return s
}
