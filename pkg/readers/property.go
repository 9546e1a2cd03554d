package readers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/jsonutil"
	"github.com/estategraph/estate-engine/pkg/models"
)

// PropertyReader loads property listings from a JSON array file or a
// directory of JSON files.
type PropertyReader struct {
	logger *zap.Logger
}

// NewPropertyReader creates a property reader.
func NewPropertyReader(logger *zap.Logger) *PropertyReader {
	return &PropertyReader{logger: logger.Named("reader").With(zap.String("entity", "property"))}
}

// propertyDoc is the lenient decode shape; coercion failures on any field
// fail the element and corrupt the row.
type propertyDoc struct {
	ListingID       jsonutil.FlexString      `json:"listing_id"`
	Address         *addressDoc              `json:"address"`
	Coordinates     *coordinatesDoc          `json:"coordinates"`
	PropertyDetails *propertyDetailsDoc      `json:"property_details"`
	ListingPrice    jsonutil.FlexFloat       `json:"listing_price"`
	Price           jsonutil.FlexFloat       `json:"price"`
	PricePerSqft    jsonutil.FlexFloat       `json:"price_per_sqft"`
	SquareFeet      jsonutil.FlexFloat       `json:"square_feet"`
	Bedrooms        jsonutil.FlexFloat       `json:"bedrooms"`
	Bathrooms       jsonutil.FlexFloat       `json:"bathrooms"`
	Description     jsonutil.FlexString      `json:"description"`
	Features        jsonutil.FlexStringSlice `json:"features"`
	Amenities       jsonutil.FlexStringSlice `json:"amenities"`
	ListingDate     jsonutil.FlexString      `json:"listing_date"`
	DaysOnMarket    jsonutil.FlexInt         `json:"days_on_market"`
	PriceHistory    []priceEventDoc          `json:"price_history"`
	NeighborhoodID  jsonutil.FlexString      `json:"neighborhood_id"`
}

type addressDoc struct {
	Street jsonutil.FlexString `json:"street"`
	City   jsonutil.FlexString `json:"city"`
	County jsonutil.FlexString `json:"county"`
	State  jsonutil.FlexString `json:"state"`
	Zip    jsonutil.FlexString `json:"zip"`
}

type coordinatesDoc struct {
	Lat jsonutil.FlexFloat `json:"lat"`
	Lon jsonutil.FlexFloat `json:"lon"`
}

type propertyDetailsDoc struct {
	SquareFeet   jsonutil.FlexFloat  `json:"square_feet"`
	Bedrooms     jsonutil.FlexFloat  `json:"bedrooms"`
	Bathrooms    jsonutil.FlexFloat  `json:"bathrooms"`
	PropertyType jsonutil.FlexString `json:"property_type"`
	YearBuilt    jsonutil.FlexInt    `json:"year_built"`
	LotSize      jsonutil.FlexFloat  `json:"lot_size"`
	Stories      jsonutil.FlexInt    `json:"stories"`
	GarageSpaces jsonutil.FlexInt    `json:"garage_spaces"`
}

type priceEventDoc struct {
	Date  jsonutil.FlexString `json:"date"`
	Price jsonutil.FlexFloat  `json:"price"`
	Event jsonutil.FlexString `json:"event"`
}

// Read loads up to limit rows (0 reads all). Corrupt elements are returned
// as rows with only CorruptRecord set.
func (r *PropertyReader) Read(ctx context.Context, path string, limit int) ([]models.PropertyRaw, ReadStats, error) {
	elements, err := loadElements(path, limit)
	if err != nil {
		return nil, ReadStats{SourcePath: path}, err
	}

	stats := ReadStats{SourcePath: path}
	rows := make([]models.PropertyRaw, 0, len(elements))
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return rows, stats, err
		}
		stats.RowsRead++

		var doc propertyDoc
		if err := json.Unmarshal(el.raw, &doc); err != nil {
			stats.RowsCorrupt++
			rows = append(rows, models.PropertyRaw{
				ListingID:     salvageKey(el.raw, "listing_id"),
				CorruptRecord: corruptText(el.raw, err),
				SourceFile:    el.sourceFile,
			})
			continue
		}
		rows = append(rows, docToProperty(doc, el.sourceFile))
	}

	r.logger.Info("source read",
		zap.String("path", path),
		zap.Int("rows", stats.RowsRead),
		zap.Int("corrupt", stats.RowsCorrupt))
	return rows, stats, nil
}

func docToProperty(doc propertyDoc, sourceFile string) models.PropertyRaw {
	row := models.PropertyRaw{
		ListingID:      doc.ListingID.Value,
		ListingPrice:   doc.ListingPrice.Ptr(),
		PricePerSqft:   doc.PricePerSqft.Ptr(),
		Description:    doc.Description.Value,
		Features:       orEmpty(doc.Features),
		Amenities:      orEmpty(doc.Amenities),
		ListingDate:    doc.ListingDate.Value,
		DaysOnMarket:   doc.DaysOnMarket.Ptr(),
		NeighborhoodID: doc.NeighborhoodID.Value,
		SourceFile:     sourceFile,
	}

	// Some exports use "price" and flat physical fields instead of the
	// nested blocks; fold them in rather than dropping the row.
	if row.ListingPrice == nil {
		row.ListingPrice = doc.Price.Ptr()
	}

	if doc.Address != nil {
		row.Address = &models.Address{
			Street: doc.Address.Street.Value,
			City:   doc.Address.City.Value,
			County: doc.Address.County.Value,
			State:  doc.Address.State.Value,
			Zip:    doc.Address.Zip.Value,
		}
	}
	if doc.Coordinates != nil {
		row.Coordinates = &models.Coordinates{
			Lat: doc.Coordinates.Lat.Ptr(),
			Lon: doc.Coordinates.Lon.Ptr(),
		}
	}

	details := models.PropertyDetails{
		SquareFeet: doc.SquareFeet.Ptr(),
		Bedrooms:   doc.Bedrooms.Ptr(),
		Bathrooms:  doc.Bathrooms.Ptr(),
	}
	if doc.PropertyDetails != nil {
		details = models.PropertyDetails{
			SquareFeet:   doc.PropertyDetails.SquareFeet.Ptr(),
			Bedrooms:     doc.PropertyDetails.Bedrooms.Ptr(),
			Bathrooms:    doc.PropertyDetails.Bathrooms.Ptr(),
			PropertyType: doc.PropertyDetails.PropertyType.Value,
			YearBuilt:    doc.PropertyDetails.YearBuilt.Ptr(),
			LotSize:      doc.PropertyDetails.LotSize.Ptr(),
			Stories:      doc.PropertyDetails.Stories.Ptr(),
			GarageSpaces: doc.PropertyDetails.GarageSpaces.Ptr(),
		}
	}
	if details != (models.PropertyDetails{}) {
		row.PropertyDetails = &details
	}

	for _, ev := range doc.PriceHistory {
		row.PriceHistory = append(row.PriceHistory, models.PriceEvent{
			Date:  ev.Date.Value,
			Price: ev.Price.Ptr(),
			Event: ev.Event.Value,
		})
	}
	return row
}
