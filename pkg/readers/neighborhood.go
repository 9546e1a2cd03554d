package readers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/jsonutil"
	"github.com/estategraph/estate-engine/pkg/models"
)

// NeighborhoodReader loads neighborhood records from a JSON array file or a
// directory of JSON files. The nested wikipedia_correlations structure is
// preserved verbatim through the tiers.
type NeighborhoodReader struct {
	logger *zap.Logger
}

// NewNeighborhoodReader creates a neighborhood reader.
func NewNeighborhoodReader(logger *zap.Logger) *NeighborhoodReader {
	return &NeighborhoodReader{logger: logger.Named("reader").With(zap.String("entity", "neighborhood"))}
}

type neighborhoodDoc struct {
	NeighborhoodID   jsonutil.FlexString           `json:"neighborhood_id"`
	Name             jsonutil.FlexString           `json:"name"`
	City             jsonutil.FlexString           `json:"city"`
	State            jsonutil.FlexString           `json:"state"`
	County           jsonutil.FlexString           `json:"county"`
	Coordinates      *coordinatesDoc               `json:"coordinates"`
	Description      jsonutil.FlexString           `json:"description"`
	Amenities        jsonutil.FlexStringSlice      `json:"amenities"`
	Characteristics  jsonutil.FlexStringSlice      `json:"characteristics"`
	Tags             jsonutil.FlexStringSlice      `json:"tags"`
	Demographics     *demographicsDoc              `json:"demographics"`
	SchoolRatings    *schoolRatingsDoc             `json:"school_ratings"`
	SafetyRating     jsonutil.FlexFloat            `json:"safety_rating"`
	WalkabilityScore jsonutil.FlexFloat            `json:"walkability_score"`
	AvgHomeValue     jsonutil.FlexFloat            `json:"avg_home_value"`
	Correlations     *models.WikipediaCorrelations `json:"wikipedia_correlations"`
}

type demographicsDoc struct {
	Population   jsonutil.FlexFloat `json:"population"`
	Households   jsonutil.FlexFloat `json:"households"`
	MedianAge    jsonutil.FlexFloat `json:"median_age"`
	MedianIncome jsonutil.FlexFloat `json:"median_income"`
}

type schoolRatingsDoc struct {
	Elementary jsonutil.FlexFloat `json:"elementary"`
	Middle     jsonutil.FlexFloat `json:"middle"`
	High       jsonutil.FlexFloat `json:"high"`
}

// Read loads up to limit rows (0 reads all).
func (r *NeighborhoodReader) Read(ctx context.Context, path string, limit int) ([]models.NeighborhoodRaw, ReadStats, error) {
	elements, err := loadElements(path, limit)
	if err != nil {
		return nil, ReadStats{SourcePath: path}, err
	}

	stats := ReadStats{SourcePath: path}
	rows := make([]models.NeighborhoodRaw, 0, len(elements))
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return rows, stats, err
		}
		stats.RowsRead++

		var doc neighborhoodDoc
		if err := json.Unmarshal(el.raw, &doc); err != nil {
			stats.RowsCorrupt++
			rows = append(rows, models.NeighborhoodRaw{
				NeighborhoodID: salvageKey(el.raw, "neighborhood_id"),
				CorruptRecord:  corruptText(el.raw, err),
				SourceFile:     el.sourceFile,
			})
			continue
		}
		rows = append(rows, docToNeighborhood(doc, el.sourceFile))
	}

	r.logger.Info("source read",
		zap.String("path", path),
		zap.Int("rows", stats.RowsRead),
		zap.Int("corrupt", stats.RowsCorrupt))
	return rows, stats, nil
}

func docToNeighborhood(doc neighborhoodDoc, sourceFile string) models.NeighborhoodRaw {
	row := models.NeighborhoodRaw{
		NeighborhoodID:   doc.NeighborhoodID.Value,
		Name:             doc.Name.Value,
		City:             doc.City.Value,
		State:            doc.State.Value,
		County:           doc.County.Value,
		Description:      doc.Description.Value,
		Amenities:        orEmpty(doc.Amenities),
		Characteristics:  orEmpty(doc.Characteristics),
		Tags:             orEmpty(doc.Tags),
		SafetyRating:     doc.SafetyRating.Ptr(),
		WalkabilityScore: doc.WalkabilityScore.Ptr(),
		AvgHomeValue:     doc.AvgHomeValue.Ptr(),
		Correlations:     doc.Correlations,
		SourceFile:       sourceFile,
	}

	if doc.Coordinates != nil {
		row.Coordinates = &models.Coordinates{
			Lat: doc.Coordinates.Lat.Ptr(),
			Lon: doc.Coordinates.Lon.Ptr(),
		}
	}
	if doc.Demographics != nil {
		row.Demographics = &models.Demographics{
			Population:   doc.Demographics.Population.Ptr(),
			Households:   doc.Demographics.Households.Ptr(),
			MedianAge:    doc.Demographics.MedianAge.Ptr(),
			MedianIncome: doc.Demographics.MedianIncome.Ptr(),
		}
	}
	if doc.SchoolRatings != nil {
		row.SchoolRatings = &models.SchoolRatings{
			Elementary: doc.SchoolRatings.Elementary.Ptr(),
			Middle:     doc.SchoolRatings.Middle.Ptr(),
			High:       doc.SchoolRatings.High.Ptr(),
		}
	}
	return row
}
