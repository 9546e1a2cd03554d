package readers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/jsonutil"
	"github.com/estategraph/estate-engine/pkg/models"
)

// LocationReader loads the location reference file: rows of
// {state, county, city, neighborhood} where any field may be null to
// represent a higher-level entry.
type LocationReader struct {
	logger *zap.Logger
}

// NewLocationReader creates a location reference reader.
func NewLocationReader(logger *zap.Logger) *LocationReader {
	return &LocationReader{logger: logger.Named("reader").With(zap.String("entity", "location"))}
}

type locationDoc struct {
	State        jsonutil.FlexString `json:"state"`
	County       jsonutil.FlexString `json:"county"`
	City         jsonutil.FlexString `json:"city"`
	Neighborhood jsonutil.FlexString `json:"neighborhood"`
}

// Read loads the full reference (limit 0) or its first limit rows.
func (r *LocationReader) Read(ctx context.Context, path string, limit int) ([]models.LocationRef, ReadStats, error) {
	elements, err := loadElements(path, limit)
	if err != nil {
		return nil, ReadStats{SourcePath: path}, err
	}

	stats := ReadStats{SourcePath: path}
	rows := make([]models.LocationRef, 0, len(elements))
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return rows, stats, err
		}
		stats.RowsRead++

		var doc locationDoc
		if err := json.Unmarshal(el.raw, &doc); err != nil {
			stats.RowsCorrupt++
			rows = append(rows, models.LocationRef{
				CorruptRecord: corruptText(el.raw, err),
				SourceFile:    el.sourceFile,
			})
			continue
		}
		rows = append(rows, models.LocationRef{
			State:        doc.State.Value,
			County:       doc.County.Value,
			City:         doc.City.Value,
			Neighborhood: doc.Neighborhood.Value,
			SourceFile:   el.sourceFile,
		})
	}

	r.logger.Info("source read",
		zap.String("path", path),
		zap.Int("rows", stats.RowsRead),
		zap.Int("corrupt", stats.RowsCorrupt))
	return rows, stats, nil
}
