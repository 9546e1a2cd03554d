package medallion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/apperrors"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/readers"
	"github.com/estategraph/estate-engine/pkg/store"
)

// BronzeProcessor writes the raw image of each source into the run's
// {entity}_bronze_{runId} table: source columns as declared, nested blocks
// as JSON, plus ingested_at, source_file, and _corrupt_record.
type BronzeProcessor struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewBronzeProcessor creates a bronze processor against the shared store.
func NewBronzeProcessor(st store.Store, logger *zap.Logger) *BronzeProcessor {
	return &BronzeProcessor{
		store:  st,
		logger: logger.Named("bronze"),
		now:    time.Now,
	}
}

// checkCorruption aborts only when every row of a non-empty source failed
// coercion. Partial corruption flows through as flagged rows.
func checkCorruption(entity models.Entity, stats readers.ReadStats) error {
	if stats.RowsRead > 0 && stats.RowsCorrupt == stats.RowsRead {
		return fmt.Errorf("%w: %s source %s (%d rows)",
			apperrors.ErrAllRowsCorrupt, entity, stats.SourcePath, stats.RowsRead)
	}
	return nil
}

func (p *BronzeProcessor) logTable(id models.TableID, rows, corrupt int) {
	p.logger.Info("bronze table created",
		zap.String("table", id.Name()),
		zap.Int("rows", rows),
		zap.Int("corrupt", corrupt))
}

func processedTable(id models.TableID, rows int) models.ProcessedTable {
	return models.ProcessedTable{
		Name:         id.Name(),
		Entity:       id.Entity,
		Tier:         id.Tier,
		RecordCount:  int64(rows),
		RunTimestamp: time.Now().UTC(),
	}
}

// ============================================================================
// Property
// ============================================================================

func propertyBronzeColumns() []store.Column {
	return []store.Column{
		{Name: "listing_id", Type: store.TypeText},
		{Name: "address", Type: store.TypeJSON},
		{Name: "coordinates", Type: store.TypeJSON},
		{Name: "property_details", Type: store.TypeJSON},
		{Name: "listing_price", Type: store.TypeReal},
		{Name: "price_per_sqft", Type: store.TypeReal},
		{Name: "description", Type: store.TypeText},
		{Name: "features", Type: store.TypeJSON},
		{Name: "amenities", Type: store.TypeJSON},
		{Name: "listing_date", Type: store.TypeText},
		{Name: "days_on_market", Type: store.TypeInteger},
		{Name: "price_history", Type: store.TypeJSON},
		{Name: "neighborhood_id", Type: store.TypeText},
		{Name: "ingested_at", Type: store.TypeTimestamp},
		{Name: "source_file", Type: store.TypeText},
		{Name: "_corrupt_record", Type: store.TypeText},
	}
}

func propertyBronzeRow(raw models.PropertyRaw, ingestedAt time.Time) map[string]any {
	row := map[string]any{
		"ingested_at": ingestedAt,
	}
	putString(row, "listing_id", raw.ListingID)
	putString(row, "description", raw.Description)
	putString(row, "listing_date", raw.ListingDate)
	putString(row, "neighborhood_id", raw.NeighborhoodID)
	putString(row, "source_file", raw.SourceFile)
	putString(row, "_corrupt_record", raw.CorruptRecord)
	put(row, "listing_price", raw.ListingPrice)
	put(row, "price_per_sqft", raw.PricePerSqft)
	put(row, "days_on_market", raw.DaysOnMarket)
	if raw.Address != nil {
		row["address"] = raw.Address
	}
	if raw.Coordinates != nil {
		row["coordinates"] = raw.Coordinates
	}
	if raw.PropertyDetails != nil {
		row["property_details"] = raw.PropertyDetails
	}
	if raw.CorruptRecord == "" {
		row["features"] = raw.Features
		row["amenities"] = raw.Amenities
	}
	if len(raw.PriceHistory) > 0 {
		row["price_history"] = raw.PriceHistory
	}
	return row
}

// ProcessProperties writes the property bronze table.
func (p *BronzeProcessor) ProcessProperties(ctx context.Context, runID int64, raws []models.PropertyRaw, stats readers.ReadStats) (models.ProcessedTable, error) {
	if err := checkCorruption(models.EntityProperty, stats); err != nil {
		return models.ProcessedTable{}, err
	}

	id := models.TableID{Entity: models.EntityProperty, Tier: models.TierBronze, RunID: runID}
	ingestedAt := p.now().UTC()
	rows := make([]map[string]any, len(raws))
	for i, raw := range raws {
		rows[i] = propertyBronzeRow(raw, ingestedAt)
	}
	if err := p.store.CreateTableFromRows(ctx, id, propertyBronzeColumns(), rows); err != nil {
		return models.ProcessedTable{}, err
	}
	p.logTable(id, stats.RowsRead, stats.RowsCorrupt)
	return processedTable(id, len(rows)), nil
}

// ============================================================================
// Neighborhood
// ============================================================================

func neighborhoodBronzeColumns() []store.Column {
	return []store.Column{
		{Name: "neighborhood_id", Type: store.TypeText},
		{Name: "name", Type: store.TypeText},
		{Name: "city", Type: store.TypeText},
		{Name: "state", Type: store.TypeText},
		{Name: "county", Type: store.TypeText},
		{Name: "coordinates", Type: store.TypeJSON},
		{Name: "description", Type: store.TypeText},
		{Name: "amenities", Type: store.TypeJSON},
		{Name: "characteristics", Type: store.TypeJSON},
		{Name: "tags", Type: store.TypeJSON},
		{Name: "demographics", Type: store.TypeJSON},
		{Name: "school_ratings", Type: store.TypeJSON},
		{Name: "safety_rating", Type: store.TypeReal},
		{Name: "walkability_score", Type: store.TypeReal},
		{Name: "avg_home_value", Type: store.TypeReal},
		{Name: "wikipedia_correlations", Type: store.TypeJSON},
		{Name: "ingested_at", Type: store.TypeTimestamp},
		{Name: "source_file", Type: store.TypeText},
		{Name: "_corrupt_record", Type: store.TypeText},
	}
}

func neighborhoodBronzeRow(raw models.NeighborhoodRaw, ingestedAt time.Time) map[string]any {
	row := map[string]any{
		"ingested_at": ingestedAt,
	}
	putString(row, "neighborhood_id", raw.NeighborhoodID)
	putString(row, "name", raw.Name)
	putString(row, "city", raw.City)
	putString(row, "state", raw.State)
	putString(row, "county", raw.County)
	putString(row, "description", raw.Description)
	putString(row, "source_file", raw.SourceFile)
	putString(row, "_corrupt_record", raw.CorruptRecord)
	put(row, "safety_rating", raw.SafetyRating)
	put(row, "walkability_score", raw.WalkabilityScore)
	put(row, "avg_home_value", raw.AvgHomeValue)
	if raw.Coordinates != nil {
		row["coordinates"] = raw.Coordinates
	}
	if raw.Demographics != nil {
		row["demographics"] = raw.Demographics
	}
	if raw.SchoolRatings != nil {
		row["school_ratings"] = raw.SchoolRatings
	}
	if raw.Correlations != nil {
		row["wikipedia_correlations"] = raw.Correlations
	}
	if raw.CorruptRecord == "" {
		row["amenities"] = raw.Amenities
		row["characteristics"] = raw.Characteristics
		row["tags"] = raw.Tags
	}
	return row
}

// ProcessNeighborhoods writes the neighborhood bronze table.
func (p *BronzeProcessor) ProcessNeighborhoods(ctx context.Context, runID int64, raws []models.NeighborhoodRaw, stats readers.ReadStats) (models.ProcessedTable, error) {
	if err := checkCorruption(models.EntityNeighborhood, stats); err != nil {
		return models.ProcessedTable{}, err
	}

	id := models.TableID{Entity: models.EntityNeighborhood, Tier: models.TierBronze, RunID: runID}
	ingestedAt := p.now().UTC()
	rows := make([]map[string]any, len(raws))
	for i, raw := range raws {
		rows[i] = neighborhoodBronzeRow(raw, ingestedAt)
	}
	if err := p.store.CreateTableFromRows(ctx, id, neighborhoodBronzeColumns(), rows); err != nil {
		return models.ProcessedTable{}, err
	}
	p.logTable(id, stats.RowsRead, stats.RowsCorrupt)
	return processedTable(id, len(rows)), nil
}

// ============================================================================
// Wikipedia
// ============================================================================

func wikipediaBronzeColumns() []store.Column {
	return []store.Column{
		{Name: "page_id", Type: store.TypeInteger},
		{Name: "title", Type: store.TypeText},
		{Name: "url", Type: store.TypeText},
		{Name: "short_summary", Type: store.TypeText},
		{Name: "long_summary", Type: store.TypeText},
		{Name: "categories", Type: store.TypeText},
		{Name: "key_topics", Type: store.TypeJSON},
		{Name: "best_city", Type: store.TypeText},
		{Name: "best_state", Type: store.TypeText},
		{Name: "latitude", Type: store.TypeReal},
		{Name: "longitude", Type: store.TypeReal},
		{Name: "relevance_score", Type: store.TypeReal},
		{Name: "confidence_score", Type: store.TypeReal},
		{Name: "ingested_at", Type: store.TypeTimestamp},
		{Name: "source_file", Type: store.TypeText},
		{Name: "_corrupt_record", Type: store.TypeText},
	}
}

func wikipediaBronzeRow(raw models.WikipediaRaw, ingestedAt time.Time) map[string]any {
	row := map[string]any{
		"ingested_at": ingestedAt,
	}
	if raw.PageID > 0 {
		row["page_id"] = raw.PageID
	}
	putString(row, "title", raw.Title)
	putString(row, "url", raw.URL)
	putString(row, "short_summary", raw.ShortSummary)
	putString(row, "long_summary", raw.LongSummary)
	putString(row, "categories", raw.Categories)
	putString(row, "best_city", raw.BestCity)
	putString(row, "best_state", raw.BestState)
	putString(row, "source_file", raw.SourceFile)
	putString(row, "_corrupt_record", raw.CorruptRecord)
	put(row, "latitude", raw.Latitude)
	put(row, "longitude", raw.Longitude)
	put(row, "relevance_score", raw.RelevanceScore)
	put(row, "confidence_score", raw.Confidence)
	if raw.CorruptRecord == "" {
		row["key_topics"] = raw.KeyTopics
	}
	return row
}

// ProcessWikipedia writes the wikipedia bronze table.
func (p *BronzeProcessor) ProcessWikipedia(ctx context.Context, runID int64, raws []models.WikipediaRaw, stats readers.ReadStats) (models.ProcessedTable, error) {
	if err := checkCorruption(models.EntityWikipedia, stats); err != nil {
		return models.ProcessedTable{}, err
	}

	id := models.TableID{Entity: models.EntityWikipedia, Tier: models.TierBronze, RunID: runID}
	ingestedAt := p.now().UTC()
	rows := make([]map[string]any, len(raws))
	for i, raw := range raws {
		rows[i] = wikipediaBronzeRow(raw, ingestedAt)
	}
	if err := p.store.CreateTableFromRows(ctx, id, wikipediaBronzeColumns(), rows); err != nil {
		return models.ProcessedTable{}, err
	}
	p.logTable(id, stats.RowsRead, stats.RowsCorrupt)
	return processedTable(id, len(rows)), nil
}
