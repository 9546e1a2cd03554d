package medallion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// SilverProcessor advances an entity's Bronze table into its Silver table:
// cleaning, normalization against the lookup dictionaries, range validation,
// and per-row quality scoring. Rows are never dropped; low-quality rows are
// flagged and retained.
type SilverProcessor struct {
	store   store.Store
	lookups *Lookups
	logger  *zap.Logger
	now     func() time.Time
}

// NewSilverProcessor creates a silver processor sharing the run's store and
// loaded lookup dictionaries.
func NewSilverProcessor(st store.Store, lookups *Lookups, logger *zap.Logger) *SilverProcessor {
	return &SilverProcessor{
		store:   st,
		lookups: lookups,
		logger:  logger.Named("silver"),
		now:     time.Now,
	}
}

func (p *SilverProcessor) logTable(id models.TableID, rows int, quality *models.QualityDistribution) {
	p.logger.Info("silver table created",
		zap.String("table", id.Name()),
		zap.Int("rows", rows),
		zap.Int64("poor", quality.Poor),
		zap.Int64("fair", quality.Fair),
		zap.Int64("good", quality.Good),
		zap.Int64("excellent", quality.Excellent))
}

// ProcessProperties cleans the property bronze table.
func (p *SilverProcessor) ProcessProperties(ctx context.Context, runID int64) (models.ProcessedTable, *models.QualityDistribution, error) {
	bronze := models.TableID{Entity: models.EntityProperty, Tier: models.TierBronze, RunID: runID}
	silver := models.TableID{Entity: models.EntityProperty, Tier: models.TierSilver, RunID: runID}

	bronzeRows, err := p.store.Rows(ctx, bronze.Name())
	if err != nil {
		return models.ProcessedTable{}, nil, err
	}

	processedAt := p.now().UTC()
	quality := &models.QualityDistribution{}
	rows := make([]map[string]any, len(bronzeRows))
	for i, row := range bronzeRows {
		raw := propertyRawFromBronze(row)
		s := CleanProperty(raw, p.lookups, rowTime(row, "ingested_at"), processedAt)
		quality.Add(s.DataQualityScore)
		rows[i] = propertySilverRow(s)
	}

	if err := p.store.CreateTableFromRows(ctx, silver, propertySilverColumns(), rows); err != nil {
		return models.ProcessedTable{}, nil, err
	}
	p.logTable(silver, len(rows), quality)
	return processedTable(silver, len(rows)), quality, nil
}

// ProcessNeighborhoods cleans the neighborhood bronze table.
func (p *SilverProcessor) ProcessNeighborhoods(ctx context.Context, runID int64) (models.ProcessedTable, *models.QualityDistribution, error) {
	bronze := models.TableID{Entity: models.EntityNeighborhood, Tier: models.TierBronze, RunID: runID}
	silver := models.TableID{Entity: models.EntityNeighborhood, Tier: models.TierSilver, RunID: runID}

	bronzeRows, err := p.store.Rows(ctx, bronze.Name())
	if err != nil {
		return models.ProcessedTable{}, nil, err
	}

	processedAt := p.now().UTC()
	quality := &models.QualityDistribution{}
	rows := make([]map[string]any, len(bronzeRows))
	for i, row := range bronzeRows {
		raw := neighborhoodRawFromBronze(row)
		s := CleanNeighborhood(raw, p.lookups, rowTime(row, "ingested_at"), processedAt)
		quality.Add(s.DataQualityScore)
		rows[i] = neighborhoodSilverRow(s)
	}

	if err := p.store.CreateTableFromRows(ctx, silver, neighborhoodSilverColumns(), rows); err != nil {
		return models.ProcessedTable{}, nil, err
	}
	p.logTable(silver, len(rows), quality)
	return processedTable(silver, len(rows)), quality, nil
}

// ProcessWikipedia cleans the wikipedia bronze table.
func (p *SilverProcessor) ProcessWikipedia(ctx context.Context, runID int64) (models.ProcessedTable, *models.QualityDistribution, error) {
	bronze := models.TableID{Entity: models.EntityWikipedia, Tier: models.TierBronze, RunID: runID}
	silver := models.TableID{Entity: models.EntityWikipedia, Tier: models.TierSilver, RunID: runID}

	bronzeRows, err := p.store.Rows(ctx, bronze.Name())
	if err != nil {
		return models.ProcessedTable{}, nil, err
	}

	processedAt := p.now().UTC()
	quality := &models.QualityDistribution{}
	rows := make([]map[string]any, len(bronzeRows))
	for i, row := range bronzeRows {
		raw := wikipediaRawFromBronze(row)
		s := CleanWikipedia(raw, p.lookups, rowTime(row, "ingested_at"), processedAt)
		quality.Add(s.DataQualityScore)
		rows[i] = wikipediaSilverRow(s)
	}

	if err := p.store.CreateTableFromRows(ctx, silver, wikipediaSilverColumns(), rows); err != nil {
		return models.ProcessedTable{}, nil, err
	}
	p.logTable(silver, len(rows), quality)
	return processedTable(silver, len(rows)), quality, nil
}
