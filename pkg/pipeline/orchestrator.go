// Package pipeline drives a run end to end: one orchestrator per entity
// walks the medallion tiers, then the runner fans out enrichment, embedding
// and sinks over the finished Gold tables and persists the run report.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/medallion"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/readers"
	"github.com/estategraph/estate-engine/pkg/store"
)

// Deps carries the run-scoped collaborators shared by every orchestrator.
type Deps struct {
	Store     store.Store
	Lookups   *medallion.Lookups
	Locations *medallion.LocationIndex
	Config    *config.Config
	Logger    *zap.Logger
}

// Orchestrator advances one entity through bronze, silver and gold. Failures
// are terminal for the entity but never for the run; the outcome is always a
// metrics record.
type Orchestrator interface {
	Entity() models.Entity
	Run(ctx context.Context, runID int64) *models.EntityMetrics
}

// tierFuncs are the entity-specific tier transitions. The state machine
// around them is shared.
type tierFuncs struct {
	bronze func(ctx context.Context, runID int64) (models.ProcessedTable, readers.ReadStats, error)
	silver func(ctx context.Context, runID int64) (models.ProcessedTable, *models.QualityDistribution, error)
	gold   func(ctx context.Context, runID int64) (models.ProcessedTable, error)
}

type entityOrchestrator struct {
	entity models.Entity
	tiers  tierFuncs
	logger *zap.Logger
}

func (o *entityOrchestrator) Entity() models.Entity { return o.entity }

// Run walks init -> bronze -> silver -> gold -> done. The first error stops
// the walk and records the failing stage; downstream stages never run on a
// broken tier.
func (o *entityOrchestrator) Run(ctx context.Context, runID int64) *models.EntityMetrics {
	m := &models.EntityMetrics{
		Entity:      o.entity,
		SinkRecords: make(map[string]int64),
		FinalStage:  models.StageInit,
	}

	fail := func(stage models.Stage, err error) *models.EntityMetrics {
		o.logger.Error("stage failed",
			zap.String("stage", string(stage)),
			zap.Error(err))
		m.FinalStage = models.StageFailed
		m.Error = &models.StageError{Stage: stage, Message: err.Error()}
		return m
	}

	start := time.Now()
	bronzeTable, stats, err := o.tiers.bronze(ctx, runID)
	m.RecordDuration(models.StageBronze, time.Since(start))
	m.CorruptRecords = int64(stats.RowsCorrupt)
	if err != nil {
		return fail(models.StageBronze, err)
	}
	m.BronzeRecords = bronzeTable.RecordCount
	m.Tables = append(m.Tables, bronzeTable)
	m.FinalStage = models.StageBronze

	start = time.Now()
	silverTable, quality, err := o.tiers.silver(ctx, runID)
	m.RecordDuration(models.StageSilver, time.Since(start))
	if err != nil {
		return fail(models.StageSilver, err)
	}
	m.SilverRecords = silverTable.RecordCount
	if quality != nil {
		m.Quality = *quality
	}
	m.Tables = append(m.Tables, silverTable)
	m.FinalStage = models.StageSilver

	start = time.Now()
	goldTable, err := o.tiers.gold(ctx, runID)
	m.RecordDuration(models.StageGold, time.Since(start))
	if err != nil {
		return fail(models.StageGold, err)
	}
	m.GoldRecords = goldTable.RecordCount
	m.Tables = append(m.Tables, goldTable)
	m.FinalStage = models.StageDone

	o.logger.Info("entity complete",
		zap.Int64("bronze", m.BronzeRecords),
		zap.Int64("silver", m.SilverRecords),
		zap.Int64("gold", m.GoldRecords),
		zap.Int64("corrupt", m.CorruptRecords))
	return m
}

// NewPropertyOrchestrator builds the property tier walk. Property Gold
// resolves neighborhood linkage, so it loads the run's neighborhood
// directory; the runner sequences neighborhoods first.
func NewPropertyOrchestrator(deps Deps) Orchestrator {
	logger := deps.Logger.Named("property")
	return &entityOrchestrator{
		entity: models.EntityProperty,
		logger: logger,
		tiers: tierFuncs{
			bronze: func(ctx context.Context, runID int64) (models.ProcessedTable, readers.ReadStats, error) {
				raws, stats, err := readers.NewPropertyReader(logger).Read(ctx,
					deps.Config.SourceFor(string(models.EntityProperty)),
					deps.Config.Run.SampleSize)
				if err != nil {
					return models.ProcessedTable{}, stats, err
				}
				tbl, err := medallion.NewBronzeProcessor(deps.Store, logger).
					ProcessProperties(ctx, runID, raws, stats)
				return tbl, stats, err
			},
			silver: func(ctx context.Context, runID int64) (models.ProcessedTable, *models.QualityDistribution, error) {
				return medallion.NewSilverProcessor(deps.Store, deps.Lookups, logger).
					ProcessProperties(ctx, runID)
			},
			gold: func(ctx context.Context, runID int64) (models.ProcessedTable, error) {
				hoods, err := medallion.LoadNeighborhoodDirectory(ctx, deps.Store, runID)
				if err != nil {
					return models.ProcessedTable{}, err
				}
				return medallion.NewGoldProcessor(deps.Store, deps.Locations, logger).
					ProcessProperties(ctx, runID, hoods)
			},
		},
	}
}

// NewNeighborhoodOrchestrator builds the neighborhood tier walk.
func NewNeighborhoodOrchestrator(deps Deps) Orchestrator {
	logger := deps.Logger.Named("neighborhood")
	return &entityOrchestrator{
		entity: models.EntityNeighborhood,
		logger: logger,
		tiers: tierFuncs{
			bronze: func(ctx context.Context, runID int64) (models.ProcessedTable, readers.ReadStats, error) {
				raws, stats, err := readers.NewNeighborhoodReader(logger).Read(ctx,
					deps.Config.SourceFor(string(models.EntityNeighborhood)),
					deps.Config.Run.SampleSize)
				if err != nil {
					return models.ProcessedTable{}, stats, err
				}
				tbl, err := medallion.NewBronzeProcessor(deps.Store, logger).
					ProcessNeighborhoods(ctx, runID, raws, stats)
				return tbl, stats, err
			},
			silver: func(ctx context.Context, runID int64) (models.ProcessedTable, *models.QualityDistribution, error) {
				return medallion.NewSilverProcessor(deps.Store, deps.Lookups, logger).
					ProcessNeighborhoods(ctx, runID)
			},
			gold: func(ctx context.Context, runID int64) (models.ProcessedTable, error) {
				return medallion.NewGoldProcessor(deps.Store, deps.Locations, logger).
					ProcessNeighborhoods(ctx, runID)
			},
		},
	}
}

// NewWikipediaOrchestrator builds the wikipedia tier walk.
func NewWikipediaOrchestrator(deps Deps) Orchestrator {
	logger := deps.Logger.Named("wikipedia")
	return &entityOrchestrator{
		entity: models.EntityWikipedia,
		logger: logger,
		tiers: tierFuncs{
			bronze: func(ctx context.Context, runID int64) (models.ProcessedTable, readers.ReadStats, error) {
				raws, stats, err := readers.NewWikipediaReader(logger).Read(ctx,
					deps.Config.SourceFor(string(models.EntityWikipedia)),
					deps.Config.Run.SampleSize)
				if err != nil {
					return models.ProcessedTable{}, stats, err
				}
				tbl, err := medallion.NewBronzeProcessor(deps.Store, logger).
					ProcessWikipedia(ctx, runID, raws, stats)
				return tbl, stats, err
			},
			silver: func(ctx context.Context, runID int64) (models.ProcessedTable, *models.QualityDistribution, error) {
				return medallion.NewSilverProcessor(deps.Store, deps.Lookups, logger).
					ProcessWikipedia(ctx, runID)
			},
			gold: func(ctx context.Context, runID int64) (models.ProcessedTable, error) {
				return medallion.NewGoldProcessor(deps.Store, deps.Locations, logger).
					ProcessWikipedia(ctx, runID)
			},
		},
	}
}
