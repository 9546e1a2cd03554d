package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/estategraph/estate-engine/pkg/apperrors"
	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/embedding"
	"github.com/estategraph/estate-engine/pkg/enrich"
	"github.com/estategraph/estate-engine/pkg/medallion"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/readers"
	"github.com/estategraph/estate-engine/pkg/sinks"
	"github.com/estategraph/estate-engine/pkg/store"
)

// Runner executes one full pipeline run: entity orchestrators (neighborhood
// and wikipedia in parallel, then property), cross-entity enrichment, the
// embedding engine per Gold table, sink exports, and the persisted report.
type Runner struct {
	cfg      *config.Config
	store    store.Store
	registry Registry
	logger   *zap.Logger

	// SkipSinks suppresses sink writes regardless of configuration.
	SkipSinks bool

	now func() time.Time
}

// NewRunner creates a runner with the default entity registry.
func NewRunner(cfg *config.Config, st store.Store, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    st,
		registry: DefaultRegistry(),
		logger:   logger.Named("runner"),
		now:      time.Now,
	}
}

// Run executes the pipeline. The returned report is non-nil whenever the run
// got far enough to start entity work; a nil report means a fatal setup
// error (store, migrations, lookups).
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	runID := r.now().Unix()
	logger := r.logger.With(zap.Int64("run_id", runID))
	logger.Info("run starting")

	if err := r.store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	lookups, err := medallion.LoadLookups(ctx, r.store)
	if err != nil {
		return nil, fmt.Errorf("load lookups: %w", err)
	}

	deps := Deps{
		Store:     r.store,
		Lookups:   lookups,
		Locations: r.loadLocationIndex(ctx, logger),
		Config:    r.cfg,
		Logger:    logger,
	}

	report := &models.RunReport{
		RunID:     runID,
		Status:    models.RunStatusRunning,
		StartedAt: r.now().UTC(),
		Entities:  make(map[models.Entity]*models.EntityMetrics),
	}
	if err := r.registerRun(ctx, report); err != nil {
		return nil, err
	}

	enabled := r.enabledEntities()
	if err := r.runOrchestrators(ctx, deps, enabled, report); err != nil {
		// Context cancellation or stop-on-error; finish the report as-is.
		report.Errors = append(report.Errors, err.Error())
	}

	r.runEnrichment(ctx, runID, report)
	r.runEmbedding(ctx, runID, report)
	if !r.SkipSinks && len(r.cfg.Sinks.Enabled) > 0 {
		r.runSinks(ctx, runID, report)
	}

	report.FinishedAt = r.now().UTC()
	report.Status = r.finalStatus(ctx, report)
	if err := r.finishRun(ctx, report); err != nil {
		logger.Warn("persist run report failed", zap.Error(err))
	}
	r.cleanup(ctx, runID, report, logger)

	logger.Info("run finished",
		zap.String("status", string(report.Status)),
		zap.Bool("degraded", report.Degraded))
	return report, nil
}

// enabledEntities resolves the configured subset in default run order.
func (r *Runner) enabledEntities() []models.Entity {
	names := r.cfg.EnabledEntities()
	entities := make([]models.Entity, 0, len(names))
	for _, n := range names {
		entities = append(entities, models.Entity(n))
	}
	return entities
}

// loadLocationIndex reads the location reference. A missing or broken
// reference degrades geography resolution but never fails the run.
func (r *Runner) loadLocationIndex(ctx context.Context, logger *zap.Logger) *medallion.LocationIndex {
	path := r.cfg.Sources.LocationPath
	if path == "" {
		return medallion.NewLocationIndex(nil)
	}
	refs, stats, err := readers.NewLocationReader(logger).Read(ctx, path, 0)
	if err != nil {
		logger.Warn("location reference unavailable",
			zap.String("path", path),
			zap.Error(err))
		return medallion.NewLocationIndex(nil)
	}
	logger.Info("location reference loaded", zap.Int("rows", stats.RowsRead))
	return medallion.NewLocationIndex(refs)
}

// runOrchestrators runs neighborhood and wikipedia concurrently, then
// property, which depends on neighborhood Gold for linkage.
func (r *Runner) runOrchestrators(ctx context.Context, deps Deps, enabled []models.Entity, report *models.RunReport) error {
	var first []models.Entity
	runProperty := false
	for _, e := range enabled {
		if e == models.EntityProperty {
			runProperty = true
			continue
		}
		first = append(first, e)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Run.EffectiveParallelism())
	for _, entity := range first {
		orch, err := r.registry.Build(entity, deps)
		if err != nil {
			return err
		}
		g.Go(func() error {
			m := orch.Run(gctx, report.RunID)
			mu.Lock()
			report.Entities[orch.Entity()] = m
			mu.Unlock()
			if m.Failed() && r.cfg.Run.StopOnError {
				return fmt.Errorf("entity %s failed: %s", orch.Entity(), m.Error.Message)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if runProperty {
		orch, err := r.registry.Build(models.EntityProperty, deps)
		if err != nil {
			return err
		}
		m := orch.Run(ctx, report.RunID)
		report.Entities[models.EntityProperty] = m
		if m.Failed() && r.cfg.Run.StopOnError {
			return fmt.Errorf("entity %s failed: %s", models.EntityProperty, m.Error.Message)
		}
	}
	return ctx.Err()
}

// runEnrichment builds the cross-entity projections over whatever Gold
// tables the run produced. Projections whose inputs are missing skip
// themselves inside the enricher.
func (r *Runner) runEnrichment(ctx context.Context, runID int64, report *models.RunReport) {
	if !r.anyEntityDone(report) {
		return
	}
	start := time.Now()
	tables := enrich.NewEnricher(r.store, r.logger).Run(ctx, runID)
	elapsed := time.Since(start)
	for _, tbl := range tables {
		if m := report.Entities[tbl.Entity]; m != nil {
			m.Tables = append(m.Tables, tbl)
		}
	}
	for _, m := range report.Entities {
		if m != nil && !m.Failed() {
			m.RecordDuration(models.StageEnrichment, elapsed)
		}
	}
}

// runEmbedding embeds each finished entity's Gold table. An infrastructure
// failure marks that entity failed at the embedding stage; degraded results
// only flag the report.
func (r *Runner) runEmbedding(ctx context.Context, runID int64, report *models.RunReport) {
	factory, err := embedding.NewProviderFactory(&r.cfg.Embedding)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return
	}
	cache, err := embedding.NewVectorCache(r.cfg.Embedding.Cache, r.logger)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return
	}
	defer cache.Close()

	chunker := embedding.NewChunker(r.cfg.Chunking)
	engine := embedding.NewEngine(r.store, factory, chunker, cache,
		r.cfg.Embedding, r.cfg.Run.EffectiveParallelism(), r.logger)

	for entity, m := range report.Entities {
		if m == nil || m.FinalStage != models.StageDone {
			continue
		}
		start := time.Now()
		res, err := engine.Run(ctx, entity, runID)
		m.RecordDuration(models.StageEmbedding, time.Since(start))
		if err != nil {
			m.FinalStage = models.StageFailed
			m.Error = &models.StageError{Stage: models.StageEmbedding, Message: err.Error()}
			continue
		}
		m.EmbeddedRecords = res.Embedded
		m.NodesTotal = res.NodesTotal
		m.Tables = append(m.Tables, res.Table)
		if res.Degraded {
			report.Degraded = true
		}
	}
}

// runSinks writes every finished entity's Gold table through every enabled
// sink. Sink failures are recorded per write and never stop the run.
func (r *Runner) runSinks(ctx context.Context, runID int64, report *models.RunReport) {
	writers, err := sinks.New(&r.cfg.Sinks, r.store, r.logger)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return
	}
	defer func() {
		for _, s := range writers {
			if err := s.Close(ctx); err != nil {
				r.logger.Warn("sink close failed",
					zap.String("sink", s.Name()),
					zap.Error(err))
			}
		}
	}()

	for entity, m := range report.Entities {
		if m == nil || m.FinalStage != models.StageDone {
			continue
		}
		ref := sinks.TableRef{
			Entity: entity,
			Name:   models.TableID{Entity: entity, Tier: models.TierGold, RunID: runID}.Name(),
		}
		start := time.Now()
		for _, s := range writers {
			res, err := s.Write(ctx, ref)
			write := models.WriteResult{
				Sink:        res.Sink,
				Entity:      entity,
				Table:       ref.Name,
				Success:     res.Success,
				RecordCount: res.RecordCount,
			}
			if err != nil {
				write.Error = err.Error()
			}
			report.SinkWrites = append(report.SinkWrites, write)
			if res.Success {
				m.SinkRecords[s.Name()] += res.RecordCount
			}
		}
		m.RecordDuration(models.StageSinks, time.Since(start))
	}
}

func (r *Runner) anyEntityDone(report *models.RunReport) bool {
	for _, m := range report.Entities {
		if m != nil && m.FinalStage == models.StageDone {
			return true
		}
	}
	return false
}

func (r *Runner) finalStatus(ctx context.Context, report *models.RunReport) models.RunStatus {
	if ctx.Err() != nil {
		return models.RunStatusCancelled
	}
	done := 0
	for _, m := range report.Entities {
		if m != nil && !m.Failed() {
			done++
		}
	}
	switch {
	case len(report.Entities) > 0 && done == 0:
		return models.RunStatusFailed
	case done < len(report.Entities) || report.Degraded:
		return models.RunStatusDegraded
	default:
		return models.RunStatusCompleted
	}
}

func (r *Runner) registerRun(ctx context.Context, report *models.RunReport) error {
	err := r.store.Exec(ctx,
		"INSERT INTO pipeline_runs (run_id, started_at, status) VALUES (?, ?, ?)",
		report.RunID,
		report.StartedAt.Format(time.RFC3339Nano),
		string(models.RunStatusRunning))
	if err != nil {
		return fmt.Errorf("register run: %w", err)
	}
	return nil
}

func (r *Runner) finishRun(ctx context.Context, report *models.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	return r.store.Exec(ctx,
		"UPDATE pipeline_runs SET finished_at = ?, status = ?, report = ? WHERE run_id = ?",
		report.FinishedAt.Format(time.RFC3339Nano),
		string(report.Status),
		string(payload),
		report.RunID)
}

// cleanup drops the run's intermediate tables after a non-failed run,
// keeping gold, embeddings and enriched projections. Failed runs keep
// everything for inspection.
func (r *Runner) cleanup(ctx context.Context, runID int64, report *models.RunReport, logger *zap.Logger) {
	if r.cfg.Run.KeepIntermediate {
		return
	}
	if report.Status == models.RunStatusFailed || report.Status == models.RunStatusCancelled {
		logger.Info("keeping all run tables for inspection")
		return
	}

	var keep []string
	for _, entity := range models.ValidEntities {
		keep = append(keep,
			models.TableID{Entity: entity, Tier: models.TierGold, RunID: runID}.Name(),
			models.EmbeddingsTableID(entity, runID).Name(),
		)
	}
	keep = append(keep,
		models.EnrichedTableName(models.EntityProperty, models.EntityNeighborhood, runID),
		models.EnrichedTableName(models.EntityProperty, models.EntityWikipedia, runID),
		models.EnrichedTableName(models.EntityNeighborhood, models.EntityWikipedia, runID),
	)
	if err := r.store.DropRun(ctx, runID, keep...); err != nil {
		logger.Warn("cleanup failed", zap.Error(err))
	}
}

// DropRun removes every table of a previous run and its registry row.
func (r *Runner) DropRun(ctx context.Context, runID int64) error {
	if err := r.store.Migrate(ctx); err != nil {
		return err
	}
	if err := r.store.DropRun(ctx, runID); err != nil {
		return err
	}
	return r.store.Exec(ctx, "DELETE FROM pipeline_runs WHERE run_id = ?", runID)
}

// ProbeSinks verifies connectivity of every enabled sink.
func (r *Runner) ProbeSinks(ctx context.Context) error {
	writers, err := sinks.New(&r.cfg.Sinks, r.store, r.logger)
	if err != nil {
		return err
	}
	var firstErr error
	for _, s := range writers {
		err := s.Probe(ctx)
		if err != nil {
			r.logger.Error("sink probe failed",
				zap.String("sink", s.Name()),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("sink %s: %w: %v", s.Name(), apperrors.ErrSinkUnavailable, err)
			}
		} else {
			r.logger.Info("sink probe ok", zap.String("sink", s.Name()))
		}
		s.Close(ctx)
	}
	return firstErr
}
