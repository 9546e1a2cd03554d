package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/estategraph/estate-engine/pkg/apperrors"
	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/retry"
	"github.com/estategraph/estate-engine/pkg/store"
)

// Engine embeds one entity's Gold table: rows become chunked nodes, nodes
// are sharded round-robin across workers, and every worker drives its own
// provider instance behind a circuit breaker. The output is the sibling
// {entity}_gold_embeddings_{runId} table, written once at the end.
type Engine struct {
	store       store.Store
	factory     ProviderFactory
	chunker     *Chunker
	cache       VectorCache
	cfg         config.EmbeddingConfig
	parallelism int
	logger      *zap.Logger
}

// Result reports what one embedding pass produced.
type Result struct {
	Table      models.ProcessedTable
	NodesTotal int64
	Embedded   int64
	Failed     int64
	CacheHits  int64

	// Degraded marks a table that was written but should not be fully
	// trusted: some nodes carry null vectors, or successful vectors came
	// back with mixed dimensions.
	Degraded bool
}

// NewEngine creates an embedding engine. parallelism caps concurrent workers
// regardless of the configured shard count.
func NewEngine(st store.Store, factory ProviderFactory, chunker *Chunker, cache VectorCache, cfg config.EmbeddingConfig, parallelism int, logger *zap.Logger) *Engine {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Engine{
		store:       st,
		factory:     factory,
		chunker:     chunker,
		cache:       cache,
		cfg:         cfg,
		parallelism: parallelism,
		logger:      logger.Named("embedding"),
	}
}

// node is one chunk of one Gold row awaiting a vector.
type node struct {
	index      int // position in the global node order
	primaryKey string
	chunkIndex int
	chunkTotal int
	text       string
}

// nodeResult holds the outcome for one node. A nil vector means the provider
// permanently failed for this node's batch.
type nodeResult struct {
	vector    []float64
	fromCache bool
}

func embeddingColumns() []store.Column {
	return []store.Column{
		{Name: "primary_key", Type: store.TypeText},
		{Name: "chunk_index", Type: store.TypeInteger},
		{Name: "chunk_total", Type: store.TypeInteger},
		{Name: "node_id", Type: store.TypeText},
		{Name: "vector", Type: store.TypeJSON},
		{Name: "embedding_model", Type: store.TypeText},
		{Name: "embedding_dimension", Type: store.TypeInteger},
		{Name: "embedded_at", Type: store.TypeTimestamp},
		{Name: "node_metadata", Type: store.TypeJSON},
	}
}

// Run embeds the entity's Gold table for the run. Provider failures degrade
// individual nodes to null vectors; only store and configuration errors fail
// the pass.
func (e *Engine) Run(ctx context.Context, entity models.Entity, runID int64) (Result, error) {
	goldID := models.TableID{Entity: entity, Tier: models.TierGold, RunID: runID}
	outID := models.EmbeddingsTableID(entity, runID)

	goldRows, err := e.store.Rows(ctx, goldID.Name())
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", goldID.Name(), err)
	}

	nodes := e.buildNodes(entity, goldRows)
	if len(nodes) == 0 {
		if err := e.store.CreateTableFromRows(ctx, outID, embeddingColumns(), nil); err != nil {
			return Result{}, err
		}
		e.logger.Info("no embedding nodes",
			zap.String("entity", string(entity)),
			zap.String("table", outID.Name()))
		return Result{Table: processedTable(outID, entity, 0)}, nil
	}

	shards := e.cfg.Shards
	if shards <= 0 {
		shards = e.parallelism
	}
	if shards > len(nodes) {
		shards = len(nodes)
	}

	// One provider per shard, created up front so a misconfigured provider
	// fails the pass before any work starts.
	providers := make([]Provider, shards)
	for i := range providers {
		p, err := e.factory()
		if err != nil {
			return Result{}, fmt.Errorf("create embedding provider: %w", err)
		}
		providers[i] = p
	}
	modelID := providers[0].ModelID()

	// Round-robin assignment keeps shard sizes within one node of each other
	// and is stable for a given Gold row order.
	sharded := make([][]node, shards)
	for i, n := range nodes {
		sharded[i%shards] = append(sharded[i%shards], n)
	}

	// Each node index is written by exactly one worker.
	results := make([]nodeResult, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(shards, e.parallelism))
	for i := 0; i < shards; i++ {
		w := &worker{
			provider: providers[i],
			breaker: NewCircuitBreaker(CircuitBreakerConfig{
				Threshold:  e.cfg.BreakerThreshold,
				ResetAfter: DefaultCircuitBreakerConfig().ResetAfter,
			}),
			cache:   e.cache,
			cfg:     e.cfg,
			modelID: modelID,
			logger:  e.logger.With(zap.Int("shard", i)),
		}
		shard := sharded[i]
		g.Go(func() error {
			return w.run(gctx, shard, results)
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{NodesTotal: int64(len(nodes))}
	dims := make(map[int]struct{})
	rows := make([]map[string]any, len(nodes))
	embeddedAt := time.Now().UTC()
	for i, n := range nodes {
		row := map[string]any{
			"primary_key":     n.primaryKey,
			"chunk_index":     int64(n.chunkIndex),
			"chunk_total":     int64(n.chunkTotal),
			"node_id":         fmt.Sprintf("%s_%d", n.primaryKey, n.chunkIndex),
			"embedding_model": modelID,
			"embedded_at":     embeddedAt,
			"node_metadata": map[string]string{
				"entity":       string(entity),
				"source_table": goldID.Name(),
			},
		}
		r := results[i]
		if r.vector != nil {
			row["vector"] = r.vector
			row["embedding_dimension"] = int64(len(r.vector))
			dims[len(r.vector)] = struct{}{}
			res.Embedded++
			if r.fromCache {
				res.CacheHits++
			}
		} else {
			res.Failed++
		}
		rows[i] = row
	}

	if err := e.store.CreateTableFromRows(ctx, outID, embeddingColumns(), rows); err != nil {
		return Result{}, err
	}

	res.Table = processedTable(outID, entity, len(rows))
	res.Degraded = res.Failed > 0 || len(dims) > 1
	if len(dims) > 1 {
		e.logger.Warn("mixed vector dimensions",
			zap.String("table", outID.Name()),
			zap.Int("distinct_dimensions", len(dims)),
			zap.Error(apperrors.ErrDimensionMismatch))
	}
	e.logger.Info("embeddings written",
		zap.String("entity", string(entity)),
		zap.String("table", outID.Name()),
		zap.Int64("nodes", res.NodesTotal),
		zap.Int64("embedded", res.Embedded),
		zap.Int64("failed", res.Failed),
		zap.Int64("cache_hits", res.CacheHits),
		zap.Bool("degraded", res.Degraded))
	return res, nil
}

func processedTable(id models.TableID, entity models.Entity, rows int) models.ProcessedTable {
	return models.ProcessedTable{
		Name:         id.Name(),
		Entity:       entity,
		Tier:         models.TierGold,
		RecordCount:  int64(rows),
		RunTimestamp: time.Now().UTC(),
	}
}

// buildNodes chunks every Gold row's embedding_text. Rows with empty text
// produce no nodes.
func (e *Engine) buildNodes(entity models.Entity, goldRows []map[string]any) []node {
	pkCol := entity.PrimaryKeyColumn()
	var nodes []node
	for _, row := range goldRows {
		pk := stringValue(row[pkCol])
		if pk == "" {
			continue
		}
		text := stringValue(row["embedding_text"])
		chunks := e.chunker.Split(text)
		for ci, chunk := range chunks {
			nodes = append(nodes, node{
				index:      len(nodes),
				primaryKey: pk,
				chunkIndex: ci,
				chunkTotal: len(chunks),
				text:       chunk,
			})
		}
	}
	return nodes
}

// stringValue renders a row value as its key string, absorbing the driver's
// integer representation for wikipedia page ids.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}

// worker embeds one shard's nodes in provider-sized sub-batches.
type worker struct {
	provider Provider
	breaker  *CircuitBreaker
	cache    VectorCache
	cfg      config.EmbeddingConfig
	modelID  string
	logger   *zap.Logger
}

func (w *worker) run(ctx context.Context, shard []node, results []nodeResult) error {
	batchSize := w.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	for start := 0; start < len(shard); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(shard))
		w.embedBatch(ctx, shard[start:end], results)
	}
	return nil
}

// embedBatch resolves one sub-batch: cache first, then a single provider
// call for the misses. A permanently failed call leaves the misses with nil
// vectors; the run continues.
func (w *worker) embedBatch(ctx context.Context, batch []node, results []nodeResult) {
	misses := make([]node, 0, len(batch))
	for _, n := range batch {
		if vec, ok := w.cache.Get(w.modelID, n.text); ok {
			results[n.index] = nodeResult{vector: vec, fromCache: true}
			continue
		}
		misses = append(misses, n)
	}
	if len(misses) == 0 {
		return
	}

	if allowed, err := w.breaker.Allow(); !allowed {
		w.logger.Warn("batch rejected", zap.Int("nodes", len(misses)), zap.Error(err))
		return
	}

	texts := make([]string, len(misses))
	for i, n := range misses {
		texts[i] = n.text
	}

	vectors, err := w.callProvider(ctx, texts)
	if err != nil {
		w.breaker.RecordFailure()
		w.logger.Warn("batch failed permanently",
			zap.Int("nodes", len(misses)),
			zap.Error(fmt.Errorf("%w: %v", apperrors.ErrProviderExhausted, err)))
		return
	}
	w.breaker.RecordSuccess()

	// A short response leaves the tail of the batch unembedded, and a
	// vector narrower than the advertised width is discarded.
	expected := w.provider.Dimensions()
	for i, n := range misses {
		if i >= len(vectors) || vectors[i] == nil {
			continue
		}
		if expected > 0 && len(vectors[i]) != expected {
			w.logger.Warn("vector dimension mismatch",
				zap.Int("expected", expected),
				zap.Int("got", len(vectors[i])))
			continue
		}
		results[n.index] = nodeResult{vector: vectors[i]}
		w.cache.Put(w.modelID, n.text, vectors[i])
	}
}

// callProvider wraps one provider call in the per-call timeout and the
// exponential backoff schedule retry_delay * 2^attempt.
func (w *worker) callProvider(ctx context.Context, texts []string) ([][]float64, error) {
	retryCfg := &retry.Config{
		MaxRetries:   w.cfg.MaxRetries,
		InitialDelay: time.Duration(w.cfg.RetryDelayMS) * time.Millisecond,
		MaxDelay:     time.Minute,
		Multiplier:   2,
	}
	timeout := time.Duration(w.cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Minute
	}
	return retry.DoWithResult(ctx, retryCfg, func() ([][]float64, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return w.provider.EmbedBatch(callCtx, texts)
	})
}
