package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

const testRunID = 42

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPropertyGold(t *testing.T, st store.Store, runID int64, texts map[string]string) {
	t.Helper()
	id := models.TableID{Entity: models.EntityProperty, Tier: models.TierGold, RunID: runID}
	cols := []store.Column{
		{Name: "listing_id", Type: store.TypeText},
		{Name: "embedding_text", Type: store.TypeText},
	}
	keys := make([]string, 0, len(texts))
	for k := range texts {
		keys = append(keys, k)
	}
	// Stable row order keeps shard assignment deterministic.
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	rows := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		row := map[string]any{"listing_id": k}
		if texts[k] != "" {
			row["embedding_text"] = texts[k]
		}
		rows = append(rows, row)
	}
	require.NoError(t, st.CreateTableFromRows(context.Background(), id, cols, rows))
}

func testEmbeddingConfig() config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Provider:         "mock",
		BatchSize:        2,
		MaxRetries:       0,
		RetryDelayMS:     1,
		TimeoutMS:        1000,
		Shards:           1,
		BreakerThreshold: 5,
	}
}

func noChunking() *Chunker {
	return NewChunker(config.ChunkingConfig{Enable: false})
}

func mockFactory() ProviderFactory {
	return func() (Provider, error) { return NewMockProvider(), nil }
}

func newTestEngine(st store.Store, cfg config.EmbeddingConfig, chunker *Chunker, factory ProviderFactory) *Engine {
	return NewEngine(st, factory, chunker, noopCache{}, cfg, 2, zap.NewNop())
}

func TestEngineEmbedsGoldRows(t *testing.T) {
	st := newTestStore(t)
	seedPropertyGold(t, st, testRunID, map[string]string{
		"P1": "a bright two bedroom",
		"P2": "a quiet garden flat",
	})

	e := newTestEngine(st, testEmbeddingConfig(), noChunking(), mockFactory())
	res, err := e.Run(context.Background(), models.EntityProperty, testRunID)
	require.NoError(t, err)

	assert.Equal(t, "property_gold_embeddings_42", res.Table.Name)
	assert.EqualValues(t, 2, res.NodesTotal)
	assert.EqualValues(t, 2, res.Embedded)
	assert.EqualValues(t, 0, res.Failed)
	assert.False(t, res.Degraded)

	rows, err := st.Query(context.Background(),
		"SELECT * FROM property_gold_embeddings_42 ORDER BY primary_key")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "P1", rows[0]["primary_key"])
	assert.Equal(t, "P1_0", rows[0]["node_id"])
	assert.EqualValues(t, 0, rows[0]["chunk_index"])
	assert.EqualValues(t, 1, rows[0]["chunk_total"])
	assert.Equal(t, "mock_deterministic", rows[0]["embedding_model"])
	assert.EqualValues(t, mockDimensions, rows[0]["embedding_dimension"])

	var vec []float64
	require.NoError(t, json.Unmarshal([]byte(rows[0]["vector"].(string)), &vec))
	assert.Len(t, vec, mockDimensions)
	assert.Equal(t, deterministicVector("a bright two bedroom"), vec)

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(rows[0]["node_metadata"].(string)), &meta))
	assert.Equal(t, "property", meta["entity"])
	assert.Equal(t, "property_gold_42", meta["source_table"])
}

func TestEngineChunksLongText(t *testing.T) {
	st := newTestStore(t)
	// 1100 characters with a 512 window and 50 overlap splits into three
	// chunks; the short row stays a single node.
	seedPropertyGold(t, st, testRunID, map[string]string{
		"P1": strings.Repeat("ab", 550),
		"P2": "short text",
	})

	chunker := NewChunker(config.ChunkingConfig{
		Enable:       true,
		Method:       "simple",
		ChunkSize:    512,
		ChunkOverlap: 50,
	})
	e := newTestEngine(st, testEmbeddingConfig(), chunker, mockFactory())
	res, err := e.Run(context.Background(), models.EntityProperty, testRunID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.NodesTotal)
	assert.EqualValues(t, 4, res.Embedded)

	rows, err := st.Query(context.Background(),
		"SELECT node_id, chunk_index, chunk_total FROM property_gold_embeddings_42 WHERE primary_key = ? ORDER BY chunk_index", "P1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, "P1_"+string(rune('0'+i)), row["node_id"])
		assert.EqualValues(t, i, row["chunk_index"])
		assert.EqualValues(t, 3, row["chunk_total"])
	}
}

func TestEngineEmptyTextProducesNoNodes(t *testing.T) {
	st := newTestStore(t)
	seedPropertyGold(t, st, testRunID, map[string]string{
		"P1": "has text",
		"P2": "",
	})

	e := newTestEngine(st, testEmbeddingConfig(), noChunking(), mockFactory())
	res, err := e.Run(context.Background(), models.EntityProperty, testRunID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.NodesTotal)

	count, err := st.Count(context.Background(), "property_gold_embeddings_42")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestEngineFailedBatchDegradesToNullVectors(t *testing.T) {
	st := newTestStore(t)
	seedPropertyGold(t, st, testRunID, map[string]string{
		"P1": "text one", "P2": "text two", "P3": "text three", "P4": "text four",
	})

	// Batch size 2 over 4 nodes on one shard: the second provider call
	// fails permanently, the first succeeds.
	var calls atomic.Int64
	factory := func() (Provider, error) {
		m := NewMockProvider()
		m.EmbedBatchFunc = func(_ context.Context, texts []string) ([][]float64, error) {
			if calls.Add(1) == 2 {
				return nil, &ProviderError{Provider: "mock", Message: "boom", Retryable: false}
			}
			out := make([][]float64, len(texts))
			for i, txt := range texts {
				out[i] = deterministicVector(txt)
			}
			return out, nil
		}
		return m, nil
	}

	e := newTestEngine(st, testEmbeddingConfig(), noChunking(), factory)
	res, err := e.Run(context.Background(), models.EntityProperty, testRunID)
	require.NoError(t, err, "provider failure must not fail the pass")

	assert.EqualValues(t, 4, res.NodesTotal)
	assert.EqualValues(t, 2, res.Embedded)
	assert.EqualValues(t, 2, res.Failed)
	assert.True(t, res.Degraded)

	rows, err := st.Query(context.Background(),
		"SELECT primary_key, vector, embedding_dimension FROM property_gold_embeddings_42 ORDER BY primary_key")
	require.NoError(t, err)
	require.Len(t, rows, 4, "failed nodes still get rows, with null vectors")

	var nullVectors int
	for _, row := range rows {
		if row["vector"] == nil {
			nullVectors++
			assert.Nil(t, row["embedding_dimension"])
		}
	}
	assert.Equal(t, 2, nullVectors)
}

func TestEngineShortProviderResponse(t *testing.T) {
	st := newTestStore(t)
	seedPropertyGold(t, st, testRunID, map[string]string{
		"P1": "text one", "P2": "text two",
	})

	factory := func() (Provider, error) {
		m := NewMockProvider()
		m.EmbedBatchFunc = func(_ context.Context, texts []string) ([][]float64, error) {
			// One vector short.
			return [][]float64{deterministicVector(texts[0])}, nil
		}
		return m, nil
	}

	e := newTestEngine(st, testEmbeddingConfig(), noChunking(), factory)
	res, err := e.Run(context.Background(), models.EntityProperty, testRunID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Embedded)
	assert.EqualValues(t, 1, res.Failed)
	assert.True(t, res.Degraded)
}

func TestEngineBreakerStopsCallingDeadProvider(t *testing.T) {
	st := newTestStore(t)
	texts := make(map[string]string, 10)
	for _, k := range []string{"P0", "P1", "P2", "P3", "P4", "P5", "P6", "P7", "P8", "P9"} {
		texts[k] = "text for " + k
	}
	seedPropertyGold(t, st, testRunID, texts)

	var calls atomic.Int64
	factory := func() (Provider, error) {
		m := NewMockProvider()
		m.EmbedBatchFunc = func(context.Context, []string) ([][]float64, error) {
			calls.Add(1)
			return nil, errors.New("connection refused")
		}
		return m, nil
	}

	cfg := testEmbeddingConfig()
	cfg.BreakerThreshold = 2
	e := newTestEngine(st, cfg, noChunking(), factory)
	res, err := e.Run(context.Background(), models.EntityProperty, testRunID)
	require.NoError(t, err)

	// Ten nodes in five batches, but the breaker opens after two failures
	// and the remaining batches are rejected without provider calls.
	assert.EqualValues(t, 10, res.Failed)
	assert.EqualValues(t, 2, calls.Load())
}

func TestEngineCacheSkipsProvider(t *testing.T) {
	st := newTestStore(t)
	texts := map[string]string{"P1": "cached text", "P2": "other text"}
	seedPropertyGold(t, st, 42, texts)
	seedPropertyGold(t, st, 43, texts)

	cache := newMemoryCache()
	var calls atomic.Int64
	factory := func() (Provider, error) {
		m := NewMockProvider()
		m.EmbedBatchFunc = func(_ context.Context, batch []string) ([][]float64, error) {
			calls.Add(1)
			out := make([][]float64, len(batch))
			for i, txt := range batch {
				out[i] = deterministicVector(txt)
			}
			return out, nil
		}
		return m, nil
	}

	cfg := testEmbeddingConfig()
	e := NewEngine(st, factory, noChunking(), cache, cfg, 2, zap.NewNop())

	res, err := e.Run(context.Background(), models.EntityProperty, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.CacheHits)
	firstCalls := calls.Load()

	res, err = e.Run(context.Background(), models.EntityProperty, 43)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.CacheHits)
	assert.EqualValues(t, 2, res.Embedded)
	assert.Equal(t, firstCalls, calls.Load(), "second run is served from cache")
}

func TestEngineEmptyGoldTableStillWritesTable(t *testing.T) {
	st := newTestStore(t)
	seedPropertyGold(t, st, testRunID, map[string]string{})

	e := newTestEngine(st, testEmbeddingConfig(), noChunking(), mockFactory())
	res, err := e.Run(context.Background(), models.EntityProperty, testRunID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.NodesTotal)

	ok, err := st.HasTable(context.Background(), "property_gold_embeddings_42")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMockProviderDeterministic(t *testing.T) {
	m := NewMockProvider()
	a, err := m.EmbedBatch(context.Background(), []string{"same text"})
	require.NoError(t, err)
	b, err := m.EmbedBatch(context.Background(), []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.EqualValues(t, 2, m.Calls.Load())

	c, err := m.EmbedBatch(context.Background(), []string{"different text"})
	require.NoError(t, err)
	assert.NotEqual(t, a[0], c[0])
}

func TestProviderErrorRetryability(t *testing.T) {
	assert.True(t, statusRetryable(429))
	assert.True(t, statusRetryable(500))
	assert.True(t, statusRetryable(503))
	assert.False(t, statusRetryable(400))
	assert.False(t, statusRetryable(401))
	assert.False(t, statusRetryable(404))

	err := statusError("voyage", 429, "slow down")
	assert.True(t, err.IsRetryable())
	assert.Contains(t, err.Error(), "voyage HTTP 429")
}

func TestNewProviderFactoryUnknown(t *testing.T) {
	_, err := NewProviderFactory(&config.EmbeddingConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
