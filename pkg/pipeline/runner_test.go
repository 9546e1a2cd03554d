package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

var fixedNow = time.Unix(1700000000, 0)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func seedWikipediaFixture(t *testing.T, path string) {
	t.Helper()
	dbx, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer dbx.Close()

	stmts := []string{
		`CREATE TABLE articles (pageid INTEGER PRIMARY KEY, title TEXT, url TEXT,
			relevance_score REAL, latitude REAL, longitude REAL, categories TEXT)`,
		`CREATE TABLE page_summaries (page_id INTEGER PRIMARY KEY, short_summary TEXT,
			long_summary TEXT, key_topics TEXT, best_city TEXT, best_state TEXT, confidence_score REAL)`,
		`INSERT INTO articles VALUES (42, 'Golden Gate Bridge', 'https://en.wikipedia.org/wiki/Golden_Gate_Bridge',
			9.5, 37.8199, -122.4783, 'Bridges')`,
		`INSERT INTO articles VALUES (43, 'Mission District', 'https://en.wikipedia.org/wiki/Mission_District',
			8.0, 37.7599, -122.4148, 'Neighborhoods')`,
		`INSERT INTO page_summaries VALUES (42, 'A bridge.', 'A suspension bridge spanning the Golden Gate.',
			'["bridge","landmark"]', 'San Francisco', 'CA', 0.85)`,
		`INSERT INTO page_summaries VALUES (43, 'A neighborhood.', 'A neighborhood in San Francisco.',
			'["culture","food"]', 'San Francisco', 'CA', 0.8)`,
	}
	for _, stmt := range stmts {
		_, err := dbx.Exec(stmt)
		require.NoError(t, err)
	}
}

// writeSources lays down one small source per entity plus the location
// reference and returns the populated sources block.
func writeSources(t *testing.T) config.SourcesConfig {
	t.Helper()
	dir := t.TempDir()

	properties := writeFixture(t, dir, "properties.json", `[
		{
			"listing_id": "P1",
			"address": {"street": "1 Valencia St", "city": "San Francisco", "state": "CA", "zip": "94110"},
			"coordinates": {"lat": 37.76, "lon": -122.42},
			"property_details": {"square_feet": 2000, "bedrooms": 3, "bathrooms": 2, "property_type": "condo", "year_built": 1990},
			"listing_price": 800000,
			"description": "A bright condo near the park.",
			"features": ["Pool", "Garage"],
			"neighborhood_id": "N1"
		},
		{
			"listing_id": "P2",
			"address": {"city": "San Francisco", "state": "CA"},
			"listing_price": 650000,
			"description": "A cozy flat close to transit.",
			"neighborhood_id": "N1"
		}
	]`)
	neighborhoods := writeFixture(t, dir, "neighborhoods.json", `[
		{
			"neighborhood_id": "N1",
			"name": "Mission District",
			"city": "San Francisco",
			"state": "CA",
			"description": "A vibrant neighborhood.",
			"amenities": ["parks", "cafes"],
			"demographics": {"population": 45000, "median_income": 95000},
			"safety_rating": 7.5,
			"walkability_score": 9.1,
			"avg_home_value": 1200000
		}
	]`)
	locations := writeFixture(t, dir, "locations.json", `[
		{"state": "California"},
		{"state": "California", "county": "San Francisco County", "city": "San Francisco"},
		{"state": "California", "county": "San Francisco County", "city": "San Francisco", "neighborhood": "Mission District"}
	]`)
	wikiDB := filepath.Join(dir, "wiki.db")
	seedWikipediaFixture(t, wikiDB)

	return config.SourcesConfig{
		PropertyPath:     properties,
		NeighborhoodPath: neighborhoods,
		WikipediaDB:      wikiDB,
		LocationPath:     locations,
	}
}

func testRunConfig(sources config.SourcesConfig) *config.Config {
	return &config.Config{
		Run: config.RunConfig{
			Parallelism: 2,
		},
		Sources: sources,
		Embedding: config.EmbeddingConfig{
			Provider:         "mock",
			BatchSize:        20,
			MaxRetries:       0,
			RetryDelayMS:     1,
			TimeoutMS:        1000,
			Shards:           1,
			BreakerThreshold: 5,
		},
		Chunking: config.ChunkingConfig{Enable: false},
	}
}

func newTestRunner(t *testing.T, cfg *config.Config, st store.Store) *Runner {
	t.Helper()
	r := NewRunner(cfg, st, zap.NewNop())
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestRunnerEndToEnd(t *testing.T) {
	st := newTestStore(t)
	cfg := testRunConfig(writeSources(t))
	out := t.TempDir()
	cfg.Sinks = config.SinksConfig{
		Enabled: []string{"parquet"},
		Parquet: config.ParquetSinkConfig{Path: out, Compression: "snappy", Mode: "overwrite"},
	}
	ctx := context.Background()

	report, err := newTestRunner(t, cfg, st).Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	runID := fixedNow.Unix()

	assert.Equal(t, runID, report.RunID)
	assert.Equal(t, models.RunStatusCompleted, report.Status)
	assert.False(t, report.Degraded)
	assert.Empty(t, report.Errors)
	require.Len(t, report.Entities, 3)

	for _, entity := range models.ValidEntities {
		m := report.Entities[entity]
		require.NotNil(t, m, "missing metrics for %s", entity)
		assert.Equal(t, models.StageDone, m.FinalStage, "entity %s", entity)
		assert.Positive(t, m.BronzeRecords, "entity %s", entity)
		assert.Equal(t, m.BronzeRecords, m.GoldRecords, "entity %s", entity)
		assert.Positive(t, m.EmbeddedRecords, "entity %s", entity)
		assert.Equal(t, m.NodesTotal, m.EmbeddedRecords, "entity %s", entity)
	}
	assert.EqualValues(t, 2, report.Entities[models.EntityProperty].GoldRecords)

	// Gold, embeddings and enriched projections survive cleanup; the
	// intermediate tiers do not.
	for _, entity := range models.ValidEntities {
		assertTable(t, st, models.TableID{Entity: entity, Tier: models.TierGold, RunID: runID}.Name(), true)
		assertTable(t, st, models.EmbeddingsTableID(entity, runID).Name(), true)
		assertTable(t, st, models.TableID{Entity: entity, Tier: models.TierBronze, RunID: runID}.Name(), false)
		assertTable(t, st, models.TableID{Entity: entity, Tier: models.TierSilver, RunID: runID}.Name(), false)
	}
	assertTable(t, st, models.EnrichedTableName(models.EntityProperty, models.EntityNeighborhood, runID), true)
	assertTable(t, st, models.EnrichedTableName(models.EntityProperty, models.EntityWikipedia, runID), true)
	assertTable(t, st, models.EnrichedTableName(models.EntityNeighborhood, models.EntityWikipedia, runID), true)

	// Both properties link to the only neighborhood.
	enriched, err := st.Rows(ctx, models.EnrichedTableName(models.EntityProperty, models.EntityNeighborhood, runID))
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	for _, row := range enriched {
		assert.EqualValues(t, 1, row["enrichment_success"])
	}

	// The registry row carries the final status and the full report.
	rows, err := st.Query(ctx, "SELECT status, report FROM pipeline_runs WHERE run_id = ?", runID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(models.RunStatusCompleted), rows[0]["status"])
	var persisted models.RunReport
	require.NoError(t, json.Unmarshal([]byte(rows[0]["report"].(string)), &persisted))
	assert.Equal(t, runID, persisted.RunID)
	assert.Empty(t, cmp.Diff(report.Entities, persisted.Entities))

	// The parquet sink wrote every entity's Gold table.
	require.Len(t, report.SinkWrites, 3)
	for _, w := range report.SinkWrites {
		assert.True(t, w.Success, "sink write %s/%s", w.Sink, w.Entity)
		assert.Positive(t, w.RecordCount)
	}
	for _, entity := range models.ValidEntities {
		part := filepath.Join(out, string(entity), "part-0000.parquet")
		info, err := os.Stat(part)
		require.NoError(t, err, "missing parquet file for %s", entity)
		assert.Positive(t, info.Size())
	}
}

func assertTable(t *testing.T, st store.Store, name string, want bool) {
	t.Helper()
	ok, err := st.HasTable(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, want, ok, "table %s", name)
}

func TestRunnerMissingPropertySourceDegradesRun(t *testing.T) {
	st := newTestStore(t)
	sources := writeSources(t)
	sources.PropertyPath = filepath.Join(t.TempDir(), "missing.json")
	cfg := testRunConfig(sources)

	report, err := newTestRunner(t, cfg, st).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, models.RunStatusDegraded, report.Status)
	assert.True(t, report.AnyEntityFailed())
	assert.False(t, report.AllSourcesEmpty())

	prop := report.Entities[models.EntityProperty]
	require.NotNil(t, prop)
	assert.Equal(t, models.StageFailed, prop.FinalStage)
	require.NotNil(t, prop.Error)
	assert.Equal(t, models.StageBronze, prop.Error.Stage)

	// The surviving entities still reach Gold and get embedded.
	for _, entity := range []models.Entity{models.EntityNeighborhood, models.EntityWikipedia} {
		m := report.Entities[entity]
		require.NotNil(t, m)
		assert.Equal(t, models.StageDone, m.FinalStage)
		assert.Positive(t, m.EmbeddedRecords)
	}
}

func TestRunnerAllSourcesMissingFailsAndKeepsTables(t *testing.T) {
	st := newTestStore(t)
	missing := t.TempDir()
	cfg := testRunConfig(config.SourcesConfig{
		PropertyPath:     filepath.Join(missing, "p.json"),
		NeighborhoodPath: filepath.Join(missing, "n.json"),
		WikipediaDB:      filepath.Join(missing, "w.db"),
	})

	report, err := newTestRunner(t, cfg, st).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, models.RunStatusFailed, report.Status)
	assert.True(t, report.AllSourcesEmpty())
	for _, m := range report.Entities {
		assert.Equal(t, models.StageFailed, m.FinalStage)
	}

	rows, err := st.Query(context.Background(), "SELECT status FROM pipeline_runs WHERE run_id = ?", report.RunID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(models.RunStatusFailed), rows[0]["status"])
}

func TestRunnerEntitySubset(t *testing.T) {
	st := newTestStore(t)
	cfg := testRunConfig(writeSources(t))
	cfg.Run.Entities = []string{"wikipedia"}

	report, err := newTestRunner(t, cfg, st).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, models.RunStatusCompleted, report.Status)
	require.Len(t, report.Entities, 1)
	m := report.Entities[models.EntityWikipedia]
	require.NotNil(t, m)
	assert.Equal(t, models.StageDone, m.FinalStage)
	assert.EqualValues(t, 2, m.GoldRecords)
}

func TestRunnerStopOnErrorReportsEntityFailure(t *testing.T) {
	st := newTestStore(t)
	sources := writeSources(t)
	sources.NeighborhoodPath = filepath.Join(t.TempDir(), "missing.json")
	cfg := testRunConfig(sources)
	cfg.Run.StopOnError = true

	report, err := newTestRunner(t, cfg, st).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "neighborhood")
	assert.NotEqual(t, models.RunStatusCompleted, report.Status)
}

func TestRunnerKeepIntermediate(t *testing.T) {
	st := newTestStore(t)
	cfg := testRunConfig(writeSources(t))
	cfg.Run.KeepIntermediate = true

	report, err := newTestRunner(t, cfg, st).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, report.Status)

	runID := report.RunID
	assertTable(t, st, models.TableID{Entity: models.EntityProperty, Tier: models.TierBronze, RunID: runID}.Name(), true)
	assertTable(t, st, models.TableID{Entity: models.EntityProperty, Tier: models.TierSilver, RunID: runID}.Name(), true)
}

func TestRunnerDropRun(t *testing.T) {
	st := newTestStore(t)
	cfg := testRunConfig(writeSources(t))
	runner := newTestRunner(t, cfg, st)
	ctx := context.Background()

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	runID := report.RunID

	require.NoError(t, runner.DropRun(ctx, runID))

	names, err := st.ListRunTables(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, names)
	rows, err := st.Query(ctx, "SELECT run_id FROM pipeline_runs WHERE run_id = ?", runID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRunnerProbeSinksParquet(t *testing.T) {
	st := newTestStore(t)
	cfg := testRunConfig(writeSources(t))
	cfg.Sinks = config.SinksConfig{
		Enabled: []string{"parquet"},
		Parquet: config.ParquetSinkConfig{Path: t.TempDir(), Compression: "snappy", Mode: "overwrite"},
	}

	require.NoError(t, newTestRunner(t, cfg, st).ProbeSinks(context.Background()))
}
