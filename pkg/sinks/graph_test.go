package sinks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/models"
)

func TestNodeLabel(t *testing.T) {
	assert.Equal(t, "Property", nodeLabel(models.EntityProperty))
	assert.Equal(t, "Neighborhood", nodeLabel(models.EntityNeighborhood))
	assert.Equal(t, "WikipediaArticle", nodeLabel(models.EntityWikipedia))
	assert.Equal(t, "", nodeLabel(models.Entity("bogus")))
}

func TestNodePropertiesKeepsScalars(t *testing.T) {
	props := nodeProperties(map[string]any{
		"listing_id":     "P1",
		"price":          800000.0,
		"bedrooms":       int64(2),
		"validated":      true,
		"county":         nil,
		"features":       []string{"not scalar"},
		"embedding_text": "dropped even though scalar",
	})
	assert.Equal(t, map[string]any{
		"listing_id": "P1",
		"price":      800000.0,
		"bedrooms":   int64(2),
		"validated":  true,
	}, props)
}

func TestRunIDFromTable(t *testing.T) {
	id, ok := runIDFromTable("property_gold_1724582400")
	require.True(t, ok)
	assert.EqualValues(t, 1724582400, id)

	_, ok = runIDFromTable("no_trailing_id_x")
	assert.False(t, ok)
}

func TestNewSinksFactory(t *testing.T) {
	st := newTestStore(t)
	cfg := &config.SinksConfig{
		Enabled: []string{"parquet", "search", "graph"},
		Parquet: config.ParquetSinkConfig{Path: t.TempDir()},
		Search:  config.SearchSinkConfig{Hosts: []string{"http://localhost:9200"}},
		Graph:   config.GraphSinkConfig{URI: "bolt://localhost:7687", Username: "neo4j"},
	}
	sinks, err := New(cfg, st, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, sinks, 3)
	assert.Equal(t, "parquet", sinks[0].Name())
	assert.Equal(t, "search", sinks[1].Name())
	assert.Equal(t, "graph", sinks[2].Name())
}

func TestNewSinksUnknownName(t *testing.T) {
	_, err := New(&config.SinksConfig{Enabled: []string{"csv"}}, nil, zap.NewNop())
	assert.Error(t, err)
}
