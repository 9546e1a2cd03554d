//go:build integration

package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
	"github.com/estategraph/estate-engine/pkg/testhelpers"
)

func TestSearchSinkAgainstElasticsearch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	runID := time.Now().UnixNano()

	id := models.TableID{Entity: models.EntityProperty, Tier: models.TierGold, RunID: runID}
	cols := []store.Column{
		{Name: "listing_id", Type: store.TypeText},
		{Name: "city_normalized", Type: store.TypeText},
		{Name: "listing_price", Type: store.TypeReal},
		{Name: "latitude", Type: store.TypeReal},
		{Name: "longitude", Type: store.TypeReal},
		{Name: "embedding_text", Type: store.TypeText},
	}
	rows := []map[string]any{
		{"listing_id": "P1", "city_normalized": "San Francisco", "listing_price": 800000.0,
			"latitude": 37.76, "longitude": -122.42, "embedding_text": "excluded from the index"},
		{"listing_id": "P2", "city_normalized": "Austin", "listing_price": 450000.0},
	}
	require.NoError(t, st.CreateTableFromRows(ctx, id, cols, rows))

	sink, err := NewSearchSink(config.SearchSinkConfig{
		Hosts:         []string{testhelpers.ElasticsearchURL(t)},
		IndexPrefix:   "estate_it",
		BulkSize:      100,
		ExcludeFields: []string{"embedding_text"},
	}, st, zap.NewNop())
	require.NoError(t, err)
	defer sink.Close(ctx)

	require.NoError(t, sink.Probe(ctx))

	res, err := sink.Write(ctx, TableRef{Entity: models.EntityProperty, Name: id.Name()})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.EqualValues(t, 2, res.RecordCount)
}
