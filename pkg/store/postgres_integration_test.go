//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/testhelpers"
)

func newPostgresStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewPostgres(testhelpers.PostgresStoreConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	runID := time.Now().UnixNano()

	require.NoError(t, s.Migrate(ctx))
	assert.Equal(t, "postgres", s.Dialect())

	id := models.TableID{Entity: models.EntityProperty, Tier: models.TierBronze, RunID: runID}
	cols := []Column{
		{Name: "listing_id", Type: TypeText},
		{Name: "listing_price", Type: TypeReal},
		{Name: "bedrooms", Type: TypeInteger},
		{Name: "features", Type: TypeJSON},
		{Name: "is_active", Type: TypeBool},
		{Name: "ingested_at", Type: TypeTimestamp},
	}
	now := time.Now().UTC()
	rows := []map[string]any{
		{"listing_id": "P1", "listing_price": 800000.0, "bedrooms": int64(3),
			"features": []string{"pool", "garage"}, "is_active": true, "ingested_at": now},
		{"listing_id": "P2", "listing_price": nil, "bedrooms": nil,
			"features": []string{}, "is_active": false, "ingested_at": now},
	}
	require.NoError(t, s.CreateTableFromRows(ctx, id, cols, rows))
	t.Cleanup(func() { s.DropRun(context.Background(), runID) })

	count, err := s.Count(ctx, id.Name())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	got, err := s.Rows(ctx, id.Name())
	require.NoError(t, err)
	require.Len(t, got, 2)

	derived := models.TableID{Entity: models.EntityProperty, Tier: models.TierSilver, RunID: runID}
	require.NoError(t, s.CreateTableAs(ctx,
		derived, "SELECT listing_id, listing_price FROM "+id.Name()+" WHERE is_active = 1"))
	count, err = s.Count(ctx, derived.Name())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	names, err := s.ListRunTables(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, names, 2)

	require.NoError(t, s.DropRun(ctx, runID, derived.Name()))
	ok, err := s.HasTable(ctx, id.Name())
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.HasTable(ctx, derived.Name())
	require.NoError(t, err)
	assert.True(t, ok)
}
