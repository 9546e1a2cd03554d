package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/apperrors"
	"github.com/estategraph/estate-engine/pkg/models"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLite(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateTableFromRowsAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := models.TableID{Entity: models.EntityProperty, Tier: models.TierBronze, RunID: 100}
	cols := []Column{
		{Name: "listing_id", Type: TypeText},
		{Name: "listing_price", Type: TypeReal},
		{Name: "features", Type: TypeJSON},
		{Name: "is_active", Type: TypeBool},
	}
	rows := []map[string]any{
		{"listing_id": "P1", "listing_price": 800000.0, "features": []string{"pool"}, "is_active": true},
		{"listing_id": "P2", "listing_price": nil, "features": []string{}, "is_active": false},
	}

	require.NoError(t, s.CreateTableFromRows(ctx, id, cols, rows))

	n, err := s.Count(ctx, "property_bronze_100")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.Rows(ctx, "property_bronze_100")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestCreateTableWriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := models.TableID{Entity: models.EntityProperty, Tier: models.TierBronze, RunID: 7}
	cols := []Column{{Name: "listing_id", Type: TypeText}}
	require.NoError(t, s.CreateTableFromRows(ctx, id, cols, nil))

	err := s.CreateTableFromRows(ctx, id, cols, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTableExists))

	err = s.CreateTableAs(ctx, id, "SELECT 1 AS listing_id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTableExists))
}

func TestCreateTableAs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bronze := models.TableID{Entity: models.EntityProperty, Tier: models.TierBronze, RunID: 9}
	cols := []Column{
		{Name: "listing_id", Type: TypeText},
		{Name: "listing_price", Type: TypeReal},
	}
	rows := []map[string]any{
		{"listing_id": "P1", "listing_price": 100.0},
		{"listing_id": "P2", "listing_price": 300.0},
	}
	require.NoError(t, s.CreateTableFromRows(ctx, bronze, cols, rows))

	silver := models.TableID{Entity: models.EntityProperty, Tier: models.TierSilver, RunID: 9}
	require.NoError(t, s.CreateTableAs(ctx, silver,
		"SELECT listing_id, listing_price FROM property_bronze_9 WHERE listing_price > ?", 200.0))

	n, err := s.Count(ctx, silver.Name())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCountMissingTable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Count(context.Background(), "property_gold_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTableNotFound))
}

func TestSchema(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := models.TableID{Entity: models.EntityWikipedia, Tier: models.TierBronze, RunID: 5}
	cols := []Column{
		{Name: "page_id", Type: TypeInteger},
		{Name: "title", Type: TypeText},
		{Name: "relevance_score", Type: TypeReal},
	}
	require.NoError(t, s.CreateTableFromRows(ctx, id, cols, nil))

	got, err := s.Schema(ctx, id.Name())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "page_id", got[0].Name)
	assert.Equal(t, TypeInteger, got[0].Type)
	assert.Equal(t, TypeReal, got[2].Type)
}

func TestDropRunKeepsNamedTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cols := []Column{{Name: "listing_id", Type: TypeText}}
	for _, tier := range []models.Tier{models.TierBronze, models.TierSilver, models.TierGold} {
		id := models.TableID{Entity: models.EntityProperty, Tier: tier, RunID: 42}
		require.NoError(t, s.CreateTableFromRows(ctx, id, cols, nil))
	}

	gold := models.TableID{Entity: models.EntityProperty, Tier: models.TierGold, RunID: 42}.Name()
	require.NoError(t, s.DropRun(ctx, 42, gold))

	names, err := s.ListRunTables(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{gold}, names)
}

func TestMigrateSeedsLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	// Idempotent.
	require.NoError(t, s.Migrate(ctx))

	rows, err := s.Query(ctx, "SELECT canonical FROM state_lookup WHERE abbreviation = ?", "CA")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "California", rows[0]["canonical"])

	rows, err = s.Query(ctx, "SELECT canonical FROM city_lookup WHERE abbreviation = ?", "SF")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "San Francisco", rows[0]["canonical"])
}

func TestInvalidTableNameRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateTableAsName(context.Background(), "bad-name; DROP TABLE x", "SELECT 1")
	require.Error(t, err)
}
