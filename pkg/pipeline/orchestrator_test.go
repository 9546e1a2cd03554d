package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/medallion"
	"github.com/estategraph/estate-engine/pkg/models"
)

func newTestDeps(t *testing.T, sources ...func(*Deps)) Deps {
	t.Helper()
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	lookups, err := medallion.LoadLookups(ctx, st)
	require.NoError(t, err)

	deps := Deps{
		Store:     st,
		Lookups:   lookups,
		Locations: medallion.NewLocationIndex(nil),
		Config:    testRunConfig(writeSources(t)),
		Logger:    zap.NewNop(),
	}
	for _, apply := range sources {
		apply(&deps)
	}
	return deps
}

func TestRegistryBuildUnknownEntity(t *testing.T) {
	_, err := DefaultRegistry().Build(models.Entity("bogus"), Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestRegistryCoversValidEntities(t *testing.T) {
	reg := DefaultRegistry()
	for _, entity := range models.ValidEntities {
		orch, err := reg.Build(entity, Deps{Logger: zap.NewNop()})
		require.NoError(t, err)
		assert.Equal(t, entity, orch.Entity())
	}
}

func TestNeighborhoodOrchestratorWalksAllTiers(t *testing.T) {
	deps := newTestDeps(t)

	m := NewNeighborhoodOrchestrator(deps).Run(context.Background(), 77)
	require.Nil(t, m.Error)
	assert.Equal(t, models.StageDone, m.FinalStage)
	assert.EqualValues(t, 1, m.BronzeRecords)
	assert.EqualValues(t, 1, m.GoldRecords)
	require.Len(t, m.Tables, 3)
	assert.Equal(t, "neighborhood_bronze_77", m.Tables[0].Name)
	assert.Equal(t, "neighborhood_silver_77", m.Tables[1].Name)
	assert.Equal(t, "neighborhood_gold_77", m.Tables[2].Name)
	assert.Contains(t, m.DurationsMS, string(models.StageBronze))
	assert.Contains(t, m.DurationsMS, string(models.StageGold))
}

func TestOrchestratorRecordsBronzeFailure(t *testing.T) {
	deps := newTestDeps(t, func(d *Deps) {
		d.Config.Sources.NeighborhoodPath = filepath.Join(t.TempDir(), "missing.json")
	})

	m := NewNeighborhoodOrchestrator(deps).Run(context.Background(), 78)
	assert.Equal(t, models.StageFailed, m.FinalStage)
	require.NotNil(t, m.Error)
	assert.Equal(t, models.StageBronze, m.Error.Stage)
	assert.Empty(t, m.Tables)
}

// Property Gold resolves linkage against the run's neighborhood Gold table,
// so running property alone fails at the gold stage, not earlier.
func TestPropertyOrchestratorNeedsNeighborhoodGold(t *testing.T) {
	deps := newTestDeps(t)

	m := NewPropertyOrchestrator(deps).Run(context.Background(), 79)
	assert.Equal(t, models.StageFailed, m.FinalStage)
	require.NotNil(t, m.Error)
	assert.Equal(t, models.StageGold, m.Error.Stage)
	assert.EqualValues(t, 2, m.BronzeRecords)
	assert.EqualValues(t, 2, m.SilverRecords)
}
