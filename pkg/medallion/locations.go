package medallion

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/estategraph/estate-engine/pkg/apperrors"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// LocationIndex resolves normalized (city, state) pairs against the location
// reference file, yielding the enclosing county and hierarchy. Built once per
// run and shared read-only across Gold processors.
type LocationIndex struct {
	byCityState map[string]models.LocationRef
	byCity      map[string]models.LocationRef
}

// NewLocationIndex indexes the reference rows. Later duplicates do not
// displace earlier entries, so ties resolve to the first row in file order.
func NewLocationIndex(refs []models.LocationRef) *LocationIndex {
	ix := &LocationIndex{
		byCityState: make(map[string]models.LocationRef),
		byCity:      make(map[string]models.LocationRef),
	}
	for _, ref := range refs {
		if ref.CorruptRecord != "" || ref.City == "" {
			continue
		}
		city := strings.ToLower(strings.TrimSpace(ref.City))
		if ref.State != "" {
			key := city + "|" + strings.ToLower(strings.TrimSpace(ref.State))
			if _, ok := ix.byCityState[key]; !ok {
				ix.byCityState[key] = ref
			}
		}
		if _, ok := ix.byCity[city]; !ok {
			ix.byCity[city] = ref
		}
	}
	return ix
}

// Resolve finds the reference entry for a normalized city, preferring an
// exact (city, state) match over a city-only match.
func (ix *LocationIndex) Resolve(city, state string) (models.LocationRef, bool) {
	if city == "" {
		return models.LocationRef{}, false
	}
	cityKey := strings.ToLower(strings.TrimSpace(city))
	if state != "" {
		if ref, ok := ix.byCityState[cityKey+"|"+strings.ToLower(strings.TrimSpace(state))]; ok {
			return ref, true
		}
	}
	ref, ok := ix.byCity[cityKey]
	return ref, ok
}

// ============================================================================
// Neighborhood directory
// ============================================================================

// Property-to-neighborhood link confidences. A declared id is trusted; a
// (city, state) fallback is best-effort.
const (
	linkConfidenceDirect   = 1.0
	linkConfidenceCityPair = 0.6
)

// NeighborhoodDirectory supports resolving a property's neighborhood from
// the run's neighborhood Gold table: by declared id, else by normalized
// (city, state).
type NeighborhoodDirectory struct {
	byCityState map[string]string
}

// LoadNeighborhoodDirectory reads the run's neighborhood Gold table. A run
// without a neighborhood table yields an empty directory, not an error, so
// property Gold still completes.
func LoadNeighborhoodDirectory(ctx context.Context, st store.Store, runID int64) (*NeighborhoodDirectory, error) {
	d := &NeighborhoodDirectory{byCityState: make(map[string]string)}

	gold := models.TableID{Entity: models.EntityNeighborhood, Tier: models.TierGold, RunID: runID}
	rows, err := st.Rows(ctx, gold.Name())
	if err != nil {
		if errors.Is(err, apperrors.ErrTableNotFound) {
			return d, nil
		}
		return nil, err
	}

	// Collect ids per (city, state) and keep the lexically smallest so the
	// fallback link is deterministic regardless of row order.
	candidates := make(map[string][]string)
	for _, row := range rows {
		id := rowString(row, "neighborhood_id")
		city := strings.ToLower(rowString(row, "city_normalized"))
		state := strings.ToLower(rowString(row, "state_normalized"))
		if id == "" || city == "" {
			continue
		}
		key := city + "|" + state
		candidates[key] = append(candidates[key], id)
	}
	for key, ids := range candidates {
		sort.Strings(ids)
		d.byCityState[key] = ids[0]
	}
	return d, nil
}

// Resolve links a property to a neighborhood. A declared id passes through
// unverified (downstream enrichment marks unmatched ids); otherwise the
// normalized (city, state) pair is tried.
func (d *NeighborhoodDirectory) Resolve(declaredID, city, state string) (string, *float64) {
	if declaredID != "" {
		c := linkConfidenceDirect
		return declaredID, &c
	}
	key := strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(state))
	if id, ok := d.byCityState[key]; ok {
		c := linkConfidenceCityPair
		return id, &c
	}
	return "", nil
}
