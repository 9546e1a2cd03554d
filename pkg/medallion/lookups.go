package medallion

import (
	"context"
	"fmt"
	"strings"

	"github.com/estategraph/estate-engine/pkg/store"
)

// Lookups holds the abbreviation dictionaries applied at the Silver tier.
// Keys are uppercase abbreviations; values are canonical names. Loaded once
// per run from the migrated lookup tables and shared across processors.
type Lookups struct {
	City  map[string]string
	State map[string]string
}

// LoadLookups reads the city and state dictionaries from the store.
func LoadLookups(ctx context.Context, st store.Store) (*Lookups, error) {
	city, err := loadLookupTable(ctx, st, "city_lookup")
	if err != nil {
		return nil, err
	}
	state, err := loadLookupTable(ctx, st, "state_lookup")
	if err != nil {
		return nil, err
	}
	return &Lookups{City: city, State: state}, nil
}

func loadLookupTable(ctx context.Context, st store.Store, name string) (map[string]string, error) {
	rows, err := st.Query(ctx, fmt.Sprintf("SELECT abbreviation, canonical FROM %s", name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		abbr := strings.ToUpper(rowString(row, "abbreviation"))
		if abbr == "" {
			continue
		}
		out[abbr] = rowString(row, "canonical")
	}
	return out, nil
}

// NormalizeCity expands a city abbreviation to its canonical name. Unknown
// values pass through trimmed, never emptied.
func (l *Lookups) NormalizeCity(city string) string {
	return normalizeWith(l.City, city)
}

// NormalizeState expands a state abbreviation to its canonical name.
func (l *Lookups) NormalizeState(state string) string {
	return normalizeWith(l.State, state)
}

func normalizeWith(dict map[string]string, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if canonical, ok := dict[strings.ToUpper(v)]; ok {
		return canonical
	}
	return v
}
