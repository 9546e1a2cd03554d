package models

import (
	"fmt"
	"regexp"
)

// tableNamePattern is the only shape the store accepts for table names.
var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// TableID identifies one table inside a run's namespace. Rendered names
// follow {entity}_{tier}_{runId}[_{suffix}], lowercase and underscore
// separated, so every intermediate artifact is addressable by name alone.
type TableID struct {
	Entity Entity
	Tier   Tier
	RunID  int64
	Suffix string
}

// Name renders the table name. A suffix slots in before the run id so that
// sibling tables sort next to their parent: property_gold_embeddings_123.
func (t TableID) Name() string {
	if t.Suffix != "" {
		return fmt.Sprintf("%s_%s_%s_%d", t.Entity, t.Tier, t.Suffix, t.RunID)
	}
	return fmt.Sprintf("%s_%s_%d", t.Entity, t.Tier, t.RunID)
}

// EmbeddingsTableID returns the id of the Gold embeddings sibling table,
// rendered as {entity}_gold_embeddings_{runId}.
func EmbeddingsTableID(entity Entity, runID int64) TableID {
	return TableID{Entity: entity, Tier: TierGold, RunID: runID, Suffix: "embeddings"}
}

// EnrichedTableName renders the name of a cross-entity projection:
// enriched_{a}_{b}_{runId}.
func EnrichedTableName(a, b Entity, runID int64) string {
	return fmt.Sprintf("enriched_%s_%s_%d", a, b, runID)
}

// ValidTableName reports whether a rendered name matches the naming
// convention. The store rejects anything else before it reaches SQL.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}
