package models

// ============================================================================
// Entity
// ============================================================================

// Entity identifies one of the record types the pipeline ingests.
type Entity string

const (
	EntityProperty     Entity = "property"
	EntityNeighborhood Entity = "neighborhood"
	EntityWikipedia    Entity = "wikipedia"
)

// ValidEntities contains all entity types in their default run order
// (property is dispatched last so enrichment sees the others at Gold).
var ValidEntities = []Entity{
	EntityNeighborhood,
	EntityWikipedia,
	EntityProperty,
}

// IsValidEntity checks if the given entity is recognized.
func IsValidEntity(e Entity) bool {
	for _, v := range ValidEntities {
		if v == e {
			return true
		}
	}
	return false
}

// PrimaryKeyColumn returns the entity's stable primary-key column name.
func (e Entity) PrimaryKeyColumn() string {
	switch e {
	case EntityProperty:
		return "listing_id"
	case EntityNeighborhood:
		return "neighborhood_id"
	case EntityWikipedia:
		return "page_id"
	default:
		return ""
	}
}

// ============================================================================
// Tier
// ============================================================================

// Tier names one of the medallion transformation layers.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// ValidTiers contains the tiers in transformation order.
var ValidTiers = []Tier{TierBronze, TierSilver, TierGold}

// IsValidTier checks if the given tier is recognized.
func IsValidTier(t Tier) bool {
	for _, v := range ValidTiers {
		if v == t {
			return true
		}
	}
	return false
}

// Next returns the tier that follows t, or "" for Gold.
func (t Tier) Next() Tier {
	switch t {
	case TierBronze:
		return TierSilver
	case TierSilver:
		return TierGold
	default:
		return ""
	}
}
