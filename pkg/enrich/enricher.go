// Package enrich builds the cross-entity Gold projections: property joined
// with neighborhood, and property/neighborhood joined with their top-N most
// relevant wikipedia articles. Each projection is a declarative SQL transform
// over the run's Gold tables, materialized as an enriched_{a}_{b}_{runId}
// table. A failed projection is logged and skipped; the others proceed.
package enrich

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// Top-N caps for the wikipedia projections.
const (
	propertyArticleLimit     = 3
	neighborhoodArticleLimit = 5
)

// Enricher runs after all entities reach Gold.
type Enricher struct {
	store  store.Store
	logger *zap.Logger
}

// NewEnricher creates an enricher over the shared store.
func NewEnricher(st store.Store, logger *zap.Logger) *Enricher {
	return &Enricher{store: st, logger: logger.Named("enrich")}
}

// jsonArrayAgg phrases "aggregate these rows into a JSON array of objects"
// for the active backend. Pairs alternate key, expression.
func (e *Enricher) jsonArrayAgg(pairs string) string {
	if e.store.Dialect() == "postgres" {
		return fmt.Sprintf("json_agg(json_build_object(%s))", pairs)
	}
	return fmt.Sprintf("json_group_array(json_object(%s))", pairs)
}

func (e *Enricher) jsonObject(pairs string) string {
	if e.store.Dialect() == "postgres" {
		return fmt.Sprintf("json_build_object(%s)", pairs)
	}
	return fmt.Sprintf("json_object(%s)", pairs)
}

// Run produces the three enriched projections and returns the tables that
// were created. Projections are independent; one failing never stops the
// rest, and a run where all fail still returns nil error with zero tables.
func (e *Enricher) Run(ctx context.Context, runID int64) []models.ProcessedTable {
	type projection struct {
		name string
		fn   func(context.Context, int64) (models.ProcessedTable, error)
	}

	var tables []models.ProcessedTable
	for _, p := range []projection{
		{"property_neighborhood", e.PropertyNeighborhood},
		{"property_wikipedia", e.PropertyWikipedia},
		{"neighborhood_wikipedia", e.NeighborhoodWikipedia},
	} {
		tbl, err := p.fn(ctx, runID)
		if err != nil {
			e.logger.Warn("enrichment projection skipped",
				zap.String("projection", p.name),
				zap.Error(err))
			continue
		}
		e.logger.Info("enrichment projection created",
			zap.String("table", tbl.Name),
			zap.Int64("rows", tbl.RecordCount))
		tables = append(tables, tbl)
	}
	return tables
}

func (e *Enricher) materialize(ctx context.Context, name string, entity models.Entity, selectSQL string) (models.ProcessedTable, error) {
	if err := e.store.CreateTableAsName(ctx, name, selectSQL); err != nil {
		return models.ProcessedTable{}, err
	}
	count, err := e.store.Count(ctx, name)
	if err != nil {
		return models.ProcessedTable{}, err
	}
	return models.ProcessedTable{
		Name:         name,
		Entity:       entity,
		Tier:         models.TierGold,
		RecordCount:  count,
		RunTimestamp: time.Now().UTC(),
	}, nil
}

// PropertyNeighborhood left-joins property Gold onto neighborhood Gold by
// the resolved neighborhood id. Unmatched properties are preserved with
// enrichment_success = 0.
func (e *Enricher) PropertyNeighborhood(ctx context.Context, runID int64) (models.ProcessedTable, error) {
	name := models.EnrichedTableName(models.EntityProperty, models.EntityNeighborhood, runID)
	propertyGold := models.TableID{Entity: models.EntityProperty, Tier: models.TierGold, RunID: runID}.Name()
	neighborhoodGold := models.TableID{Entity: models.EntityNeighborhood, Tier: models.TierGold, RunID: runID}.Name()

	demographics := e.jsonObject(
		"'population', n.population, 'households', n.households, " +
			"'median_age', n.median_age, 'median_income', n.median_income")
	statistics := e.jsonObject(
		"'safety_rating', n.safety_rating, 'walkability_score', n.walkability_score, " +
			"'avg_home_value', n.avg_home_value, 'income_bracket', n.income_bracket")

	selectSQL := fmt.Sprintf(`
SELECT p.listing_id,
       p.correlation_uuid,
       p.city_normalized,
       p.state_normalized,
       p.neighborhood_id_resolved,
       p.link_confidence,
       n.name AS neighborhood_name,
       n.description AS neighborhood_description,
       %s AS neighborhood_demographics,
       %s AS neighborhood_statistics,
       n.amenities AS neighborhood_amenities,
       n.walkability_score AS neighborhood_walkability_score,
       n.avg_home_value AS neighborhood_avg_home_value,
       CASE WHEN n.neighborhood_id IS NULL THEN 0 ELSE 1 END AS enrichment_success
FROM %s p
LEFT JOIN %s n ON p.neighborhood_id_resolved = n.neighborhood_id`,
		demographics, statistics, propertyGold, neighborhoodGold)

	return e.materialize(ctx, name, models.EntityProperty, selectSQL)
}

// PropertyWikipedia attaches each property's top-3 wikipedia articles by
// relevance, matching the article's city_relevance or location_context
// against the property's normalized city.
func (e *Enricher) PropertyWikipedia(ctx context.Context, runID int64) (models.ProcessedTable, error) {
	name := models.EnrichedTableName(models.EntityProperty, models.EntityWikipedia, runID)
	propertyGold := models.TableID{Entity: models.EntityProperty, Tier: models.TierGold, RunID: runID}.Name()
	wikipediaGold := models.TableID{Entity: models.EntityWikipedia, Tier: models.TierGold, RunID: runID}.Name()

	articles := e.jsonArrayAgg(
		"'page_id', page_id, 'title', title, 'summary', summary, 'relevance', relevance_score")

	selectSQL := fmt.Sprintf(`
WITH ranked AS (
    SELECT p.listing_id AS listing_id,
           w.page_id,
           w.title,
           w.short_summary AS summary,
           w.relevance_score,
           ROW_NUMBER() OVER (
               PARTITION BY p.listing_id
               ORDER BY w.relevance_score DESC, w.page_id
           ) AS rn
    FROM %s p
    JOIN %s w
      ON w.city_relevance = p.city_normalized
      OR w.location_context LIKE '%%' || p.city_normalized || '%%'
),
agg AS (
    SELECT listing_id,
           %s AS wikipedia_articles,
           COUNT(*) AS wikipedia_count
    FROM ranked
    WHERE rn <= %d
    GROUP BY listing_id
)
SELECT p.listing_id,
       p.correlation_uuid,
       p.city_normalized,
       COALESCE(agg.wikipedia_articles, '[]') AS wikipedia_articles,
       COALESCE(agg.wikipedia_count, 0) AS wikipedia_count,
       CASE WHEN agg.listing_id IS NULL THEN 0 ELSE 1 END AS enrichment_success
FROM %s p
LEFT JOIN agg ON agg.listing_id = p.listing_id`,
		propertyGold, wikipediaGold, articles, propertyArticleLimit, propertyGold)

	return e.materialize(ctx, name, models.EntityProperty, selectSQL)
}

// NeighborhoodWikipedia attaches each neighborhood's top-5 articles,
// requiring both a city match and the article title to contain the
// neighborhood name.
func (e *Enricher) NeighborhoodWikipedia(ctx context.Context, runID int64) (models.ProcessedTable, error) {
	name := models.EnrichedTableName(models.EntityNeighborhood, models.EntityWikipedia, runID)
	neighborhoodGold := models.TableID{Entity: models.EntityNeighborhood, Tier: models.TierGold, RunID: runID}.Name()
	wikipediaGold := models.TableID{Entity: models.EntityWikipedia, Tier: models.TierGold, RunID: runID}.Name()

	articles := e.jsonArrayAgg(
		"'page_id', page_id, 'title', title, 'summary', summary, 'relevance', relevance_score")

	selectSQL := fmt.Sprintf(`
WITH ranked AS (
    SELECT n.neighborhood_id AS neighborhood_id,
           w.page_id,
           w.title,
           w.short_summary AS summary,
           w.relevance_score,
           ROW_NUMBER() OVER (
               PARTITION BY n.neighborhood_id
               ORDER BY w.relevance_score DESC, w.page_id
           ) AS rn
    FROM %s n
    JOIN %s w
      ON w.city_relevance = n.city_normalized
     AND w.title LIKE '%%' || n.name || '%%'
),
agg AS (
    SELECT neighborhood_id,
           %s AS wikipedia_articles,
           COUNT(*) AS wikipedia_count
    FROM ranked
    WHERE rn <= %d
    GROUP BY neighborhood_id
)
SELECT n.neighborhood_id,
       n.correlation_uuid,
       n.name,
       n.city_normalized,
       COALESCE(agg.wikipedia_articles, '[]') AS wikipedia_articles,
       COALESCE(agg.wikipedia_count, 0) AS wikipedia_count,
       CASE WHEN agg.neighborhood_id IS NULL THEN 0 ELSE 1 END AS enrichment_success
FROM %s n
LEFT JOIN agg ON agg.neighborhood_id = n.neighborhood_id`,
		neighborhoodGold, wikipediaGold, articles, neighborhoodArticleLimit, neighborhoodGold)

	return e.materialize(ctx, name, models.EntityNeighborhood, selectSQL)
}
