package medallion

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// GoldProcessor advances an entity's Silver table into its Gold table:
// correlation identity, geography resolved against the location reference,
// derived scores, linkage columns, and the canonical embedding text.
// Silver columns are preserved; Gold only adds.
type GoldProcessor struct {
	store     store.Store
	locations *LocationIndex
	logger    *zap.Logger
}

// NewGoldProcessor creates a gold processor over the shared store and the
// run's location index.
func NewGoldProcessor(st store.Store, locations *LocationIndex, logger *zap.Logger) *GoldProcessor {
	return &GoldProcessor{
		store:     st,
		locations: locations,
		logger:    logger.Named("gold"),
	}
}

func (p *GoldProcessor) logTable(id models.TableID, rows int) {
	p.logger.Info("gold table created",
		zap.String("table", id.Name()),
		zap.Int("rows", rows))
}

// resolvedGeography is the location-reference join result shared by all
// three entities.
type resolvedGeography struct {
	countyResolved    string
	parentCity        string
	parentCounty      string
	parentState       string
	locationHierarchy string
}

// resolveGeography looks up a normalized (city, state) pair. The row's own
// county, when present, wins over the reference's. An optional neighborhood
// name extends the hierarchy one level down.
func (p *GoldProcessor) resolveGeography(city, state, ownCounty, neighborhood string) resolvedGeography {
	g := resolvedGeography{countyResolved: ownCounty}

	ref, ok := p.locations.Resolve(city, state)
	if ok {
		g.parentCity = ref.City
		g.parentCounty = ref.County
		g.parentState = ref.State
		if g.countyResolved == "" {
			g.countyResolved = ref.County
		}
	}

	hier := models.LocationRef{
		State:        firstNonEmpty(g.parentState, state),
		County:       g.countyResolved,
		City:         firstNonEmpty(g.parentCity, city),
		Neighborhood: neighborhood,
	}
	g.locationHierarchy = hier.Hierarchy()
	return g
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func geographyRow(row map[string]any, g resolvedGeography) {
	putString(row, "county_resolved", g.countyResolved)
	putString(row, "parent_city", g.parentCity)
	putString(row, "parent_county", g.parentCounty)
	putString(row, "parent_state", g.parentState)
	putString(row, "location_hierarchy", g.locationHierarchy)
}

var goldGeographyColumns = []store.Column{
	{Name: "correlation_uuid", Type: store.TypeText},
	{Name: "county_resolved", Type: store.TypeText},
	{Name: "parent_city", Type: store.TypeText},
	{Name: "parent_county", Type: store.TypeText},
	{Name: "parent_state", Type: store.TypeText},
	{Name: "location_hierarchy", Type: store.TypeText},
}

// ============================================================================
// Property
// ============================================================================

func propertyGoldColumns() []store.Column {
	cols := propertySilverColumns()
	cols = append(cols, goldGeographyColumns...)
	cols = append(cols,
		store.Column{Name: "neighborhood_id_resolved", Type: store.TypeText},
		store.Column{Name: "link_confidence", Type: store.TypeReal},
		store.Column{Name: "embedding_text", Type: store.TypeText},
	)
	return cols
}

// ProcessProperties writes the property gold table. The neighborhood
// directory must come from the same run's neighborhood Gold table.
func (p *GoldProcessor) ProcessProperties(ctx context.Context, runID int64, hoods *NeighborhoodDirectory) (models.ProcessedTable, error) {
	silver := models.TableID{Entity: models.EntityProperty, Tier: models.TierSilver, RunID: runID}
	gold := models.TableID{Entity: models.EntityProperty, Tier: models.TierGold, RunID: runID}

	silverRows, err := p.store.Rows(ctx, silver.Name())
	if err != nil {
		return models.ProcessedTable{}, err
	}

	rows := make([]map[string]any, len(silverRows))
	for i, silverRow := range silverRows {
		s := propertySilverFromRow(silverRow)
		row := propertySilverRow(s)

		row["correlation_uuid"] = models.CorrelationUUID(models.EntityProperty, s.ListingID)
		geographyRow(row, p.resolveGeography(s.CityNormalized, s.StateNormalized, s.County, ""))

		resolved, confidence := hoods.Resolve(s.NeighborhoodID, s.CityNormalized, s.StateNormalized)
		putString(row, "neighborhood_id_resolved", resolved)
		put(row, "link_confidence", confidence)

		row["embedding_text"] = PropertyEmbeddingText(s)
		rows[i] = row
	}

	if err := p.store.CreateTableFromRows(ctx, gold, propertyGoldColumns(), rows); err != nil {
		return models.ProcessedTable{}, err
	}
	p.logTable(gold, len(rows))
	return processedTable(gold, len(rows)), nil
}

// ============================================================================
// Neighborhood
// ============================================================================

func neighborhoodGoldColumns() []store.Column {
	cols := neighborhoodSilverColumns()
	cols = append(cols, goldGeographyColumns...)
	cols = append(cols,
		store.Column{Name: "nightlife_score", Type: store.TypeReal},
		store.Column{Name: "family_friendly_score", Type: store.TypeReal},
		store.Column{Name: "cultural_score", Type: store.TypeReal},
		store.Column{Name: "green_space_score", Type: store.TypeReal},
		store.Column{Name: "knowledge_score", Type: store.TypeReal},
		store.Column{Name: "embedding_text", Type: store.TypeText},
	)
	return cols
}

// averageSchoolRating is the mean of the present ratings, nil when none.
func averageSchoolRating(s models.NeighborhoodSilver) *float64 {
	var sum float64
	var n int
	for _, r := range []*float64{s.ElementaryRating, s.MiddleRating, s.HighRating} {
		if r != nil {
			sum += *r
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func correlatedArticleCount(c *models.WikipediaCorrelations) int {
	if c == nil {
		return 0
	}
	n := len(c.Related)
	if c.Primary != nil {
		n++
	}
	return n
}

// ProcessNeighborhoods writes the neighborhood gold table.
func (p *GoldProcessor) ProcessNeighborhoods(ctx context.Context, runID int64) (models.ProcessedTable, error) {
	silver := models.TableID{Entity: models.EntityNeighborhood, Tier: models.TierSilver, RunID: runID}
	gold := models.TableID{Entity: models.EntityNeighborhood, Tier: models.TierGold, RunID: runID}

	silverRows, err := p.store.Rows(ctx, silver.Name())
	if err != nil {
		return models.ProcessedTable{}, err
	}

	rows := make([]map[string]any, len(silverRows))
	for i, silverRow := range silverRows {
		s := neighborhoodSilverFromRow(silverRow)
		row := neighborhoodSilverRow(s)

		row["correlation_uuid"] = models.CorrelationUUID(models.EntityNeighborhood, s.NeighborhoodID)
		geographyRow(row, p.resolveGeography(s.CityNormalized, s.StateNormalized, s.County, s.Name))

		topics := append(append([]string{}, s.Tags...), s.Characteristics...)
		row["nightlife_score"] = NightlifeScore(s.Amenities, s.Tags)
		row["family_friendly_score"] = FamilyFriendlyScore(averageSchoolRating(s), s.SafetyRating, s.Amenities, s.Tags)
		row["cultural_score"] = CulturalScore(s.Amenities, topics)
		row["green_space_score"] = GreenSpaceScore(s.Amenities, s.Tags)
		row["knowledge_score"] = KnowledgeScore(
			correlatedArticleCount(s.Correlations), len(topics), len(s.Amenities))

		row["embedding_text"] = NeighborhoodEmbeddingText(s)
		rows[i] = row
	}

	if err := p.store.CreateTableFromRows(ctx, gold, neighborhoodGoldColumns(), rows); err != nil {
		return models.ProcessedTable{}, err
	}
	p.logTable(gold, len(rows))
	return processedTable(gold, len(rows)), nil
}

// ============================================================================
// Wikipedia
// ============================================================================

func wikipediaGoldColumns() []store.Column {
	cols := wikipediaSilverColumns()
	cols = append(cols, goldGeographyColumns...)
	cols = append(cols,
		store.Column{Name: "city_relevance", Type: store.TypeText},
		store.Column{Name: "location_context", Type: store.TypeText},
		store.Column{Name: "overall_confidence", Type: store.TypeReal},
		store.Column{Name: "embedding_text", Type: store.TypeText},
	)
	return cols
}

// Articles longer than this count as full-content for the confidence blend.
const fullContentLength = 2000

func contentRatio(s models.WikipediaSilver) *float64 {
	if s.LongSummary == "" {
		return nil
	}
	r := min(float64(len(s.LongSummary))/fullContentLength, 1)
	return &r
}

func extractionConfidence(s models.WikipediaSilver) *float64 {
	if s.RelevanceScore == nil {
		return nil
	}
	c := clamp(*s.RelevanceScore/10, 0, 1)
	return &c
}

// ProcessWikipedia writes the wikipedia gold table.
func (p *GoldProcessor) ProcessWikipedia(ctx context.Context, runID int64) (models.ProcessedTable, error) {
	silver := models.TableID{Entity: models.EntityWikipedia, Tier: models.TierSilver, RunID: runID}
	gold := models.TableID{Entity: models.EntityWikipedia, Tier: models.TierGold, RunID: runID}

	silverRows, err := p.store.Rows(ctx, silver.Name())
	if err != nil {
		return models.ProcessedTable{}, err
	}

	rows := make([]map[string]any, len(silverRows))
	for i, silverRow := range silverRows {
		s := wikipediaSilverFromRow(silverRow)
		row := wikipediaSilverRow(s)

		row["correlation_uuid"] = models.CorrelationUUID(models.EntityWikipedia, wikipediaKey(s.PageID))
		g := p.resolveGeography(s.CityNormalized, s.StateNormalized, "", "")
		geographyRow(row, g)

		// city_relevance drives the enrichment joins; location_context is the
		// broader match surface.
		putString(row, "city_relevance", s.CityNormalized)
		putString(row, "location_context", locationContext(s, g))
		row["overall_confidence"] = OverallConfidence(s.Confidence, extractionConfidence(s), contentRatio(s))

		row["embedding_text"] = WikipediaEmbeddingText(s)
		rows[i] = row
	}

	if err := p.store.CreateTableFromRows(ctx, gold, wikipediaGoldColumns(), rows); err != nil {
		return models.ProcessedTable{}, err
	}
	p.logTable(gold, len(rows))
	return processedTable(gold, len(rows)), nil
}

func locationContext(s models.WikipediaSilver, g resolvedGeography) string {
	if g.locationHierarchy != "" {
		return g.locationHierarchy
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{s.CityNormalized, s.StateNormalized} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func wikipediaKey(pageID int64) string {
	return strconv.FormatInt(pageID, 10)
}
