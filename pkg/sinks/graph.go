package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// graphSink upserts Gold rows as labeled nodes and materializes the linkage
// edges: LOCATED_IN from property to its resolved neighborhood (weighted by
// link confidence) and DESCRIBED_BY from property/neighborhood to their
// enriched wikipedia articles (weighted by relevance).
type graphSink struct {
	cfg    config.GraphSinkConfig
	driver neo4j.DriverWithContext
	store  store.Store
	logger *zap.Logger
}

// NewGraphSink creates the graph-store sink.
func NewGraphSink(cfg config.GraphSinkConfig, st store.Store, logger *zap.Logger) (Sink, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create graph driver: %w", err)
	}
	return &graphSink{
		cfg:    cfg,
		driver: driver,
		store:  st,
		logger: logger.Named("sink_graph"),
	}, nil
}

func (s *graphSink) Name() string { return "graph" }

func (s *graphSink) Probe(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *graphSink) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// nodeLabel maps an entity to its graph label.
func nodeLabel(entity models.Entity) string {
	switch entity {
	case models.EntityProperty:
		return "Property"
	case models.EntityNeighborhood:
		return "Neighborhood"
	case models.EntityWikipedia:
		return "WikipediaArticle"
	default:
		return ""
	}
}

func (s *graphSink) Write(ctx context.Context, ref TableRef) (WriteResult, error) {
	label := nodeLabel(ref.Entity)
	if label == "" {
		return failure(s.Name(), ref, fmt.Errorf("no graph label for entity %q", ref.Entity))
	}
	rows, err := s.store.Rows(ctx, ref.Name)
	if err != nil {
		return failure(s.Name(), ref, err)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.cfg.Database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	pkCol := ref.Entity.PrimaryKeyColumn()
	written, err := s.mergeNodes(ctx, session, label, pkCol, rows)
	if err != nil {
		return failure(s.Name(), ref, err)
	}

	if ref.Entity == models.EntityProperty {
		if err := s.mergeLocatedIn(ctx, session, rows); err != nil {
			return failure(s.Name(), ref, err)
		}
	}
	if runID, ok := runIDFromTable(ref.Name); ok &&
		(ref.Entity == models.EntityProperty || ref.Entity == models.EntityNeighborhood) {
		if err := s.mergeDescribedBy(ctx, session, ref.Entity, runID); err != nil {
			return failure(s.Name(), ref, err)
		}
	}

	s.logger.Info("graph nodes merged",
		zap.String("table", ref.Name),
		zap.String("label", label),
		zap.Int64("nodes", written))
	return success(s.Name(), ref, written)
}

func (s *graphSink) batchSize() int {
	if s.cfg.BatchSize > 0 {
		return s.cfg.BatchSize
	}
	return 500
}

// mergeNodes upserts one node per row, keyed by the primary key, with the
// row's scalar columns as properties.
func (s *graphSink) mergeNodes(ctx context.Context, session neo4j.SessionWithContext, label, pkCol string, rows []map[string]any) (int64, error) {
	query := fmt.Sprintf(
		"UNWIND $rows AS row MERGE (n:%s {%s: row.pk}) SET n += row.props",
		label, pkCol)

	var written int64
	batch := s.batchSize()
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		payload := make([]map[string]any, 0, end-start)
		for _, row := range rows[start:end] {
			pk := documentID(row[pkCol])
			if pk == "" {
				continue
			}
			payload = append(payload, map[string]any{
				"pk":    pk,
				"props": nodeProperties(row),
			})
		}
		if len(payload) == 0 {
			continue
		}
		if _, err := session.Run(ctx, query, map[string]any{"rows": payload}); err != nil {
			return written, fmt.Errorf("merge %s nodes: %w", label, err)
		}
		written += int64(len(payload))
	}
	return written, nil
}

// nodeProperties keeps the scalar columns. JSON blobs stay behind in the
// store; the graph carries identity, geography and scores.
func nodeProperties(row map[string]any) map[string]any {
	props := make(map[string]any, len(row))
	for k, v := range row {
		switch v.(type) {
		case string, int64, float64, bool:
			props[k] = v
		}
	}
	delete(props, "embedding_text")
	return props
}

// mergeLocatedIn links properties to their resolved neighborhoods.
func (s *graphSink) mergeLocatedIn(ctx context.Context, session neo4j.SessionWithContext, rows []map[string]any) error {
	query := "UNWIND $links AS link " +
		"MATCH (p:Property {listing_id: link.listing_id}) " +
		"MERGE (n:Neighborhood {neighborhood_id: link.neighborhood_id}) " +
		"MERGE (p)-[r:LOCATED_IN]->(n) SET r.weight = link.weight"

	var links []map[string]any
	for _, row := range rows {
		listingID := documentID(row["listing_id"])
		hoodID := documentID(row["neighborhood_id_resolved"])
		if listingID == "" || hoodID == "" {
			continue
		}
		link := map[string]any{
			"listing_id":      listingID,
			"neighborhood_id": hoodID,
		}
		if w, ok := row["link_confidence"].(float64); ok {
			link["weight"] = w
		}
		links = append(links, link)
	}

	batch := s.batchSize()
	for start := 0; start < len(links); start += batch {
		end := min(start+batch, len(links))
		if _, err := session.Run(ctx, query,
			map[string]any{"links": links[start:end]}); err != nil {
			return fmt.Errorf("merge LOCATED_IN edges: %w", err)
		}
	}
	return nil
}

// mergeDescribedBy reads the run's enriched wikipedia projection and links
// each source row to its correlated articles.
func (s *graphSink) mergeDescribedBy(ctx context.Context, session neo4j.SessionWithContext, entity models.Entity, runID int64) error {
	enriched := models.EnrichedTableName(entity, models.EntityWikipedia, runID)
	if ok, err := s.store.HasTable(ctx, enriched); err != nil || !ok {
		return err
	}
	rows, err := s.store.Rows(ctx, enriched)
	if err != nil {
		return err
	}

	label := nodeLabel(entity)
	pkCol := entity.PrimaryKeyColumn()
	query := fmt.Sprintf("UNWIND $links AS link "+
		"MATCH (a:%s {%s: link.pk}) "+
		"MERGE (w:WikipediaArticle {page_id: link.page_id}) "+
		"MERGE (a)-[r:DESCRIBED_BY]->(w) SET r.weight = link.weight",
		label, pkCol)

	var links []map[string]any
	for _, row := range rows {
		pk := documentID(row[pkCol])
		raw, _ := row["wikipedia_articles"].(string)
		if pk == "" || raw == "" {
			continue
		}
		var articles []struct {
			PageID    int64   `json:"page_id"`
			Relevance float64 `json:"relevance"`
		}
		if err := json.Unmarshal([]byte(raw), &articles); err != nil {
			continue
		}
		for _, a := range articles {
			links = append(links, map[string]any{
				"pk":      pk,
				"page_id": strconv.FormatInt(a.PageID, 10),
				"weight":  a.Relevance,
			})
		}
	}

	batch := s.batchSize()
	for start := 0; start < len(links); start += batch {
		end := min(start+batch, len(links))
		if _, err := session.Run(ctx, query,
			map[string]any{"links": links[start:end]}); err != nil {
			return fmt.Errorf("merge DESCRIBED_BY edges: %w", err)
		}
	}
	return nil
}

// runIDFromTable recovers the run id from a {entity}_{tier}_{runId} name.
func runIDFromTable(name string) (int64, bool) {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(name[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
