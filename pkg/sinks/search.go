package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// searchSink bulk-indexes Gold rows into {prefix}_{plural(entity)}. Rows
// become documents keyed by the entity's primary key, with a geo_point
// synthesized from latitude/longitude when both are present.
type searchSink struct {
	cfg     config.SearchSinkConfig
	client  *elasticsearch.Client
	store   store.Store
	exclude map[string]bool
	logger  *zap.Logger
}

// NewSearchSink creates the search-index sink.
func NewSearchSink(cfg config.SearchSinkConfig, st store.Store, logger *zap.Logger) (Sink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Hosts,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}
	exclude := make(map[string]bool, len(cfg.ExcludeFields))
	for _, f := range cfg.ExcludeFields {
		exclude[f] = true
	}
	return &searchSink{
		cfg:     cfg,
		client:  client,
		store:   st,
		exclude: exclude,
		logger:  logger.Named("sink_search"),
	}, nil
}

func (s *searchSink) Name() string { return "search" }

func (s *searchSink) Close(context.Context) error { return nil }

// indexName renders the target index for an entity.
func (s *searchSink) indexName(entity models.Entity) string {
	return fmt.Sprintf("%s_%s", s.cfg.IndexPrefix, inflection.Plural(string(entity)))
}

// Probe round-trips a temporary index: create, index one document, delete.
func (s *searchSink) Probe(ctx context.Context) error {
	index := fmt.Sprintf("%s_probe_%d", s.cfg.IndexPrefix, time.Now().UnixNano())

	res, err := s.client.Indices.Create(index, s.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("probe create index: %w", err)
	}
	res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("probe create index: %s", res.String())
	}

	doc := strings.NewReader(`{"probe":true}`)
	res, err = s.client.Index(index, doc, s.client.Index.WithContext(ctx))
	if err == nil {
		res.Body.Close()
		if res.IsError() {
			err = fmt.Errorf("probe index document: %s", res.String())
		}
	}

	if del, derr := s.client.Indices.Delete([]string{index},
		s.client.Indices.Delete.WithContext(ctx)); derr == nil {
		del.Body.Close()
	}
	return err
}

func (s *searchSink) Write(ctx context.Context, ref TableRef) (WriteResult, error) {
	rows, err := s.store.Rows(ctx, ref.Name)
	if err != nil {
		return failure(s.Name(), ref, err)
	}

	index := s.indexName(ref.Entity)
	pkCol := ref.Entity.PrimaryKeyColumn()
	bulkSize := s.cfg.BulkSize
	if bulkSize <= 0 {
		bulkSize = 1000
	}

	var indexed int64
	for start := 0; start < len(rows); start += bulkSize {
		end := min(start+bulkSize, len(rows))
		n, err := s.bulkIndex(ctx, index, pkCol, rows[start:end])
		indexed += n
		if err != nil {
			return failure(s.Name(), ref, err)
		}
	}

	s.logger.Info("documents indexed",
		zap.String("table", ref.Name),
		zap.String("index", index),
		zap.Int64("documents", indexed))
	return success(s.Name(), ref, indexed)
}

// bulkIndex sends one NDJSON bulk request and counts item-level successes.
func (s *searchSink) bulkIndex(ctx context.Context, index, pkCol string, rows []map[string]any) (int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		action := map[string]any{"index": map[string]any{"_index": index}}
		if id := documentID(row[pkCol]); id != "" {
			action["index"].(map[string]any)["_id"] = id
		}
		if err := enc.Encode(action); err != nil {
			return 0, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(s.document(row)); err != nil {
			return 0, fmt.Errorf("encode bulk document: %w", err)
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(index),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("bulk response: %s", res.String())
	}

	var parsed struct {
		Items []map[string]struct {
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("parse bulk response: %w", err)
	}

	var indexed int64
	var firstErr string
	for _, item := range parsed.Items {
		for _, op := range item {
			if len(op.Error) == 0 {
				indexed++
			} else if firstErr == "" {
				firstErr = string(op.Error)
			}
		}
	}
	if failed := int64(len(rows)) - indexed; failed > 0 {
		s.logger.Warn("bulk items rejected",
			zap.Int64("failed", failed),
			zap.String("first_error", firstErr))
	}
	return indexed, nil
}

// document converts a row: excluded fields dropped, nil values dropped, and
// a geo_point synthesized when both coordinates are present.
func (s *searchSink) document(row map[string]any) map[string]any {
	doc := make(map[string]any, len(row)+1)
	for k, v := range row {
		if v == nil || s.exclude[k] {
			continue
		}
		doc[k] = v
	}
	lat, latOK := coordinate(row["latitude"])
	lon, lonOK := coordinate(row["longitude"])
	if latOK && lonOK {
		doc["location"] = map[string]float64{"lat": lat, "lon": lon}
	}
	return doc
}

func coordinate(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func documentID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}
