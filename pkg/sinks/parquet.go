package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/store"
)

// parquetSink writes each table as a hive-partitioned parquet dataset:
// path/{entity}/[k=v/...]/part-NNNN.parquet. The file schema is derived
// from the store schema at write time, so Gold column changes never need a
// sink change.
type parquetSink struct {
	cfg    config.ParquetSinkConfig
	store  store.Store
	logger *zap.Logger
}

// NewParquetSink creates the columnar file sink.
func NewParquetSink(cfg config.ParquetSinkConfig, st store.Store, logger *zap.Logger) Sink {
	return &parquetSink{cfg: cfg, store: st, logger: logger.Named("sink_parquet")}
}

func (s *parquetSink) Name() string { return "parquet" }

// Probe verifies the output directory is writable.
func (s *parquetSink) Probe(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.Path, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	probe := filepath.Join(s.cfg.Path, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("output dir not writable: %w", err)
	}
	return os.Remove(probe)
}

func (s *parquetSink) Close(context.Context) error { return nil }

func (s *parquetSink) Write(ctx context.Context, ref TableRef) (WriteResult, error) {
	schema, err := s.store.Schema(ctx, ref.Name)
	if err != nil {
		return failure(s.Name(), ref, err)
	}
	rows, err := s.store.Rows(ctx, ref.Name)
	if err != nil {
		return failure(s.Name(), ref, err)
	}

	entityDir := filepath.Join(s.cfg.Path, string(ref.Entity))
	if s.cfg.Mode != "append" {
		if err := os.RemoveAll(entityDir); err != nil {
			return failure(s.Name(), ref, err)
		}
	}

	partitionCols := s.partitionColumns(schema)
	fileSchema := fileColumns(schema, partitionCols)
	pqSchema, err := parquetSchema(ref.Name, fileSchema)
	if err != nil {
		return failure(s.Name(), ref, err)
	}
	codec, err := compressionCodec(s.cfg.Compression)
	if err != nil {
		return failure(s.Name(), ref, err)
	}

	var written int64
	for key, part := range partitionRows(rows, partitionCols) {
		dir := filepath.Join(entityDir, key)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failure(s.Name(), ref, err)
		}
		path, err := nextPartFile(dir)
		if err != nil {
			return failure(s.Name(), ref, err)
		}
		n, err := writeParquetFile(path, pqSchema, codec, fileSchema, part)
		if err != nil {
			return failure(s.Name(), ref, err)
		}
		written += n
	}

	s.logger.Info("parquet dataset written",
		zap.String("table", ref.Name),
		zap.String("dir", entityDir),
		zap.Int64("rows", written))
	return success(s.Name(), ref, written)
}

func (s *parquetSink) partitionColumns(schema []store.Column) []string {
	present := make(map[string]bool, len(schema))
	for _, c := range schema {
		present[c.Name] = true
	}
	var cols []string
	for _, c := range s.cfg.PartitionBy {
		if present[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// fileColumns removes the partition columns; hive layout carries them in the
// directory path.
func fileColumns(schema []store.Column, partitionCols []string) []store.Column {
	skip := make(map[string]bool, len(partitionCols))
	for _, c := range partitionCols {
		skip[c] = true
	}
	out := make([]store.Column, 0, len(schema))
	for _, c := range schema {
		if !skip[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// partitionRows groups rows by their hive path fragment ("k=v/k2=v2", or ""
// when unpartitioned).
func partitionRows(rows []map[string]any, partitionCols []string) map[string][]map[string]any {
	if len(partitionCols) == 0 {
		return map[string][]map[string]any{"": rows}
	}
	parts := make(map[string][]map[string]any)
	for _, row := range rows {
		segs := make([]string, len(partitionCols))
		for i, col := range partitionCols {
			segs[i] = fmt.Sprintf("%s=%s", col, partitionValue(row[col]))
		}
		key := filepath.Join(segs...)
		parts[key] = append(parts[key], row)
	}
	return parts
}

func partitionValue(v any) string {
	if v == nil {
		return "__null__"
	}
	s := fmt.Sprintf("%v", v)
	// Path separators inside a value would change the layout.
	s = strings.ReplaceAll(s, string(os.PathSeparator), "_")
	if s == "" {
		return "__empty__"
	}
	return s
}

func nextPartFile(dir string) (string, error) {
	for i := 0; ; i++ {
		path := filepath.Join(dir, fmt.Sprintf("part-%04d.parquet", i))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", err
		}
	}
}

// parquetSchema maps the store's portable types onto parquet nodes. Every
// field is optional; write-once tables carry NULLs for absent values.
func parquetSchema(name string, cols []store.Column) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, c := range cols {
		var node parquet.Node
		switch c.Type {
		case store.TypeInteger:
			node = parquet.Int(64)
		case store.TypeReal:
			node = parquet.Leaf(parquet.DoubleType)
		case store.TypeBool:
			node = parquet.Leaf(parquet.BooleanType)
		case store.TypeText, store.TypeJSON, store.TypeTimestamp:
			node = parquet.String()
		default:
			return nil, fmt.Errorf("unsupported column type %q", c.Type)
		}
		group[c.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema(name, group), nil
}

func compressionCodec(name string) (compress.Codec, error) {
	switch name {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "gzip":
		return &parquet.Gzip, nil
	default:
		return nil, fmt.Errorf("unsupported parquet compression %q", name)
	}
}

func writeParquetFile(path string, schema *parquet.Schema, codec compress.Codec, cols []store.Column, rows []map[string]any) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	w := parquet.NewGenericWriter[map[string]any](f, schema, parquet.Compression(codec))
	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		records[i] = parquetRecord(cols, row)
	}
	if len(records) > 0 {
		if _, err := w.Write(records); err != nil {
			f.Close()
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return 0, err
	}
	return int64(len(records)), f.Close()
}

// parquetRecord restricts a row to the file schema and converts driver
// representations the schema does not accept directly.
func parquetRecord(cols []store.Column, row map[string]any) map[string]any {
	rec := make(map[string]any, len(cols))
	for _, c := range cols {
		v := row[c.Name]
		if v == nil {
			continue
		}
		if c.Type == store.TypeBool {
			// sqlite surfaces booleans as 0/1 integers.
			if n, ok := v.(int64); ok {
				v = n != 0
			}
		}
		rec[c.Name] = v
	}
	return rec
}
