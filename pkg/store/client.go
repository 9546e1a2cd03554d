package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/estategraph/estate-engine/pkg/apperrors"
	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/logging"
	"github.com/estategraph/estate-engine/pkg/models"
)

const (
	sqliteDialect   = "sqlite"
	postgresDialect = "postgres"

	insertBatchSize = 500
)

// SQLStore is the SQL-backed tiered table store. One instance is owned by
// the runner and shared by every processor in the run; write-once creation
// plus per-name serialization make that sharing safe.
type SQLStore struct {
	dbx     *sqlx.DB
	dialect string
	logger  *zap.Logger

	mu      sync.Mutex
	created map[string]*sync.Mutex
}

var _ Store = (*SQLStore)(nil)

// New opens the store backend selected by the configuration.
func New(cfg *config.StoreConfig, logger *zap.Logger) (*SQLStore, error) {
	switch cfg.Backend {
	case sqliteDialect:
		return NewSQLite(cfg.Path, logger)
	case postgresDialect:
		return NewPostgres(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", apperrors.ErrConfigInvalid, cfg.Backend)
	}
}

// NewSQLite opens an in-process sqlite store. Path ":memory:" keeps the run
// entirely in memory, which is the default for tests and small runs.
func NewSQLite(path string, logger *zap.Logger) (*SQLStore, error) {
	if path == "" {
		path = ":memory:"
	}
	dbx, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
	}
	// A single connection serializes writes and keeps :memory: databases
	// from splitting across pooled connections.
	dbx.SetMaxOpenConns(1)

	logger.Info("opened tiered store",
		zap.String("backend", sqliteDialect),
		zap.String("path", path))

	return newSQLStore(dbx, sqliteDialect, logger), nil
}

// NewPostgres opens a postgres-backed store.
func NewPostgres(cfg *config.StoreConfig, logger *zap.Logger) (*SQLStore, error) {
	dbx, err := sqlx.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	dbx.SetMaxOpenConns(cfg.MaxConnections)

	if err := dbx.Ping(); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("ping postgres store %s: %w",
			logging.SanitizeDSN(cfg.ConnectionString()), err)
	}

	logger.Info("opened tiered store",
		zap.String("backend", postgresDialect),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return newSQLStore(dbx, postgresDialect, logger), nil
}

func newSQLStore(dbx *sqlx.DB, dialect string, logger *zap.Logger) *SQLStore {
	return &SQLStore{
		dbx:     dbx,
		dialect: dialect,
		logger:  logger.Named("store"),
		created: make(map[string]*sync.Mutex),
	}
}

// Dialect implements Store.
func (s *SQLStore) Dialect() string {
	return s.dialect
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.dbx.Close()
}

// nameMutex returns the creation mutex for a table name, so that concurrent
// creation attempts on the same name serialize instead of racing in SQL.
func (s *SQLStore) nameMutex(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.created[name]
	if !ok {
		m = &sync.Mutex{}
		s.created[name] = m
	}
	return m
}

// CreateTableAs implements Store.
func (s *SQLStore) CreateTableAs(ctx context.Context, id models.TableID, selectSQL string, args ...any) error {
	return s.CreateTableAsName(ctx, id.Name(), selectSQL, args...)
}

// CreateTableAsName implements Store.
func (s *SQLStore) CreateTableAsName(ctx context.Context, name, selectSQL string, args ...any) error {
	if !models.ValidTableName(name) {
		return fmt.Errorf("%w: invalid table name %q", apperrors.ErrTransformFailed, name)
	}

	m := s.nameMutex(name)
	m.Lock()
	defer m.Unlock()

	exists, err := s.HasTable(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", apperrors.ErrTableExists, name)
	}

	stmt := fmt.Sprintf("CREATE TABLE %s AS %s", name, selectSQL)
	if _, err := s.dbx.ExecContext(ctx, s.dbx.Rebind(stmt), args...); err != nil {
		return fmt.Errorf("%w: create %s: %v", apperrors.ErrTransformFailed, name, err)
	}

	s.logger.Debug("created table", zap.String("table", name))
	return nil
}

// CreateTableFromRows implements Store.
func (s *SQLStore) CreateTableFromRows(ctx context.Context, id models.TableID, columns []Column, rows []map[string]any) error {
	name := id.Name()
	if !models.ValidTableName(name) {
		return fmt.Errorf("%w: invalid table name %q", apperrors.ErrTransformFailed, name)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: %s has no columns", apperrors.ErrTransformFailed, name)
	}
	for _, c := range columns {
		if !validIdent(c.Name) {
			return fmt.Errorf("%w: invalid column name %q", apperrors.ErrTransformFailed, c.Name)
		}
	}

	m := s.nameMutex(name)
	m.Lock()
	defer m.Unlock()

	exists, err := s.HasTable(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", apperrors.ErrTableExists, name)
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c.Name + " " + s.sqlType(c.Type)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))
	if _, err := s.dbx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create %s: %v", apperrors.ErrTransformFailed, name, err)
	}

	if err := s.insertRows(ctx, name, columns, rows); err != nil {
		return err
	}

	s.logger.Debug("created table",
		zap.String("table", name),
		zap.Int("rows", len(rows)))
	return nil
}

func (s *SQLStore) insertRows(ctx context.Context, name string, columns []Column, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	single := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(columns))
		for i, row := range batch {
			placeholders[i] = single
			for _, c := range columns {
				v, err := bindValue(row[c.Name], c.Type)
				if err != nil {
					return fmt.Errorf("%w: %s column %s: %v", apperrors.ErrTransformFailed, name, c.Name, err)
				}
				args = append(args, v)
			}
		}

		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			name, strings.Join(names, ", "), strings.Join(placeholders, ", "))
		if _, err := s.dbx.ExecContext(ctx, s.dbx.Rebind(stmt), args...); err != nil {
			return fmt.Errorf("%w: insert into %s: %v", apperrors.ErrTransformFailed, name, err)
		}
	}
	return nil
}

// bindValue converts a row value into the driver representation for its
// declared column type. Arrays, maps, and structs serialize as JSON text.
func bindValue(v any, t ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeJSON:
		switch val := v.(type) {
		case string:
			return val, nil
		case []byte:
			return string(val), nil
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}
	case TypeTimestamp:
		switch val := v.(type) {
		case time.Time:
			return val.UTC().Format(time.RFC3339Nano), nil
		case string:
			return val, nil
		default:
			return nil, fmt.Errorf("unsupported timestamp value %T", v)
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			if b {
				return 1, nil
			}
			return 0, nil
		}
		return v, nil
	default:
		return v, nil
	}
}

func (s *SQLStore) sqlType(t ColumnType) string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeReal:
		return "DOUBLE PRECISION"
	case TypeBool:
		// Stored as 0/1 so the two backends agree on scan types.
		return "SMALLINT"
	default:
		return "TEXT"
	}
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context, name string) (int64, error) {
	if err := s.requireTable(ctx, name); err != nil {
		return 0, err
	}
	var n int64
	if err := s.dbx.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", name)); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// Sample implements Store.
func (s *SQLStore) Sample(ctx context.Context, name string, k int) ([]map[string]any, error) {
	if err := s.requireTable(ctx, name); err != nil {
		return nil, err
	}
	return s.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", name, k))
}

// Rows implements Store.
func (s *SQLStore) Rows(ctx context.Context, name string) ([]map[string]any, error) {
	if err := s.requireTable(ctx, name); err != nil {
		return nil, err
	}
	return s.Query(ctx, fmt.Sprintf("SELECT * FROM %s", name))
}

// Query implements Store.
func (s *SQLStore) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.dbx.QueryxContext(ctx, s.dbx.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Exec implements Store.
func (s *SQLStore) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.dbx.ExecContext(ctx, s.dbx.Rebind(query), args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Schema implements Store.
func (s *SQLStore) Schema(ctx context.Context, name string) ([]Column, error) {
	if err := s.requireTable(ctx, name); err != nil {
		return nil, err
	}

	var cols []Column
	switch s.dialect {
	case sqliteDialect:
		rows, err := s.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", name))
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			cols = append(cols, Column{
				Name: fmt.Sprintf("%v", r["name"]),
				Type: columnTypeFromSQL(fmt.Sprintf("%v", r["type"])),
			})
		}
	default:
		rows, err := s.Query(ctx,
			`SELECT column_name, data_type FROM information_schema.columns
			 WHERE table_name = ? ORDER BY ordinal_position`, name)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			cols = append(cols, Column{
				Name: fmt.Sprintf("%v", r["column_name"]),
				Type: columnTypeFromSQL(fmt.Sprintf("%v", r["data_type"])),
			})
		}
	}
	return cols, nil
}

func columnTypeFromSQL(sqlType string) ColumnType {
	switch strings.ToUpper(strings.Fields(sqlType + " ")[0]) {
	case "BIGINT", "INTEGER", "INT", "INT8":
		return TypeInteger
	case "DOUBLE", "REAL", "FLOAT8", "NUMERIC":
		return TypeReal
	case "SMALLINT", "INT2", "BOOLEAN":
		return TypeBool
	default:
		return TypeText
	}
}

// HasTable implements Store.
func (s *SQLStore) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	var err error
	switch s.dialect {
	case sqliteDialect:
		err = s.dbx.GetContext(ctx, &n,
			s.dbx.Rebind("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"), name)
	default:
		err = s.dbx.GetContext(ctx, &n,
			s.dbx.Rebind("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ?"), name)
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

func (s *SQLStore) requireTable(ctx context.Context, name string) error {
	if !models.ValidTableName(name) {
		return fmt.Errorf("%w: invalid table name %q", apperrors.ErrTableNotFound, name)
	}
	ok, err := s.HasTable(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrTableNotFound, name)
	}
	return nil
}

// ListRunTables implements Store.
func (s *SQLStore) ListRunTables(ctx context.Context, runID int64) ([]string, error) {
	var all []string
	switch s.dialect {
	case sqliteDialect:
		if err := s.dbx.SelectContext(ctx, &all,
			"SELECT name FROM sqlite_master WHERE type = 'table'"); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
	default:
		if err := s.dbx.SelectContext(ctx, &all,
			"SELECT table_name FROM information_schema.tables WHERE table_schema = 'public'"); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
	}

	suffix := fmt.Sprintf("_%d", runID)
	var out []string
	for _, name := range all {
		if strings.HasSuffix(name, suffix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Drop implements Store.
func (s *SQLStore) Drop(ctx context.Context, name string) error {
	if !models.ValidTableName(name) {
		return fmt.Errorf("%w: invalid table name %q", apperrors.ErrTableNotFound, name)
	}
	if _, err := s.dbx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	s.mu.Lock()
	delete(s.created, name)
	s.mu.Unlock()
	return nil
}

// DropRun implements Store.
func (s *SQLStore) DropRun(ctx context.Context, runID int64, keep ...string) error {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	names, err := s.ListRunTables(ctx, runID)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := keepSet[name]; ok {
			continue
		}
		if err := s.Drop(ctx, name); err != nil {
			return err
		}
		s.logger.Debug("dropped table", zap.String("table", name))
	}
	return nil
}
