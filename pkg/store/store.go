// Package store implements the tiered table store: an in-process analytical
// table store with named, write-once tables keyed by {entity, tier, runId}.
// Every tier transition is either a declarative CREATE TABLE AS projection or
// a bulk row load; data crosses component boundaries only by table name.
package store

import (
	"context"
	"regexp"

	"github.com/estategraph/estate-engine/pkg/models"
)

// ColumnType is the portable type vocabulary for table columns. The store
// maps these onto the backend's native types; arrays and structs travel as
// JSON text so both backends share one schema.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeReal      ColumnType = "real"
	TypeBool      ColumnType = "bool"
	TypeJSON      ColumnType = "json"
	TypeTimestamp ColumnType = "timestamp"
)

// Column describes one field of a table schema.
type Column struct {
	Name string
	Type ColumnType
}

// Store is the tiered table store contract. All mutations go through
// CreateTableAs / CreateTableFromRows, which enforce write-once creation;
// a table, once created in a run, is immutable.
type Store interface {
	// Dialect returns "sqlite" or "postgres" so callers can phrase the few
	// dialect-specific select expressions (JSON aggregation, window frames).
	Dialect() string

	// CreateTableAs materializes selectSQL as a new immutable table.
	// Creating an existing name fails with apperrors.ErrTableExists.
	CreateTableAs(ctx context.Context, id models.TableID, selectSQL string, args ...any) error

	// CreateTableAsName is CreateTableAs for names outside the
	// {entity}_{tier}_{runId} pattern, such as enriched projections.
	CreateTableAsName(ctx context.Context, name, selectSQL string, args ...any) error

	// CreateTableFromRows creates a table with the given schema and bulk
	// loads the rows. Row keys missing from the schema are ignored; schema
	// columns missing from a row load as NULL.
	CreateTableFromRows(ctx context.Context, id models.TableID, columns []Column, rows []map[string]any) error

	// Count returns the table's row count.
	Count(ctx context.Context, name string) (int64, error)

	// Sample returns up to k rows. Order is undefined.
	Sample(ctx context.Context, name string, k int) ([]map[string]any, error)

	// Rows returns every row of the table. Order is undefined.
	Rows(ctx context.Context, name string) ([]map[string]any, error)

	// Schema returns the table's columns in declaration order.
	Schema(ctx context.Context, name string) ([]Column, error)

	// Query runs an arbitrary read and returns generic rows.
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)

	// Exec runs a statement outside the write-once discipline. Reserved for
	// run-registry bookkeeping; tier tables never go through here.
	Exec(ctx context.Context, query string, args ...any) error

	// HasTable reports whether the named table exists.
	HasTable(ctx context.Context, name string) (bool, error)

	// ListRunTables returns the names of every table in the run's namespace.
	ListRunTables(ctx context.Context, runID int64) ([]string, error)

	// Drop removes one table. Dropping a missing table is not an error.
	Drop(ctx context.Context, name string) error

	// DropRun removes every table in the run's namespace except those named
	// in keep.
	DropRun(ctx context.Context, runID int64, keep ...string) error

	// Migrate applies the base schema (lookup dictionaries, run registry).
	Migrate(ctx context.Context) error

	Close() error
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// validIdent guards every identifier that reaches SQL text. Table and column
// names come from code constants and config; anything outside the pattern is
// rejected rather than quoted.
func validIdent(name string) bool {
	return identPattern.MatchString(name)
}
