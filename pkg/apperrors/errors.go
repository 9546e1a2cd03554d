package apperrors

import "errors"

// Sentinel errors shared across the pipeline. Callers match with errors.Is;
// wrapping with fmt.Errorf("...: %w", ...) preserves the sentinel.
var (
	// ErrConfigInvalid marks configuration that fails validation before a run
	// starts. The CLI maps it to exit code 2.
	ErrConfigInvalid = errors.New("configuration invalid")

	// ErrSourceMissing marks a source path that does not exist.
	ErrSourceMissing = errors.New("source path missing")

	// ErrSourceUnparseable marks a source whose top-level structure cannot be
	// parsed. Per-row failures never produce this; they become corrupt rows.
	ErrSourceUnparseable = errors.New("source unparseable")

	// ErrAllSourcesEmpty marks a run where every configured source yielded
	// zero rows. The CLI maps it to exit code 3.
	ErrAllSourcesEmpty = errors.New("all sources empty")

	// ErrAllRowsCorrupt marks a source where every single row failed schema
	// coercion. Bronze aborts only in this case; partial corruption flows
	// through as flagged rows.
	ErrAllRowsCorrupt = errors.New("all rows corrupt")

	// ErrTableExists enforces write-once table creation in the store.
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound marks reads against a table the run never created.
	ErrTableNotFound = errors.New("table not found")

	// ErrTransformFailed marks a declarative transform that the store
	// rejected. Fatal for the owning entity's run.
	ErrTransformFailed = errors.New("transform failed")

	// ErrProviderExhausted marks an embedding sub-batch that failed after all
	// retries. The engine degrades the affected nodes instead of aborting.
	ErrProviderExhausted = errors.New("embedding provider exhausted retries")

	// ErrDimensionMismatch marks non-uniform vector dimensions discovered
	// after embedding. Degrades the run result without failing it.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSinkUnavailable marks a sink whose connection probe failed.
	ErrSinkUnavailable = errors.New("sink unavailable")
)
