package readers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // sqlite driver for the article store

	"github.com/estategraph/estate-engine/pkg/models"
)

// wikipediaQuery joins articles with their summaries, keeps only rows with a
// usable long summary, and orders by relevance so sampling takes the most
// relevant articles first.
const wikipediaQuery = `
SELECT a.pageid AS page_id,
       a.title,
       a.url,
       a.relevance_score,
       a.latitude,
       a.longitude,
       a.categories,
       s.short_summary,
       s.long_summary,
       s.key_topics,
       s.best_city,
       s.best_state,
       s.confidence_score
FROM articles a
JOIN page_summaries s ON a.pageid = s.page_id
WHERE s.long_summary IS NOT NULL AND s.long_summary != ''
ORDER BY a.relevance_score DESC`

// WikipediaReader loads article rows from the wikipedia relational store,
// a sqlite database file with articles and page_summaries tables.
type WikipediaReader struct {
	logger *zap.Logger
}

// NewWikipediaReader creates a wikipedia reader.
func NewWikipediaReader(logger *zap.Logger) *WikipediaReader {
	return &WikipediaReader{logger: logger.Named("reader").With(zap.String("entity", "wikipedia"))}
}

// wikipediaRow is the scan target; every column is nullable because the
// store's schema is outside this pipeline's control.
type wikipediaRow struct {
	PageID         sql.NullInt64   `db:"page_id"`
	Title          sql.NullString  `db:"title"`
	URL            sql.NullString  `db:"url"`
	RelevanceScore sql.NullFloat64 `db:"relevance_score"`
	Latitude       sql.NullFloat64 `db:"latitude"`
	Longitude      sql.NullFloat64 `db:"longitude"`
	Categories     sql.NullString  `db:"categories"`
	ShortSummary   sql.NullString  `db:"short_summary"`
	LongSummary    sql.NullString  `db:"long_summary"`
	KeyTopics      sql.NullString  `db:"key_topics"`
	BestCity       sql.NullString  `db:"best_city"`
	BestState      sql.NullString  `db:"best_state"`
	Confidence     sql.NullFloat64 `db:"confidence_score"`
}

// Read loads up to limit article rows (0 reads all).
func (r *WikipediaReader) Read(ctx context.Context, path string, limit int) ([]models.WikipediaRaw, ReadStats, error) {
	stats := ReadStats{SourcePath: path}

	if _, err := os.Stat(path); err != nil {
		return nil, stats, &sourceMissingError{path: path, cause: err}
	}

	dbx, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, stats, &sourceUnparseableError{path: path, cause: err}
	}
	defer dbx.Close()

	query := wikipediaQuery
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	dbRows, err := dbx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, stats, &sourceUnparseableError{path: path, cause: err}
	}
	defer dbRows.Close()

	base := filepath.Base(path)
	var rows []models.WikipediaRaw
	for dbRows.Next() {
		stats.RowsRead++

		var row wikipediaRow
		if err := dbRows.StructScan(&row); err != nil {
			stats.RowsCorrupt++
			rows = append(rows, models.WikipediaRaw{
				CorruptRecord: fmt.Sprintf("scan error: %v", err),
				SourceFile:    base,
			})
			continue
		}
		if !row.PageID.Valid || row.PageID.Int64 <= 0 {
			stats.RowsCorrupt++
			rows = append(rows, models.WikipediaRaw{
				CorruptRecord: fmt.Sprintf("missing page id for title %q", row.Title.String),
				SourceFile:    base,
			})
			continue
		}
		rows = append(rows, rowToWikipedia(row, base))
	}
	if err := dbRows.Err(); err != nil {
		return rows, stats, &sourceUnparseableError{path: path, cause: err}
	}

	r.logger.Info("source read",
		zap.String("path", path),
		zap.Int("rows", stats.RowsRead),
		zap.Int("corrupt", stats.RowsCorrupt))
	return rows, stats, nil
}

func rowToWikipedia(row wikipediaRow, sourceFile string) models.WikipediaRaw {
	return models.WikipediaRaw{
		PageID:         row.PageID.Int64,
		Title:          strings.TrimSpace(row.Title.String),
		URL:            strings.TrimSpace(row.URL.String),
		ShortSummary:   strings.TrimSpace(row.ShortSummary.String),
		LongSummary:    strings.TrimSpace(row.LongSummary.String),
		Categories:     strings.TrimSpace(row.Categories.String),
		KeyTopics:      ParseStringList(row.KeyTopics.String),
		BestCity:       strings.TrimSpace(row.BestCity.String),
		BestState:      strings.TrimSpace(row.BestState.String),
		Latitude:       nullFloat(row.Latitude),
		Longitude:      nullFloat(row.Longitude),
		RelevanceScore: nullFloat(row.RelevanceScore),
		Confidence:     nullFloat(row.Confidence),
		SourceFile:     sourceFile,
	}
}

// ParseStringList decodes a stored list column that may be a JSON array or a
// comma-separated string, the two shapes the article store has shipped.
func ParseStringList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	if strings.HasPrefix(s, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, v := range arr {
				if v = strings.TrimSpace(v); v != "" {
					out = append(out, v)
				}
			}
			return out
		}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
