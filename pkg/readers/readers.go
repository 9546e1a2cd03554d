// Package readers loads typed raw records from the pipeline's sources:
// JSON array files (or directories of them) for properties, neighborhoods,
// and the location reference, and a relational store for wikipedia articles.
//
// Parsing is permissive at the row level: an element that fails schema
// coercion becomes a corrupt row carrying the original text, counted but
// never fatal. Only a missing path or an unparseable top level fails a read.
package readers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/estategraph/estate-engine/pkg/jsonutil"
)

// ReadStats summarizes one source read.
type ReadStats struct {
	RowsRead    int
	RowsCorrupt int
	SourcePath  string
}

// sourceElement is one raw JSON array element tagged with the file it came
// from, so Bronze can stamp source_file per row even for directory sources.
type sourceElement struct {
	raw        json.RawMessage
	sourceFile string
}

// loadElements reads a JSON array file, or a directory of *.json files
// concatenated in lexical name order. A limit > 0 caps the elements read,
// deterministically first-N in source order.
func loadElements(path string, limit int) ([]sourceElement, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &sourceMissingError{path: path, cause: err}
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read source directory %s: %w", path, err)
		}
		files = files[:0]
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			files = append(files, filepath.Join(path, e.Name()))
		}
		sort.Strings(files)
	}

	var elements []sourceElement
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read source file %s: %w", file, err)
		}

		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, &sourceUnparseableError{path: file, cause: err}
		}

		base := filepath.Base(file)
		for _, raw := range arr {
			elements = append(elements, sourceElement{raw: raw, sourceFile: base})
			if limit > 0 && len(elements) >= limit {
				return elements, nil
			}
		}
	}
	return elements, nil
}

// corruptText renders the original element text with a reason suffix for the
// _corrupt_record column.
func corruptText(raw json.RawMessage, err error) string {
	return fmt.Sprintf("%s | error: %v", string(raw), err)
}

// salvageKey best-effort extracts a string primary key from a corrupt element
// so the row keeps its identity through the tiers. Returns "" when even the
// key is unrecoverable.
func salvageKey(raw json.RawMessage, field string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	var v jsonutil.FlexString
	if err := json.Unmarshal(m[field], &v); err != nil {
		return ""
	}
	return v.Value
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
