// Package sinks writes finished Gold tables to the terminal destinations:
// a partitioned parquet dataset, a search index, and a graph store. Sinks
// are independent; a failing sink reports a failed WriteResult and the run
// carries on with the rest.
package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/models"
	"github.com/estategraph/estate-engine/pkg/store"
)

// TableRef names one table to be exported for an entity.
type TableRef struct {
	Entity models.Entity
	Name   string
}

// WriteResult reports one sink's outcome for one table.
type WriteResult struct {
	Sink        string
	Entity      models.Entity
	Table       string
	Success     bool
	RecordCount int64
	Err         error
}

// Sink is a terminal writer. Write must be safe to call for each entity in
// sequence; Probe verifies connectivity without writing pipeline data.
type Sink interface {
	Name() string
	Probe(ctx context.Context) error
	Write(ctx context.Context, ref TableRef) (WriteResult, error)
	Close(ctx context.Context) error
}

// New builds the enabled sinks in config order.
func New(cfg *config.SinksConfig, st store.Store, logger *zap.Logger) ([]Sink, error) {
	sinks := make([]Sink, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		switch name {
		case "parquet":
			sinks = append(sinks, NewParquetSink(cfg.Parquet, st, logger))
		case "search":
			s, err := NewSearchSink(cfg.Search, st, logger)
			if err != nil {
				return nil, fmt.Errorf("search sink: %w", err)
			}
			sinks = append(sinks, s)
		case "graph":
			s, err := NewGraphSink(cfg.Graph, st, logger)
			if err != nil {
				return nil, fmt.Errorf("graph sink: %w", err)
			}
			sinks = append(sinks, s)
		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	return sinks, nil
}

func failure(sink string, ref TableRef, err error) (WriteResult, error) {
	return WriteResult{
		Sink:   sink,
		Entity: ref.Entity,
		Table:  ref.Name,
		Err:    err,
	}, err
}

func success(sink string, ref TableRef, records int64) (WriteResult, error) {
	return WriteResult{
		Sink:        sink,
		Entity:      ref.Entity,
		Table:       ref.Name,
		Success:     true,
		RecordCount: records,
	}, nil
}
