package models

import (
	"testing"
	"time"
)

func TestStage_IsTerminal(t *testing.T) {
	terminal := []Stage{StageDone, StageFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	active := []Stage{StageInit, StageBronze, StageSilver, StageGold, StageEnrichment, StageEmbedding, StageSinks}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestEntityMetrics_RecordDuration(t *testing.T) {
	m := &EntityMetrics{Entity: EntityProperty}
	m.RecordDuration(StageBronze, 1500*time.Millisecond)
	m.RecordDuration(StageSilver, 250*time.Millisecond)

	if m.DurationsMS["bronze"] != 1500 {
		t.Errorf("bronze duration = %d, want 1500", m.DurationsMS["bronze"])
	}
	if m.DurationsMS["silver"] != 250 {
		t.Errorf("silver duration = %d, want 250", m.DurationsMS["silver"])
	}
}

func TestRunReport_AnyEntityFailed(t *testing.T) {
	report := &RunReport{
		Entities: map[Entity]*EntityMetrics{
			EntityProperty:     {FinalStage: StageDone},
			EntityNeighborhood: {FinalStage: StageDone},
		},
	}
	if report.AnyEntityFailed() {
		t.Error("no entity failed, expected false")
	}

	report.Entities[EntityWikipedia] = &EntityMetrics{
		FinalStage: StageFailed,
		Error:      &StageError{Stage: StageSilver, Message: "transform failed"},
	}
	if !report.AnyEntityFailed() {
		t.Error("wikipedia failed, expected true")
	}
}

func TestRunReport_AllSourcesEmpty(t *testing.T) {
	report := &RunReport{Entities: map[Entity]*EntityMetrics{}}
	if !report.AllSourcesEmpty() {
		t.Error("no entities, expected empty")
	}

	report.Entities[EntityProperty] = &EntityMetrics{BronzeRecords: 0}
	if !report.AllSourcesEmpty() {
		t.Error("zero bronze rows, expected empty")
	}

	report.Entities[EntityNeighborhood] = &EntityMetrics{BronzeRecords: 12}
	if report.AllSourcesEmpty() {
		t.Error("one entity has rows, expected not empty")
	}
}

func TestRunReport_AnySinkSucceeded(t *testing.T) {
	report := &RunReport{
		SinkWrites: []WriteResult{
			{Sink: "search", Entity: EntityProperty, Success: false, Error: "bulk rejected"},
		},
	}
	if report.AnySinkSucceeded() {
		t.Error("only failed writes, expected false")
	}

	report.SinkWrites = append(report.SinkWrites, WriteResult{
		Sink: "parquet", Entity: EntityProperty, Success: true, RecordCount: 10,
	})
	if !report.AnySinkSucceeded() {
		t.Error("one write succeeded, expected true")
	}
}

func TestQualityDistribution(t *testing.T) {
	var q QualityDistribution
	for _, score := range []float64{0.1, 0.3, 0.3, 0.6, 0.8, 1.0} {
		q.Add(score)
	}

	if q.Poor != 1 || q.Fair != 2 || q.Good != 1 || q.Excellent != 2 {
		t.Errorf("distribution = %+v, want poor=1 fair=2 good=1 excellent=2", q)
	}
	if q.Total() != 6 {
		t.Errorf("Total() = %d, want 6", q.Total())
	}
}
