package models

import (
	"time"
)

// ============================================================================
// Stage
// ============================================================================

// Stage is one step of an entity orchestrator's state machine.
type Stage string

const (
	StageInit       Stage = "init"
	StageBronze     Stage = "bronze"
	StageSilver     Stage = "silver"
	StageGold       Stage = "gold"
	StageEnrichment Stage = "enrichment"
	StageEmbedding  Stage = "embedding"
	StageSinks      Stage = "sinks"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// ValidStages contains the stages in execution order, terminal states last.
var ValidStages = []Stage{
	StageInit,
	StageBronze,
	StageSilver,
	StageGold,
	StageEnrichment,
	StageEmbedding,
	StageSinks,
	StageDone,
	StageFailed,
}

// IsValidStage checks if the given stage is recognized.
func IsValidStage(s Stage) bool {
	for _, v := range ValidStages {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true for done and failed.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// ============================================================================
// Run Status
// ============================================================================

// RunStatus is the overall outcome of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusDegraded  RunStatus = "degraded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true once the run has ended.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusDegraded ||
		s == RunStatusFailed || s == RunStatusCancelled
}

// ============================================================================
// Processed Tables
// ============================================================================

// ProcessedTable records one table emitted by a tier transition. Downstream
// stages consume tables by these records, never by reaching into processors.
type ProcessedTable struct {
	Name         string    `json:"name"`
	Entity       Entity    `json:"entity"`
	Tier         Tier      `json:"tier"`
	RecordCount  int64     `json:"record_count"`
	RunTimestamp time.Time `json:"run_timestamp"`
}

// ============================================================================
// Entity Metrics
// ============================================================================

// StageError captures where and why an orchestrator failed.
type StageError struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// EntityMetrics aggregates one entity's progress through a run.
type EntityMetrics struct {
	Entity          Entity              `json:"entity"`
	BronzeRecords   int64               `json:"bronze_records"`
	SilverRecords   int64               `json:"silver_records"`
	GoldRecords     int64               `json:"gold_records"`
	CorruptRecords  int64               `json:"corrupt_records"`
	EmbeddedRecords int64               `json:"embedded_records"`
	NodesTotal      int64               `json:"nodes_total"`
	SinkRecords     map[string]int64    `json:"sink_records,omitempty"`
	DurationsMS     map[string]int64    `json:"durations_ms,omitempty"`
	Quality         QualityDistribution `json:"quality_distribution"`
	FinalStage      Stage               `json:"final_stage"`
	Error           *StageError         `json:"error,omitempty"`
	Tables          []ProcessedTable    `json:"tables,omitempty"`
}

// RecordDuration stores a stage duration in milliseconds.
func (m *EntityMetrics) RecordDuration(stage Stage, d time.Duration) {
	if m.DurationsMS == nil {
		m.DurationsMS = make(map[string]int64)
	}
	m.DurationsMS[string(stage)] = d.Milliseconds()
}

// Failed returns true if the entity's orchestrator ended in failure.
func (m *EntityMetrics) Failed() bool {
	return m.FinalStage == StageFailed
}

// ============================================================================
// Sink Results
// ============================================================================

// WriteResult is the outcome of one sink writing one table.
type WriteResult struct {
	Sink        string `json:"sink"`
	Entity      Entity `json:"entity"`
	Table       string `json:"table,omitempty"`
	Success     bool   `json:"success"`
	RecordCount int64  `json:"record_count"`
	Error       string `json:"error,omitempty"`
}

// ============================================================================
// Run Report
// ============================================================================

// RunReport is the final summary of a pipeline run.
type RunReport struct {
	RunID      int64                     `json:"run_id"`
	Status     RunStatus                 `json:"status"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Entities   map[Entity]*EntityMetrics `json:"entities"`
	SinkWrites []WriteResult             `json:"sink_writes,omitempty"`
	Errors     []string                  `json:"errors,omitempty"`

	// Degraded marks runs that completed with null vectors or a dimension
	// mismatch; it does not affect the exit code.
	Degraded bool `json:"degraded"`
}

// AnyEntityFailed reports whether any orchestrator ended in Failed.
func (r *RunReport) AnyEntityFailed() bool {
	for _, m := range r.Entities {
		if m != nil && m.Failed() {
			return true
		}
	}
	return false
}

// AnySinkSucceeded reports whether at least one sink write succeeded.
// Meaningful only when sinks were enabled and received rows.
func (r *RunReport) AnySinkSucceeded() bool {
	for _, w := range r.SinkWrites {
		if w.Success {
			return true
		}
	}
	return false
}

// AllSourcesEmpty reports whether every entity read zero bronze rows.
func (r *RunReport) AllSourcesEmpty() bool {
	if len(r.Entities) == 0 {
		return true
	}
	for _, m := range r.Entities {
		if m != nil && m.BronzeRecords > 0 {
			return false
		}
	}
	return true
}
