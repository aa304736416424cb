package model

import "time"

// Disclaimer is one caveat shown to the end user. Ordering and the
// conditions that fire each rule are the contract, not the exact wording.
type Disclaimer struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Critical bool   `json:"critical"`
}

// ReportConfidence pairs the two confidence estimates of a run.
type ReportConfidence struct {
	Identity ConfidenceResult `json:"identity"`
	Judicial ConfidenceResult `json:"judicial"`
}

// Report is the final structured dossier. Persisted keyed by the query's
// normalized identifier; a fresh computation is skipped when a prior report
// exists within the freshness window.
type Report struct {
	Query           Query            `json:"query"`
	Profile         string           `json:"profile"`
	JudicialSummary string           `json:"judicial_summary"`
	BehavioralNotes string           `json:"behavioral_notes"`
	Conclusions     string           `json:"conclusions"`
	Risk            RiskScore        `json:"risk"`
	Confidence      ReportConfidence `json:"confidence"`
	Disclaimers     []Disclaimer     `json:"disclaimers"`
	Sources         []EvidenceSource `json:"sources"`
	FromCache       bool             `json:"from_cache"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// RunStatus tracks a pipeline run through its stages.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusResolving   RunStatus = "resolving"
	RunStatusClassifying RunStatus = "classifying"
	RunStatusFetching    RunStatus = "fetching"
	RunStatusSynthesis   RunStatus = "synthesis"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// Run is the store-side bookkeeping row for one pipeline execution.
type Run struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	QueryType  QueryType `json:"query_type"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StageStatus is the outcome of one pipeline stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusDegraded StageStatus = "degraded"
	StageStatusSkipped  StageStatus = "skipped"
	StageStatusFailed   StageStatus = "failed"
)

// StageResult records one orchestrator stage for later inspection.
type StageResult struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
