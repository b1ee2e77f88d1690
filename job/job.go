// Package job implements the asynchronous comparison lifecycle: an SQLite
// registry that guarantees at-most-once execution per job id, a runner that
// drives one comparison end to end, and a polling worker with bounded
// concurrency and a retry budget.
package job

import (
	"time"

	"github.com/hazyhaar/doccmp/analyze"
	"github.com/hazyhaar/doccmp/convert"
	"github.com/hazyhaar/doccmp/engine"
)

// Phase is the lifecycle state of a comparison job.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseConverting  Phase = "converting"
	PhaseDiffing     Phase = "diffing"
	PhaseSummarizing Phase = "summarizing"
	PhaseFinalizing  Phase = "finalizing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether the phase is final. Terminal jobs never change
// phase again and ignore cancellation.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Progress checkpoints reported while a job runs. Progress only moves
// forward; a reclaimed job after a crash never reports a lower value than
// the poller has already seen.
const (
	progressPending       = 0
	progressConvertSource = 10
	progressConvertTarget = 30
	progressDiff          = 50
	progressSummarize     = 70
	progressFinalize      = 90
	progressDone          = 100
)

// Options tunes a single comparison.
type Options struct {
	// IncludeUnchanged emits records for equal regions too.
	IncludeUnchanged bool `json:"include_unchanged"`
	// SimilarityThreshold flags modified records below it (default: 0.85).
	SimilarityThreshold float64 `json:"similarity_threshold"`
	// ContextLines is the number of surrounding lines captured per change
	// (default: 2).
	ContextLines int `json:"context_lines"`
	// UseAnalysis runs the configured analyzer over the diff.
	UseAnalysis bool `json:"use_analysis"`
	// AnalysisPrompt overrides the analyzer's default instructions.
	AnalysisPrompt string `json:"analysis_prompt,omitempty"`
	// DocContext names the document kind for the analyzer (e.g. "contract").
	DocContext string `json:"doc_context,omitempty"`
}

func (o *Options) defaults() {
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = 0.85
	}
	if o.ContextLines <= 0 {
		o.ContextLines = 2
	}
}

// Request describes one comparison to run. The id is caller-supplied so a
// client retrying a submit cannot enqueue the same work twice.
type Request struct {
	ID         string  `json:"id"`
	SourcePath string  `json:"source_path"`
	TargetPath string  `json:"target_path"`
	SourceName string  `json:"source_name"`
	TargetName string  `json:"target_name"`
	Options    Options `json:"options"`
}

// Snapshot is the externally visible state of a job, served to pollers.
type Snapshot struct {
	ID          string     `json:"job_id"`
	Phase       Phase      `json:"status"`
	Progress    int        `json:"progress"`
	StepLabel   string     `json:"step,omitempty"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorClass  string     `json:"error_class,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Result is the success payload of a completed comparison.
type Result struct {
	JobID             string                `json:"job_id"`
	CreatedAt         time.Time             `json:"created_at"`
	CompletedAt       time.Time             `json:"completed_at"`
	ProcessingSeconds float64               `json:"processing_seconds"`
	SourceMeta        convert.Metadata      `json:"source_document"`
	TargetMeta        convert.Metadata      `json:"target_document"`
	SimilarityPercent float64               `json:"similarity_percent"`
	Differences       []engine.ChangeRecord `json:"differences"`
	Summary           engine.Summary        `json:"summary"`
	Analysis          *analyze.Analysis     `json:"analysis,omitempty"`
	RetryCount        int                   `json:"retry_count"`
}
