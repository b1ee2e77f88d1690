package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/doccmp/analyze"
	"github.com/hazyhaar/doccmp/convert"
	"github.com/hazyhaar/doccmp/engine"
)

// Runner executes one comparison end to end: convert both documents, align
// and classify, summarize, optionally analyze, then assemble the result.
// Phase and progress go to the registry before each step starts, so pollers
// see where a job is, not where it was.
type Runner struct {
	registry  *Registry
	converter *convert.Converter
	analyzer  analyze.Analyzer
	logger    *slog.Logger
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Registry  *Registry
	Converter *convert.Converter
	// Analyzer may be nil; analysis is then disabled.
	Analyzer analyze.Analyzer
	Logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Analyzer == nil {
		cfg.Analyzer = analyze.Disabled{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		registry:  cfg.Registry,
		converter: cfg.Converter,
		analyzer:  cfg.Analyzer,
		logger:    cfg.Logger,
	}
}

// Run executes the comparison described by req. attempt is the 1-based
// execution count from the claim; the result records attempt-1 as its retry
// count. Failures come back as *RunError so the worker can decide between
// retry and terminal failure.
//
// Cancellation is checked at step boundaries. Once the job reaches
// finalizing the flag is ignored and the job completes.
func (r *Runner) Run(ctx context.Context, req Request, attempt int) (result *Result, err error) {
	// The engine treats malformed alignment spans as invariant violations
	// and panics. A panic here is a bug, not bad input: surface it as a
	// non-retryable internal error instead of killing the worker.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job panicked", "job_id", req.ID, "panic", rec)
			result = nil
			err = internalErr(fmt.Errorf("panic: %v", rec))
		}
	}()

	req.Options.defaults()
	start := time.Now()
	log := r.logger.With("job_id", req.ID, "attempt", attempt)

	if err := r.checkCancel(ctx, req.ID); err != nil {
		return nil, err
	}

	// Convert both documents.
	r.setPhase(ctx, req.ID, PhaseConverting, progressConvertSource, "converting source document")
	source, err := r.converter.ToText(ctx, req.SourcePath)
	if err != nil {
		return nil, conversionErr(fmt.Errorf("source: %w", err))
	}
	source.Meta.FileName = displayName(req.SourceName, source.Meta.FileName)

	r.setPhase(ctx, req.ID, PhaseConverting, progressConvertTarget, "converting target document")
	target, err := r.converter.ToText(ctx, req.TargetPath)
	if err != nil {
		return nil, conversionErr(fmt.Errorf("target: %w", err))
	}
	target.Meta.FileName = displayName(req.TargetName, target.Meta.FileName)

	if err := r.checkCancel(ctx, req.ID); err != nil {
		return nil, err
	}

	// Align and classify.
	r.setPhase(ctx, req.ID, PhaseDiffing, progressDiff, "aligning and classifying changes")
	sourceLines := engine.SplitLines(source.Content)
	targetLines := engine.SplitLines(target.Content)
	spans := engine.Align(sourceLines, targetLines)
	records := engine.Classify(sourceLines, targetLines, spans, engine.ClassifyOptions{
		IncludeUnchanged: req.Options.IncludeUnchanged,
		ContextLines:     req.Options.ContextLines,
	})

	if err := r.checkCancel(ctx, req.ID); err != nil {
		return nil, err
	}

	// Summarize and optionally analyze.
	r.setPhase(ctx, req.ID, PhaseSummarizing, progressSummarize, "summarizing changes")
	summary := engine.Summarize(records, req.Options.SimilarityThreshold)

	var analysis *analyze.Analysis
	if req.Options.UseAnalysis {
		analysis = r.analyze(ctx, log, records, req.Options)
	}

	// Past this point cancellation is ignored: the work is done, losing it
	// buys nothing.
	r.setPhase(ctx, req.ID, PhaseFinalizing, progressFinalize, "generating result")

	completed := time.Now()
	result = &Result{
		JobID:             req.ID,
		CreatedAt:         start,
		CompletedAt:       completed,
		ProcessingSeconds: completed.Sub(start).Seconds(),
		SourceMeta:        source.Meta,
		TargetMeta:        target.Meta,
		SimilarityPercent: engine.Ratio(source.Content, target.Content) * 100,
		Differences:       records,
		Summary:           summary,
		Analysis:          analysis,
		RetryCount:        attempt - 1,
	}

	log.Info("comparison finished",
		"changes", summary.TotalCount,
		"similarity_percent", result.SimilarityPercent,
		"seconds", result.ProcessingSeconds)
	return result, nil
}

// analyze runs the analyzer and degrades to an inline error on failure.
// A broken analysis backend never fails the comparison.
func (r *Runner) analyze(ctx context.Context, log *slog.Logger, records []engine.ChangeRecord, opts Options) *analyze.Analysis {
	analysis, err := r.analyzer.Analyze(ctx, records, opts.AnalysisPrompt, opts.DocContext)
	if err != nil {
		log.Warn("analysis failed, continuing without", "error", err)
		return &analyze.Analysis{Err: err.Error()}
	}
	return analysis
}

func (r *Runner) checkCancel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return timeoutErr(err)
		}
		return cancelledErr(err)
	}
	cancelled, err := r.registry.Cancelled(ctx, id)
	if err != nil {
		return internalErr(err)
	}
	if cancelled {
		return cancelledErr(fmt.Errorf("cancellation requested"))
	}
	return nil
}

// setPhase is best-effort: a phase update lost to a transient DB error only
// delays the visible progress, it never aborts the comparison.
func (r *Runner) setPhase(ctx context.Context, id string, phase Phase, progress int, step string) {
	if err := r.registry.SetPhase(ctx, id, phase, progress, step); err != nil {
		r.logger.Warn("phase update failed", "job_id", id, "phase", phase, "error", err)
	}
}

func displayName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
