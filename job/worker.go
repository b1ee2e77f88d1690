package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Worker polls the registry and runs claimed jobs with bounded concurrency.
// It owns the retry policy: a retryable failure goes back to the registry
// with a delay until the attempt budget runs out, everything else is
// terminal.
type Worker struct {
	registry *Registry
	runner   *Runner
	cfg      WorkerConfig
	logger   *slog.Logger
}

// WorkerConfig configures the poll loop and retry policy.
type WorkerConfig struct {
	// PollInterval is the delay between claim rounds. Default: 1s.
	PollInterval time.Duration
	// Concurrency bounds parallel comparisons. Default: 4.
	Concurrency int
	// MaxRetries is the number of re-executions after the first failure,
	// so a job runs at most MaxRetries+1 times. Default: 3.
	MaxRetries int
	// RetryDelay is how long a retried job waits before becoming runnable
	// again. Default: 60s.
	RetryDelay time.Duration
	// JobTimeout is the wall-clock budget for one execution. A job that
	// exceeds it fails terminally with the timeout class. Default: 10m.
	JobTimeout time.Duration
	// Logger overrides slog.Default().
	Logger *slog.Logger
}

func (c *WorkerConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 60 * time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Minute
	}
}

// NewWorker creates a Worker.
func NewWorker(registry *Registry, runner *Runner, cfg WorkerConfig) *Worker {
	cfg.defaults()
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Worker{registry: registry, runner: runner, cfg: cfg, logger: cfg.Logger}
}

// Start runs the poll loop until ctx is cancelled, draining in-flight jobs
// before returning.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("comparison worker starting",
		"poll", w.cfg.PollInterval,
		"concurrency", w.cfg.Concurrency,
		"max_retries", w.cfg.MaxRetries)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			w.logger.Info("comparison worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx, sem, &wg)
		}
	}
}

// drain claims runnable jobs until the registry is empty or all slots are
// busy.
func (w *Worker) drain(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup) {
	for {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		claimed, err := w.registry.Claim(ctx)
		if err != nil {
			<-sem
			if ctx.Err() == nil {
				w.logger.Error("claim failed", "error", err)
			}
			return
		}
		if claimed == nil {
			<-sem
			return
		}

		wg.Add(1)
		go func(c *Claimed) {
			defer wg.Done()
			defer func() { <-sem }()
			w.process(ctx, c)
		}(claimed)
	}
}

// ProcessOne claims and runs a single job synchronously. It exists for
// tests and for one-shot CLI invocations; the poll loop uses the same
// process path. Returns false when nothing was runnable.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimed, err := w.registry.Claim(ctx)
	if err != nil {
		return false, err
	}
	if claimed == nil {
		return false, nil
	}
	w.process(ctx, claimed)
	return true, nil
}

func (w *Worker) process(ctx context.Context, c *Claimed) {
	id := c.Request.ID
	log := w.logger.With("job_id", id, "attempt", c.Attempt)
	log.Info("processing comparison",
		"source", c.Request.SourceName, "target", c.Request.TargetName)

	// The deadline applies to the run only. Recording the outcome uses the
	// caller's context so a timed-out job can still be failed in the registry.
	runCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	result, err := w.runner.Run(runCtx, c.Request, c.Attempt)
	cancel()
	if err != nil {
		w.handleFailure(ctx, c, err)
		return
	}

	if err := w.registry.Complete(ctx, id, result); err != nil {
		if errors.Is(err, ErrAlreadyComplete) {
			// Lost a rare double-execution race; the stored result wins.
			log.Warn("result already recorded, discarding duplicate")
			return
		}
		log.Error("failed to record result", "error", err)
	}
}

func (w *Worker) handleFailure(ctx context.Context, c *Claimed, err error) {
	id := c.Request.ID
	log := w.logger.With("job_id", id, "attempt", c.Attempt)

	class, retryable := ClassInternal, false
	var runErr *RunError
	if errors.As(err, &runErr) {
		class, retryable = runErr.Class, runErr.Retryable
	}

	if retryable && c.Attempt <= w.cfg.MaxRetries {
		log.Warn("comparison failed, scheduling retry",
			"class", class, "error", err, "delay", w.cfg.RetryDelay)
		if rerr := w.registry.Retry(ctx, id, w.cfg.RetryDelay, class, err.Error()); rerr != nil {
			log.Error("failed to schedule retry", "error", rerr)
		}
		return
	}

	log.Error("comparison failed terminally", "class", class, "error", err)
	if ferr := w.registry.Fail(ctx, id, class, err.Error()); ferr != nil && !errors.Is(ferr, ErrAlreadyComplete) {
		log.Error("failed to record failure", "error", ferr)
	}
}
