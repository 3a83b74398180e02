package jobs

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

// Outcomes reported to the Recorder.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeUnknown   = "unknown_key"
)

type Recorder interface {
	JobProcessed(key, outcome string)
}

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	Lease        time.Duration
	Timeout      time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Lease <= c.Timeout {
		c.Lease = c.Timeout + 30*time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	return c
}

type Worker struct {
	store    store.JobStore
	registry *Registry
	recorder Recorder
	log      *slog.Logger
	cfg      WorkerConfig
	now      func() time.Time
}

func NewWorker(st store.JobStore, registry *Registry, recorder Recorder, log *slog.Logger, cfg WorkerConfig) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		store:    st,
		registry: registry,
		recorder: recorder,
		log:      log,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Run polls for due jobs with Concurrency goroutines until ctx is done.
// A job already running when ctx ends is allowed to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("job worker starting", "concurrency", w.cfg.Concurrency, "keys", w.registry.Keys())
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		id := i
		g.Go(func() error {
			w.loop(ctx, id)
			return nil
		})
	}
	err := g.Wait()
	w.log.Info("job worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.log.Warn("claim job failed", "worker", id, "error", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job was
// claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, ok, err := w.store.Claim(ctx, w.now(), w.cfg.Lease)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	w.process(context.WithoutCancel(ctx), job)
	return true, nil
}

func (w *Worker) process(ctx context.Context, job domain.Job) {
	log := w.log.With("job_id", job.ID, "key", job.Key, "attempt", job.Attempts)

	h, ok := w.registry.Lookup(job.Key)
	if !ok {
		log.Error("no handler registered for job key")
		w.finish(log, job, OutcomeUnknown, w.store.Fail(ctx, job.ID, w.now(), "no handler registered for key "+job.Key))
		return
	}

	hctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	start := time.Now()
	err := h.Handle(hctx, []byte(job.Payload))
	cancel()

	if err == nil {
		log.Info("job completed", "duration", time.Since(start))
		w.finish(log, job, OutcomeCompleted, w.store.Complete(ctx, job.ID, w.now()))
		return
	}

	if IsPermanent(err) || job.Attempts >= job.MaxAttempts {
		log.Error("job failed", "error", err, "permanent", IsPermanent(err))
		w.finish(log, job, OutcomeFailed, w.store.Fail(ctx, job.ID, w.now(), err.Error()))
		return
	}

	runAt := w.now().Add(w.backoff(job.Attempts))
	log.Warn("job will be retried", "error", err, "run_at", runAt)
	w.finish(log, job, OutcomeRetried, w.store.Retry(ctx, job.ID, runAt, err.Error()))
}

func (w *Worker) finish(log *slog.Logger, job domain.Job, outcome string, err error) {
	if err != nil {
		// The lease expires and the job is picked up again.
		log.Error("record job outcome failed", "outcome", outcome, "error", err)
		return
	}
	if w.recorder != nil {
		w.recorder.JobProcessed(job.Key, outcome)
	}
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	return d
}
