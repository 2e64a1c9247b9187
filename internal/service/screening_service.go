package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/rs/zerolog"
)

// ErrScreeningQueueFull is returned by LocalScreeningDispatcher when its buffer is full.
var ErrScreeningQueueFull = errors.New("screening queue full")

// ScreeningRecorder stores a screening verdict on a project.
type ScreeningRecorder interface {
	RecordScreening(ctx context.Context, id int64, result *domain.ScreeningResult) error
}

// ScreeningWorker scores a project and records the verdict. A scorer
// failure is recorded as a FAILED result rather than retried.
type ScreeningWorker struct {
	scorer   ports.Scorer
	recorder ScreeningRecorder
	clock    ports.Clock
	log      zerolog.Logger
}

// NewScreeningWorker creates a new ScreeningWorker.
func NewScreeningWorker(scorer ports.Scorer, recorder ScreeningRecorder, clock ports.Clock, log zerolog.Logger) *ScreeningWorker {
	return &ScreeningWorker{scorer: scorer, recorder: recorder, clock: clock, log: log}
}

// Process runs one screening job to completion.
func (w *ScreeningWorker) Process(ctx context.Context, job domain.ScreeningJob) error {
	result, err := w.scorer.Score(ctx, job.Text)
	if err != nil {
		w.log.Warn().Err(err).Int64("project_id", job.ProjectID).Msg("project scoring failed")
		result = &domain.ScreeningResult{Status: domain.ScreeningStatusFailed, Error: err.Error()}
	}
	if result.ScreenedAt.IsZero() {
		result.ScreenedAt = w.clock.Now()
	}

	if err := w.recorder.RecordScreening(ctx, job.ProjectID, result); err != nil {
		return fmt.Errorf("record screening for project %d: %w", job.ProjectID, err)
	}

	ev := w.log.Info().Int64("project_id", job.ProjectID).Str("status", string(result.Status))
	if result.Score != nil {
		ev = ev.Int("score", *result.Score)
	}
	ev.Msg("project screened")
	return nil
}

// LocalScreeningDispatcher runs screening in-process on a bounded queue.
type LocalScreeningDispatcher struct {
	worker *ScreeningWorker
	jobs   chan domain.ScreeningJob
	log    zerolog.Logger
	wg     sync.WaitGroup
}

// NewLocalScreeningDispatcher creates a dispatcher buffering up to size jobs.
func NewLocalScreeningDispatcher(worker *ScreeningWorker, size int, log zerolog.Logger) *LocalScreeningDispatcher {
	if size <= 0 {
		size = 64
	}
	return &LocalScreeningDispatcher{
		worker: worker,
		jobs:   make(chan domain.ScreeningJob, size),
		log:    log,
	}
}

// Dispatch enqueues job without blocking.
func (d *LocalScreeningDispatcher) Dispatch(_ context.Context, job domain.ScreeningJob) error {
	select {
	case d.jobs <- job:
		return nil
	default:
		return ErrScreeningQueueFull
	}
}

// Start consumes queued jobs until ctx is cancelled. Call Wait to block until the worker exits.
func (d *LocalScreeningDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-d.jobs:
				if err := d.worker.Process(ctx, job); err != nil {
					d.log.Error().Err(err).Int64("project_id", job.ProjectID).Msg("screening job failed")
				}
			}
		}
	}()
}

// Wait blocks until the worker started by Start has returned.
func (d *LocalScreeningDispatcher) Wait() {
	d.wg.Wait()
}

var _ ports.ScreeningDispatcher = (*LocalScreeningDispatcher)(nil)
