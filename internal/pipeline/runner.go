package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"example.com/fossiltrack/internal/providers"
)

// Stage is one unit of the batch pipeline. Stages run strictly in order;
// a stage never starts before its predecessor committed.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// Progress reports how far a run got before stopping
type Progress struct {
	Completed []string
	Failed    string
}

// Runner executes a fixed sequence of stages, each under its own
// wall-clock deadline
type Runner struct {
	stageTimeout time.Duration
}

// NewRunner creates a stage runner
func NewRunner(stageTimeout time.Duration) *Runner {
	return &Runner{stageTimeout: stageTimeout}
}

// Run executes the stages in order. The first failure stops the run; the
// returned progress names the completed stages so the orchestrator can log
// partial work. Earlier stages' commits are kept.
func (r *Runner) Run(ctx context.Context, stages []Stage) (Progress, error) {
	var progress Progress
	for _, stage := range stages {
		start := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
		err := stage.Run(stageCtx)
		cancel()

		if err != nil {
			progress.Failed = stage.Name
			log.Error().
				Err(err).
				Str("stage", stage.Name).
				Dur("elapsed", time.Since(start)).
				Bool("exhausted", errors.Is(err, providers.ErrExhausted)).
				Msg("Pipeline stage failed")
			return progress, errors.Wrapf(err, "stage %s failed", stage.Name)
		}

		progress.Completed = append(progress.Completed, stage.Name)
		log.Info().
			Str("stage", stage.Name).
			Dur("elapsed", time.Since(start)).
			Msg("Pipeline stage completed")
	}
	return progress, nil
}

// ShouldBackOff reports whether a run error warrants sleeping instead of
// resuming on the next cycle
func ShouldBackOff(err error) bool {
	return errors.Is(err, providers.ErrExhausted)
}

// ForEach fans fn out over independent keys with bounded parallelism.
// The first error cancels the remaining work.
func ForEach[K any](ctx context.Context, keys []K, parallelism int, fn func(ctx context.Context, key K) error) error {
	if parallelism < 1 {
		parallelism = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return fn(gctx, key)
		})
	}
	return g.Wait()
}
