// Package worker provides a small ticker-driven loop for background
// maintenance tasks (state dumps, cache eviction, gauge refresh).
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const logFieldWorker = "worker"

// Task runs at a fixed interval.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Config configures a maintenance loop.
type Config struct {
	// Name identifies the worker for logging.
	Name string

	// Tasks are the periodic tasks to run.
	Tasks []Task

	// OnStop is called once when the loop exits.
	OnStop func()

	// Logger for the worker.
	Logger *zerolog.Logger
}

// Loop runs the configured tasks on their tickers until the context is
// canceled. Returns a wrapped context error on cancellation.
func Loop(ctx context.Context, cfg Config) error {
	logger := getLogger(cfg.Logger)
	logger.Info().Str(logFieldWorker, cfg.Name).Msg("starting maintenance loop")

	defer func() {
		if cfg.OnStop != nil {
			cfg.OnStop()
		}

		logger.Info().Str(logFieldWorker, cfg.Name).Msg("maintenance loop stopped")
	}()

	cases := make([]<-chan time.Time, len(cfg.Tasks))
	tickers := make([]*time.Ticker, 0, len(cfg.Tasks))

	for i, task := range cfg.Tasks {
		if task.Interval <= 0 || task.Run == nil {
			continue
		}

		ticker := time.NewTicker(task.Interval)
		tickers = append(tickers, ticker)
		cases[i] = ticker.C
	}

	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	for {
		if err := waitNextTick(ctx, cfg.Tasks, cases, logger); err != nil {
			return fmt.Errorf("maintenance loop %s: %w", cfg.Name, err)
		}
	}
}

func waitNextTick(ctx context.Context, tasks []Task, cases []<-chan time.Time, logger *zerolog.Logger) error {
	// The task list is tiny (two or three entries), so a polling select
	// over each ticker keeps this free of reflection.
	for i, ch := range cases {
		if ch == nil {
			continue
		}

		select {
		case <-ch:
			logger.Debug().Str("task", tasks[i].Name).Msg("running periodic task")
			tasks[i].Run(ctx)
		default:
		}
	}

	return Wait(ctx, 100*time.Millisecond)
}

// Wait blocks until the duration elapses or the context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}
