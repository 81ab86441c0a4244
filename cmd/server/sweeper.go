package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = time.Minute

// lapsedExpirer deactivates cancelled subscriptions whose period has ended.
type lapsedExpirer interface {
	ExpireLapsed(ctx context.Context) (int, error)
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

// startSweeper schedules the subscription sweep on spec. An empty spec disables it.
func startSweeper(ctx context.Context, spec string, subs lapsedExpirer, log *slog.Logger) (*cron.Cron, error) {
	if spec == "" {
		log.Info("subscription sweeper disabled")
		return nil, nil
	}

	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err := c.AddFunc(spec, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()

		n, err := subs.ExpireLapsed(sweepCtx)
		if err != nil {
			log.Error("subscription sweep failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("expired lapsed subscriptions", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	c.Start()
	log.Info("subscription sweeper started", "spec", spec)
	return c, nil
}
