package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Daemon runs reconcile passes on a fixed interval.
type Daemon struct {
	scheduler  gocron.Scheduler
	reconciler *Reconciler
	interval   time.Duration
}

// NewDaemon creates a daemon that runs the reconciler every interval.
func NewDaemon(reconciler *Reconciler, interval time.Duration) (*Daemon, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Daemon{scheduler: s, reconciler: reconciler, interval: interval}, nil
}

// Start schedules the periodic pass and runs one immediately. It returns
// after scheduling; passes run on the scheduler's goroutines until Stop.
func (d *Daemon) Start(ctx context.Context) error {
	_, err := d.scheduler.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(d.runPass, ctx),
		gocron.WithName("webhook-reconcile"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}

	slog.Info("starting reconcile daemon", "interval", d.interval.String())
	d.scheduler.Start()
	return nil
}

// Stop gracefully shuts down the scheduler.
func (d *Daemon) Stop() error {
	slog.Info("stopping reconcile daemon")
	return d.scheduler.Shutdown()
}

func (d *Daemon) runPass(ctx context.Context) {
	outcomes := d.reconciler.Run(ctx)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	slog.Info("reconcile pass complete", "repositories", len(outcomes), "failed", failed)
}
