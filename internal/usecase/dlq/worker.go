package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule sweeps the queue once a minute.
const DefaultSchedule = "@every 1m"

// Worker runs periodic sweeps of the pending queue.
type Worker struct {
	cron   *cron.Cron
	svc    *Service
	logger *slog.Logger
}

// NewWorker schedules Sweep on the given cron spec. An empty schedule uses
// DefaultSchedule.
func NewWorker(svc *Service, schedule string, logger *slog.Logger) (*Worker, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Worker{
		cron:   cron.New(),
		svc:    svc,
		logger: logger,
	}
	if _, err := w.cron.AddFunc(schedule, w.sweep); err != nil {
		return nil, fmt.Errorf("schedule dlq sweep %q: %w", schedule, err)
	}
	return w, nil
}

// Start begins the sweep schedule in the background.
func (w *Worker) Start() {
	w.logger.Info("dlq retry worker started")
	w.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("dlq retry worker stopped")
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	attempted, err := w.svc.Sweep(ctx)
	if err != nil {
		w.logger.Error("dlq sweep", "error", err)
		return
	}
	if attempted > 0 {
		w.logger.Info("dlq sweep completed", "attempted", attempted)
	}
}
