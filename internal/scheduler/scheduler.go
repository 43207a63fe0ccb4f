// Package scheduler drives the three periodic jobs — index, enrich, and
// maintenance — each on its own single-worker queue with soft and hard
// per-task deadlines.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	softDeadline = 10 * time.Minute
	hardDeadline = 15 * time.Minute
)

// Task is one unit of scheduled work. ctx carries the hard deadline;
// implementations should also watch it cooperatively for early exit where
// practical (e.g. between sub-batches).
type Task func(ctx context.Context) error

// queue runs at most one Task at a time, in submission order. It holds at
// most one pending trigger behind the running task and drops any further
// submission until that one is picked up — "one task per worker in flight"
// from 4.6.
type queue struct {
	name string
	ch   chan struct{}
	log  *slog.Logger
	run  Task
}

func newQueue(name string, run Task, log *slog.Logger) *queue {
	return &queue{name: name, ch: make(chan struct{}, 1), run: run, log: log.With("job", name)}
}

func (q *queue) start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.ch:
				q.runOnce(ctx)
			}
		}
	}()
}

func (q *queue) enqueue() {
	select {
	case q.ch <- struct{}{}:
	default:
		q.log.Warn("previous run still in flight, skipping this trigger")
	}
}

func (q *queue) runOnce(parent context.Context) {
	taskCtx, cancel := context.WithTimeout(parent, hardDeadline)
	defer cancel()

	softTimer := time.AfterFunc(softDeadline, func() {
		q.log.Warn("task exceeded soft deadline, still running", "soft_deadline", softDeadline)
	})
	defer softTimer.Stop()

	start := time.Now()
	if err := q.run(taskCtx); err != nil {
		q.log.Error("task failed", "err", err, "elapsed", time.Since(start))
		return
	}
	q.log.Info("task complete", "elapsed", time.Since(start))
}

// Scheduler owns the cron driver and the three job queues.
type Scheduler struct {
	cron             *cron.Cron
	index            *queue
	enrich           *queue
	maint            *queue
	triggerImmediate bool
	log              *slog.Logger
}

// Config names the three tasks and the index interval.
type Config struct {
	IntervalMinutes  int
	TriggerImmediate bool
	IndexTask        Task
	EnrichTask       Task
	MaintenanceTask  Task
}

// New wires the cron schedules. index runs every IntervalMinutes minutes,
// enrich hourly, maintenance daily.
func New(cfg Config, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		index:  newQueue("index", cfg.IndexTask, log),
		enrich: newQueue("enrich", cfg.EnrichTask, log),
		maint:  newQueue("maintenance", cfg.MaintenanceTask, log),
		log:    log.With("component", "scheduler"),
	}

	indexSpec := time.Duration(cfg.IntervalMinutes) * time.Minute
	if _, err := s.cron.AddFunc(everyDurationSpec(indexSpec), s.index.enqueue); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("@hourly", s.enrich.enqueue); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("@daily", s.maint.enqueue); err != nil {
		return nil, err
	}

	s.triggerImmediate = cfg.TriggerImmediate
	return s, nil
}

// everyDurationSpec renders a robfig/cron "@every" spec for a duration.
func everyDurationSpec(d time.Duration) string {
	return "@every " + d.String()
}

// Start launches the three queue workers and the cron driver. If configured,
// an index run is enqueued immediately on boot, ahead of the first
// scheduled tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.index.start(ctx)
	s.enrich.start(ctx)
	s.maint.start(ctx)
	s.cron.Start()

	if s.triggerImmediate {
		s.log.Info("TRIGGER_IMMEDIATE set, enqueuing index run at boot")
		s.index.enqueue()
	}
}

// Stop halts the cron driver. In-flight tasks run to completion or their
// hard deadline, whichever comes first; callers cancel ctx to stop sooner.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
