package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"learning_observer/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Options configure the reminder job. Zero values fall back to the defaults below.
type Options struct {
	Interval     time.Duration // default 2m
	MisfireGrace time.Duration // default 30s
	TickTimeout  time.Duration // default 1m
	Coalesce     bool
	AllowOverlap bool
	Location     *time.Location
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Minute
	}
	if o.MisfireGrace <= 0 {
		o.MisfireGrace = 30 * time.Second
	}
	if o.TickTimeout <= 0 {
		o.TickTimeout = time.Minute
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Reminders is the part of the reminder service the scheduler drives.
type Reminders interface {
	Tick(ctx context.Context) (app.TickReport, error)
	Snapshot(ctx context.Context) (*app.SchedulerSnapshot, error)
}

// ReminderScheduler runs the reminder pass on a fixed interval in-process.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	reminders  Reminders
	opts       Options
	guard      *misfireGuard
	job        cron.Job // runTick behind the wrapper chain
	logger     *logrus.Entry
	running    atomic.Bool
}

func NewReminderScheduler(reminders Reminders, opts Options, logger *logrus.Entry) *ReminderScheduler {
	opts = opts.withDefaults()
	l := logger.WithField("component", "reminder_scheduler")
	cronLogger := cron.PrintfLogger(l)

	every := cron.Every(opts.Interval)
	guard := newMisfireGuard(every, opts.MisfireGrace, opts.Coalesce, nil, l)

	wrappers := []cron.JobWrapper{cron.Recover(cronLogger)}
	if !opts.AllowOverlap {
		wrappers = append(wrappers, cron.SkipIfStillRunning(cronLogger))
	}
	wrappers = append(wrappers, guard.Wrap)

	s := &ReminderScheduler{
		cronEngine: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cronLogger),
		),
		reminders: reminders,
		opts:      opts,
		guard:     guard,
		logger:    l,
	}
	s.job = cron.NewChain(wrappers...).Then(cron.FuncJob(s.runTick))
	s.cronEngine.Schedule(every, s.job)
	return s
}

func (s *ReminderScheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.TickTimeout)
	defer cancel()
	if _, err := s.reminders.Tick(ctx); err != nil {
		s.logger.WithError(err).Error("Reminder pass failed")
	}
}

func (s *ReminderScheduler) Start() {
	s.logger.WithFields(logrus.Fields{
		"interval":      s.opts.Interval.String(),
		"misfire_grace": s.opts.MisfireGrace.String(),
		"coalesce":      s.opts.Coalesce,
		"allow_overlap": s.opts.AllowOverlap,
		"timezone":      s.opts.Location.String(),
	}).Info("Starting reminder scheduler...")
	s.cronEngine.Start()
	s.running.Store(true)
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // waits for a running pass
	<-ctx.Done()
	s.running.Store(false)
	s.logger.Info("Reminder scheduler gracefully stopped.")
}

func (s *ReminderScheduler) Running() bool {
	return s.running.Load()
}

// Status is the reminder snapshot with the live running flag.
func (s *ReminderScheduler) Status(ctx context.Context) (*app.SchedulerSnapshot, error) {
	snap, err := s.reminders.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	snap.Running = s.Running()
	return snap, nil
}
