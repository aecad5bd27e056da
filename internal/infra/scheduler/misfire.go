package scheduler

import (
	"sync"
	"time"

	"learning_observer/internal/infra/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// maxBacklog bounds how many missed occurrences one firing will inspect.
const maxBacklog = 1000

// misfireGuard is a cron.JobWrapper that compares each firing with the occurrences the
// schedule expected since the previous one. Occurrences later than grace are dropped;
// with coalesce the remaining backlog collapses into a single run.
type misfireGuard struct {
	mu       sync.Mutex
	schedule cron.Schedule
	grace    time.Duration
	coalesce bool
	now      func() time.Time
	expected time.Time
	logger   *logrus.Entry
}

func newMisfireGuard(s cron.Schedule, grace time.Duration, coalesce bool, now func() time.Time, logger *logrus.Entry) *misfireGuard {
	if now == nil {
		now = time.Now
	}
	return &misfireGuard{
		schedule: s,
		grace:    grace,
		coalesce: coalesce,
		now:      now,
		expected: s.Next(now()),
		logger:   logger,
	}
}

// admit returns how many times the wrapped job should run for a firing at the current time.
func (g *misfireGuard) admit() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	defer func() { g.expected = g.schedule.Next(now) }()

	if now.Before(g.expected) {
		return 1
	}

	var due, missed int
	for occ := g.expected; !occ.After(now) && due+missed < maxBacklog; occ = g.schedule.Next(occ) {
		if now.Sub(occ) > g.grace {
			missed++
			continue
		}
		due++
	}

	if missed > 0 {
		g.logger.WithFields(logrus.Fields{
			"missed": missed,
			"grace":  g.grace.String(),
		}).Warn("Reminder occurrences missed their grace period and were skipped")
		for i := 0; i < missed; i++ {
			metrics.IncrementTickSkipped("misfire")
		}
	}
	if due > 1 && g.coalesce {
		g.logger.WithField("coalesced", due).Info("Reminder backlog coalesced into one run")
		return 1
	}
	return due
}

func (g *misfireGuard) Wrap(j cron.Job) cron.Job {
	return cron.FuncJob(func() {
		for n := g.admit(); n > 0; n-- {
			j.Run()
		}
	})
}
