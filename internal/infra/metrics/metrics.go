package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	ReminderTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_tick_duration_seconds",
			Help:    "Duration of one reminder dispatcher pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// outcome: sent, suppressed, duplicate, failed, skipped
	RemindersCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_total",
			Help: "Reminder decisions by outcome",
		},
		[]string{"outcome"},
	)

	// reason: misfire
	TicksSkippedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_ticks_skipped_total",
			Help: "Reminder ticks that were not run",
		},
		[]string{"reason"},
	)

	// status: accepted, rejected
	ReviewSubmissionsCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_review_submissions_total",
			Help: "Peer review submissions by status",
		},
		[]string{"status"},
	)

	// status: created, skipped, failed
	NotificationsCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "principal_notifications_total",
			Help: "Principal notifications by status",
		},
		[]string{"status"},
	)

	// report_type: scheduled, manual
	ObservationsRecordedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observations_recorded_total",
			Help: "Observations saved by report type",
		},
		[]string{"report_type"},
	)
)

func ObserveReminderTick(d time.Duration) {
	ReminderTickDuration.Observe(d.Seconds())
}

func IncrementReminder(outcome string) {
	RemindersCount.WithLabelValues(outcome).Inc()
}

func IncrementTickSkipped(reason string) {
	TicksSkippedCount.WithLabelValues(reason).Inc()
}

func IncrementReviewSubmission(status string) {
	ReviewSubmissionsCount.WithLabelValues(status).Inc()
}

func IncrementNotification(status string) {
	NotificationsCount.WithLabelValues(status).Inc()
}

func IncrementObservationRecorded(reportType string) {
	ObservationsRecordedCount.WithLabelValues(reportType).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr disables it.
func Serve(ctx context.Context, addr string, logger *logrus.Entry) {
	if addr == "" {
		logger.Info("Metrics listener disabled")
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.WithField("addr", addr).Info("Metrics listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics listener stopped")
		}
	}()
}
