package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/infra/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	orgID       = "org-1"
	observerA   = "obs-a"
	observerB   = "obs-b"
	reviewerR   = "rev-r"
	principalID = "principal-1"
	childID     = "child-1"
)

// fakeClock is a settable Clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func org(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

// env wires every service to one memory store. All tests run in UTC unless they set loc.
type env struct {
	store     *memory.Store
	clock     *fakeClock
	loc       *time.Location
	processed *ProcessingLog
	schedules *ScheduleService
	reminders *ReminderService
	relay     *NotificationRelay
	reviews   *ReviewService
	records   *ObservationService
	mailer    *fakeMailer
}

func newEnv(t *testing.T, strict bool, start time.Time) *env {
	t.Helper()
	store := memory.NewStore(strict)
	clock := &fakeClock{t: start}
	loc := time.UTC
	log := quietLogger()
	mailer := &fakeMailer{}

	e := &env{store: store, clock: clock, loc: loc, mailer: mailer}
	e.processed = NewProcessingLog(store, loc, clock.Now, log)
	e.schedules = NewScheduleService(store, store, e.processed, loc, clock.Now, log)
	e.reminders = NewReminderService(store, store, store, mailer, loc, clock.Now, log)
	e.relay = NewNotificationRelay(store, store, store, store, clock.Now, log)
	e.reviews = NewReviewService(store, store, store, store, e.relay, clock.Now, log)
	e.records = NewObservationService(store, store, e.processed, Extractors{}, loc, clock.Now, log)

	store.AddUser(directory.User{ID: observerA, Name: "Alice", Email: "alice@example.com", Role: directory.RoleObserver, OrganizationID: org(orgID)})
	store.AddUser(directory.User{ID: observerB, Name: "Bob", Email: "bob@example.com", Role: directory.RoleObserver, OrganizationID: org(orgID)})
	store.AddUser(directory.User{ID: reviewerR, Name: "Rita", Email: "rita@example.com", Role: directory.RoleObserver, OrganizationID: org(orgID)})
	store.AddUser(directory.User{ID: principalID, Name: "Pat", Email: "pat@example.com", Role: directory.RolePrincipal, OrganizationID: org(orgID)})
	store.AddChild(directory.Child{ID: childID, Name: "Charlie"})
	return e
}

// record stores a manual observation at the current clock.
func (e *env) record(t *testing.T, observerID, studentID string) string {
	t.Helper()
	o, err := e.records.RecordObservation(context.Background(), RecordObservationInput{
		StudentID:  studentID,
		ObserverID: observerID,
		Text:       "worked on fractions",
	})
	require.NoError(t, err)
	return o.ID
}

type sentEmail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	fail map[string]bool // recipient -> fail
}

func (m *fakeMailer) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[to] {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (m *fakeMailer) Sent() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmail(nil), m.sent...)
}

// onceDeduper grants each key once, like the redis SETNX deduper.
type onceDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *onceDeduper) AcquireOnce(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}
