package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/notification"
	"learning_observer/internal/domain/observation"
	"learning_observer/internal/domain/processing"
	"learning_observer/internal/domain/review"
	"learning_observer/internal/domain/schedule"

	"github.com/google/uuid"
)

var (
	_ schedule.Repository         = (*Store)(nil)
	_ processing.Repository       = (*Store)(nil)
	_ observation.Repository      = (*Store)(nil)
	_ review.Repository           = (*Store)(nil)
	_ review.Writer               = (*Store)(nil)
	_ notification.Repository     = (*Store)(nil)
	_ notification.Writer         = (*Store)(nil)
	_ directory.Repository        = (*Store)(nil)
	_ directory.PrincipalResolver = (*Store)(nil)
)

type pairKey struct {
	observerID string
	childID    string
}

// Store keeps every table in process memory. It satisfies all repository and writer
// interfaces. Like the Postgres schema it always rejects a second review by the same
// reviewer, and strict adds the once-per-day rule for scheduled processing entries.
type Store struct {
	mu     sync.RWMutex
	strict bool

	users    map[string]*directory.User
	children map[string]*directory.Child

	schedules     map[pairKey]*schedule.ScheduledReport
	log           []*processing.LogEntry
	observations  map[string]*observation.Observation
	reviews       []*review.PeerReview
	notifications []*notification.Notification
}

func NewStore(strict bool) *Store {
	return &Store{
		strict:       strict,
		users:        make(map[string]*directory.User),
		children:     make(map[string]*directory.Child),
		schedules:    make(map[pairKey]*schedule.ScheduledReport),
		observations: make(map[string]*observation.Observation),
	}
}

// AddUser and AddChild populate the directory, which this engine otherwise only reads.
func (s *Store) AddUser(u directory.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) AddChild(c directory.Child) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[c.ID] = &c
}

// --- directory ---

func (s *Store) GetUser(_ context.Context, id string) (*directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetChild(_ context.Context, id string) (*directory.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[id]
	if !ok {
		return nil, directory.ErrChildNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListUsersByOrganization(_ context.Context, organizationID string) ([]*directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*directory.User, 0)
	for _, u := range s.users {
		if u.OrganizationID.Valid && u.OrganizationID.String == organizationID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ResolvePrincipal(_ context.Context, organizationID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, u := range s.users {
		if u.Role == directory.RolePrincipal && u.OrganizationID.Valid && u.OrganizationID.String == organizationID {
			ids = append(ids, u.ID)
		}
	}
	if len(ids) == 0 {
		return "", directory.ErrNoPrincipal
	}
	sort.Strings(ids)
	return ids[0], nil
}

// --- schedules ---

func (s *Store) Upsert(_ context.Context, observerID, childID string, at schedule.TimeOfDay, now time.Time) (*schedule.ScheduledReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pairKey{observerID, childID}
	if sr, ok := s.schedules[k]; ok {
		sr.ScheduledTime = at
		sr.UpdatedAt = now
		cp := *sr
		return &cp, nil
	}
	sr := &schedule.ScheduledReport{
		ID:            uuid.NewString(),
		ObserverID:    observerID,
		ChildID:       childID,
		ScheduledTime: at,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.schedules[k] = sr
	cp := *sr
	return &cp, nil
}

func (s *Store) Get(_ context.Context, observerID, childID string) (*schedule.ScheduledReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.schedules[pairKey{observerID, childID}]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	cp := *sr
	return &cp, nil
}

func (s *Store) SetActive(_ context.Context, observerID, childID string, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.schedules[pairKey{observerID, childID}]
	if !ok {
		return schedule.ErrNotFound
	}
	sr.IsActive = active
	sr.UpdatedAt = now
	return nil
}

func (s *Store) Delete(_ context.Context, observerID, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pairKey{observerID, childID}
	if _, ok := s.schedules[k]; !ok {
		return schedule.ErrNotFound
	}
	delete(s.schedules, k)
	return nil
}

func (s *Store) ListActiveByObserver(_ context.Context, observerID string) ([]*schedule.ScheduledReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*schedule.ScheduledReport, 0)
	for k, sr := range s.schedules {
		if k.observerID != observerID || !sr.IsActive {
			continue
		}
		c, ok := s.children[sr.ChildID]
		if !ok {
			continue // inner join semantics
		}
		cp := *sr
		child := *c
		cp.Child = &child
		out = append(out, &cp)
	}
	sortSchedules(out)
	return out, nil
}

func (s *Store) ListActive(_ context.Context) ([]*schedule.ScheduledReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*schedule.ScheduledReport, 0)
	for _, sr := range s.schedules {
		if sr.IsActive {
			cp := *sr
			out = append(out, &cp)
		}
	}
	sortSchedules(out)
	return out, nil
}

func sortSchedules(list []*schedule.ScheduledReport) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].ScheduledTime, list[j].ScheduledTime
		if a != b {
			return a.Hour*60+a.Minute < b.Hour*60+b.Minute
		}
		return list[i].ChildID < list[j].ChildID
	})
}

// --- processing log ---

func (s *Store) Append(_ context.Context, e *processing.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strict && e.ReportType == processing.ReportTypeScheduled {
		day := e.ProcessedAt.Format("2006-01-02")
		for _, x := range s.log {
			if x.ReportType == processing.ReportTypeScheduled && x.ChildID == e.ChildID &&
				x.ObserverID == e.ObserverID && x.ProcessedAt.Format("2006-01-02") == day {
				return processing.ErrDuplicateEntry
			}
		}
	}
	cp := *e
	s.log = append(s.log, &cp)
	return nil
}

func (s *Store) ExistsBetween(_ context.Context, childID, observerID string, from, to time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.log {
		if e.ChildID == childID && e.ObserverID == observerID && !e.ProcessedAt.Before(from) && e.ProcessedAt.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListSince(_ context.Context, childID, observerID string, since time.Time) ([]*processing.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*processing.LogEntry, 0)
	for _, e := range s.log {
		if e.ChildID == childID && e.ObserverID == observerID && !e.ProcessedAt.Before(since) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProcessedAt.After(out[j].ProcessedAt) })
	return out, nil
}

// --- observations ---

func (s *Store) Create(_ context.Context, o *observation.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.observations[o.ID] = &cp
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*observation.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.observations[id]
	if !ok {
		return nil, observation.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) CountByObserver(_ context.Context, observerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.observations {
		if o.ObserverID == observerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListRecentByOthers(_ context.Context, observerID string, since time.Time) ([]*observation.Observation, error) {
	return s.filterObservations(func(o *observation.Observation) bool {
		return o.ObserverID != observerID && !o.Timestamp.Before(since)
	}), nil
}

func (s *Store) ListByObservers(_ context.Context, observerIDs []string) ([]*observation.Observation, error) {
	set := make(map[string]bool, len(observerIDs))
	for _, id := range observerIDs {
		set[id] = true
	}
	return s.filterObservations(func(o *observation.Observation) bool { return set[o.ObserverID] }), nil
}

func (s *Store) filterObservations(keep func(*observation.Observation) bool) []*observation.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*observation.Observation, 0)
	for _, o := range s.observations {
		if keep(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *Store) ExistsForDate(_ context.Context, childID, observerID string, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observations {
		if o.StudentID == childID && o.ObserverID == observerID && sameDate(o.Date, day) {
			return true, nil
		}
	}
	return false, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *Store) IncrementPeerReviewsCompleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.observations[id]
	if !ok {
		return observation.ErrNotFound
	}
	o.PeerReviewsCompleted++
	return nil
}

// --- peer reviews ---

func (s *Store) Exists(_ context.Context, observationID, reviewerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reviewExistsLocked(observationID, reviewerID), nil
}

func (s *Store) reviewExistsLocked(observationID, reviewerID string) bool {
	for _, r := range s.reviews {
		if r.ObservationID == observationID && r.ReviewerID == reviewerID {
			return true
		}
	}
	return false
}

func (s *Store) ReviewedAmong(_ context.Context, observationIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(observationIDs))
	for _, id := range observationIDs {
		want[id] = true
	}
	out := make(map[string]bool)
	for _, r := range s.reviews {
		if want[r.ObservationID] {
			out[r.ObservationID] = true
		}
	}
	return out, nil
}

func (s *Store) ListByReviewer(_ context.Context, reviewerID string) ([]*review.PeerReview, error) {
	return s.filterReviews(func(r *review.PeerReview) bool { return r.ReviewerID == reviewerID }), nil
}

func (s *Store) ListByObservations(_ context.Context, observationIDs []string) ([]*review.PeerReview, error) {
	set := make(map[string]bool, len(observationIDs))
	for _, id := range observationIDs {
		set[id] = true
	}
	return s.filterReviews(func(r *review.PeerReview) bool { return set[r.ObservationID] }), nil
}

func (s *Store) filterReviews(keep func(*review.PeerReview) bool) []*review.PeerReview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*review.PeerReview, 0)
	for _, r := range s.reviews {
		if !keep(r) {
			continue
		}
		cp := *r
		if u, ok := s.users[r.ReviewerID]; ok {
			cp.ReviewerName = u.Name
		}
		if o, ok := s.observations[r.ObservationID]; ok {
			cp.ObservedUserName = o.ObserverName
			cp.StudentName = o.StudentName
		}
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) InsertPeerReview(_ context.Context, r *review.PeerReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reviewExistsLocked(r.ObservationID, r.ReviewerID) {
		return review.ErrDuplicate
	}
	cp := *r
	s.reviews = append(s.reviews, &cp)
	return nil
}

// --- notifications ---

func (s *Store) InsertNotification(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

func (s *Store) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool) ([]*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*notification.Notification, 0)
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && (!unreadOnly || !n.Read) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, id, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.Read = true
			return nil
		}
	}
	return notification.ErrNotFound
}

// Row counts, for tests.
func (s *Store) ScheduleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.schedules)
}

func (s *Store) ReviewCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews)
}

func (s *Store) NotificationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}
