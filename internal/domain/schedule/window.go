package schedule

import "time"

const (
	// DueWindow is the half-width of the dashboard "process now" window.
	DueWindow = 30 * time.Minute

	// ReminderWindowStart and ReminderWindowEnd bound the advance-notice email window.
	ReminderWindowStart = 29 * time.Minute
	ReminderWindowEnd   = 31 * time.Minute
)

// NextOccurrence returns the next instant strictly after now at which the daily time fires.
// The wall clock is now's location; callers convert now into the scheduling zone first.
func NextOccurrence(t TimeOfDay, now time.Time) time.Time {
	today := t.On(now)
	if !now.Before(today) {
		return t.On(now.AddDate(0, 0, 1))
	}
	return today
}

// IsDue is the dashboard policy: the occurrence is within ±30 minutes of now.
func IsDue(next, now time.Time) bool {
	diff := next.Sub(now)
	return diff >= -DueWindow && diff <= DueWindow
}

// ShouldRemind is the reminder policy: the occurrence is 29 to 31 minutes ahead of now.
// Not derived from IsDue; the two windows differ.
func ShouldRemind(next, now time.Time) bool {
	diff := next.Sub(now)
	return diff >= ReminderWindowStart && diff <= ReminderWindowEnd
}

// DayBounds returns [00:00, next day 00:00) of ref's calendar day in ref's location.
func DayBounds(ref time.Time) (time.Time, time.Time) {
	start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return start, start.AddDate(0, 0, 1)
}
