package schedule

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeOfDay is returned when a schedule time is not a valid "HH:MM" value.
var ErrInvalidTimeOfDay = errors.New("invalid time of day, use HH:MM")

// TimeOfDay is a wall-clock time without a date or zone, e.g. 19:00.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses user input in the strict "HH:MM" form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return parseParts(parts)
}

// parseStored accepts what Postgres hands back for a TIME column ("HH:MM:SS").
func parseStored(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return parseParts(parts[:2])
}

func parseParts(parts []string) (TimeOfDay, error) {
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return t, nil
}

// Valid reports whether the hour is 0-23 and the minute 0-59.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at this time of day on the calendar day of ref, in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

// Scan implements sql.Scanner for TIME columns.
func (t *TimeOfDay) Scan(v any) error {
	switch x := v.(type) {
	case time.Time:
		*t = TimeOfDay{Hour: x.Hour(), Minute: x.Minute()}
		return nil
	case []byte:
		parsed, err := parseStored(string(x))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case string:
		parsed, err := parseStored(x)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("time of day: unsupported Scan type %T", v)
	}
}

// Value implements driver.Valuer, sending "HH:MM:00" so Postgres TIME accepts it.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}
