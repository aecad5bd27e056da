package observation

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("observation not found")

// PeerReviewStatus is the review state recorded on an observation.
// Only StatusPending is ever written; see ReviewService.SubmitReview.
type PeerReviewStatus string

const (
	StatusPending PeerReviewStatus = "pending"
)

const DefaultPeerReviewsRequired = 1

// Observation is one produced report about a child.
// Corresponds to the 'observations' table.
type Observation struct {
	ID           string
	StudentID    string
	StudentName  string
	ObserverID   string
	ObserverName string
	ClassName    string
	Date         time.Time // session calendar date
	Timestamp    time.Time // when the report was produced
	Text         string
	FileURL      sql.NullString
	Report       ReportDetails

	PeerReviewsRequired  int
	PeerReviewsCompleted int
	PeerReviewStatus     PeerReviewStatus
}

// ReportDetails is the structured part of a generated report, stored as JSON.
// Every field is optional; unreadable stored data yields the zero value.
type ReportDetails struct {
	Strengths          []string `json:"strengths,omitempty"`
	AreasOfDevelopment []string `json:"areasOfDevelopment,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
	ThemeOfDay         string   `json:"themeOfDay,omitempty"`
	CuriositySeed      string   `json:"curiositySeed,omitempty"`
	FormattedReport    string   `json:"formatted_report,omitempty"`
}

func (d ReportDetails) HasFormattedReport() bool {
	return d.FormattedReport != ""
}

// Scan implements sql.Scanner.
func (d *ReportDetails) Scan(v any) error {
	var raw []byte
	switch x := v.(type) {
	case nil:
		*d = ReportDetails{}
		return nil
	case []byte:
		raw = x
	case string:
		raw = []byte(x)
	default:
		return fmt.Errorf("report details: unsupported Scan type %T", v)
	}
	var parsed ReportDetails
	if err := json.Unmarshal(raw, &parsed); err != nil {
		*d = ReportDetails{}
		return nil
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d ReportDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
