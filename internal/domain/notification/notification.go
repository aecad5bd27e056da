package notification

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("notification not found")

// Type values as stored in notifications.type.
type Type string

const (
	TypePeerReview Type = "peer_review"
)

// Notification is an in-app message for a principal.
// Corresponds to the 'notifications' table.
type Notification struct {
	ID          string
	RecipientID string
	SenderID    string
	Type        Type
	Title       string
	Message     string
	Data        Payload
	Read        bool
	CreatedAt   time.Time
}

// Payload carries the peer-review details a principal needs without further lookups.
type Payload struct {
	ObservationID    string `json:"observation_id"`
	ReviewerID       string `json:"reviewer_id"`
	ReviewerName     string `json:"reviewer_name"`
	ObservedBy       string `json:"observed_by"`
	ObservedUserName string `json:"observed_user_name"`
	ReviewScore      int    `json:"review_score"`
	RequiresChanges  bool   `json:"requires_changes"`
	ReviewComments   string `json:"review_comments"`
}

// Scan implements sql.Scanner.
func (p *Payload) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		*p = Payload{}
		return nil
	case []byte:
		return json.Unmarshal(x, p)
	case string:
		return json.Unmarshal([]byte(x), p)
	default:
		return fmt.Errorf("notification payload: unsupported Scan type %T", v)
	}
}

// Value implements driver.Valuer.
func (p Payload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
