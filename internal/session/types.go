// Package session implements the Redis-backed session store: the single
// current-session pointer per lane, session blobs with idle TTL, and the
// completed-order handoff to the relational archive.
package session

import (
	"time"

	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/order"
)

// HistoryLimit bounds the conversation history ring kept in the session
// blob. The classifier sees at most [ClassifierHistory] of these.
const HistoryLimit = 20

// ClassifierHistory is how many recent turns the intent classifier receives.
const ClassifierHistory = 5

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Turn is one completed exchange appended to the conversation history.
type Turn struct {
	UserInput         string            `json:"user_input"`
	CleansedInput     string            `json:"cleansed_input"`
	Intent            dialog.IntentType `json:"intent"`
	Confidence        float64           `json:"confidence"`
	ResponseText      string            `json:"response_text"`
	PhraseType        dialog.PhraseType `json:"phrase_type"`
	OrderStateChanged bool              `json:"order_state_changed"`
	Timestamp         time.Time         `json:"ts"`
}

// Session is the per-car conversation state, stored as one JSON blob under
// `session:{id}`.
type Session struct {
	ID           string `json:"session_id"`
	RestaurantID int    `json:"restaurant_id"`

	// OrderID equals ID; carried explicitly because the archive and the
	// executor key on it.
	OrderID string `json:"order_id"`

	State  dialog.State `json:"conversation_state"`
	Status Status       `json:"status"`
	Order  *order.State `json:"order_state"`

	History []Turn `json:"conversation_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppendTurn adds a turn to the history ring, discarding the oldest entries
// beyond [HistoryLimit].
func (s *Session) AppendTurn(t Turn) {
	s.History = append(s.History, t)
	if len(s.History) > HistoryLimit {
		s.History = s.History[len(s.History)-HistoryLimit:]
	}
}

// RecentHistory returns the most recent n turns, oldest first.
func (s *Session) RecentHistory(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
