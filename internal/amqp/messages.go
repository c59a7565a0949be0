package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"oyken/internal/core"
)

// RecomputeMessage asks the worker to recompute the rollups of one month.
// Month 0 means every month of the year. The worker rereads the raw records,
// so the message carries only the key.
type RecomputeMessage struct {
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecomputeMessage creates a message for p stamped with the current time.
func NewRecomputeMessage(p core.Period, reason string) *RecomputeMessage {
	return &RecomputeMessage{
		Year:      p.Year,
		Month:     p.Month,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecomputeMessage) Period() core.Period {
	return core.Period{Year: m.Year, Month: m.Month}
}

// ToJSON converts the message to JSON bytes
func (m *RecomputeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecomputeMessageFromJSON decodes and validates a message.
func RecomputeMessageFromJSON(data []byte) (*RecomputeMessage, error) {
	var msg RecomputeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Period().Validate(); err != nil {
		return nil, fmt.Errorf("recompute message %d-%d: %w", msg.Year, msg.Month, err)
	}
	return &msg, nil
}
