package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"umkm/internal/core"
)

// EventType names a completed income mutation.
type EventType string

const (
	IncomeCreated EventType = "income.created"
	IncomeUpdated EventType = "income.updated"
	IncomeDeleted EventType = "income.deleted"
)

// IncomeEvent announces a stored income change. Created and updated events
// carry the canonical record; deleted events only the id.
type IncomeEvent struct {
	Type      EventType    `json:"type"`
	IncomeID  core.ID      `json:"income_id"`
	UMKMID    core.ID      `json:"umkm_id"`
	Income    *core.Income `json:"income,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewIncomeEvent builds a created or updated event for in.
func NewIncomeEvent(t EventType, umkmID core.ID, in core.Income) *IncomeEvent {
	return &IncomeEvent{
		Type:      t,
		IncomeID:  in.ID,
		UMKMID:    umkmID,
		Income:    &in,
		Timestamp: time.Now(),
	}
}

func NewIncomeDeletedEvent(umkmID, id core.ID) *IncomeEvent {
	return &IncomeEvent{
		Type:      IncomeDeleted,
		IncomeID:  id,
		UMKMID:    umkmID,
		Timestamp: time.Now(),
	}
}

func (m *IncomeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// IncomeEventFromJSON decodes and checks an event body.
func IncomeEventFromJSON(data []byte) (*IncomeEvent, error) {
	var msg IncomeEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case IncomeCreated, IncomeUpdated:
		if msg.Income == nil {
			return nil, fmt.Errorf("%s event without income", msg.Type)
		}
	case IncomeDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.IncomeID.IsZero() {
		return nil, fmt.Errorf("%s event without income id", msg.Type)
	}
	return &msg, nil
}
