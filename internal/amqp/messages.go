package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventPurchaseCreated  EventType = "purchase.created"
	EventBillCreated      EventType = "bill.created"
	EventBillUpdated      EventType = "bill.updated"
	EventSalaryRegistered EventType = "salary.registered"
	EventTitheCreated     EventType = "tithe.created"
	EventTithePaid        EventType = "tithe.paid"
)

// FinanceEvent announces that a record changed. It carries only identifiers;
// consumers load the record from the store.
type FinanceEvent struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFinanceEvent creates an event stamped with the current time
func NewFinanceEvent(t EventType, userID, recordID string) *FinanceEvent {
	return &FinanceEvent{
		Type:      t,
		UserID:    userID,
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *FinanceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FinanceEventFromJSON decodes and checks an event body.
func FinanceEventFromJSON(data []byte) (*FinanceEvent, error) {
	var msg FinanceEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" || msg.UserID == "" || msg.RecordID == "" {
		return nil, fmt.Errorf("incomplete event: type=%q user=%q record=%q", msg.Type, msg.UserID, msg.RecordID)
	}
	return &msg, nil
}
