package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventKind names what happened to the referenced ledger rows.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// LedgerEvent is a lightweight change notification. It carries ids only; the
// consumer fetches current rows from the store.
type LedgerEvent struct {
	Kind      EventKind `json:"kind"`
	IDs       []int64   `json:"ids"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, ids ...int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		IDs:       ids,
		Timestamp: time.Now().UTC(),
	}
}

func (e *LedgerEvent) Validate() error {
	switch e.Kind {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if len(e.IDs) == 0 {
		return errors.New("event without ids")
	}
	for _, id := range e.IDs {
		if id <= 0 {
			return fmt.Errorf("invalid id %d", id)
		}
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
