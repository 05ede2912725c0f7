// Package outbox implements the transactional outbox: ledger mutations append
// an Entry in the same transaction that changes state, and a worker later
// publishes pending entries to the event stream.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixellocker/pkg/requestcontext"
)

// Entry is one pending or published event.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // "did", "credential", "role"
	AggregateID   string // owner address, credential id, or principal
	EventType     string // e.g. "credential_issued"
	Payload       []byte // JSON-encoded Envelope
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil while pending
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// Envelope is the JSON document stored as an entry payload and published as the message value.
type Envelope struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	RequestID  string    `json:"request_id,omitempty"`
	Device     string    `json:"device,omitempty"`
	Data       any       `json:"data"`
}

// NewEntry wraps data in an Envelope stamped with the request time and metadata from ctx.
func NewEntry(ctx context.Context, aggregateType, aggregateID, eventType string, data any) (*Entry, error) {
	now := requestcontext.Now(ctx)
	payload, err := json.Marshal(Envelope{
		EventType:  eventType,
		OccurredAt: now,
		RequestID:  requestcontext.RequestID(ctx),
		Device:     requestcontext.Device(ctx),
		Data:       data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}, nil
}
