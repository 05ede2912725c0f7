package models

import (
	"time"

	"pixellocker/pkg/domain"
)

// Record binds an owner principal to one self-asserted DID string.
type Record struct {
	Owner        domain.Address
	DID          string
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

const (
	AggregateType      = "did"
	EventDIDRegistered = "did_registered"
	EventDIDUpdated    = "did_updated"
)

// ChangedEvent is the payload of did_registered and did_updated.
type ChangedEvent struct {
	Owner string    `json:"owner"`
	DID   string    `json:"did"`
	At    time.Time `json:"at"`
}
