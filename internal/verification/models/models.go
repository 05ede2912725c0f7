package models

import (
	"encoding/json"
	"time"
)

// OnChainStatus is the ledger state of the credential a request resolved to.
type OnChainStatus string

const (
	OnChainNotFound OnChainStatus = "not-found"
	OnChainActive   OnChainStatus = "active"
	OnChainRevoked  OnChainStatus = "revoked"
)

// ExpiryStatus is the outcome of comparing a document's expiresAt to the evaluation time.
type ExpiryStatus string

const (
	ExpiryNone       ExpiryStatus = "no-expiry"
	ExpiryNotExpired ExpiryStatus = "not-yet-expired"
	ExpiryExpired    ExpiryStatus = "expired"
)

// Verdict reasons, in the order they are reported.
const (
	ReasonNotFound     = "credential not found on ledger"
	ReasonRevoked      = "credential has been revoked"
	ReasonExpired      = "credential has expired"
	ReasonProofMissing = "credential proof is missing"
)

// Limitations report checks that could not be performed.
const (
	LimitationExpiryNotEvaluated = "expiry not evaluated: no credential document supplied"
	LimitationProofNotEvaluated  = "proof not evaluated: no credential document supplied"
)

// Request asks for a verdict on exactly one of Document, Hash or CredentialID.
type Request struct {
	Document     json.RawMessage
	Hash         string
	CredentialID string

	// MinLedgerHeight rejects the request with stale_read when the ledger is behind it.
	MinLedgerHeight uint64
	// At is the evaluation time. Zero means the request time.
	At time.Time
}

// Verdict is the structured outcome of a verification. It is never persisted.
type Verdict struct {
	Valid         bool
	OnChainStatus OnChainStatus
	ExpiryStatus  ExpiryStatus
	Reasons       []string
	CredentialID  string
	CheckedAt     time.Time
	LedgerHeight  uint64
	Limitations   []string
}

// Resolution is the ledger half of a verdict: what the lookup key resolved to.
// It is what the verdict cache stores, so expiry is always evaluated fresh.
type Resolution struct {
	CredentialID string        `json:"credential_id,omitempty"`
	Status       OnChainStatus `json:"status"`
	Height       uint64        `json:"height"`
}
