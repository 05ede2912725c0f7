package models

import (
	"encoding/hex"
	"time"

	"pixellocker/pkg/domain"
)

// Credential is a ledger record. The credential document itself lives off-ledger
// at PayloadPointer; the ledger only attests issuance and revocation.
type Credential struct {
	ID             string
	Issuer         domain.Address
	Subject        domain.Address
	PayloadPointer string
	IssuedAt       time.Time
	IssuedHeight   uint64
	IsRevoked      bool
	RevokedAt      time.Time // zero until revoked
	RevokedHeight  uint64
}

// IsActive reports whether the credential exists on the ledger and is not revoked.
func (c *Credential) IsActive() bool {
	return c != nil && !c.IsRevoked
}

// IssueCommand carries a validated issuance. Issuer is always the authenticated caller.
type IssueCommand struct {
	Issuer         domain.Address
	Subject        domain.Address
	PayloadPointer string
	ID             string
}

// LedgerStats summarises the credential ledger.
type LedgerStats struct {
	Height uint64 `json:"height"`
	Count  int64  `json:"count"`
}

// Event types appended to the outbox.
const (
	AggregateType          = "credential"
	EventCredentialIssued  = "credential_issued"
	EventCredentialRevoked = "credential_revoked"
)

// IssuedEvent is the payload of credential_issued.
type IssuedEvent struct {
	ID             string    `json:"id"`
	Issuer         string    `json:"issuer"`
	Subject        string    `json:"subject"`
	PayloadPointer string    `json:"payload_pointer"`
	IssuedAt       time.Time `json:"issued_at"`
	Height         uint64    `json:"height"`
}

// RevokedEvent is the payload of credential_revoked.
type RevokedEvent struct {
	ID        string    `json:"id"`
	Issuer    string    `json:"issuer"`
	RevokedAt time.Time `json:"revoked_at"`
	Height    uint64    `json:"height"`
}

// DeriveID derives a credential id from a human-readable seed as the
// 0x-prefixed Keccak-256 digest of its UTF-8 bytes.
func DeriveID(seed string) string {
	return "0x" + hex.EncodeToString(domain.Keccak256([]byte(seed)))
}
