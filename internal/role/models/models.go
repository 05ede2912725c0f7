package models

import (
	"time"

	"pixellocker/pkg/domain"
)

// Role is the effective role of a principal. A principal holding several
// grants reports the highest one: owner, then issuer, then verifier.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleIssuer   Role = "issuer"
	RoleVerifier Role = "verifier"
	RoleUser     Role = "user"
)

func (r Role) String() string { return string(r) }

// IsGrantable reports whether r can be granted and revoked by the owner.
func (r Role) IsGrantable() bool {
	return r == RoleIssuer || r == RoleVerifier
}

// Summary lists every role holder.
type Summary struct {
	Owner     domain.Address
	Issuers   []domain.Address
	Verifiers []domain.Address
}

const (
	AggregateType             = "role"
	EventRoleGranted          = "role_granted"
	EventRoleRevoked          = "role_revoked"
	EventOwnershipTransferred = "ownership_transferred"
)

// GrantEvent is the payload of role_granted and role_revoked.
type GrantEvent struct {
	Principal string    `json:"principal"`
	Role      string    `json:"role"`
	By        string    `json:"by"`
	At        time.Time `json:"at"`
}

// OwnershipEvent is the payload of ownership_transferred. Previous is empty
// for the bootstrap assignment.
type OwnershipEvent struct {
	Previous string    `json:"previous,omitempty"`
	Owner    string    `json:"owner"`
	At       time.Time `json:"at"`
}
