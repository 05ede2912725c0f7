// Package domain provides type-safe identifiers shared across bounded contexts.
package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "pixellocker/pkg/domain-errors"
)

const addressHexLen = 40

// Address identifies a principal (account) on the ledger.
// The zero value is the null principal.
type Address string

// ZeroAddress is the canonical form of the null principal.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates an account address and returns its EIP-55 checksummed form.
// Lower- and upper-case inputs are accepted as-is; mixed-case input must carry a valid checksum.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must start with 0x")
	}
	body := s[2:]
	if len(body) != addressHexLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be 20 bytes")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be hex encoded")
	}

	checksummed := checksum(strings.ToLower(body))
	if isMixedCase(body) && "0x"+body != checksummed {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address checksum mismatch")
	}
	return Address(checksummed), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string { return string(a) }

// Canonical returns the EIP-55 form of a well-formed address whatever its case,
// so it can key indexes that Equal would match. Malformed values are returned
// unchanged.
func (a Address) Canonical() Address {
	s := strings.TrimSpace(string(a))
	if len(s) != 2+addressHexLen || (s[:2] != "0x" && s[:2] != "0X") {
		return a
	}
	body := strings.ToLower(s[2:])
	if _, err := hex.DecodeString(body); err != nil {
		return a
	}
	return Address(checksum(body))
}

// IsNil reports whether a is empty or the zero address.
func (a Address) IsNil() bool {
	return a == "" || strings.EqualFold(string(a), string(ZeroAddress))
}

// Equal compares addresses case-insensitively.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

// Keccak256 returns the legacy Keccak-256 digest used by EVM tooling.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// checksum applies EIP-55 mixed-case encoding to a lower-case hex body.
func checksum(lowerHex string) string {
	digest := hex.EncodeToString(Keccak256([]byte(lowerHex)))
	out := make([]byte, len(lowerHex))
	for i := 0; i < len(lowerHex); i++ {
		c := lowerHex[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
