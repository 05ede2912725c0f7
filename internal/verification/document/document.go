// Package document parses credential documents submitted for verification and
// derives their content hash.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	dErrors "pixellocker/pkg/domain-errors"
)

var errBadTimestamp = dErrors.New(dErrors.CodeInvalidInput, "expiresAt must be an ISO 8601 timestamp")

// timestampLayouts accept RFC 3339 plus the ISO 8601 shapes issuers commonly
// emit: a space separator, minute precision, a bare date, or no zone at all.
// Fractional seconds are accepted after the seconds field of any layout.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp reads timestamps without a zone as UTC.
func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errBadTimestamp
}

// Document is the subset of a credential document the verifier inspects.
type Document struct {
	// ID is the document's "id" field, empty when absent or not a string.
	ID string
	// ExpiresAt is nil when the document carries no expiry.
	ExpiresAt *time.Time
	HasProof  bool
	// Hash is the hex SHA-256 of the canonical encoding.
	Hash string
}

// Parse decodes raw as a JSON object and extracts the fields used for verification.
func Parse(raw json.RawMessage) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document must be a JSON object")
	}

	doc := &Document{}
	if id, ok := fields["id"].(string); ok {
		doc.ID = strings.TrimSpace(id)
	}
	if proof, ok := fields["proof"]; ok && proof != nil {
		doc.HasProof = true
	}
	switch v := fields["expiresAt"].(type) {
	case nil:
	case string:
		if v != "" {
			t, err := parseTimestamp(v)
			if err != nil {
				return nil, err
			}
			doc.ExpiresAt = &t
		}
	default:
		return nil, errBadTimestamp
	}

	hash, err := contentHash(fields)
	if err != nil {
		return nil, err
	}
	doc.Hash = hash
	return doc, nil
}

// ContentHash returns the hex SHA-256 of raw's canonical encoding.
func ContentHash(raw json.RawMessage) (string, error) {
	doc, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return doc.Hash, nil
}

// contentHash drops top-level null members, sorts keys at every depth and
// writes compact, ASCII-only JSON before hashing.
func contentHash(fields map[string]any) (string, error) {
	top := make(map[string]any, len(fields))
	for k, v := range fields {
		if v != nil {
			top[k] = v
		}
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, top); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "document cannot be canonicalized")
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		n, err := formatNumber(val)
		if err != nil {
			return err
		}
		buf.WriteString(n)
	case string:
		writeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported JSON value %T", v)
	}
	return nil
}

// writeString escapes like the common canonical-JSON producers: control
// characters, DEL and everything outside ASCII as \uXXXX, surrogate pairs
// included.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r < 0x20:
				fmt.Fprintf(buf, `\u%04x`, r)
			case r < 0x7f:
				buf.WriteRune(r)
			case r <= 0xffff:
				fmt.Fprintf(buf, `\u%04x`, r)
			default:
				r -= 0x10000
				fmt.Fprintf(buf, `\u%04x\u%04x`, 0xd800+(r>>10), 0xdc00+(r&0x3ff))
			}
		}
	}
	buf.WriteByte('"')
}

// formatNumber keeps integer literals exact and rewrites any literal with a
// fraction or exponent as the shortest round-tripping float64: fixed notation
// with at least one fractional digit for decimal exponents -4 through 15,
// otherwise d.ddde±XX. Out-of-range values become Infinity.
func formatNumber(n json.Number) (string, error) {
	lit := n.String()
	if !strings.ContainsAny(lit, ".eE") {
		if strings.TrimLeft(lit, "-0") == "" {
			return "0", nil
		}
		return lit, nil
	}

	f, err := strconv.ParseFloat(lit, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return "", fmt.Errorf("invalid number %q: %w", lit, err)
	}
	switch {
	case math.IsInf(f, 1):
		return "Infinity", nil
	case math.IsInf(f, -1):
		return "-Infinity", nil
	}

	sign := ""
	if math.Signbit(f) {
		sign = "-"
		f = -f
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.Replace(mantissa, ".", "", 1)
	e, err := strconv.Atoi(exp)
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", lit, err)
	}

	point := e + 1
	switch {
	case point <= -4 || point > 16:
		out := digits[:1]
		if len(digits) > 1 {
			out += "." + digits[1:]
		}
		expSign := "+"
		if e < 0 {
			expSign = "-"
			e = -e
		}
		return fmt.Sprintf("%s%se%s%02d", sign, out, expSign, e), nil
	case point <= 0:
		return sign + "0." + strings.Repeat("0", -point) + digits, nil
	case point >= len(digits):
		return sign + digits + strings.Repeat("0", point-len(digits)) + ".0", nil
	default:
		return sign + digits[:point] + "." + digits[point:], nil
	}
}
