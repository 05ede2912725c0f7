package document

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pixellocker/pkg/domain-errors"
)

func TestParse(t *testing.T) {
	t.Run("extracts verification fields", func(t *testing.T) {
		doc, err := Parse(json.RawMessage(`{"id":" cred-1 ","expiresAt":"2027-01-01T00:00:00Z","proof":{"type":"Ed25519Signature2020"}}`))
		require.NoError(t, err)
		assert.Equal(t, "cred-1", doc.ID)
		require.NotNil(t, doc.ExpiresAt)
		assert.True(t, doc.ExpiresAt.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
		assert.True(t, doc.HasProof)
		assert.Len(t, doc.Hash, 64)
	})

	t.Run("null and empty expiry mean no expiry", func(t *testing.T) {
		for _, raw := range []string{`{"expiresAt":null}`, `{"expiresAt":""}`, `{}`} {
			doc, err := Parse(json.RawMessage(raw))
			require.NoError(t, err, raw)
			assert.Nil(t, doc.ExpiresAt, raw)
			assert.False(t, doc.HasProof, raw)
			assert.Empty(t, doc.ID, raw)
		}
	})

	t.Run("non-string id is ignored", func(t *testing.T) {
		doc, err := Parse(json.RawMessage(`{"id":42}`))
		require.NoError(t, err)
		assert.Empty(t, doc.ID)
	})

	t.Run("accepts ISO 8601 expiry shapes, zoneless as UTC", func(t *testing.T) {
		cases := map[string]time.Time{
			"2027-01-01T09:30:00+02:00":  time.Date(2027, 1, 1, 7, 30, 0, 0, time.UTC),
			"2027-01-01T07:30:00.25Z":    time.Date(2027, 1, 1, 7, 30, 0, 250_000_000, time.UTC),
			"2027-01-01 07:30:00Z":       time.Date(2027, 1, 1, 7, 30, 0, 0, time.UTC),
			"2027-01-01T07:30:00":        time.Date(2027, 1, 1, 7, 30, 0, 0, time.UTC),
			"2027-01-01T07:30:00.123456": time.Date(2027, 1, 1, 7, 30, 0, 123_456_000, time.UTC),
			"2027-01-01 07:30:00":        time.Date(2027, 1, 1, 7, 30, 0, 0, time.UTC),
			"2027-01-01T07:30":           time.Date(2027, 1, 1, 7, 30, 0, 0, time.UTC),
			"2027-01-01":                 time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		for in, want := range cases {
			raw, err := json.Marshal(map[string]string{"expiresAt": in})
			require.NoError(t, err)
			doc, err := Parse(raw)
			require.NoError(t, err, in)
			require.NotNil(t, doc.ExpiresAt, in)
			assert.Equal(t, want, *doc.ExpiresAt, in)
		}
	})

	t.Run("rejects malformed documents", func(t *testing.T) {
		for _, raw := range []string{`[]`, `"x"`, `null`, `{`, `{"expiresAt":"tomorrow"}`, `{"expiresAt":"2027-13-01"}`, `{"expiresAt":1735689600}`} {
			_, err := Parse(json.RawMessage(raw))
			require.Error(t, err, raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), raw)
		}
	})
}

func TestContentHash(t *testing.T) {
	// Digest of {"b":{"a":null,"z":1},"emoji":"😀","id":"cred-1","n":[1,2.5,true],"name":"Zoë"}
	const want = "701352f850b85c34870ae8028338aa27afb694e4178980e5bc17868d692bb825"

	t.Run("matches the canonical digest", func(t *testing.T) {
		got, err := ContentHash(json.RawMessage(`{"id":"cred-1","name":"Zoë","b":{"z":1,"a":null},"a":null,"emoji":"😀","n":[1,2.5,true]}`))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("independent of key order and whitespace", func(t *testing.T) {
		got, err := ContentHash(json.RawMessage(`{
			"n": [1, 2.5, true],
			"emoji": "😀",
			"b": {"a": null, "z": 1},
			"id": "cred-1",
			"name": "Zoë"
		}`))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("nested nulls are significant", func(t *testing.T) {
		got, err := ContentHash(json.RawMessage(`{"id":"cred-1","name":"Zoë","b":{"z":1},"emoji":"😀","n":[1,2.5,true]}`))
		require.NoError(t, err)
		assert.NotEqual(t, want, got)
	})

	t.Run("DEL and non-ASCII are escaped", func(t *testing.T) {
		var buf bytes.Buffer
		writeString(&buf, "a\x7fb~é")
		assert.Equal(t, `"a\u007fb~\u00e9"`, buf.String())
	})

	t.Run("equal floats hash equally", func(t *testing.T) {
		a, err := ContentHash(json.RawMessage(`{"n":2.50,"m":1e2}`))
		require.NoError(t, err)
		b, err := ContentHash(json.RawMessage(`{"n":2.5,"m":100.0}`))
		require.NoError(t, err)
		assert.Equal(t, a, b)

		c, err := ContentHash(json.RawMessage(`{"n":2.5,"m":100}`))
		require.NoError(t, err)
		assert.NotEqual(t, a, c, "integers and floats stay distinct")
	})
}

func TestFormatNumber(t *testing.T) {
	cases := map[string]string{
		"0":                        "0",
		"-0":                       "0",
		"42":                       "42",
		"-17":                      "-17",
		"123456789012345678901234": "123456789012345678901234",
		"2.50":                     "2.5",
		"1.0":                      "1.0",
		"-0.0":                     "-0.0",
		"1e2":                      "100.0",
		"1E-5":                     "1e-05",
		"0.0001":                   "0.0001",
		"0.00012":                  "0.00012",
		"1e15":                     "1000000000000000.0",
		"1e16":                     "1e+16",
		"123456789012345678.0":     "1.2345678901234568e+17",
		"1.5e300":                  "1.5e+300",
		"0.1":                      "0.1",
		"-3.14159":                 "-3.14159",
		"1e400":                    "Infinity",
		"-1e400":                   "-Infinity",
	}
	for in, want := range cases {
		got, err := formatNumber(json.Number(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
