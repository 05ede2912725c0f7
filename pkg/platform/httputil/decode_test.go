package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pixellocker/pkg/domain-errors"
)

type plainRequest struct {
	Name string `json:"name"`
}

func (r *plainRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type preparedRequest struct {
	ID        string `json:"id"`
	sanitized bool
}

func (r *preparedRequest) Sanitize()  { r.sanitized = true; r.ID = strings.TrimSpace(r.ID) }
func (r *preparedRequest) Normalize() { r.ID = strings.ToLower(r.ID) }
func (r *preparedRequest) Validate() error {
	if r.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	return nil
}

func decode[T any](t *testing.T, body string) (*T, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	out, _ := DecodeAndPrepare[T](w, req, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return out, w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("runs sanitize, normalize and validate", func(t *testing.T) {
		out, _ := decode[preparedRequest](t, `{"id":"  ABC  "}`)
		require.NotNil(t, out)
		assert.True(t, out.sanitized)
		assert.Equal(t, "abc", out.ID)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		out, w := decode[plainRequest](t, `{invalid`)
		assert.Nil(t, out)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", errorBody(t, w)["error"])
	})

	t.Run("empty body is a bad request", func(t *testing.T) {
		out, w := decode[plainRequest](t, ``)
		assert.Nil(t, out)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("domain error from Validate keeps its code", func(t *testing.T) {
		_, w := decode[preparedRequest](t, `{"id":"   "}`)
		body := errorBody(t, w)
		assert.Equal(t, "invalid_input", body["error"])
		assert.Equal(t, "id is required", body["error_description"])
	})

	t.Run("plain error from Validate becomes validation_error", func(t *testing.T) {
		_, w := decode[plainRequest](t, `{"name":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", errorBody(t, w)["error"])
	})
}

func TestPrepareRequest_NonPreparable(t *testing.T) {
	assert.NoError(t, PrepareRequest(&struct{ X int }{X: 1}))
}
