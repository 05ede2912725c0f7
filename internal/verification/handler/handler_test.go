package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pixellocker/internal/verification/handler/mocks"
	"pixellocker/internal/verification/models"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterPublic(s.router)
}

func (s *HandlerSuite) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func activeVerdict(id string) *models.Verdict {
	return &models.Verdict{
		Valid:         true,
		OnChainStatus: models.OnChainActive,
		ExpiryStatus:  models.ExpiryNone,
		Reasons:       []string{},
		CredentialID:  id,
		CheckedAt:     testutil.FixedTime,
		LedgerHeight:  7,
		Limitations:   []string{models.LimitationExpiryNotEvaluated},
	}
}

func (s *HandlerSuite) TestVerify() {
	s.Run("maps request and renders verdict", func() {
		s.SetupTest()
		at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req models.Request) (*models.Verdict, error) {
				s.Equal("degree-1", req.CredentialID)
				s.Equal(uint64(3), req.MinLedgerHeight)
				s.True(at.Equal(req.At))
				return activeVerdict("degree-1"), nil
			})

		w := s.post("/verify", `{"credential_id":"degree-1","min_ledger_height":3,"at":"2026-05-01T00:00:00Z"}`)
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{
			"valid": true,
			"on_chain_status": "active",
			"expiry_status": "no-expiry",
			"reasons": [],
			"credential_id": "degree-1",
			"checked_at": "2026-06-01T12:00:00Z",
			"ledger_height": 7,
			"limitations": ["expiry not evaluated: no credential document supplied"]
		}`, w.Body.String())
	})

	s.Run("passes the document through untouched", func() {
		s.SetupTest()
		s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req models.Request) (*models.Verdict, error) {
				s.JSONEq(`{"id":"x","expiresAt":"2030-01-01T00:00:00Z"}`, string(req.Document))
				s.True(req.At.IsZero())
				return &models.Verdict{OnChainStatus: models.OnChainNotFound, ExpiryStatus: models.ExpiryNotExpired,
					Reasons: []string{models.ReasonNotFound}, CheckedAt: testutil.FixedTime}, nil
			})

		w := s.post("/verify", `{"document":{"id":"x","expiresAt":"2030-01-01T00:00:00Z"}}`)
		s.Equal(http.StatusOK, w.Code)
		var resp VerdictResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.False(resp.Valid)
		s.Equal([]string{models.ReasonNotFound}, resp.Reasons)
		s.Equal([]string{}, resp.Limitations)
	})

	s.Run("stale read", func() {
		s.SetupTest()
		s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeStaleRead, "ledger height 1 is behind requested height 5"))

		w := s.post("/verify", `{"credential_id":"degree-1","min_ledger_height":5}`)
		s.Equal(http.StatusPreconditionFailed, w.Code)
		s.Contains(w.Body.String(), "stale_read")
	})

	s.Run("rejects oversized id before the service", func() {
		s.SetupTest()
		long := bytes.Repeat([]byte("a"), 129)
		w := s.post("/verify", `{"credential_id":"`+string(long)+`"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("malformed body", func() {
		s.SetupTest()
		w := s.post("/verify", `{`)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestVerifyBatch() {
	s.Run("renders verdicts in order", func() {
		s.SetupTest()
		s.service.EXPECT().VerifyBatch(gomock.Any(), []models.Request{{CredentialID: "a"}, {Hash: "h"}}).
			Return([]*models.Verdict{activeVerdict("a"), activeVerdict("b")}, nil)

		w := s.post("/verify/batch", `{"requests":[{"credential_id":"a"},{"hash":"h"}]}`)
		s.Equal(http.StatusOK, w.Code)
		var resp BatchResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Require().Len(resp.Verdicts, 2)
		s.Equal("a", resp.Verdicts[0].CredentialID)
		s.Equal("b", resp.Verdicts[1].CredentialID)
	})

	s.Run("empty batch", func() {
		s.SetupTest()
		w := s.post("/verify/batch", `{"requests":[]}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("service failure", func() {
		s.SetupTest()
		s.service.EXPECT().VerifyBatch(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidInput, "request 0: exactly one of document, hash or credential_id is required"))

		w := s.post("/verify/batch", `{"requests":[{}]}`)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "invalid_input")
	})
}
