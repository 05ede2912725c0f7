package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pixellocker/internal/credential/handler/mocks"
	"pixellocker/internal/credential/models"
	"pixellocker/pkg/domain"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/testutil"
)

type CredentialHandlerSuite struct {
	suite.Suite
}

func TestCredentialHandlerSuite(t *testing.T) {
	suite.Run(t, new(CredentialHandlerSuite))
}

func (s *CredentialHandlerSuite) TestIssue() {
	s.Run("creates credential for caller", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Issue(gomock.Any(), testutil.Alice, models.IssueCommand{
			Subject:        testutil.Bob,
			PayloadPointer: "ipfs://bafy",
			ID:             "cred-1",
		}).Return(&models.Credential{
			ID:             "cred-1",
			Issuer:         testutil.Alice,
			Subject:        testutil.Bob,
			PayloadPointer: "ipfs://bafy",
			IssuedAt:       testutil.FixedTime,
			IssuedHeight:   1,
		}, nil)

		w := serve(router, http.MethodPost, "/credentials", map[string]string{
			"id":              "cred-1",
			"subject":         "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
			"payload_pointer": "ipfs://bafy",
		}, testutil.Alice)

		s.Equal(http.StatusCreated, w.Code)
		var resp CredentialResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal("cred-1", resp.ID)
		s.Equal(testutil.Alice.String(), resp.Issuer)
		s.Nil(resp.RevokedAt)
	})

	s.Run("missing principal is unauthorized", func() {
		router, _ := newTestRouter(s.T())
		w := serve(router, http.MethodPost, "/credentials", map[string]string{"id": "x"}, "")
		s.assertError(w, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("bad subject is invalid input", func() {
		router, _ := newTestRouter(s.T())
		w := serve(router, http.MethodPost, "/credentials", map[string]string{
			"id": "cred-1", "subject": "not-an-address", "payload_pointer": "ipfs://bafy",
		}, testutil.Alice)
		s.assertError(w, http.StatusBadRequest, "invalid_input")
	})

	s.Run("empty payload pointer is invalid input", func() {
		router, _ := newTestRouter(s.T())
		w := serve(router, http.MethodPost, "/credentials", map[string]string{
			"id": "cred-1", "subject": testutil.Bob.String(),
		}, testutil.Alice)
		s.assertError(w, http.StatusBadRequest, "invalid_input")
	})

	s.Run("duplicate id is a conflict", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Issue(gomock.Any(), testutil.Alice, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "credential id already exists"))

		w := serve(router, http.MethodPost, "/credentials", map[string]string{
			"id": "cred-1", "subject": testutil.Bob.String(), "payload_pointer": "ipfs://bafy",
		}, testutil.Alice)
		s.assertError(w, http.StatusConflict, "conflict")
	})
}

func (s *CredentialHandlerSuite) TestRevoke() {
	s.Run("maps domain errors", func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{dErrors.New(dErrors.CodeNotFound, "credential not found"), http.StatusNotFound, "not_found"},
			{dErrors.New(dErrors.CodeForbidden, "only the issuer can revoke this credential"), http.StatusForbidden, "forbidden"},
			{dErrors.New(dErrors.CodeAlreadyRevoked, "credential has already been revoked"), http.StatusConflict, "already_revoked"},
		}
		for _, tc := range cases {
			router, svc := newTestRouter(s.T())
			svc.EXPECT().Revoke(gomock.Any(), testutil.Bob, "cred-1").Return(nil, tc.err)
			w := serve(router, http.MethodPost, "/credentials/cred-1/revoke", nil, testutil.Bob)
			s.assertError(w, tc.status, tc.code)
		}
	})

	s.Run("returns revoked record", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Revoke(gomock.Any(), testutil.Alice, "cred-1").Return(&models.Credential{
			ID: "cred-1", Issuer: testutil.Alice, Subject: testutil.Bob,
			IsRevoked: true, RevokedAt: testutil.FixedTime, RevokedHeight: 2,
		}, nil)

		w := serve(router, http.MethodPost, "/credentials/cred-1/revoke", nil, testutil.Alice)
		s.Equal(http.StatusOK, w.Code)
		var resp CredentialResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.True(resp.IsRevoked)
		s.Require().NotNil(resp.RevokedAt)
		s.True(testutil.FixedTime.Equal(*resp.RevokedAt))
	})
}

func (s *CredentialHandlerSuite) TestReads() {
	s.Run("status of unknown id is false", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Verify(gomock.Any(), "nope").Return(false, nil)

		w := serve(router, http.MethodGet, "/credentials/nope/status", nil, "")
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"id":"nope","valid":false}`, w.Body.String())
	})

	s.Run("list by subject renders empty array", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().BySubject(gomock.Any(), testutil.Dave).Return(nil, nil)

		w := serve(router, http.MethodGet, "/credentials?subject="+testutil.Dave.String(), nil, "")
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"ids":[]}`, w.Body.String())
	})

	s.Run("list requires exactly one filter", func() {
		router, _ := newTestRouter(s.T())
		w := serve(router, http.MethodGet, "/credentials", nil, "")
		s.assertError(w, http.StatusBadRequest, "invalid_input")

		w = serve(router, http.MethodGet, "/credentials?issuer="+testutil.Alice.String()+"&subject="+testutil.Bob.String(), nil, "")
		s.assertError(w, http.StatusBadRequest, "invalid_input")
	})

	s.Run("ledger stats", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Stats(gomock.Any()).Return(&models.LedgerStats{Height: 4, Count: 3}, nil)

		w := serve(router, http.MethodGet, "/ledger", nil, "")
		s.JSONEq(`{"height":4,"count":3}`, w.Body.String())
	})
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterPublic(r)
	return r, svc
}

func serve(router http.Handler, method, target string, body any, caller domain.Address) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if !caller.IsNil() {
		req = req.WithContext(requestcontext.WithPrincipal(req.Context(), caller))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func (s *CredentialHandlerSuite) assertError(w *httptest.ResponseRecorder, status int, code string) {
	s.Equal(status, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(code, resp["error"])
}
