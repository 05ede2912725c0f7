package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pixellocker/internal/credential/models"
	credentialservice "pixellocker/internal/credential/service"
	"pixellocker/pkg/domain"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/platform/httputil"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/validation"
)

// Service defines the ledger operations used by the handler.
type Service interface {
	Issue(ctx context.Context, caller domain.Address, cmd models.IssueCommand) (*models.Credential, error)
	Revoke(ctx context.Context, caller domain.Address, id string) (*models.Credential, error)
	Verify(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*models.Credential, error)
	ByIssuer(ctx context.Context, issuer domain.Address) ([]string, error)
	BySubject(ctx context.Context, subject domain.Address) ([]string, error)
	Stats(ctx context.Context) (*models.LedgerStats, error)
}

// Handler wires credential ledger endpoints to the ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the mutating endpoints. The router must apply auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.HandleIssue)
	r.Post("/credentials/{id}/revoke", h.HandleRevoke)
}

// RegisterPublic mounts the read-only ledger endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/credentials", h.HandleList)
	r.Get("/credentials/{id}", h.HandleGet)
	r.Get("/credentials/{id}/status", h.HandleStatus)
	r.Get("/ledger", h.HandleLedger)
}

// IssueRequest is the request body for credential issuance.
type IssueRequest struct {
	ID             string `json:"id" validate:"required,max=128"`
	Subject        string `json:"subject" validate:"required,eth_addr"`
	PayloadPointer string `json:"payload_pointer" validate:"required,max=2048"`

	parsedSubject domain.Address
}

func (r *IssueRequest) Sanitize() {
	r.Subject = strings.TrimSpace(r.Subject)
}

func (r *IssueRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	subject, err := domain.ParseAddress(r.Subject)
	if err != nil {
		return err
	}
	r.parsedSubject = subject
	return nil
}

// CredentialResponse is the JSON form of a ledger record.
type CredentialResponse struct {
	ID             string     `json:"id"`
	Issuer         string     `json:"issuer"`
	Subject        string     `json:"subject"`
	PayloadPointer string     `json:"payload_pointer"`
	IssuedAt       time.Time  `json:"issued_at"`
	IssuedHeight   uint64     `json:"issued_height"`
	IsRevoked      bool       `json:"is_revoked"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	RevokedHeight  uint64     `json:"revoked_height,omitempty"`
}

func toResponse(c *models.Credential) CredentialResponse {
	resp := CredentialResponse{
		ID:             c.ID,
		Issuer:         c.Issuer.String(),
		Subject:        c.Subject.String(),
		PayloadPointer: c.PayloadPointer,
		IssuedAt:       c.IssuedAt.UTC(),
		IssuedHeight:   c.IssuedHeight,
		IsRevoked:      c.IsRevoked,
		RevokedHeight:  c.RevokedHeight,
	}
	if c.IsRevoked {
		at := c.RevokedAt.UTC()
		resp.RevokedAt = &at
	}
	return resp
}

// StatusResponse is the ledger-only verification result.
type StatusResponse struct {
	ID    string `json:"id"`
	Valid bool   `json:"valid"`
}

// ListResponse carries credential ids in issuance order.
type ListResponse struct {
	IDs []string `json:"ids"`
}

// HandleIssue handles POST /credentials.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequirePrincipal(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger)
	if !ok {
		return
	}

	credential, err := h.service.Issue(ctx, caller, models.IssueCommand{
		Subject:        req.parsedSubject,
		PayloadPointer: req.PayloadPointer,
		ID:             req.ID,
	})
	if err != nil {
		h.logFailure(ctx, "failed to issue credential", req.ID, caller, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(credential))
}

// HandleRevoke handles POST /credentials/{id}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequirePrincipal(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id := chi.URLParam(r, "id")

	credential, err := h.service.Revoke(ctx, caller, id)
	if err != nil {
		h.logFailure(ctx, "failed to revoke credential", id, caller, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(credential))
}

// HandleGet handles GET /credentials/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	credential, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(credential))
}

// HandleStatus handles GET /credentials/{id}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	valid, err := h.service.Verify(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{ID: id, Valid: valid})
}

// HandleList handles GET /credentials?issuer= and GET /credentials?subject=.
// Exactly one filter is required.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuer := r.URL.Query().Get("issuer")
	subject := r.URL.Query().Get("subject")
	if (issuer == "") == (subject == "") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "exactly one of issuer or subject is required"))
		return
	}

	var (
		ids []string
		err error
	)
	if issuer != "" {
		var addr domain.Address
		if addr, err = domain.ParseAddress(issuer); err == nil {
			ids, err = h.service.ByIssuer(ctx, addr)
		}
	} else {
		var addr domain.Address
		if addr, err = domain.ParseAddress(subject); err == nil {
			ids, err = h.service.BySubject(ctx, addr)
		}
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{IDs: ids})
}

// HandleLedger handles GET /ledger.
func (h *Handler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) logFailure(ctx context.Context, msg, id string, caller domain.Address, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", id,
			"caller", caller,
			"error", err,
		)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", id,
		"caller", caller,
		"error", err,
	)
}

var _ Service = (*credentialservice.Service)(nil)
