package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pixellocker/internal/verification/models"
	verificationservice "pixellocker/internal/verification/service"
	"pixellocker/pkg/platform/httputil"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/validation"
)

// Service defines the verification operations used by the handler.
type Service interface {
	Verify(ctx context.Context, req models.Request) (*models.Verdict, error)
	VerifyBatch(ctx context.Context, reqs []models.Request) ([]*models.Verdict, error)
}

// Handler exposes verification over HTTP. Both routes are public.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/verify", h.HandleVerify)
	r.Post("/verify/batch", h.HandleVerifyBatch)
}

// VerifyRequest carries exactly one of document, hash or credential_id.
type VerifyRequest struct {
	Document        json.RawMessage `json:"document,omitempty"`
	Hash            string          `json:"hash,omitempty" validate:"max=2048"`
	CredentialID    string          `json:"credential_id,omitempty" validate:"max=128"`
	MinLedgerHeight uint64          `json:"min_ledger_height,omitempty"`
	At              *time.Time      `json:"at,omitempty"`
}

func (r *VerifyRequest) Validate() error {
	return validation.Validate(r)
}

func (r *VerifyRequest) toModel() models.Request {
	req := models.Request{
		Document:        r.Document,
		Hash:            r.Hash,
		CredentialID:    r.CredentialID,
		MinLedgerHeight: r.MinLedgerHeight,
	}
	if r.At != nil {
		req.At = *r.At
	}
	return req
}

// BatchRequest is the body of POST /verify/batch.
type BatchRequest struct {
	Requests []VerifyRequest `json:"requests" validate:"required,min=1,max=100,dive"`
}

func (r *BatchRequest) Validate() error {
	return validation.Validate(r)
}

// VerdictResponse is the JSON form of a verdict.
type VerdictResponse struct {
	Valid         bool      `json:"valid"`
	OnChainStatus string    `json:"on_chain_status"`
	ExpiryStatus  string    `json:"expiry_status"`
	Reasons       []string  `json:"reasons"`
	CredentialID  string    `json:"credential_id,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
	LedgerHeight  uint64    `json:"ledger_height"`
	Limitations   []string  `json:"limitations"`
}

// BatchResponse lists verdicts in request order.
type BatchResponse struct {
	Verdicts []VerdictResponse `json:"verdicts"`
}

func toResponse(v *models.Verdict) VerdictResponse {
	resp := VerdictResponse{
		Valid:         v.Valid,
		OnChainStatus: string(v.OnChainStatus),
		ExpiryStatus:  string(v.ExpiryStatus),
		Reasons:       v.Reasons,
		CredentialID:  v.CredentialID,
		CheckedAt:     v.CheckedAt.UTC(),
		LedgerHeight:  v.LedgerHeight,
		Limitations:   v.Limitations,
	}
	if resp.Reasons == nil {
		resp.Reasons = []string{}
	}
	if resp.Limitations == nil {
		resp.Limitations = []string{}
	}
	return resp
}

// HandleVerify handles POST /verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger)
	if !ok {
		return
	}

	verdict, err := h.service.Verify(ctx, req.toModel())
	if err != nil {
		h.logger.WarnContext(ctx, "verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(verdict))
}

// HandleVerifyBatch handles POST /verify/batch.
func (h *Handler) HandleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger)
	if !ok {
		return
	}

	reqs := make([]models.Request, 0, len(req.Requests))
	for i := range req.Requests {
		reqs = append(reqs, req.Requests[i].toModel())
	}
	verdicts, err := h.service.VerifyBatch(ctx, reqs)
	if err != nil {
		h.logger.WarnContext(ctx, "batch verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"batch_size", len(reqs),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := BatchResponse{Verdicts: make([]VerdictResponse, 0, len(verdicts))}
	for _, v := range verdicts {
		resp.Verdicts = append(resp.Verdicts, toResponse(v))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

var _ Service = (*verificationservice.Service)(nil)
