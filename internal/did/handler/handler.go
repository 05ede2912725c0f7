package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pixellocker/internal/did/models"
	didservice "pixellocker/internal/did/service"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/httputil"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/validation"
)

// Service defines the directory operations used by the handler.
type Service interface {
	Register(ctx context.Context, owner domain.Address, did string) (*models.Record, error)
	Update(ctx context.Context, owner domain.Address, did string) (*models.Record, error)
	Lookup(ctx context.Context, owner domain.Address) (*models.Record, error)
}

// Handler wires DID directory endpoints to the directory service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the owner-scoped mutations. The router must apply auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/dids", h.HandleRegister)
	r.Put("/dids", h.HandleUpdate)
}

func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/dids/{owner}", h.HandleGet)
}

// DIDRequest is the body of both register and update. Blank values reach the
// service so update can report a missing record first.
type DIDRequest struct {
	DID string `json:"did" validate:"max=512"`
}

func (r *DIDRequest) Validate() error {
	return validation.Validate(r)
}

// DIDResponse describes an owner's directory entry. DID is "" when Exists is false.
type DIDResponse struct {
	Owner        string     `json:"owner"`
	DID          string     `json:"did"`
	Exists       bool       `json:"exists"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func toResponse(owner domain.Address, rec *models.Record) DIDResponse {
	if rec == nil {
		return DIDResponse{Owner: owner.String()}
	}
	registered, updated := rec.RegisteredAt.UTC(), rec.UpdatedAt.UTC()
	return DIDResponse{
		Owner:        rec.Owner.String(),
		DID:          rec.DID,
		Exists:       true,
		RegisteredAt: &registered,
		UpdatedAt:    &updated,
	}
}

// HandleRegister handles POST /dids.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "register", http.StatusCreated, h.service.Register)
}

// HandleUpdate handles PUT /dids.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "update", http.StatusOK, h.service.Update)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op string, status int,
	fn func(context.Context, domain.Address, string) (*models.Record, error),
) {
	ctx := r.Context()
	owner, err := httputil.RequirePrincipal(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DIDRequest](w, r, h.logger)
	if !ok {
		return
	}

	rec, err := fn(ctx, owner, req.DID)
	if err != nil {
		h.logger.WarnContext(ctx, "did "+op+" failed",
			"request_id", requestcontext.RequestID(ctx),
			"owner", owner,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, toResponse(owner, rec))
}

// HandleGet handles GET /dids/{owner}. Unknown owners are not an error.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.service.Lookup(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(owner, rec))
}

var _ Service = (*didservice.Service)(nil)
