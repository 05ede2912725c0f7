package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pixellocker/internal/role/models"
	roleservice "pixellocker/internal/role/service"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/httputil"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/validation"
)

// Service defines the role operations used by the handler.
type Service interface {
	RoleOf(ctx context.Context, principal domain.Address) (models.Role, error)
	Summary(ctx context.Context) (*models.Summary, error)
	AddIssuer(ctx context.Context, caller, principal domain.Address) error
	RemoveIssuer(ctx context.Context, caller, principal domain.Address) error
	AddVerifier(ctx context.Context, caller, principal domain.Address) error
	RemoveVerifier(ctx context.Context, caller, principal domain.Address) error
	TransferOwnership(ctx context.Context, caller, newOwner domain.Address) error
}

// Handler wires role management endpoints to the role service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the owner-gated endpoints. The router must apply auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/roles/issuers/{principal}", h.grantHandler(h.service.AddIssuer, "add issuer"))
	r.Delete("/roles/issuers/{principal}", h.grantHandler(h.service.RemoveIssuer, "remove issuer"))
	r.Post("/roles/verifiers/{principal}", h.grantHandler(h.service.AddVerifier, "add verifier"))
	r.Delete("/roles/verifiers/{principal}", h.grantHandler(h.service.RemoveVerifier, "remove verifier"))
	r.Post("/roles/owner", h.HandleTransferOwnership)
}

func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/roles", h.HandleSummary)
	r.Get("/roles/{principal}", h.HandleRoleOf)
}

// RoleResponse is the effective role of a principal.
type RoleResponse struct {
	Principal string `json:"principal"`
	Role      string `json:"role"`
}

// SummaryResponse lists every role holder.
type SummaryResponse struct {
	Owner     string   `json:"owner"`
	Issuers   []string `json:"issuers"`
	Verifiers []string `json:"verifiers"`
}

// TransferOwnershipRequest is the body of POST /roles/owner.
type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner" validate:"required,eth_addr"`

	parsedNewOwner domain.Address
}

func (r *TransferOwnershipRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	owner, err := domain.ParseAddress(r.NewOwner)
	if err != nil {
		return err
	}
	r.parsedNewOwner = owner
	return nil
}

// HandleRoleOf handles GET /roles/{principal}.
func (h *Handler) HandleRoleOf(w http.ResponseWriter, r *http.Request) {
	principal, err := domain.ParseAddress(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := h.service.RoleOf(r.Context(), principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RoleResponse{Principal: principal.String(), Role: role.String()})
}

// HandleSummary handles GET /roles.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SummaryResponse{
		Owner:     summary.Owner.String(),
		Issuers:   addressStrings(summary.Issuers),
		Verifiers: addressStrings(summary.Verifiers),
	})
}

func (h *Handler) grantHandler(fn func(context.Context, domain.Address, domain.Address) error, op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		caller, err := httputil.RequirePrincipal(ctx, h.logger)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		principal, err := domain.ParseAddress(chi.URLParam(r, "principal"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if err := fn(ctx, caller, principal); err != nil {
			h.logger.WarnContext(ctx, op+" failed",
				"request_id", requestcontext.RequestID(ctx),
				"caller", caller,
				"principal", principal,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleTransferOwnership handles POST /roles/owner.
func (h *Handler) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequirePrincipal(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferOwnershipRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.TransferOwnership(ctx, caller, req.parsedNewOwner); err != nil {
		h.logger.WarnContext(ctx, "transfer ownership failed",
			"request_id", requestcontext.RequestID(ctx),
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RoleResponse{Principal: req.parsedNewOwner.String(), Role: models.RoleOwner.String()})
}

func addressStrings(in []domain.Address) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		out = append(out, a.String())
	}
	return out
}

var _ Service = (*roleservice.Service)(nil)
