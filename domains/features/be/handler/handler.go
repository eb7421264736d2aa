package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nimbuserp/nimbus-saas/domains/features/be/service"
	"github.com/nimbuserp/nimbus-saas/platform/go/httpx"
)

// Handler exposes the billing entitlements webhook and the admin listing.
type Handler struct {
	svc      *service.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("features service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// WebhookRoutes mounts the billing webhook.
func (h *Handler) WebhookRoutes(r chi.Router) {
	r.Post("/billing/entitlements", h.Entitlements)
}

// AdminRoutes mounts the admin entitlement listing.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/tenants/{tenantCode}/features", h.List)
}

type entitlementChange struct {
	Feature string `json:"feature" validate:"required,max=64"`
	Enabled bool   `json:"enabled"`
}

type entitlementsRequest struct {
	TenantCode string              `json:"tenant_code" validate:"required,max=63"`
	Changes    []entitlementChange `json:"changes" validate:"required,min=1,dive"`
}

type featureResponse struct {
	Feature   string    `json:"feature"`
	Enabled   bool      `json:"enabled"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type entitlementsResponse struct {
	TenantCode string            `json:"tenantCode"`
	Applied    []featureResponse `json:"applied"`
}

// Entitlements implements POST /webhooks/billing/entitlements. Deliveries for
// tenants still provisioning are refused with 409 so the billing system
// redelivers once the tenant is ready.
func (h *Handler) Entitlements(w http.ResponseWriter, r *http.Request) {
	var req entitlementsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		httpx.Problem(w, r, httpx.ProblemDetails{
			Type:   httpx.ProblemTypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: "request body must be valid JSON",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, r, httpx.ProblemDetails{
			Type:   httpx.ProblemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}

	changes := make([]service.EntitlementChange, 0, len(req.Changes))
	for _, c := range req.Changes {
		changes = append(changes, service.EntitlementChange{Feature: c.Feature, Enabled: c.Enabled})
	}

	applied, err := h.svc.Apply(r.Context(), req.TenantCode, "billing", changes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTenantNotFound):
			httpx.NotFound(w, r, fmt.Sprintf("tenant %s not found", req.TenantCode))
		case errors.Is(err, service.ErrTenantNotReady):
			httpx.Problem(w, r, httpx.ProblemDetails{
				Type:   httpx.ProblemTypeConflict,
				Title:  "Tenant not ready",
				Status: http.StatusConflict,
				Detail: "tenant is still provisioning; redeliver once it is ready",
			})
		default:
			h.logger.Error("entitlement delivery failed",
				zap.String("tenant_code", req.TenantCode), zap.Error(err))
			httpx.Internal(w, r)
		}
		return
	}

	h.logger.Info("entitlements applied",
		zap.String("tenant_code", req.TenantCode), zap.Int("count", len(applied)))

	render.JSON(w, r, entitlementsResponse{
		TenantCode: req.TenantCode,
		Applied:    toFeatureResponses(applied),
	})
}

// List implements GET /admin/tenants/{tenantCode}/features.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "tenantCode")

	features, err := h.svc.List(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			httpx.NotFound(w, r, fmt.Sprintf("tenant %s not found", code))
			return
		}
		h.logger.Error("feature list failed", zap.String("tenant_code", code), zap.Error(err))
		httpx.Internal(w, r)
		return
	}

	render.JSON(w, r, entitlementsResponse{TenantCode: code, Applied: toFeatureResponses(features)})
}

func toFeatureResponses(features []service.Feature) []featureResponse {
	out := make([]featureResponse, 0, len(features))
	for _, f := range features {
		out = append(out, featureResponse{
			Feature:   f.Feature,
			Enabled:   f.Enabled,
			Source:    f.Source,
			UpdatedAt: f.UpdatedAt,
		})
	}
	return out
}
