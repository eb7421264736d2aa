package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
	"github.com/nimbuserp/nimbus-saas/platform/go/auth"
	"github.com/nimbuserp/nimbus-saas/platform/go/httpx"
)

// Retry refusal reasons surfaced to clients.
const (
	reasonNotFound            = "not_found"
	reasonNotFailed           = "not_failed"
	reasonMaxAttemptsExceeded = "max_attempts_exceeded"
)

// Handler exposes provisioning status and retry, for customers (tenant taken
// from the token) and platform admins (tenant taken from the URL).
type Handler struct {
	reporter *service.StatusReporter
	retry    *service.Retry
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(reporter *service.StatusReporter, retry *service.Retry, logger *zap.Logger) *Handler {
	if reporter == nil {
		panic("status reporter is required")
	}
	if retry == nil {
		panic("retry controller is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{reporter: reporter, retry: retry, logger: logger}
}

// Routes mounts the customer-facing endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/provisioning/status", h.Status)
	r.Post("/provisioning/retry", h.Retry)
}

// AdminRoutes mounts the admin endpoints addressing any tenant by code.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/tenants/{tenantCode}/provisioning", h.AdminStatus)
	r.Post("/tenants/{tenantCode}/provisioning/retry", h.AdminRetry)
}

// Status implements GET /provisioning/status for the authenticated tenant.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	code, ok := tenantFromToken(w, r)
	if !ok {
		return
	}
	h.renderStatus(w, r, code)
}

// AdminStatus implements GET /admin/tenants/{tenantCode}/provisioning.
func (h *Handler) AdminStatus(w http.ResponseWriter, r *http.Request) {
	h.renderStatus(w, r, chi.URLParam(r, "tenantCode"))
}

// Retry implements POST /provisioning/retry for the authenticated tenant.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	code, ok := tenantFromToken(w, r)
	if !ok {
		return
	}
	h.startRetry(w, r, code)
}

// AdminRetry implements POST /admin/tenants/{tenantCode}/provisioning/retry.
func (h *Handler) AdminRetry(w http.ResponseWriter, r *http.Request) {
	h.startRetry(w, r, chi.URLParam(r, "tenantCode"))
}

func (h *Handler) renderStatus(w http.ResponseWriter, r *http.Request, code string) {
	locale := r.URL.Query().Get("locale")

	report, err := h.reporter.Status(r.Context(), code, locale)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) || errors.Is(err, service.ErrTenantNotFound) {
			httpx.NotFound(w, r, fmt.Sprintf("no provisioning job for tenant %s", code))
			return
		}
		h.logger.Error("status report failed", zap.String("tenant_code", code), zap.Error(err))
		httpx.Internal(w, r)
		return
	}

	render.JSON(w, r, report)
}

type retryResponse struct {
	TenantCode string `json:"tenantCode"`
	Accepted   bool   `json:"accepted"`
	Attempts   int    `json:"attempts"`
}

func (h *Handler) startRetry(w http.ResponseWriter, r *http.Request, code string) {
	job, err := h.retry.Start(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			httpx.Problem(w, r, httpx.ProblemDetails{
				Type:   httpx.ProblemTypeNotFound,
				Title:  "Retry refused",
				Status: http.StatusNotFound,
				Detail: fmt.Sprintf("no provisioning job for tenant %s", code),
				Reason: reasonNotFound,
			})
		case errors.Is(err, service.ErrJobNotFailed):
			httpx.Problem(w, r, httpx.ProblemDetails{
				Type:   httpx.ProblemTypeConflict,
				Title:  "Retry refused",
				Status: http.StatusConflict,
				Detail: "job is not in a failed state",
				Reason: reasonNotFailed,
			})
		case errors.Is(err, service.ErrRetryExhausted):
			httpx.Problem(w, r, httpx.ProblemDetails{
				Type:   httpx.ProblemTypeConflict,
				Title:  "Retry refused",
				Status: http.StatusConflict,
				Detail: "maximum provisioning attempts reached",
				Reason: reasonMaxAttemptsExceeded,
			})
		default:
			h.logger.Error("retry failed", zap.String("tenant_code", code), zap.Error(err))
			httpx.Internal(w, r)
		}
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, retryResponse{TenantCode: code, Accepted: true, Attempts: job.AttemptCount})
}

// tenantFromToken resolves the tenant code from the caller's credentials.
func tenantFromToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok || creds == nil {
		httpx.Problem(w, r, httpx.ProblemDetails{
			Type:   httpx.ProblemTypeForbidden,
			Title:  "Unauthorized",
			Status: http.StatusUnauthorized,
			Detail: "authentication required",
		})
		return "", false
	}
	if creds.TenantCode == nil || *creds.TenantCode == "" {
		httpx.Forbidden(w, r, "token carries no tenant")
		return "", false
	}
	return *creds.TenantCode, true
}
