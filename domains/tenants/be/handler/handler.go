package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	provservice "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
	"github.com/nimbuserp/nimbus-saas/domains/tenants/be/service"
	"github.com/nimbuserp/nimbus-saas/platform/go/httpx"
)

// Handler exposes signup and the admin tenant registry.
type Handler struct {
	svc      *service.Service
	pipeline *provservice.Pipeline
	validate *validator.Validate
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, pipeline *provservice.Pipeline, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if pipeline == nil {
		panic("provisioning pipeline is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{
		svc:      svc,
		pipeline: pipeline,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes mounts the public signup endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/signup", h.Signup)
}

// AdminRoutes mounts the admin tenant registry.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/tenants", h.List)
	r.Get("/tenants/{tenantCode}", h.Get)
}

type signupRequest struct {
	CompanyName string `json:"company_name" validate:"required,min=2,max=120"`
	Subdomain   string `json:"subdomain" validate:"required,hostname_rfc1123,max=63"`
	Plan        string `json:"plan" validate:"required,oneof=starter standard enterprise"`
	AdminEmail  string `json:"admin_email" validate:"required,email"`
	AdminName   string `json:"admin_name" validate:"required,min=2,max=120"`
}

type signupResponse struct {
	TenantCode string `json:"tenantCode"`
	Status     string `json:"status"`
}

// Signup implements POST /signup. It registers the tenant, creates the
// provisioning job and returns 202 immediately; the pipeline runs in the
// background and is observed via the status endpoint.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
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
			Errors: validationErrors(err),
		})
		return
	}

	t, err := h.svc.Create(r.Context(), service.CreateInput{
		DisplayName: req.CompanyName,
		Subdomain:   req.Subdomain,
		Plan:        req.Plan,
		AdminEmail:  req.AdminEmail,
		AdminName:   req.AdminName,
	})
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			httpx.Problem(w, r, httpx.ProblemDetails{
				Type:   httpx.ProblemTypeConflict,
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: "subdomain is already taken",
			})
			return
		}
		h.logger.Error("tenant signup failed", zap.Error(err))
		httpx.Problem(w, r, httpx.ProblemDetails{
			Type:   httpx.ProblemTypeValidation,
			Title:  "Invalid signup",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}

	if _, err := h.pipeline.Begin(r.Context(), t.Code); err != nil {
		// The tenant row exists but the job does not; surface as internal so
		// the client retries the signup and hits the conflict path instead.
		h.logger.Error("provisioning job creation failed",
			zap.String("tenant_code", t.Code), zap.Error(err))
		httpx.Internal(w, r)
		return
	}
	h.pipeline.Kickoff(t.Code)

	h.logger.Info("tenant signed up",
		zap.String("tenant_code", t.Code), zap.String("plan", t.Plan))

	w.Header().Set("Location", fmt.Sprintf("/api/v1/provisioning/status?tenant=%s", t.Code))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, signupResponse{TenantCode: t.Code, Status: string(t.Status)})
}

type tenantResponse struct {
	Code              string    `json:"code"`
	DisplayName       string    `json:"displayName"`
	Subdomain         string    `json:"subdomain"`
	Plan              string    `json:"plan"`
	Active            bool      `json:"active"`
	Status            string    `json:"status"`
	DatabaseName      string    `json:"databaseName"`
	DatabaseHost      string    `json:"databaseHost"`
	AdminEmail        string    `json:"adminEmail"`
	AdminName         string    `json:"adminName"`
	LastFailedStep    *string   `json:"lastFailedStep,omitempty"`
	LastFailureReason *string   `json:"lastFailureReason,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type tenantListResponse struct {
	Items      []tenantResponse `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalItems int              `json:"totalItems"`
	TotalPages int              `json:"totalPages"`
}

// List implements GET /admin/tenants.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	opts := service.ListOptions{Page: 1, PageSize: 20}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Page = n
		}
	}
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.PageSize = n
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status, err := service.TenantStatusFromString(v)
		if err != nil {
			httpx.Problem(w, r, httpx.ProblemDetails{
				Type:   httpx.ProblemTypeValidation,
				Title:  "Validation failed",
				Status: http.StatusBadRequest,
				Detail: err.Error(),
			})
			return
		}
		opts.Status = &status
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("tenant list failed", zap.Error(err))
		httpx.Internal(w, r)
		return
	}

	items := make([]tenantResponse, 0, len(result.Tenants))
	for _, t := range result.Tenants {
		items = append(items, toTenantResponse(t))
	}
	render.JSON(w, r, tenantListResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// Get implements GET /admin/tenants/{tenantCode}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "tenantCode")
	t, err := h.svc.Get(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			httpx.NotFound(w, r, fmt.Sprintf("tenant %s not found", code))
			return
		}
		h.logger.Error("tenant get failed", zap.String("tenant_code", code), zap.Error(err))
		httpx.Internal(w, r)
		return
	}
	render.JSON(w, r, toTenantResponse(t))
}

func toTenantResponse(t service.Tenant) tenantResponse {
	return tenantResponse{
		Code:              t.Code,
		DisplayName:       t.DisplayName,
		Subdomain:         t.Subdomain,
		Plan:              t.Plan,
		Active:            t.Active,
		Status:            string(t.Status),
		DatabaseName:      t.DatabaseName,
		DatabaseHost:      t.DatabaseHost,
		AdminEmail:        t.AdminEmail,
		AdminName:         t.AdminName,
		LastFailedStep:    t.LastFailedStep,
		LastFailureReason: t.LastFailureReason,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func validationErrors(err error) map[string][]string {
	out := make(map[string][]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = append(out[fe.Field()], fe.Tag())
		}
		return out
	}
	out["body"] = []string{err.Error()}
	return out
}
