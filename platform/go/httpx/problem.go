// Package httpx carries the RFC 7807 problem-details shape shared by every
// HTTP handler.
package httpx

import (
	"net/http"

	"github.com/go-chi/render"
)

const (
	ProblemTypeValidation = "https://nimbuserp.com/problems/validation-error"
	ProblemTypeNotFound   = "https://nimbuserp.com/problems/not-found"
	ProblemTypeConflict   = "https://nimbuserp.com/problems/conflict"
	ProblemTypeForbidden  = "https://nimbuserp.com/problems/forbidden"
	ProblemTypeInternal   = "https://nimbuserp.com/problems/internal-error"
)

// ProblemDetails is the error body for all non-2xx responses.
type ProblemDetails struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Reason string              `json:"reason,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// Problem writes a problem-details response.
func Problem(w http.ResponseWriter, r *http.Request, p ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	render.Status(r, p.Status)
	render.JSON(w, r, p)
}

// NotFound is the common 404 rendering.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, ProblemDetails{
		Type:   ProblemTypeNotFound,
		Title:  "Not found",
		Status: http.StatusNotFound,
		Detail: detail,
	})
}

// Internal is the common 500 rendering. The detail is deliberately generic.
func Internal(w http.ResponseWriter, r *http.Request) {
	Problem(w, r, ProblemDetails{
		Type:   ProblemTypeInternal,
		Title:  "Internal error",
		Status: http.StatusInternalServerError,
		Detail: "internal error",
	})
}

// Forbidden is the common 403 rendering.
func Forbidden(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, ProblemDetails{
		Type:   ProblemTypeForbidden,
		Title:  "Forbidden",
		Status: http.StatusForbidden,
		Detail: detail,
	})
}
