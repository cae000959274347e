package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/Strob0t/BreachCache/internal/domain"
	"github.com/Strob0t/BreachCache/internal/domain/breach"
)

// BreachService is the application service behind the email endpoints.
type BreachService interface {
	Get(ctx context.Context, email string) (breach.CacheResult, error)
	Add(ctx context.Context, email, details string) (string, error)
}

// HealthStatus is reported by GET /health.
type HealthStatus struct {
	Status     string `json:"status"`
	Store      string `json:"store"`
	Upstream   string `json:"upstream"`
	Breaker    string `json:"breaker"`
	Partitions int    `json:"partitions"`
	Events     bool   `json:"events"`
}

// Handlers holds the HTTP handlers' dependencies.
type Handlers struct {
	Breaches BreachService
	Health   func() HealthStatus
}

type addBreachRequest struct {
	Details *string `json:"details"`
}

type addBreachResponse struct {
	Email   string `json:"email"`
	Details string `json:"details"`
}

type conflictResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// GetBreachedEmail handles GET /api/v1/emails/{email}.
func (h *Handlers) GetBreachedEmail(w http.ResponseWriter, r *http.Request) {
	res, err := h.Breaches.Get(r.Context(), urlParam(r, "email"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AddBreachedEmail handles POST /api/v1/emails/{email}.
func (h *Handlers) AddBreachedEmail(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[addBreachRequest](w, r)
	if !ok {
		return
	}
	details := ""
	if req.Details != nil {
		details = *req.Details
	}

	email, err := h.Breaches.Add(r.Context(), urlParam(r, "email"), details)
	if errors.Is(err, domain.ErrConflict) {
		writeJSON(w, http.StatusConflict, conflictResponse{
			Email:   email,
			Message: "Email already exists in breached list",
		})
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/emails/"+url.PathEscape(email))
	writeJSON(w, http.StatusCreated, addBreachResponse{Email: email, Details: details})
}

// HealthCheck handles GET /health. It always answers 200 while the process
// serves requests; an open breaker is reported as degraded.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := HealthStatus{Status: "ok"}
	if h.Health != nil {
		status = h.Health()
	}
	writeJSON(w, http.StatusOK, status)
}
