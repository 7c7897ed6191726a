package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledgerwatch/internal/api/dto"
	"github.com/eshaffer321/ledgerwatch/internal/application/service"
	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// Base provides shared functionality for all handlers.
type Base struct {
	svc    *service.ReconcileService
	logger *slog.Logger
}

// NewBase creates a new base handler over the reconcile service.
func NewBase(svc *service.ReconcileService, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{svc: svc, logger: logger}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteServiceError maps a service error onto a status code. Validation
// failures are 400, missing resources 404, anything else 500 with the
// detail logged rather than returned.
func (b *Base) WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case ledger.IsValidation(err):
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
	case ledger.IsNotFound(err), errors.Is(err, service.ErrJobNotFound):
		b.WriteError(w, http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
	default:
		b.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// decode reads a JSON body into v, writing a 400 on failure.
func (b *Base) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return false
	}
	return true
}

// ParseIDParam parses a positive int64 path parameter.
func ParseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// pathID parses a path id, writing a 400 on failure.
func (b *Base) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := ParseIDParam(r, name)
	if err != nil {
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return 0, false
	}
	return id, true
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
