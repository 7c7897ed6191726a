package handlers

import (
	"net/http"
	"time"

	"github.com/eshaffer321/ledgerwatch/internal/api/dto"
	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// DefaultUpcomingDays is the horizon of the upcoming bills endpoint.
const DefaultUpcomingDays = 30

// SubscriptionsHandler serves recurring series.
type SubscriptionsHandler struct {
	*Base
}

// NewSubscriptionsHandler creates a new subscriptions handler.
func NewSubscriptionsHandler(base *Base) *SubscriptionsHandler {
	return &SubscriptionsHandler{Base: base}
}

// Scan handles POST /api/users/{userID}/subscriptions/scan.
// It runs detection followed by a status sweep.
func (h *SubscriptionsHandler) Scan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	summary, err := h.svc.ScanAndUpdateSubscriptions(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}

// Statuses handles POST /api/users/{userID}/subscriptions/statuses.
func (h *SubscriptionsHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	result, err := h.svc.UpdateSubscriptionStatuses(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// Insights handles GET /api/users/{userID}/subscriptions/insights.
func (h *SubscriptionsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	insights, err := h.svc.SubscriptionInsights(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, insights)
}

// Upcoming handles GET /api/users/{userID}/subscriptions/upcoming?days=N.
func (h *SubscriptionsHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	days := ParseIntParam(r, "days", DefaultUpcomingDays)
	if days < 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("days must not be negative"))
		return
	}

	due, err := h.svc.UpcomingBills(r.Context(), userID, days)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, due)
}

// Calendar handles GET /api/users/{userID}/subscriptions/calendar?from=&to=.
// Both bounds are YYYY-MM-DD; the default is the current month.
func (h *SubscriptionsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	from := ledger.StartOfMonth(time.Now())
	to := ledger.AddDays(ledger.AddMonths(from, 1), -1)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := ledger.ParseDay(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := ledger.ParseDay(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("to must be YYYY-MM-DD"))
			return
		}
		to = parsed
	}

	events, err := h.svc.BillCalendar(r.Context(), userID, from, to)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, events)
}

// Exclude handles DELETE /api/users/{userID}/subscriptions/{seriesID}.
func (h *SubscriptionsHandler) Exclude(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	seriesID, ok := h.pathID(w, r, "seriesID")
	if !ok {
		return
	}

	if err := h.svc.ExcludeSeries(r.Context(), userID, seriesID); err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
