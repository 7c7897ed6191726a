package handlers

import "net/http"

// AlertsHandler serves alert evaluation.
type AlertsHandler struct {
	*Base
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(base *Base) *AlertsHandler {
	return &AlertsHandler{Base: base}
}

// Check handles POST /api/users/{userID}/alerts/check.
func (h *AlertsHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	result, err := h.svc.RunAlertCheck(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}
