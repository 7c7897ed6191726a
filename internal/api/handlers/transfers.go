package handlers

import (
	"net/http"
)

// TransfersHandler serves transfer detection.
type TransfersHandler struct {
	*Base
}

// NewTransfersHandler creates a new transfers handler.
func NewTransfersHandler(base *Base) *TransfersHandler {
	return &TransfersHandler{Base: base}
}

// Detect handles POST /api/users/{userID}/transfers/detect.
func (h *TransfersHandler) Detect(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	result, err := h.svc.RunTransferDetection(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}
