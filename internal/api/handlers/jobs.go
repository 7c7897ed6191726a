package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledgerwatch/internal/api/dto"
	"github.com/eshaffer321/ledgerwatch/internal/application/service"
)

// JobsHandler serves background pass jobs.
type JobsHandler struct {
	*Base
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(base *Base) *JobsHandler {
	return &JobsHandler{Base: base}
}

// Start handles POST /api/users/{userID}/jobs - starts a pass in the background.
func (h *JobsHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var req dto.StartJobRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Kind == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("kind is required"))
		return
	}

	jobID, err := h.svc.StartJob(req.Kind, userID)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusAccepted, dto.StartJobResponse{
		JobID:  jobID,
		Kind:   req.Kind,
		Status: string(service.StatusPending),
	})
}

// Get handles GET /api/jobs/{jobID}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.svc.ListJobs())
}
