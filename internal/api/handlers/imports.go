package handlers

import (
	"io"
	"mime"
	"net/http"

	"github.com/eshaffer321/ledgerwatch/internal/api/dto"
	"github.com/eshaffer321/ledgerwatch/internal/domain/dedup"
)

// MaxStatementBytes caps an uploaded statement.
const MaxStatementBytes = 10 << 20

// ImportsHandler serves statement import review and commit.
type ImportsHandler struct {
	*Base
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(base *Base) *ImportsHandler {
	return &ImportsHandler{Base: base}
}

func (h *ImportsHandler) batch(w http.ResponseWriter, r *http.Request) (*dedup.Batch, bool) {
	var req dto.BatchRequest
	if !h.decode(w, r, &req) {
		return nil, false
	}
	if req.UserID <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("user_id is required"))
		return nil, false
	}
	return req.ToBatch(), true
}

// Dedup handles POST /api/imports/dedup. It flags duplicates in the
// submitted batch and echoes it back; nothing is written.
func (h *ImportsHandler) Dedup(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}

	result, err := h.svc.RunImportDedup(r.Context(), batch)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.NewBatchResponse(batch, result))
}

// Confirm handles POST /api/imports/confirm. Selected, valid candidates are
// written to the account.
func (h *ImportsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	if batch.AccountID <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("account_id is required"))
		return
	}

	result, err := h.svc.ConfirmImport(r.Context(), batch)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, result)
}

// Upload handles POST /api/users/{userID}/accounts/{accountID}/imports.
// The statement is either the raw CSV body or the "file" part of a
// multipart form. The parsed batch is deduplicated and returned for review.
func (h *ImportsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	accountID, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxStatementBytes)
	var body io.Reader = r.Body
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("missing file part"))
			return
		}
		defer file.Close()
		body = file
	}

	batch, parsed, err := h.svc.ImportStatement(r.Context(), userID, accountID, body)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	result := &dedup.Result{Total: len(batch.Candidates), Invalid: parsed.Errors}
	for _, c := range batch.Candidates {
		if c.IsDuplicate {
			result.Duplicates++
		}
	}
	resp := dto.NewBatchResponse(batch, result)
	resp.Skipped = parsed.Skipped
	h.WriteJSON(w, http.StatusOK, resp)
}
