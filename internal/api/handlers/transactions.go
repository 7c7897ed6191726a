package handlers

import (
	"net/http"
	"strings"

	"github.com/eshaffer321/ledgerwatch/internal/api/dto"
	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/index"
)

// TransactionsHandler serves ledger queries.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(base *Base) *TransactionsHandler {
	return &TransactionsHandler{Base: base}
}

// Search handles GET /api/users/{userID}/transactions/search?q=&limit=.
func (h *TransactionsHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("q is required"))
		return
	}
	limit := ParseIntParam(r, "limit", index.DefaultLimit)

	hits, err := h.svc.SearchTransactions(r.Context(), userID, query, limit)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	h.WriteJSON(w, http.StatusOK, dto.SearchResponse{Query: query, Count: len(hits), Hits: hits})
}

// Duplicates handles GET /api/users/{userID}/transactions/duplicates.
func (h *TransactionsHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	groups, err := h.svc.LedgerDuplicates(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	if groups == nil {
		groups = [][]*ledger.Transaction{}
	}
	h.WriteJSON(w, http.StatusOK, groups)
}
