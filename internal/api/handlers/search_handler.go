package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/models"
	"github.com/markdave123-py/cortexprep/internal/services"
)

type SearchHandler struct {
	search *services.SearchService
	log    *zap.Logger
}

func NewSearchHandler(search *services.SearchService, log *zap.Logger) *SearchHandler {
	return &SearchHandler{search: search, log: log}
}

type searchResponse struct {
	Service string             `json:"service"`
	Hits    []models.SearchHit `json:"hits"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	hits, err := h.search.Search(r.Context(), req)
	if errors.Is(err, services.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error("search failed", zap.String("service", h.search.Service().Name), zap.Error(err))
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Service: h.search.Service().Name, Hits: hits})
}
