package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/core/ingestion_engine"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// RunQueue is the part of the ingestion run queue the API needs.
type RunQueue interface {
	Enqueue(pipeline string, opts ingestion_engine.RunOptions) (*models.RunStatus, error)
	Status(id string) (*models.RunStatus, *ingestion_engine.RunReport, bool)
}

type PreprocessHandler struct {
	queue RunQueue
	log   *zap.Logger
}

func NewPreprocessHandler(queue RunQueue, log *zap.Logger) *PreprocessHandler {
	return &PreprocessHandler{queue: queue, log: log}
}

type runResponse struct {
	Run    *models.RunStatus           `json:"run"`
	Report *ingestion_engine.RunReport `json:"report,omitempty"`
}

// Enqueue schedules a run of the pipeline named in the path. The optional body
// carries ingestion_engine.RunOptions.
func (h *PreprocessHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var opts ingestion_engine.RunOptions
	if err := decodeJSON(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.queue.Enqueue(chi.URLParam(r, "pipeline"), opts)
	switch {
	case errors.Is(err, ingestion_engine.ErrUnknownPipeline):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ingestion_engine.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.log.Error("enqueue run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not enqueue run")
		return
	}
	writeJSON(w, http.StatusAccepted, runResponse{Run: st})
}

func (h *PreprocessHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	st, report, ok := h.queue.Status(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Run: st, Report: report})
}
