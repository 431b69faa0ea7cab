package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/core/ingestion_engine"
	"github.com/markdave123-py/cortexprep/internal/models"
	"github.com/markdave123-py/cortexprep/internal/services"
)

type DocumentHandler struct {
	docs  *services.DocumentService
	queue RunQueue
	log   *zap.Logger
}

func NewDocumentHandler(docs *services.DocumentService, queue RunQueue, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{docs: docs, queue: queue, log: log}
}

type uploadResponse struct {
	Document *services.UploadedDocument `json:"document"`
	Run      *models.RunStatus          `json:"run,omitempty"`
}

// UploadDocument stages a multipart "file" in object storage. With ingest=true it also
// queues a forced search run over the uploaded document.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if !h.docs.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	doc, err := h.docs.Upload(uploadctx, header.Filename, contentType, file)
	if err != nil {
		h.log.Error("document upload failed", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upload failed")
		return
	}
	resp := uploadResponse{Document: doc}

	if ingest, _ := strconv.ParseBool(r.FormValue("ingest")); ingest {
		st, err := h.queue.Enqueue(ingestion_engine.PipelineSearch, ingestion_engine.RunOptions{SourceFile: doc.SourceURI, Force: true})
		if err != nil {
			h.log.Error("enqueue ingest for upload", zap.String("uri", doc.SourceURI), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		resp.Run = st
	}
	writeJSON(w, http.StatusCreated, resp)
}
