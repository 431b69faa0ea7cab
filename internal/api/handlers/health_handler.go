package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports the warehouse server version.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

type HealthHandler struct {
	warehouse Pinger
	dialect   string
}

func NewHealthHandler(warehouse Pinger, dialect string) *HealthHandler {
	return &HealthHandler{warehouse: warehouse, dialect: dialect}
}

type healthResponse struct {
	Status  string `json:"status"`
	Dialect string `json:"dialect"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	version, err := h.warehouse.Ping(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Dialect: h.dialect, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Dialect: h.dialect, Version: version})
}
