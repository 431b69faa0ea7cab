package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
	"github.com/markdave123-py/cortexprep/internal/services"
)

type AgentHandler struct {
	agent core.AgentGateway // nil when AGENT_ENDPOINT is unset
	tools *services.ToolService
	log   *zap.Logger
}

func NewAgentHandler(agent core.AgentGateway, tools *services.ToolService, log *zap.Logger) *AgentHandler {
	return &AgentHandler{agent: agent, tools: tools, log: log}
}

type AgentQueryRequest struct {
	Query string   `json:"query"`
	Tools []string `json:"tools,omitempty"` // empty selects every registered tool
}

func (h *AgentHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	tools := h.tools.Tools()
	out := make([]models.ToolEnvelope, len(tools))
	for i, t := range tools {
		out[i] = models.Envelope(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AgentHandler) Query(w http.ResponseWriter, r *http.Request) {
	if h.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "agent runtime is not configured")
		return
	}

	var req AgentQueryRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	tools, err := h.tools.Select(req.Tools)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.agent.Query(r.Context(), req.Query, tools)
	if err != nil {
		h.log.Error("agent query failed", zap.Error(err))
		resp := errorResponse{Error: "agent query failed", Stage: core.StageOf(err)}
		var se *core.StageError
		if errors.As(err, &se) {
			resp.Status = se.Status
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type crawlRequest struct {
	URL string `json:"url"`
}

type weatherRequest struct {
	Location string `json:"location"`
}

type toolOutput struct {
	Output string `json:"output"`
}

// HTMLCrawl serves the html_crawl function tool.
func (h *AgentHandler) HTMLCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	html, err := h.tools.HTMLCrawl(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toolOutput{Output: html})
}

// Weather serves the weather function tool.
func (h *AgentHandler) Weather(w http.ResponseWriter, r *http.Request) {
	var req weatherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	out, err := h.tools.Weather(req.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toolOutput{Output: out})
}
