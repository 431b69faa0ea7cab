package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// AgentClient forwards queries to the hosted agent runtime. Planning, tool selection
// and retries all happen on the runtime side; MaxRetries is only passed through.
type AgentClient struct {
	http       *resty.Client
	endpoint   string
	maxRetries int
	log        *zap.Logger
}

type agentRequest struct {
	Query      string                `json:"query"`
	Tools      []models.ToolEnvelope `json:"tools"`
	MaxRetries int                   `json:"max_retries"`
}

func NewAgentClient(cfg *config.Config, log *zap.Logger) (*AgentClient, error) {
	if cfg.AgentEndpoint == "" {
		return nil, errors.New("AGENT_ENDPOINT not set")
	}
	if log == nil {
		log = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(cfg.CallTimeout).
		SetHeader("Accept", "application/json")
	if cfg.AgentAPIKey != "" {
		client.SetAuthToken(cfg.AgentAPIKey)
	}
	return &AgentClient{
		http:       client,
		endpoint:   strings.TrimRight(cfg.AgentEndpoint, "/"),
		maxRetries: cfg.AgentMaxRetries,
		log:        log,
	}, nil
}

// Query posts the question together with the tool envelopes and decodes the answer.
// Every failure wraps core.ErrAgentGateway; HTTP failures carry the status.
func (c *AgentClient) Query(ctx context.Context, query string, tools []models.Tool) (*models.AgentResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", core.ErrAgentGateway)
	}
	req := agentRequest{Query: query, Tools: make([]models.ToolEnvelope, len(tools)), MaxRetries: c.maxRetries}
	for i, t := range tools {
		req.Tools[i] = models.Envelope(t)
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.endpoint + "/agent")
	if err != nil {
		return nil, &core.StageError{Stage: core.StageAgent, Kind: core.ErrAgentGateway, Err: err}
	}
	if resp.IsError() {
		return nil, &core.StageError{
			Stage:  core.StageAgent,
			Kind:   core.ErrAgentGateway,
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("agent runtime: %s", strings.TrimSpace(resp.String())),
		}
	}

	var out models.AgentResult
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &core.StageError{Stage: core.StageAgent, Kind: core.ErrAgentGateway, Err: fmt.Errorf("decode response: %w", err)}
	}
	c.log.Info("agent query answered",
		zap.Int("tools", len(tools)),
		zap.Int("sources", len(out.Sources)),
		zap.Duration("took", time.Since(start)))
	return &out, nil
}

var _ core.AgentGateway = (*AgentClient)(nil)
