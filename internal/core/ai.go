package core

import (
	"context"

	"github.com/markdave123-py/cortexprep/internal/models"
)

// EmbeddingProvider maps texts to vectors, one per text, in input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AgentGateway forwards natural-language queries to the hosted agent runtime.
type AgentGateway interface {
	Query(ctx context.Context, query string, tools []models.Tool) (*models.AgentResult, error)
}
