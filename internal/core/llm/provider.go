package llm

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/core"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewEmbeddingProvider builds the provider selected by EMBED_PROVIDER. With embeddings
// disabled it returns a nil provider; the closer is always safe to call.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config, log *zap.Logger) (core.EmbeddingProvider, io.Closer, error) {
	switch cfg.EmbedProvider {
	case "", config.EmbedNone:
		return nil, nopCloser{}, nil
	case config.EmbedGemini:
		g, err := NewGeminiEmbedder(ctx, GeminiConfig{APIKey: cfg.EmbedAPIKey, Model: cfg.EmbedModel, Dim: cfg.EmbedDim})
		if err != nil {
			return nil, nil, err
		}
		log.Info("embedding provider ready", zap.String("provider", "gemini"), zap.String("model", g.modelName), zap.Int("dim", g.dim))
		return g, g, nil
	case config.EmbedOpenAI, config.EmbedAzure:
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.EmbedEndpoint,
			APIKey:     cfg.EmbedAPIKey,
			Model:      cfg.EmbedModel,
			Azure:      cfg.EmbedProvider == config.EmbedAzure,
			APIVersion: cfg.EmbedAPIVersion,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("embedding provider ready", zap.String("provider", e.provider), zap.String("model", cfg.EmbedModel))
		return e, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
}
