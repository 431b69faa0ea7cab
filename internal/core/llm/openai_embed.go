package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/markdave123-py/cortexprep/internal/core"
)

// OpenAIConfig selects an OpenAI compatible or Azure OpenAI embedding deployment.
// For Azure, Model is the deployment name.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Azure      bool
	APIVersion string
}

// OpenAIEmbedder calls an OpenAI style /embeddings endpoint through langchaingo.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	provider string
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	token := cfg.APIKey
	if token == "" {
		// local OpenAI compatible servers accept any token
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	provider := "openai"
	if cfg.Azure {
		provider = "azure"
		opts = append(opts, openai.WithAPIType(openai.APITypeAzure), openai.WithAPIVersion(cfg.APIVersion))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%s client: %w", provider, err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", provider, err)
	}
	return &OpenAIEmbedder{embedder: embedder, provider: provider}, nil
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, newProviderError(e.provider, err)
	}
	return vecs, nil
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)
