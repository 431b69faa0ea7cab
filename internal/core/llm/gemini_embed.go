package llm

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/cortexprep/internal/core"
)

const (
	defaultGeminiModel = "text-embedding-004"
	// BatchEmbedContents rejects requests with more than this many contents.
	geminiMaxBatch = 100
)

// GeminiConfig selects the model and the width the vectors are cut to.
type GeminiConfig struct {
	APIKey string
	Model  string
	// Dim truncates longer vectors to Dim components and renormalises them.
	// Zero keeps whatever the model returns.
	Dim int
}

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	dim       int
}

func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embeddings: EMBED_API_KEY or GEMINI_API_KEY must be set")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiEmbedder{client: cl, modelName: model, dim: cfg.Dim}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedTexts embeds texts as retrieval documents, splitting them into requests the
// API accepts. Vectors come back in input order.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	em := g.client.EmbeddingModel(g.modelName)
	em.TaskType = genai.TaskTypeRetrievalDocument

	out := make([][]float32, 0, len(texts))
	for _, part := range splitBatches(texts, geminiMaxBatch) {
		batch := em.NewBatch()
		for _, t := range part {
			batch.AddContent(genai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, newProviderError("gemini", err)
		}
		if len(resp.Embeddings) != len(part) {
			return nil, newProviderError("gemini",
				fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), len(part)))
		}
		for _, e := range resp.Embeddings {
			out = append(out, fitDimension(e.Values, g.dim))
		}
	}
	return out, nil
}

// splitBatches cuts texts into consecutive slices of at most size elements.
func splitBatches(texts []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += size {
		out = append(out, texts[start:min(start+size, len(texts))])
	}
	return out
}

// fitDimension truncates v to dim components and rescales it to unit length, the way
// the API shortens vectors when an output dimension is requested. Shorter vectors are
// returned unchanged so the caller's dimension check reports them.
func fitDimension(v []float32, dim int) []float32 {
	if dim <= 0 || len(v) <= dim {
		return v
	}
	cut := make([]float32, dim)
	copy(cut, v[:dim])
	var norm float64
	for _, f := range cut {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		return cut
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range cut {
		cut[i] *= scale
	}
	return cut
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
