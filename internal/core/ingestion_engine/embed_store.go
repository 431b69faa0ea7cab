package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// ChunkEmbedder attaches embeddings to chunks through an EmbeddingProvider.
type ChunkEmbedder struct {
	provider    core.EmbeddingProvider
	batchSize   int
	concurrency int
	dim         int
	callTimeout time.Duration
	log         *zap.Logger
}

func NewChunkEmbedder(provider core.EmbeddingProvider, batchSize, concurrency, dim int, callTimeout time.Duration, log *zap.Logger) *ChunkEmbedder {
	if batchSize <= 0 {
		batchSize = 16
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChunkEmbedder{
		provider:    provider,
		batchSize:   batchSize,
		concurrency: concurrency,
		dim:         dim,
		callTimeout: callTimeout,
		log:         log,
	}
}

// EmbedChunks fills Embedding on every chunk in place. On error no chunk is modified.
func (e *ChunkEmbedder) EmbedChunks(ctx context.Context, chunks []models.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	in := streamChunk(gctx, g, slices.Values(chunks))

	var out []models.Chunk
	g.Go(func() error {
		var err error
		out, err = e.embedStream(gctx, in)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	copy(chunks, out)
	return nil
}

// embedStream consumes a chunk stream, embeds it in batches and returns the chunks in
// arrival order. Up to concurrency batches are in flight; results are matched back by
// the index of each batch's first chunk.
func (e *ChunkEmbedder) embedStream(ctx context.Context, in <-chan models.Chunk) ([]models.Chunk, error) {
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)

	var (
		chunks  []models.Chunk
		mu      sync.Mutex
		results = make(map[int][][]float32)
		first   int
	)

	// flush schedules the chunks received since the last flush as one batch.
	flush := func() {
		if first == len(chunks) {
			return
		}
		start := first
		texts := make([]string, len(chunks)-start)
		for k := range texts {
			texts[k] = chunks[start+k].Text
		}
		first = len(chunks)

		eg.Go(func() error {
			vecs, err := e.embedBatch(ectx, start, texts)
			if err != nil {
				return err
			}
			mu.Lock()
			results[start] = vecs
			mu.Unlock()
			return nil
		})
	}

recv:
	for {
		select {
		case <-ectx.Done():
			break recv
		case c, ok := <-in:
			if !ok {
				flush()
				break recv
			}
			chunks = append(chunks, c)
			if len(chunks)-first == e.batchSize {
				flush()
			}
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, core.NewStageError(core.StageEmbed, core.ErrEmbeddingService, err)
	}

	for start, vecs := range results {
		for k, v := range vecs {
			chunks[start+k].Embedding = v
		}
	}
	e.log.Info("chunks embedded", zap.Int("chunks", len(chunks)), zap.Int("batches", len(results)))
	return chunks, nil
}

// embedBatch calls the provider once and checks the response shape.
func (e *ChunkEmbedder) embedBatch(ctx context.Context, start int, texts []string) ([][]float32, error) {
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	vecs, err := e.provider.EmbedTexts(ctx, texts)
	if err != nil {
		se := core.NewStageError(core.StageEmbed, core.ErrEmbeddingService,
			fmt.Errorf("batch at chunk %d: %w", start, err))
		var sc interface{ StatusCode() int }
		if errors.As(err, &sc) {
			se.Status = sc.StatusCode()
		}
		return nil, se
	}
	if len(vecs) != len(texts) {
		return nil, core.NewStageError(core.StageEmbed, core.ErrEmbeddingService,
			fmt.Errorf("batch at chunk %d: got %d embeddings for %d texts", start, len(vecs), len(texts)))
	}
	for k, v := range vecs {
		if e.dim > 0 && len(v) != e.dim {
			return nil, core.NewStageError(core.StageEmbed, core.ErrEmbeddingService,
				fmt.Errorf("chunk %d: embedding has %d dimensions, want %d", start+k, len(v), e.dim))
		}
	}
	return vecs, nil
}
