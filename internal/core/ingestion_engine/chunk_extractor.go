package ingestion_engine

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// Chunker splits page text into overlapping windows of at most size runes.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates 0 <= overlap < size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, core.NewStageError(core.StageChunk, core.ErrInvalidChunkConfig,
			fmt.Errorf("chunk_size=%d chunk_overlap=%d", size, overlap))
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunks yields the chunks of pages in order, numbered from 0. The sequence is
// lazy and can be ranged over any number of times with identical results.
//
// Each window is snapped back to the last paragraph, line, sentence or word break
// inside it, provided the chunk keeps at least max(overlap+1, size/2) runes;
// otherwise it is cut at exactly size runes. The next window starts overlap runes
// before the previous cut.
func (c *Chunker) Chunks(fileName string, pages []models.Page) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		text := []rune(joinPages(pages))
		seq := 0
		for start := 0; start < len(text); {
			end := min(start+c.size, len(text))
			cut := end
			if end < len(text) {
				cut = c.snap(text, start, end)
			}

			ch := models.Chunk{SequenceNumber: seq, SourceFileName: fileName, Text: string(text[start:cut])}
			if !yield(ch) {
				return
			}
			if cut == len(text) {
				return
			}
			seq++
			start = cut - c.overlap
		}
	}
}

// boundary returns the cut position after a separator ending at or before i, or -1.
type boundary func(text []rune, i int) int

var boundaries = []boundary{
	// paragraph
	func(text []rune, i int) int {
		if i > 0 && text[i] == '\n' && text[i-1] == '\n' {
			return i + 1
		}
		return -1
	},
	// line
	func(text []rune, i int) int {
		if text[i] == '\n' {
			return i + 1
		}
		return -1
	},
	// sentence
	func(text []rune, i int) int {
		switch text[i] {
		case '。', '．', '！', '？':
			return i + 1
		case ' ':
			if i > 0 && strings.ContainsRune(".!?", text[i-1]) {
				return i + 1
			}
		}
		return -1
	},
	// word
	func(text []rune, i int) int {
		switch text[i] {
		case ' ', '、', '，':
			return i + 1
		}
		return -1
	},
}

func (c *Chunker) snap(text []rune, start, end int) int {
	minLen := max(c.overlap+1, c.size/2)
	for _, match := range boundaries {
		for i := end - 1; i >= start; i-- {
			cut := match(text, i)
			if cut < 0 {
				continue
			}
			if cut-start < minLen {
				break
			}
			return cut
		}
	}
	return end
}

// joinPages concatenates non-empty pages with a blank line so page breaks act as paragraph breaks.
func joinPages(pages []models.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// streamChunk feeds a chunk sequence into a channel stage of the errgroup pipeline.
// The producer stops as soon as ctx is cancelled.
func streamChunk(ctx context.Context, g *errgroup.Group, chunks iter.Seq[models.Chunk]) <-chan models.Chunk {
	out := make(chan models.Chunk, 8)

	g.Go(func() error {
		defer close(out)
		for ch := range chunks {
			select {
			case out <- ch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return out
}
