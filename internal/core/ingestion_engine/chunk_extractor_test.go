package ingestion_engine

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

func collect(t *testing.T, size, overlap int, pages ...string) []models.Chunk {
	t.Helper()
	c, err := NewChunker(size, overlap)
	require.NoError(t, err)
	ps := make([]models.Page, len(pages))
	for i, p := range pages {
		ps[i] = models.Page{Number: i + 1, Text: p}
	}
	return slices.Collect(c.Chunks("doc.pdf", ps))
}

func texts(chunks []models.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestChunker_HardCutScenario(t *testing.T) {
	chunks := collect(t, 4, 1, "ABCDEFGHIJ")

	assert.Equal(t, []string{"ABCD", "DEFG", "GHIJ"}, texts(chunks))
	for i, c := range chunks {
		assert.Equal(t, i, c.SequenceNumber)
		assert.Equal(t, "doc.pdf", c.SourceFileName)
		assert.Nil(t, c.Embedding)
	}
}

func TestChunker_BoundaryFreeText(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := collect(t, 100, 20, text)

	require.Len(t, chunks, 3)
	assert.Equal(t, []int{100, 100, 90}, []int{len(chunks[0].Text), len(chunks[1].Text), len(chunks[2].Text)})
	assert.Equal(t, text[80:180], chunks[1].Text)
	assert.Equal(t, text[160:], chunks[2].Text)
}

func TestChunker_Deterministic(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)
	pages := []models.Page{{Number: 1, Text: sampleProse}, {Number: 2, Text: sampleProse}}

	seq := c.Chunks("plan.pdf", pages)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	third := slices.Collect(c.Chunks("plan.pdf", pages))

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestChunker_OverlapAndSizeInvariants(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{{100, 20}, {50, 10}, {37, 0}, {10, 9}, {200, 50}} {
		chunks := collect(t, tc.size, tc.overlap, sampleProse, sampleJapanese, sampleProse)
		require.NotEmpty(t, chunks)

		for i, c := range chunks {
			runes := []rune(c.Text)
			assert.NotEmpty(t, runes)
			assert.LessOrEqual(t, len(runes), tc.size)
			assert.Equal(t, i, c.SequenceNumber)
			if i == 0 || tc.overlap == 0 {
				continue
			}
			prev := []rune(chunks[i-1].Text)
			assert.Equal(t, string(prev[len(prev)-tc.overlap:]), string(runes[:tc.overlap]),
				"size=%d overlap=%d chunk=%d", tc.size, tc.overlap, i)
		}
	}
}

func TestChunker_CoversWholeText(t *testing.T) {
	chunks := collect(t, 60, 15, sampleProse)

	var rebuilt []rune
	for i, c := range chunks {
		r := []rune(c.Text)
		if i > 0 {
			r = r[15:]
		}
		rebuilt = append(rebuilt, r...)
	}
	assert.Equal(t, strings.TrimSpace(sampleProse), string(rebuilt))
}

func TestChunker_PrefersParagraphBreaks(t *testing.T) {
	first := strings.Repeat("a", 30)
	second := strings.Repeat("b", 30)
	chunks := collect(t, 50, 5, first+"\n\n"+second)

	require.Len(t, chunks, 2)
	assert.Equal(t, first+"\n\n", chunks[0].Text)
	assert.True(t, strings.HasSuffix(chunks[1].Text, second))
}

func TestChunker_PageBreaksActAsParagraphs(t *testing.T) {
	chunks := collect(t, 50, 5, strings.Repeat("a", 30), "", strings.Repeat("b", 30))
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 30)+"\n\n", chunks[0].Text)
}

func TestChunker_SentenceBoundaries(t *testing.T) {
	chunks := collect(t, 20, 2, "これはテストです。次の文があります。最後の文。")
	require.NotEmpty(t, chunks)
	assert.Equal(t, "これはテストです。次の文があります。", chunks[0].Text)

	chunks = collect(t, 30, 3, "First sentence here. Second one follows.")
	assert.Equal(t, "First sentence here. ", chunks[0].Text)
}

func TestChunker_ShortBoundaryIsIgnored(t *testing.T) {
	// the only break leaves a 2-rune chunk, below size/2, so the window is hard-cut
	chunks := collect(t, 10, 2, "ab cdefghijklmnop")
	assert.Equal(t, "ab cdefghi", chunks[0].Text)
}

func TestChunker_EmptyDocument(t *testing.T) {
	assert.Empty(t, collect(t, 100, 20))
	assert.Empty(t, collect(t, 100, 20, "", "   \n "))
}

func TestChunker_StopsWhenConsumerBreaks(t *testing.T) {
	c, err := NewChunker(4, 1)
	require.NoError(t, err)

	var got []string
	for ch := range c.Chunks("doc", []models.Page{{Number: 1, Text: "ABCDEFGHIJ"}}) {
		got = append(got, ch.Text)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"ABCD", "DEFG"}, got)
}

func TestNewChunker_RejectsInvalidConfig(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{{0, 0}, {-1, 0}, {10, 10}, {10, 11}, {10, -1}} {
		_, err := NewChunker(tc.size, tc.overlap)
		assert.ErrorIs(t, err, core.ErrInvalidChunkConfig, "size=%d overlap=%d", tc.size, tc.overlap)
	}
}

const sampleProse = `Quarterly management plan for the technology division.

The first quarter focuses on platform stability. Teams will reduce incident volume, retire legacy batch jobs and document the on-call process.
Hiring continues in the infrastructure group! Two senior engineers join in February.

Budget reviews happen monthly. Are the savings targets realistic? The finance team thinks so.`

const sampleJapanese = `第1四半期の管理計画。開発部は新規プロジェクトの立ち上げに対応します。営業部、人事部、インフラ部はそれぞれ目標を設定し、進捗を毎月確認します！質問はありますか？`
