package ingestion_engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

func TestDocumentExtractor_PlainText(t *testing.T) {
	e := NewDocumentExtractor(nil, false, nil)

	pages, err := e.Load(context.Background(), "testdata/management_plan.txt")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Quarterly management plan")
	assert.Equal(t, strings.TrimSpace(pages[0].Text), pages[0].Text)
}

func TestDocumentExtractor_FormFeedsSplitPages(t *testing.T) {
	pages, err := NewDocumentExtractor(nil, false, nil).Load(context.Background(), "testdata/handbook.txt")
	require.NoError(t, err)

	assert.Equal(t, []models.Page{
		{Number: 1, Text: "Page one of the handbook."},
		{Number: 2, Text: "Page two covers overtime rules."},
		{Number: 4, Text: "Page four lists contacts."},
	}, pages)
}

func TestDocumentExtractor_MissingFile(t *testing.T) {
	_, err := NewDocumentExtractor(nil, false, nil).Load(context.Background(), "testdata/nope.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
	assert.Equal(t, core.StageLoadDocument, core.StageOf(err))
}

func TestDocumentExtractor_CorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o600))

	_, err := NewDocumentExtractor(nil, false, nil).Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnreadableDocument)
}

func TestDocumentExtractor_InvalidUTF8IsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin1.txt")
	require.NoError(t, os.WriteFile(path, []byte("caf\xe9 menu\r\nline two"), 0o600))

	pages, err := NewDocumentExtractor(nil, false, nil).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "caf menu\nline two", pages[0].Text)
}

func TestDocumentExtractor_ObjectStorage(t *testing.T) {
	ctx := context.Background()
	obj := newFakeObjectClient()
	obj.objects["docs/plans/q1.txt"] = []byte("stored plan text")
	e := NewDocumentExtractor(obj, false, nil)

	pages, err := e.Load(ctx, "s3://docs/plans/q1.txt")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "stored plan text", pages[0].Text)

	_, err = e.Load(ctx, "s3://docs/plans/missing.txt")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)

	_, err = NewDocumentExtractor(nil, false, nil).Load(ctx, "s3://docs/plans/q1.txt")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		ok          bool
	}{
		{"s3://bucket/path/to/file.pdf", "bucket", "path/to/file.pdf", true},
		{"https://my-bucket.s3.us-east-2.amazonaws.com/docs/a.pdf", "my-bucket", "docs/a.pdf", true},
		{"s3://bucket", "", "", false},
		{"https://example.com/a.pdf", "", "", false},
		{"testdata/a.pdf", "", "", false},
		{"/abs/path/a.pdf", "", "", false},
	}
	for _, tc := range tests {
		b, k, ok := parseS3URI(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.bucket, b, tc.in)
		assert.Equal(t, tc.key, k, tc.in)
	}
}
