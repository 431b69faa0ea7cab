package ingestion_engine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/markdave123-py/cortexprep/internal/core"
	db "github.com/markdave123-py/cortexprep/internal/core/database"
	"github.com/markdave123-py/cortexprep/internal/models"
)

func testIngestConfig(dim int) *IngestConfig {
	return &IngestConfig{
		SourceFile: "testdata/management_plan.txt",
		Table:      models.NewChunkTable("CORTEX_DB", "PUBLIC", "plan_chunks", dim),
		Service: models.RetrievalService{
			Name:             "plan_search",
			Database:         "CORTEX_DB",
			Schema:           "PUBLIC",
			Warehouse:        "CORTEX_WH",
			SearchColumn:     models.ColumnText,
			AttributeColumns: []string{models.ColumnFileName, models.ColumnChunkID},
			TargetLag:        "1 hour",
		},
		ChunkSize:        100,
		ChunkOverlap:     20,
		BatchSize:        4,
		EmbedConcurrency: 2,
		CallTimeout:      5 * time.Second,
	}
}

func samplePages() []models.Page {
	return []models.Page{{Number: 1, Text: sampleProse}}
}

func TestSearchPreprocessor_FreshRun(t *testing.T) {
	wh := &fakeWarehouse{}
	loader := &fakeDocLoader{pages: samplePages()}
	p, err := NewSearchPreprocessor(wh, loader, nil, testIngestConfig(0), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.True(t, report.Ingested)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, len(wh.loadedChunks), report.ChunkCount)
	assert.Greater(t, report.ChunkCount, 1)
	require.NotNil(t, report.Service)
	assert.Equal(t, "plan_chunks", report.Service.SourceTable)
	assert.Equal(t, models.ToolTypeSearch, report.Tool.ToolType())

	assert.Equal(t, 1, wh.provisioned)
	assert.Len(t, wh.declared, 1)
	assert.Equal(t, 1, wh.opened)
	assert.Equal(t, 1, wh.closed)
	for i, c := range wh.loadedChunks {
		assert.Equal(t, i, c.SequenceNumber)
		assert.Equal(t, "management_plan.txt", c.SourceFileName)
	}
}

func TestSearchPreprocessor_SkipsIngestWhenTableExists(t *testing.T) {
	wh := &fakeWarehouse{exists: true}
	loader := &fakeDocLoader{pages: samplePages()}
	provider := &indexProvider{dim: 4}
	embedder := NewChunkEmbedder(provider, 4, 1, 4, 0, nil)
	p, err := NewSearchPreprocessor(wh, loader, embedder, testIngestConfig(4), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.False(t, report.Ingested)
	assert.Zero(t, report.ChunkCount)
	assert.Zero(t, wh.provisioned)
	assert.Empty(t, wh.loadedChunks)
	assert.Zero(t, loader.calls.Load())
	assert.Zero(t, provider.calls.Load())
	assert.Len(t, wh.declared, 1, "service is declared even when ingest is skipped")
	assert.Equal(t, 1, wh.closed)
}

func TestSearchPreprocessor_ForceReingests(t *testing.T) {
	wh := &fakeWarehouse{exists: true}
	cfg := testIngestConfig(0)
	cfg.Force = true
	p, err := NewSearchPreprocessor(wh, &fakeDocLoader{pages: samplePages()}, nil, cfg, nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Ingested)
	assert.Equal(t, 1, wh.provisioned)
}

func TestSearchPreprocessor_WithEmbeddings(t *testing.T) {
	wh := &fakeWarehouse{}
	provider := &indexProvider{dim: 4}
	embedder := NewChunkEmbedder(provider, 2, 2, 4, time.Second, nil)
	p, err := NewSearchPreprocessor(wh, &fakeDocLoader{pages: samplePages()}, embedder, testIngestConfig(4), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.NotEmpty(t, wh.loadedChunks)
	for _, c := range wh.loadedChunks {
		assert.Len(t, c.Embedding, 4)
	}
}

func TestSearchPreprocessor_EmbeddingFailureWritesNothing(t *testing.T) {
	wh := &fakeWarehouse{}
	provider := &indexProvider{dim: 4, err: statusErr{code: 503}}
	embedder := NewChunkEmbedder(provider, 2, 1, 4, 0, nil)
	p, err := NewSearchPreprocessor(wh, &fakeDocLoader{pages: samplePages()}, embedder, testIngestConfig(4), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, core.StageEmbed, report.FailedStage)
	assert.False(t, report.DataDurable)
	assert.Empty(t, wh.loadedChunks)
	assert.Zero(t, wh.provisioned, "nothing is provisioned before embeddings exist")
	assert.Equal(t, 1, wh.closed)
}

func TestSearchPreprocessor_DocumentErrors(t *testing.T) {
	wh := &fakeWarehouse{}
	loadErr := core.NewStageError(core.StageLoadDocument, core.ErrDocumentNotFound, errors.New("missing"))
	p, err := NewSearchPreprocessor(wh, &fakeDocLoader{err: loadErr}, nil, testIngestConfig(0), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	assert.Same(t, loadErr, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, core.StageLoadDocument, report.FailedStage)
	assert.Empty(t, wh.declared)
	assert.Zero(t, wh.provisioned)
	assert.Equal(t, 1, wh.closed)

	cfg := testIngestConfig(0)
	cfg.SourceFile = ""
	p, err = NewSearchPreprocessor(&fakeWarehouse{}, &fakeDocLoader{}, nil, cfg, nil)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestSearchPreprocessor_LoadFailure(t *testing.T) {
	loadErr := core.NewStageError(core.StageLoad, core.ErrBulkLoad, errors.New("row 3"))
	wh := &fakeWarehouse{loadErr: loadErr}
	p, err := NewSearchPreprocessor(wh, &fakeDocLoader{pages: samplePages()}, nil, testIngestConfig(0), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	assert.Same(t, loadErr, err)
	assert.Equal(t, core.StageLoad, report.FailedStage)
	assert.False(t, report.Ingested)
	assert.False(t, report.DataDurable)
	assert.Empty(t, wh.declared)
	assert.Equal(t, 1, wh.dropped, "the emptied table is dropped so the next run ingests again")
	assert.False(t, wh.exists)
}

func TestSearchPreprocessor_RegisterFailureKeepsData(t *testing.T) {
	declareErr := core.NewStageError(core.StageRegisterIndex, core.ErrIndexRegistration, errors.New("no privilege"))
	wh := &fakeWarehouse{declareErr: declareErr}
	p, err := NewSearchPreprocessor(wh, &fakeDocLoader{pages: samplePages()}, nil, testIngestConfig(0), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIndexRegistration)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, core.StageRegisterIndex, report.FailedStage)
	assert.True(t, report.Ingested)
	assert.True(t, report.DataDurable)
	assert.NotEmpty(t, wh.loadedChunks)
	assert.Nil(t, report.Service)
}

func TestSearchPreprocessor_ProvisionFailure(t *testing.T) {
	provErr := core.NewStageError(core.StageProvision, core.ErrProvision, errors.New("denied"))
	wh := &fakeWarehouse{provErr: provErr}
	loader := &fakeDocLoader{pages: samplePages()}
	p, err := NewSearchPreprocessor(wh, loader, nil, testIngestConfig(0), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	assert.Same(t, provErr, err)
	assert.Equal(t, core.StageProvision, report.FailedStage)
	assert.Equal(t, int32(1), loader.calls.Load(), "the document is read before any DDL")
	assert.Greater(t, report.ChunkCount, 0)
	assert.Empty(t, wh.loadedChunks)
}

func TestSearchPreprocessor_ToolDescriptionWithoutSource(t *testing.T) {
	cfg := testIngestConfig(0)
	cfg.SourceFile = ""
	p, err := NewSearchPreprocessor(&fakeWarehouse{exists: true}, &fakeDocLoader{}, nil, cfg, nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	tool, ok := report.Tool.(models.SearchTool)
	require.True(t, ok)
	assert.Equal(t, "searches the chunks of plan_chunks", tool.Description)
	assert.Equal(t, "text chunks of plan_chunks", tool.DataDescription)
}

func TestNewSearchPreprocessor_InvalidChunkConfig(t *testing.T) {
	cfg := testIngestConfig(0)
	cfg.ChunkOverlap = cfg.ChunkSize
	_, err := NewSearchPreprocessor(&fakeWarehouse{}, &fakeDocLoader{}, nil, cfg, nil)
	assert.ErrorIs(t, err, core.ErrInvalidChunkConfig)
}

func openSQLiteWarehouse(t *testing.T) (*sql.DB, *db.DatabaseClient) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", db.SQLiteDSN(filepath.Join(t.TempDir(), "wh.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB, db.NewWithDB(sqlDB, db.SQLite{}, zaptest.NewLogger(t))
}

func sqliteTableExists(t *testing.T, sqlDB *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, sqlDB.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n))
	return n > 0
}

func sqliteRows(t *testing.T, sqlDB *sql.DB, name string) int {
	t.Helper()
	var n int
	require.NoError(t, sqlDB.QueryRow("SELECT COUNT(*) FROM "+name).Scan(&n))
	return n
}

// End to end against a real SQLite warehouse.
func TestSearchPreprocessor_SQLiteIdempotentRuns(t *testing.T) {
	ctx := context.Background()
	sqlDB, client := openSQLiteWarehouse(t)

	cfg := testIngestConfig(3)
	embedder := NewChunkEmbedder(&indexProvider{dim: 3}, 3, 2, 3, time.Second, nil)
	p, err := NewSearchPreprocessor(client, NewDocumentExtractor(nil, false, nil), embedder, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.True(t, first.Ingested)

	var rows int
	require.NoError(t, sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM plan_chunks").Scan(&rows))
	assert.Equal(t, first.ChunkCount, rows)

	second, err := p.Run(ctx)
	require.NoError(t, err)
	assert.False(t, second.Ingested)
	require.NoError(t, sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM plan_chunks").Scan(&rows))
	assert.Equal(t, first.ChunkCount, rows)

	hits, err := db.NewSearcher(client.DB(), client.Dialect()).Search(ctx, *second.Service, models.SearchRequest{Query: "hiring"})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.True(t, strings.Contains(strings.ToLower(hits[0].Text), "hiring"))
}

func TestSearchPreprocessor_SQLiteFailedRunLeavesNoTable(t *testing.T) {
	ctx := context.Background()
	sqlDB, client := openSQLiteWarehouse(t)
	extractor := NewDocumentExtractor(nil, false, nil)
	log := zaptest.NewLogger(t)

	good, err := NewSearchPreprocessor(client, extractor,
		NewChunkEmbedder(&indexProvider{dim: 3}, 3, 1, 3, time.Second, nil), testIngestConfig(3), log)
	require.NoError(t, err)
	broken, err := NewSearchPreprocessor(client, extractor,
		NewChunkEmbedder(&indexProvider{dim: 3, err: statusErr{code: 503}}, 3, 1, 3, time.Second, nil), testIngestConfig(3), log)
	require.NoError(t, err)

	report, err := good.WithOptions(RunOptions{SourceFile: "testdata/does_not_exist.pdf"}).Run(ctx)
	require.ErrorIs(t, err, core.ErrDocumentNotFound)
	assert.Equal(t, core.StageLoadDocument, report.FailedStage)
	assert.False(t, sqliteTableExists(t, sqlDB, "plan_chunks"))

	report, err = broken.Run(ctx)
	require.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Equal(t, core.StageEmbed, report.FailedStage)
	assert.False(t, sqliteTableExists(t, sqlDB, "plan_chunks"))

	report, err = good.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Ingested, "a run after failed attempts still ingests")
	assert.Equal(t, report.ChunkCount, sqliteRows(t, sqlDB, "plan_chunks"))
}

func TestSearchPreprocessor_SQLiteForcedReingest(t *testing.T) {
	ctx := context.Background()
	sqlDB, client := openSQLiteWarehouse(t)
	extractor := NewDocumentExtractor(nil, false, nil)
	log := zaptest.NewLogger(t)

	good, err := NewSearchPreprocessor(client, extractor,
		NewChunkEmbedder(&indexProvider{dim: 3}, 3, 1, 3, time.Second, nil), testIngestConfig(3), log)
	require.NoError(t, err)
	broken, err := NewSearchPreprocessor(client, extractor,
		NewChunkEmbedder(&indexProvider{dim: 3, err: statusErr{code: 429}}, 3, 1, 3, time.Second, nil), testIngestConfig(3), log)
	require.NoError(t, err)

	first, err := good.Run(ctx)
	require.NoError(t, err)
	require.True(t, first.Ingested)
	require.NotNil(t, first.Service)
	want := sqliteRows(t, sqlDB, "plan_chunks")
	require.Equal(t, first.ChunkCount, want)

	force := RunOptions{Force: true}

	_, err = good.WithOptions(RunOptions{Force: true, SourceFile: "testdata/does_not_exist.pdf"}).Run(ctx)
	require.ErrorIs(t, err, core.ErrDocumentNotFound)
	assert.Equal(t, want, sqliteRows(t, sqlDB, "plan_chunks"), "a failed forced run keeps the previous data")

	_, err = broken.WithOptions(force).Run(ctx)
	require.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Equal(t, want, sqliteRows(t, sqlDB, "plan_chunks"))

	again, err := good.WithOptions(force).Run(ctx)
	require.NoError(t, err)
	assert.True(t, again.Ingested)
	require.NotNil(t, again.Service)
	assert.Equal(t, want, sqliteRows(t, sqlDB, "plan_chunks"), "forced runs replace rows instead of appending")

	hits, err := db.NewSearcher(client.DB(), client.Dialect()).Search(ctx, *again.Service, models.SearchRequest{Query: "hiring"})
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}
