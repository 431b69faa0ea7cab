package ingestion_engine

import (
	"time"

	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// Pipeline names accepted by the run queue.
const (
	PipelineSearch  = "search"
	PipelineAnalyst = "analyst"
)

// IngestConfig tunes the search preprocessing pipeline.
//
// ChunkSize / ChunkOverlap: window and overlap in runes.
// BatchSize:                chunks per embedding request.
// EmbedConcurrency:         embedding requests in flight at once.
// CallTimeout:              upper bound on every external call.
// Force:                    drop and reload the table even when it already exists.
type IngestConfig struct {
	SourceFile       string
	Table            models.TargetTable
	Service          models.RetrievalService
	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	EmbedConcurrency int
	CallTimeout      time.Duration
	Force            bool
}

// NewIngestConfig derives the search pipeline settings from the environment config.
func NewIngestConfig(cfg *config.Config) *IngestConfig {
	return &IngestConfig{
		SourceFile:       cfg.SourceFile,
		Table:            models.NewChunkTable(cfg.Database, cfg.Schema, cfg.SearchTable, cfg.VectorDim()),
		Service:          SearchServiceFromConfig(cfg),
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		BatchSize:        cfg.EmbedBatchSize,
		EmbedConcurrency: cfg.EmbedConcurrency,
		CallTimeout:      cfg.CallTimeout,
	}
}

// SearchServiceFromConfig describes the retrieval service declared over the chunk table.
func SearchServiceFromConfig(cfg *config.Config) models.RetrievalService {
	return models.RetrievalService{
		Name:             cfg.SearchService,
		Database:         cfg.Database,
		Schema:           cfg.Schema,
		Warehouse:        cfg.Warehouse,
		SourceTable:      cfg.SearchTable,
		SearchColumn:     models.ColumnText,
		AttributeColumns: []string{models.ColumnFileName, models.ColumnChunkID},
		TargetLag:        cfg.TargetLag,
	}
}

// AnalystConfig tunes the tabular analyst pipeline.
type AnalystConfig struct {
	DataFile          string
	Table             models.TargetTable
	SemanticModelPath string
	Bucket            string
	EnableAOAI        bool
	CallTimeout       time.Duration
	Force             bool
}

func NewAnalystConfig(cfg *config.Config) *AnalystConfig {
	return &AnalystConfig{
		DataFile:          cfg.AnalystDataFile,
		Table:             models.NewWorkRecordTable(cfg.Database, cfg.Schema, cfg.AnalystTable),
		SemanticModelPath: cfg.SemanticModelPath,
		Bucket:            cfg.BucketName,
		EnableAOAI:        cfg.AnalystEnableAOAI,
		CallTimeout:       cfg.CallTimeout,
	}
}

// RunState is a step of the preprocessing state machine.
type RunState string

const (
	StateStart         RunState = "START"
	StateCheckExists   RunState = "CHECK_EXISTS"
	StateSkipIngest    RunState = "SKIP_INGEST"
	StateProvision     RunState = "PROVISION"
	StateChunk         RunState = "CHUNK"
	StateEmbed         RunState = "EMBED"
	StateLoad          RunState = "LOAD"
	StateRegisterIndex RunState = "REGISTER_INDEX"
	StateDone          RunState = "DONE"
	StateFailed        RunState = "FAILED"
)

// RunReport is returned by every run, successful or not.
//
// Ingested:    this run provisioned the table and loaded rows.
// DataDurable: rows are committed even though the run failed afterwards.
type RunReport struct {
	RunID       string                   `json:"run_id"`
	Pipeline    string                   `json:"pipeline"`
	State       RunState                 `json:"state"`
	FailedStage string                   `json:"failed_stage,omitempty"`
	Ingested    bool                     `json:"ingested"`
	ChunkCount  int                      `json:"chunk_count"`
	RowCount    int                      `json:"row_count"`
	DataDurable bool                     `json:"data_durable"`
	Service     *models.RetrievalService `json:"service,omitempty"`
	Tool        models.Tool              `json:"tool,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	FinishedAt  time.Time                `json:"finished_at"`
}
