package ingestion_engine

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// SearchPreprocessor runs the document → chunk → (embed) → provision → load → register pipeline.
// A run whose target table already exists skips straight to registering the service.
type SearchPreprocessor struct {
	warehouse core.Warehouse
	loader    core.DocumentLoader
	chunker   *Chunker
	embedder  *ChunkEmbedder // nil when embeddings are disabled
	cfg       *IngestConfig
	log       *zap.Logger
}

// NewSearchPreprocessor validates the chunk settings up front. embedder may be nil.
func NewSearchPreprocessor(wh core.Warehouse, loader core.DocumentLoader, embedder *ChunkEmbedder, cfg *IngestConfig, log *zap.Logger) (*SearchPreprocessor, error) {
	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SearchPreprocessor{
		warehouse: wh,
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		cfg:       cfg,
		log:       log,
	}, nil
}

func (p *SearchPreprocessor) Name() string { return PipelineSearch }

// WithOptions returns a copy of the pipeline bound to opts. The receiver is not modified.
func (p *SearchPreprocessor) WithOptions(opts RunOptions) Pipeline {
	cfg := *p.cfg
	if opts.SourceFile != "" {
		cfg.SourceFile = opts.SourceFile
	}
	cfg.Force = cfg.Force || opts.Force
	cp := *p
	cp.cfg = &cfg
	return &cp
}

// Run executes one pass of the state machine. The report is returned on every path;
// errors come back exactly as the failing stage produced them.
func (p *SearchPreprocessor) Run(ctx context.Context) (*RunReport, error) {
	r := newRun(PipelineSearch, p.log)
	defer r.finish()

	sess, err := p.warehouse.OpenSession(ctx)
	if err != nil {
		return r.fail(core.NewStageError(core.StageCheckExists, core.ErrProvision, err))
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.log.Warn("closing warehouse session", zap.Error(cerr))
		}
	}()

	table := p.cfg.Table
	prov := sess.Provisioner(table)

	r.advance(StateCheckExists)
	var exists bool
	if err := callWithTimeout(ctx, p.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		exists, err = prov.TableExists(ctx)
		return err
	}); err != nil {
		return r.fail(err)
	}

	if exists && !p.cfg.Force {
		r.advance(StateSkipIngest)
	} else {
		if err := p.ingest(ctx, r, sess, prov); err != nil {
			return r.fail(err)
		}
	}

	r.advance(StateRegisterIndex)
	var svc *models.RetrievalService
	if err := callWithTimeout(ctx, p.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		svc, err = sess.Registrar().Declare(ctx, p.cfg.Service, table)
		return err
	}); err != nil {
		r.report.DataDurable = true
		return r.fail(err)
	}
	r.report.Service = svc
	source := table.Name
	if p.cfg.SourceFile != "" {
		source = filepath.Base(p.cfg.SourceFile)
	}
	r.report.Tool = models.SearchTool{
		Name:            svc.Name,
		Description:     "searches the chunks of " + source,
		ServiceName:     svc.Database + "." + svc.Schema + "." + svc.Name,
		DataDescription: "text chunks of " + source,
		RetrievalColumn: []string{svc.SearchColumn},
		TopK:            models.DefaultTopK,
	}

	r.advance(StateDone)
	return r.report, nil
}

// ingest reads, chunks and embeds the whole document before touching the table, so
// a failure in those stages leaves the warehouse exactly as the run found it.
func (p *SearchPreprocessor) ingest(ctx context.Context, r *run, sess core.WarehouseSession, prov core.SchemaProvisioner) error {
	if p.cfg.SourceFile == "" {
		return core.NewStageError(core.StageLoadDocument, core.ErrDocumentNotFound, errNoSource)
	}

	r.advance(StateChunk)
	var pages []models.Page
	if err := callWithTimeout(ctx, p.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		pages, err = p.loader.Load(ctx, p.cfg.SourceFile)
		return err
	}); err != nil {
		return err
	}

	chunks, err := p.chunkAndEmbed(ctx, r, filepath.Base(p.cfg.SourceFile), pages)
	if err != nil {
		return err
	}
	r.report.ChunkCount = len(chunks)

	r.advance(StateProvision)
	if err := callWithTimeout(ctx, p.cfg.CallTimeout, prov.Provision); err != nil {
		return err
	}

	r.advance(StateLoad)
	if err := callWithTimeout(ctx, p.cfg.CallTimeout, func(ctx context.Context) error {
		return sess.Loader().LoadChunks(ctx, p.cfg.Table, chunks)
	}); err != nil {
		discardTable(ctx, r, prov, p.cfg.CallTimeout)
		return err
	}
	r.report.Ingested = true
	r.report.RowCount = len(chunks)
	return nil
}

// discardTable drops the table a failed load left empty, so the next run ingests
// again instead of skipping over it.
func discardTable(ctx context.Context, r *run, prov core.SchemaProvisioner, timeout time.Duration) {
	if err := callWithTimeout(context.WithoutCancel(ctx), timeout, prov.Drop); err != nil {
		r.log.Warn("dropping table after failed load", zap.Error(err))
	}
}

// chunkAndEmbed wires the chunk stream into the embedder, or just collects it when
// embeddings are disabled.
func (p *SearchPreprocessor) chunkAndEmbed(ctx context.Context, r *run, fileName string, pages []models.Page) ([]models.Chunk, error) {
	g, gctx := errgroup.WithContext(ctx)
	chunkCh := streamChunk(gctx, g, p.chunker.Chunks(fileName, pages))

	var chunks []models.Chunk
	if p.embedder == nil {
		g.Go(func() error {
			for c := range chunkCh {
				chunks = append(chunks, c)
			}
			return nil
		})
	} else {
		r.advance(StateEmbed)
		g.Go(func() error {
			var err error
			chunks, err = p.embedder.embedStream(gctx, chunkCh)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// callWithTimeout bounds one external call. A deadline hit is returned as the
// call's own error so it keeps the stage's error kind.
func callWithTimeout(ctx context.Context, timeout time.Duration, call func(context.Context) error) error {
	if timeout <= 0 {
		return call(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(cctx)
}

// run tracks the state transitions of one pipeline execution.
type run struct {
	report *RunReport
	log    *zap.Logger
}

func newRun(pipeline string, log *zap.Logger) *run {
	id := uuid.NewString()
	r := &run{
		report: &RunReport{RunID: id, Pipeline: pipeline, State: StateStart, StartedAt: time.Now().UTC()},
		log:    log.With(zap.String("run_id", id), zap.String("pipeline", pipeline)),
	}
	r.log.Info("run started")
	return r
}

func (r *run) advance(s RunState) {
	r.report.State = s
	r.log.Info("run state", zap.String("state", string(s)))
}

func (r *run) fail(err error) (*RunReport, error) {
	stage := core.StageOf(err)
	if stage == "" {
		stage = string(r.report.State)
	}
	r.report.FailedStage = stage
	r.report.State = StateFailed
	r.log.Error("run failed",
		zap.String("stage", stage),
		zap.Bool("data_durable", r.report.DataDurable),
		zap.Error(err))
	return r.report, err
}

func (r *run) finish() {
	r.report.FinishedAt = time.Now().UTC()
	if r.report.State == StateDone {
		r.log.Info("run finished",
			zap.Bool("ingested", r.report.Ingested),
			zap.Int("rows", r.report.RowCount),
			zap.Duration("took", r.report.FinishedAt.Sub(r.report.StartedAt)))
	}
}

var errNoSource = errors.New("no source file configured")
