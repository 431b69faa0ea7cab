package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/api/handlers"
	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/core"
	db "github.com/markdave123-py/cortexprep/internal/core/database"
	"github.com/markdave123-py/cortexprep/internal/core/ingestion_engine"
	"github.com/markdave123-py/cortexprep/internal/core/llm"
	objectclient "github.com/markdave123-py/cortexprep/internal/core/object-client"
	"github.com/markdave123-py/cortexprep/internal/services"
)

type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Warehouse *db.DatabaseClient
	Search    *ingestion_engine.SearchPreprocessor
	Analyst   *ingestion_engine.AnalystPreprocessor
	Queue     *ingestion_engine.RunQueue
	Tools     *services.ToolService
	Agent     core.AgentGateway // nil when AGENT_ENDPOINT is unset
	Server    *Server

	handlers Handlers
	closers  []io.Closer
}

// NewApp connects every external dependency named in cfg and wires the pipelines,
// the run queue and the HTTP server. The queue is not started.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("warehouse connected", zap.String("dialect", cfg.Dialect))

	var obj core.ObjectClient
	if cfg.ObjectStorageEnabled() {
		s3c, err := objectclient.NewS3Client(appCtx, cfg, log)
		if err != nil {
			_ = dbClient.Close()
			return nil, err
		}
		obj = s3c
	}

	provider, embedCloser, err := llm.NewEmbeddingProvider(appCtx, cfg, log)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	var agent core.AgentGateway
	if cfg.AgentEndpoint != "" {
		ac, err := services.NewAgentClient(cfg, log)
		if err != nil {
			_ = embedCloser.Close()
			_ = dbClient.Close()
			return nil, err
		}
		agent = ac
	}

	a, err := assemble(cfg, log, dbClient, obj, provider, agent)
	if err != nil {
		_ = embedCloser.Close()
		_ = dbClient.Close()
		return nil, err
	}
	a.closers = append(a.closers, embedCloser)
	return a, nil
}

// assemble wires already connected dependencies. obj, provider and agent may be nil.
func assemble(cfg *config.Config, log *zap.Logger, wh *db.DatabaseClient, obj core.ObjectClient, provider core.EmbeddingProvider, agent core.AgentGateway) (*App, error) {
	var embedder *ingestion_engine.ChunkEmbedder
	if provider != nil {
		embedder = ingestion_engine.NewChunkEmbedder(provider, cfg.EmbedBatchSize, cfg.EmbedConcurrency, cfg.EmbedDim, cfg.CallTimeout, log)
	}

	extractor := ingestion_engine.NewDocumentExtractor(obj, false, log)
	search, err := ingestion_engine.NewSearchPreprocessor(wh, extractor, embedder, ingestion_engine.NewIngestConfig(cfg), log)
	if err != nil {
		return nil, err
	}
	analyst := ingestion_engine.NewAnalystPreprocessor(wh, obj, ingestion_engine.NewAnalystConfig(cfg), log)

	tools := services.NewToolService()
	tools.RegisterFunctionTools(cfg.FunctionToolBaseURL())

	queue := ingestion_engine.NewRunQueue(log, search, analyst)
	queue.OnFinish(func(r *ingestion_engine.RunReport) {
		if r.State == ingestion_engine.StateDone && r.Tool != nil {
			tools.Register(r.Tool)
			log.Info("agent tool registered", zap.String("tool", r.Tool.ToolName()), zap.String("type", string(r.Tool.ToolType())))
		}
	})

	var docs *services.DocumentService
	if obj != nil {
		docs = services.NewDocumentService(obj, cfg.BucketName)
	}

	h := Handlers{
		Preprocess: handlers.NewPreprocessHandler(queue, log),
		Search: handlers.NewSearchHandler(
			services.NewSearchService(db.NewSearcher(wh.DB(), wh.Dialect()), ingestion_engine.SearchServiceFromConfig(cfg)), log),
		Agent:     handlers.NewAgentHandler(agent, tools, log),
		Documents: handlers.NewDocumentHandler(docs, queue, log),
		Health:    handlers.NewHealthHandler(wh, cfg.Dialect),
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Warehouse: wh,
		Search:    search,
		Analyst:   analyst,
		Queue:     queue,
		Tools:     tools,
		Agent:     agent,
		Server:    NewServer(cfg, log, h),
		handlers:  h,
	}, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.Warehouse != nil {
		errs = append(errs, a.Warehouse.Close())
	}
	return errors.Join(errs...)
}
