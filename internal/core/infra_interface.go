package core

import (
	"context"
	"io"

	"github.com/markdave123-py/cortexprep/internal/models"
)

// SchemaProvisioner makes sure the target table and everything above it exists.
type SchemaProvisioner interface {
	TableExists(ctx context.Context) (bool, error)
	// Provision creates database, warehouse, schema and table in that order.
	// The table is dropped first if present.
	Provision(ctx context.Context) error
	// EnsureReady provisions only when the table is missing and reports whether it did.
	EnsureReady(ctx context.Context) (fresh bool, err error)
	// Drop removes the target table if present.
	Drop(ctx context.Context) error
}

// BulkLoader writes rows into an already provisioned table inside one transaction.
type BulkLoader interface {
	LoadChunks(ctx context.Context, table models.TargetTable, chunks []models.Chunk) error
	LoadRows(ctx context.Context, table models.TargetTable, rows [][]any) error
}

// IndexRegistrar declares (create-or-replace) a retrieval service over a table.
type IndexRegistrar interface {
	Declare(ctx context.Context, svc models.RetrievalService, table models.TargetTable) (*models.RetrievalService, error)
}

// Searcher queries a declared retrieval service.
type Searcher interface {
	Search(ctx context.Context, svc models.RetrievalService, req models.SearchRequest) ([]models.SearchHit, error)
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// WarehouseSession binds the warehouse components of one run to a single connection.
// Close releases the connection and must be called on every exit path.
type WarehouseSession interface {
	Provisioner(table models.TargetTable) SchemaProvisioner
	Loader() BulkLoader
	Registrar() IndexRegistrar
	Searcher() Searcher
	// EnableAnalystAOAI turns on Azure OpenAI models for the analyst; ErrUnsupportedByDialect
	// when the backend has no such switch.
	EnableAnalystAOAI(ctx context.Context) error
	Close() error
}

// Warehouse hands out run-scoped sessions.
type Warehouse interface {
	OpenSession(ctx context.Context) (WarehouseSession, error)
}
