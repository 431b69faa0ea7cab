package core

import (
	"context"

	"github.com/markdave123-py/cortexprep/internal/models"
)

// DocumentLoader reads a source document into ordered page units.
type DocumentLoader interface {
	// Load resolves path (local file or s3://bucket/key) and extracts its pages.
	// Fails with ErrDocumentNotFound or ErrUnreadableDocument.
	Load(ctx context.Context, path string) ([]models.Page, error)
}
