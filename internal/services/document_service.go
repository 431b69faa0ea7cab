package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/cortexprep/internal/core"
)

// DocumentService stages source documents in object storage so a later run can
// ingest them by their s3:// URI.
type DocumentService struct {
	storage core.ObjectClient
	bucket  string
}

// UploadedDocument is the result of staging one document.
type UploadedDocument struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	SourceURI   string `json:"source_uri"`
	StorageURL  string `json:"storage_url"`
	ContentType string `json:"content_type"`
}

func NewDocumentService(storage core.ObjectClient, bucket string) *DocumentService {
	return &DocumentService{storage: storage, bucket: bucket}
}

// Enabled reports whether object storage is configured.
func (s *DocumentService) Enabled() bool {
	return s != nil && s.storage != nil && s.bucket != ""
}

func (s *DocumentService) Upload(ctx context.Context, filename, contentType string, data io.Reader) (*UploadedDocument, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("object storage is not configured")
	}
	docID := uuid.NewString()
	key := s.objectKey(docID, filename)

	url, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType)
	if err != nil {
		return nil, err
	}
	return &UploadedDocument{
		ID:          docID,
		FileName:    path.Base(key),
		SourceURI:   "s3://" + s.bucket + "/" + key,
		StorageURL:  url,
		ContentType: contentType,
	}, nil
}

// objectKey creates a consistent S3 key layout.
func (s *DocumentService) objectKey(docID, filename string) string {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	filename = strings.ReplaceAll(filename, " ", "_")
	if filename == "." || filename == "/" || filename == "" {
		filename = "document"
	}
	return path.Join("documents", docID, filename)
}
