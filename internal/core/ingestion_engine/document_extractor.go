package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/tmc/langchaingo/documentloaders"
	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// DocumentExtractor implements core.DocumentLoader. PDFs are read page by page with
// langchaingo, plain text is taken verbatim and office/markup formats go through docconv.
type DocumentExtractor struct {
	obj            core.ObjectClient
	useReadability bool
	log            *zap.Logger
}

var _ core.DocumentLoader = (*DocumentExtractor)(nil)

// NewDocumentExtractor builds a loader. obj may be nil when no object storage is configured;
// s3:// paths then fail with ErrDocumentNotFound.
func NewDocumentExtractor(obj core.ObjectClient, useReadability bool, log *zap.Logger) *DocumentExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentExtractor{obj: obj, useReadability: useReadability, log: log}
}

func (e *DocumentExtractor) Load(ctx context.Context, path string) ([]models.Page, error) {
	data, err := e.read(ctx, path)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		pages, err = extractPDF(ctx, data)
	case ".txt", ".md", ".markdown", "":
		pages = splitPages(string(data))
	default:
		pages, err = e.convert(data, path)
	}
	if err != nil {
		return nil, core.NewStageError(core.StageLoadDocument, core.ErrUnreadableDocument, fmt.Errorf("%s: %w", path, err))
	}

	e.log.Info("document loaded", zap.String("path", path), zap.Int("pages", len(pages)), zap.Int("bytes", len(data)))
	return pages, nil
}

func (e *DocumentExtractor) read(ctx context.Context, path string) ([]byte, error) {
	if bucket, key, ok := parseS3URI(path); ok {
		if e.obj == nil {
			return nil, core.NewStageError(core.StageLoadDocument, core.ErrDocumentNotFound,
				fmt.Errorf("%s: object storage is not configured", path))
		}
		data, err := e.obj.GetFile(ctx, bucket, key)
		if err != nil {
			kind := core.ErrUnreadableDocument
			if errors.Is(err, core.ErrDocumentNotFound) {
				kind = core.ErrDocumentNotFound
			}
			return nil, core.NewStageError(core.StageLoadDocument, kind, err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.NewStageError(core.StageLoadDocument, core.ErrDocumentNotFound, err)
	}
	if err != nil {
		return nil, core.NewStageError(core.StageLoadDocument, core.ErrUnreadableDocument, err)
	}
	return data, nil
}

func (e *DocumentExtractor) convert(data []byte, path string) ([]models.Page, error) {
	res, err := docconv.Convert(bytes.NewReader(data), docconv.MimeTypeByExtension(path), e.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}
	if strings.TrimSpace(res.Body) == "" {
		e.log.Warn("docconv extracted empty text", zap.String("path", path))
	}
	return splitPages(res.Body), nil
}

// extractPDF returns one page unit per PDF page. The PDF reader panics on some
// malformed inputs, which is reported as an ordinary error.
func extractPDF(ctx context.Context, data []byte) (pages []models.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf: %v", r)
		}
	}()

	docs, err := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}

	pages = make([]models.Page, 0, len(docs))
	for i, d := range docs {
		num := i + 1
		if p, ok := d.Metadata["page"].(int); ok {
			num = p
		}
		text := cleanText(d.PageContent)
		if text == "" {
			continue
		}
		pages = append(pages, models.Page{Number: num, Text: text})
	}
	return pages, nil
}

// splitPages treats form feeds as page breaks.
func splitPages(text string) []models.Page {
	var pages []models.Page
	for i, raw := range strings.Split(text, "\f") {
		if t := cleanText(raw); t != "" {
			pages = append(pages, models.Page{Number: i + 1, Text: t})
		}
	}
	return pages
}

// cleanText drops invalid UTF-8, normalises line endings and trims the page.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// parseS3URI accepts s3://bucket/key and virtual-hosted style
// https://bucket.s3.region.amazonaws.com/key URLs.
func parseS3URI(u string) (bucket, key string, ok bool) {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(parsed.Path, "/")
	switch {
	case parsed.Scheme == "s3":
		bucket = parsed.Host
	case parsed.Scheme == "https" && strings.Contains(parsed.Host, ".s3.") && strings.HasSuffix(parsed.Host, ".amazonaws.com"):
		bucket = strings.SplitN(parsed.Host, ".", 2)[0]
	default:
		return "", "", false
	}
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
