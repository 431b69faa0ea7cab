package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// fakeWarehouse records which warehouse operations a run performed.
type fakeWarehouse struct {
	mu sync.Mutex

	exists     bool
	existsErr  error
	provErr    error
	loadErr    error
	declareErr error
	aoaiErr    error

	opened, closed  int
	provisioned     int
	dropped         int
	loadedChunks    []models.Chunk
	loadedRows      [][]any
	declared        []models.RetrievalService
	aoaiCalls       int
	existenceChecks int
}

func (w *fakeWarehouse) OpenSession(context.Context) (core.WarehouseSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened++
	return &fakeSession{w: w}, nil
}

type fakeSession struct{ w *fakeWarehouse }

func (s *fakeSession) Provisioner(models.TargetTable) core.SchemaProvisioner { return s }
func (s *fakeSession) Loader() core.BulkLoader                               { return s }
func (s *fakeSession) Registrar() core.IndexRegistrar                        { return s }
func (s *fakeSession) Searcher() core.Searcher                               { return s }

func (s *fakeSession) TableExists(context.Context) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.existenceChecks++
	return s.w.exists, s.w.existsErr
}

func (s *fakeSession) Provision(context.Context) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.provErr != nil {
		return s.w.provErr
	}
	s.w.provisioned++
	s.w.exists = true
	s.w.loadedChunks = nil
	s.w.loadedRows = nil
	return nil
}

func (s *fakeSession) EnsureReady(ctx context.Context) (bool, error) {
	exists, err := s.TableExists(ctx)
	if err != nil || exists {
		return false, err
	}
	return true, s.Provision(ctx)
}

func (s *fakeSession) Drop(context.Context) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.dropped++
	s.w.exists = false
	return nil
}

func (s *fakeSession) LoadChunks(_ context.Context, _ models.TargetTable, chunks []models.Chunk) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.loadErr != nil {
		return s.w.loadErr
	}
	s.w.loadedChunks = append(s.w.loadedChunks, chunks...)
	return nil
}

func (s *fakeSession) LoadRows(_ context.Context, _ models.TargetTable, rows [][]any) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.loadErr != nil {
		return s.w.loadErr
	}
	s.w.loadedRows = append(s.w.loadedRows, rows...)
	return nil
}

func (s *fakeSession) Declare(_ context.Context, svc models.RetrievalService, table models.TargetTable) (*models.RetrievalService, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.declareErr != nil {
		return nil, s.w.declareErr
	}
	s.w.declared = append(s.w.declared, svc)
	out := svc
	out.SourceTable = table.Name
	out.DeclaredAt = time.Now()
	return &out, nil
}

func (s *fakeSession) Search(context.Context, models.RetrievalService, models.SearchRequest) ([]models.SearchHit, error) {
	return nil, nil
}

func (s *fakeSession) EnableAnalystAOAI(context.Context) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.aoaiCalls++
	return s.w.aoaiErr
}

func (s *fakeSession) Close() error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.closed++
	return nil
}

// fakeDocLoader returns fixed pages.
type fakeDocLoader struct {
	pages []models.Page
	err   error
	calls atomic.Int32
}

func (l *fakeDocLoader) Load(context.Context, string) ([]models.Page, error) {
	l.calls.Add(1)
	return l.pages, l.err
}

// indexProvider embeds "tN" texts as a dim-wide vector whose first component is N.
// Earlier batches sleep longer so concurrent batches complete out of order.
type indexProvider struct {
	dim   int
	err   error
	calls atomic.Int32
}

func (p *indexProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	first := -1
	for i, t := range texts {
		n, err := strconv.Atoi(strings.TrimPrefix(t, "t"))
		if err != nil {
			n = len([]rune(t))
		}
		if first < 0 {
			first = n
		}
		v := make([]float32, p.dim)
		v[0] = float32(n)
		out[i] = v
	}
	select {
	case <-time.After(time.Duration(max(0, 20-first)) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return out, nil
}

// statusErr carries an upstream HTTP status.
type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("upstream returned %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

// fakeObjectClient keeps uploads in memory.
type fakeObjectClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{objects: map[string][]byte{}}
}

func (c *fakeObjectClient) UploadFile(_ context.Context, bucket, key string, data io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[bucket+"/"+key] = b
	return "s3://" + bucket + "/" + key, nil
}

func (c *fakeObjectClient) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	b, ok := c.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, core.ErrDocumentNotFound)
	}
	return b, nil
}
