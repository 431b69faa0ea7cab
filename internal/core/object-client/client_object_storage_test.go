package objectclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	cfg "github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/core"
)

// fakeS3 serves path-style PUT and GET for a single in-memory namespace.
type fakeS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.contentTypes[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (*S3Client, *fakeS3, string) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewS3Client(context.Background(), &cfg.Config{
		AwsAccessKey: "test",
		AwsSecretKey: "secret",
		AwsRegion:    "us-east-1",
		S3Endpoint:   srv.URL + "/",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c, fake, srv.URL
}

func TestNewS3Client_RequiresCredentials(t *testing.T) {
	_, err := NewS3Client(context.Background(), &cfg.Config{AwsRegion: "us-east-1"}, nil)
	assert.ErrorContains(t, err, "credentials")

	_, err = NewS3Client(context.Background(), &cfg.Config{AwsAccessKey: "a", AwsSecretKey: "b"}, nil)
	assert.ErrorContains(t, err, "AWS_REGION")
}

func TestS3Client_Upload(t *testing.T) {
	c, fake, base := newTestClient(t)

	url, err := c.UploadFile(context.Background(), "models", "semantic_models/work_record.yaml",
		strings.NewReader("name: work_record\n"), "application/x-yaml")
	require.NoError(t, err)
	assert.Equal(t, base+"/models/semantic_models/work_record.yaml", url)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, string(fake.objects["models/semantic_models/work_record.yaml"]), "name: work_record")
	assert.Equal(t, "application/x-yaml", fake.contentTypes["models/semantic_models/work_record.yaml"])
}

func TestS3Client_GetFile(t *testing.T) {
	c, fake, _ := newTestClient(t)
	fake.objects["docs/plan.txt"] = []byte("quarterly plan")

	body, err := c.GetFile(context.Background(), "docs", "plan.txt")
	require.NoError(t, err)
	assert.Equal(t, "quarterly plan", string(body))

	_, err = c.GetFile(context.Background(), "docs", "missing.txt")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestObjectURL(t *testing.T) {
	c := &S3Client{region: "us-east-2"}
	assert.Equal(t, "https://b.s3.us-east-2.amazonaws.com/k/x.pdf", c.objectURL("b", "k/x.pdf"))
}
