package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"sync"
	"testing"

	"keepsake/internal/blobstore"
	"keepsake/internal/store"
)

// testChunkSize keeps objects spread over many chunks so boundary math is exercised.
const testChunkSize = 16

type testEnv struct {
	srv    *Server
	store  *store.Store
	blobs  *flakyProvider
	bucket func(name string) blobstore.Bucket
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	t.Setenv(allowRemoteEnvKey, "")

	st, err := store.Open(filepath.Join(t.TempDir(), "keepsake-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	registry := blobstore.NewRegistry(st.DB(), blobstore.RegistryOptions{ChunkSize: testChunkSize})
	blobs := &flakyProvider{Provider: registry, failDeletes: map[string]bool{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		srv:   New("127.0.0.1:0", StoresFrom(st), blobs, logger, opts),
		store: st,
		blobs: blobs,
	}
	env.bucket = func(name string) blobstore.Bucket {
		t.Helper()
		b, err := registry.Bucket(name)
		if err != nil {
			t.Fatalf("bucket %s: %v", name, err)
		}
		return b
	}
	return env
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, Options{})
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.serve(req)
}

// upload stores content directly in a bucket and returns its id.
func (e *testEnv) upload(t *testing.T, bucket, filename, contentType string, content []byte) blobstore.ObjectInfo {
	t.Helper()
	info, err := e.bucket(bucket).Upload(context.Background(), bytes.NewReader(content), blobstore.UploadOptions{
		Filename:    filename,
		ContentType: contentType,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return info
}

type filePart struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, file *filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if file != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		header.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSONBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func testPayload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte('a' + i%26)
	}
	return out
}

// flakyProvider wraps a real provider and fails deletes for selected object ids.
type flakyProvider struct {
	blobstore.Provider

	mu          sync.Mutex
	failDeletes map[string]bool
	deleteCalls []string
}

var errInjectedDelete = errors.New("injected delete failure")

func (p *flakyProvider) Bucket(name string) (blobstore.Bucket, error) {
	b, err := p.Provider.Bucket(name)
	if err != nil {
		return nil, err
	}
	return &flakyBucket{Bucket: b, provider: p}, nil
}

func (p *flakyProvider) failDelete(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failDeletes[id] = true
}

func (p *flakyProvider) deleted(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, call := range p.deleteCalls {
		if call == id {
			return true
		}
	}
	return false
}

type flakyBucket struct {
	blobstore.Bucket
	provider *flakyProvider
}

func (b *flakyBucket) Delete(ctx context.Context, id string) error {
	b.provider.mu.Lock()
	b.provider.deleteCalls = append(b.provider.deleteCalls, id)
	fail := b.provider.failDeletes[id]
	b.provider.mu.Unlock()
	if fail {
		return errInjectedDelete
	}
	return b.Bucket.Delete(ctx, id)
}

func blobstoreAll() blobstore.ListOptions {
	return blobstore.ListOptions{}
}
