package gcp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

// fakeGCS implements the handful of JSON API routes the emulator path uses.
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/upload/storage/v1/b/"):
		bucket := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/upload/storage/v1/b/"), "/o")
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+r.URL.Query().Get("name")] = body
		w.WriteHeader(http.StatusOK)
	case strings.HasPrefix(r.URL.Path, "/storage/v1/b/"):
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/storage/v1/b/"), "/o/", 2)
		id := parts[0] + "/" + parts[1]
		data, ok := f.objects[id]
		switch {
		case r.Method == http.MethodDelete:
			delete(f.objects, id)
			w.WriteHeader(http.StatusNoContent)
		case !ok:
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Query().Get("alt") == "media":
			_, _ = w.Write(data)
		default:
			_, _ = w.Write([]byte(`{"name":"x"}`))
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newEmulatorBucket(t *testing.T) BucketService {
	t.Helper()
	srv := httptest.NewServer(&fakeGCS{objects: map[string][]byte{}})
	t.Cleanup(srv.Close)
	t.Setenv("STORAGE_EMULATOR_HOST", srv.URL)

	bs, err := NewBucketServiceWithConfig(logger.Nop(), StorageConfig{
		Mode:           StorageModeGCSEmulator,
		EmulatorHost:   srv.URL,
		ArtifactBucket: "artifacts",
		ContentBucket:  "lessons",
	})
	if err != nil {
		t.Fatalf("NewBucketServiceWithConfig: %v", err)
	}
	return bs
}

func TestEmulatorBucketRoundTrip(t *testing.T) {
	bs := newEmulatorBucket(t)
	ctx := context.Background()
	key := "receipts/abc.json"

	ok, err := bs.Exists(ctx, BucketCategoryArtifact, key)
	if err != nil || ok {
		t.Fatalf("Exists before upload: ok=%v err=%v", ok, err)
	}
	if err := bs.Upload(ctx, BucketCategoryArtifact, key, "", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	ok, err = bs.Exists(ctx, BucketCategoryArtifact, key)
	if err != nil || !ok {
		t.Fatalf("Exists after upload: ok=%v err=%v", ok, err)
	}
	data, err := bs.Download(ctx, BucketCategoryArtifact, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("Download: got=%q", data)
	}
	if ok, _ := bs.Exists(ctx, BucketCategoryContent, key); ok {
		t.Fatalf("object should not exist in the content bucket")
	}
	if err := bs.Delete(ctx, BucketCategoryArtifact, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := bs.Delete(ctx, BucketCategoryArtifact, key); err != nil {
		t.Fatalf("Delete of a missing object should succeed: %v", err)
	}
	if ok, _ := bs.Exists(ctx, BucketCategoryArtifact, key); ok {
		t.Fatalf("object should be gone")
	}
}

func TestEmulatorSignedURL(t *testing.T) {
	bs := newEmulatorBucket(t)
	u, err := bs.SignedURL(BucketCategoryContent, "lessons/intro.mp4", time.Minute)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if !strings.Contains(u, "/storage/v1/b/lessons/o/lessons%2Fintro.mp4?alt=media") {
		t.Fatalf("SignedURL: got=%q", u)
	}
	if _, err := bs.SignedURL(BucketCategory("avatar"), "x", time.Minute); err == nil {
		t.Fatalf("unknown category should fail")
	}
}

func TestExistsEmptyKey(t *testing.T) {
	bs := newEmulatorBucket(t)
	ok, err := bs.Exists(context.Background(), BucketCategoryArtifact, "  ")
	if err != nil || ok {
		t.Fatalf("empty key: ok=%v err=%v", ok, err)
	}
}
