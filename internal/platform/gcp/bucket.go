package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type BucketCategory string

const (
	// BucketCategoryArtifact holds receipts and certificate documents.
	BucketCategoryArtifact BucketCategory = "artifact"
	// BucketCategoryContent holds lesson media served through signed URLs.
	BucketCategoryContent BucketCategory = "content"
)

type BucketService interface {
	Upload(ctx context.Context, category BucketCategory, key, contentType string, data []byte) error
	Download(ctx context.Context, category BucketCategory, key string) ([]byte, error)
	Exists(ctx context.Context, category BucketCategory, key string) (bool, error)
	Delete(ctx context.Context, category BucketCategory, key string) error
	SignedURL(category BucketCategory, key string, ttl time.Duration) (string, error)
}

type bucketService struct {
	log            *logger.Logger
	storageClient  *storage.Client
	httpClient     *http.Client
	mode           StorageMode
	emulatorHost   string
	artifactBucket string
	contentBucket  string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	cfg, err := ResolveStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}
	return NewBucketServiceWithConfig(log, cfg)
}

func NewBucketServiceWithConfig(log *logger.Logger, cfg StorageConfig) (BucketService, error) {
	if err := ValidateStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	serviceLog := log.With("service", "BucketService")

	bs := &bucketService{
		log:            serviceLog,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		mode:           cfg.Mode,
		emulatorHost:   strings.TrimRight(cfg.EmulatorHost, "/"),
		artifactBucket: cfg.ArtifactBucket,
		contentBucket:  firstNonEmpty(cfg.ContentBucket, cfg.ArtifactBucket),
	}
	if !cfg.IsEmulatorMode() {
		opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
		client, err := storage.NewClient(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		bs.storageClient = client
	} else {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", bs.emulatorHost)
	}

	serviceLog.Info("Object storage initialized",
		"mode", cfg.Mode,
		"mode_inferred", cfg.ModeInferred,
		"emulator_host", cfg.EmulatorHost,
		"artifact_bucket", bs.artifactBucket,
		"content_bucket", bs.contentBucket,
	)
	return bs, nil
}

func (bs *bucketService) bucketName(category BucketCategory) (string, error) {
	switch category {
	case BucketCategoryArtifact:
		return bs.artifactBucket, nil
	case BucketCategoryContent:
		return bs.contentBucket, nil
	default:
		return "", fmt.Errorf("unknown bucket category: %s", category)
	}
}

func (bs *bucketService) isEmulatorMode() bool {
	return bs.mode == StorageModeGCSEmulator && bs.emulatorHost != ""
}

func (bs *bucketService) Upload(ctx context.Context, category BucketCategory, key, contentType string, data []byte) error {
	bucket, err := bs.bucketName(category)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if bs.isEmulatorMode() {
		u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
			bs.emulatorHost, url.PathEscape(bucket), url.QueryEscape(key))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
		if err != nil {
			return err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := bs.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("emulator upload: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("emulator upload failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil
	}

	w := bs.storageClient.Bucket(bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (bs *bucketService) Download(ctx context.Context, category BucketCategory, key string) ([]byte, error) {
	bucket, err := bs.bucketName(category)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if bs.isEmulatorMode() {
		resp, err := bs.emulatorGet(ctx, bs.emulatorObjectURL(bucket, key)+"?alt=media")
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, storage.ErrObjectNotExist
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("emulator download failed: status=%d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	r, err := bs.storageClient.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Exists reports false with a nil error only when the object is definitely absent.
func (bs *bucketService) Exists(ctx context.Context, category BucketCategory, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}
	bucket, err := bs.bucketName(category)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if bs.isEmulatorMode() {
		resp, err := bs.emulatorGet(ctx, bs.emulatorObjectURL(bucket, key))
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			return true, nil
		case http.StatusNotFound:
			return false, nil
		default:
			return false, fmt.Errorf("emulator attrs failed: status=%d", resp.StatusCode)
		}
	}

	_, err = bs.storageClient.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch GCS object attrs: %w", err)
	}
	return true, nil
}

func (bs *bucketService) Delete(ctx context.Context, category BucketCategory, key string) error {
	bucket, err := bs.bucketName(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if bs.isEmulatorMode() {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, bs.emulatorObjectURL(bucket, key), nil)
		if err != nil {
			return err
		}
		resp, err := bs.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("emulator delete: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
			return fmt.Errorf("emulator delete failed: status=%d", resp.StatusCode)
		}
		return nil
	}

	err = bs.storageClient.Bucket(bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, bucket, err)
	}
	return nil
}

// SignedURL returns a V4 signed GET URL. The emulator does not check
// signatures, so there the plain media URL is returned.
func (bs *bucketService) SignedURL(category BucketCategory, key string, ttl time.Duration) (string, error) {
	bucket, err := bs.bucketName(category)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if bs.isEmulatorMode() {
		return bs.emulatorObjectURL(bucket, key) + "?alt=media", nil
	}
	return bs.storageClient.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
}

func (bs *bucketService) emulatorObjectURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s", bs.emulatorHost, url.PathEscape(bucket), url.PathEscape(key))
}

func (bs *bucketService) emulatorGet(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := bs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("emulator request: %w", err)
	}
	return resp, nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	default:
		return ""
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
