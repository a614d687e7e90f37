package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

var ErrObjectNotFound = errors.New("object not found")

// BlobStore holds original uploaded documents under hotel-scoped keys.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Attrs(ctx context.Context, key string) (*ObjectAttrs, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	PublicURL(key string) string
	// SignedURL returns a time-limited GET URL. In emulator mode, which cannot
	// sign, it returns the public media URL.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
	ETag        string
}

type blobStore struct {
	log           *logger.Logger
	client        *storage.Client
	httpClient    *http.Client
	mode          StorageMode
	emulatorHost  string
	bucket        string
	cdnDomain     string
	publicBaseURL string
	signedTTL     time.Duration
}

// NewBlobStore opens the document bucket described by cfg. httpClient is
// used for emulator reads and may be nil.
func NewBlobStore(ctx context.Context, log *logger.Logger, cfg StorageConfig, httpClient *http.Client) (BlobStore, error) {
	if err := ValidateStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	publicBase := cfg.PublicBaseURL
	if publicBase == "" && cfg.IsEmulator() {
		publicBase = cfg.EmulatorHost
	}
	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}

	serviceLog := log.With("service", "BlobStore")
	serviceLog.Info(
		"Object storage initialized",
		"mode", cfg.Mode,
		"mode_source", cfg.ModeSource(),
		"emulator_host", cfg.EmulatorHost,
		"public_base_url", publicBase,
		"bucket", cfg.Bucket,
	)
	return &blobStore{
		log:           serviceLog,
		client:        client,
		httpClient:    httpClient,
		mode:          cfg.Mode,
		emulatorHost:  strings.TrimRight(cfg.EmulatorHost, "/"),
		bucket:        cfg.Bucket,
		cdnDomain:     cfg.CDNDomain,
		publicBaseURL: strings.TrimRight(publicBase, "/"),
		signedTTL:     ttl,
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg StorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case StorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case StorageModeGCSEmulator:
		// The storage client only honours the emulator through this variable.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &StorageConfigError{Code: StorageConfigErrorInvalidMode, Value: string(cfg.Mode)}
	}
}

func (bs *blobStore) isEmulator() bool {
	return bs.mode == StorageModeGCSEmulator && bs.emulatorHost != ""
}

func (bs *blobStore) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.client.Bucket(bs.bucket).Object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer %q: %w", key, err)
	}
	return nil
}

// readCloserWithCancel keeps the request context alive until the caller
// closes the body.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *blobStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if bs.isEmulator() {
		resp, err := bs.emulatorGet(ctx2, emulatorObjectURL(bs.emulatorHost, bs.bucket, key, true))
		if err != nil {
			cancel()
			return nil, err
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}
	r, err := bs.client.Bucket(bs.bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("open object reader %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (bs *blobStore) Attrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if bs.isEmulator() {
		resp, err := bs.emulatorGet(ctx, emulatorObjectURL(bs.emulatorHost, bs.bucket, key, false))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		var payload struct {
			Size        string `json:"size"`
			ContentType string `json:"contentType"`
			Updated     string `json:"updated"`
			ETag        string `json:"etag"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode emulator attrs: %w", err)
		}
		size, _ := strconv.ParseInt(strings.TrimSpace(payload.Size), 10, 64)
		updated, _ := time.Parse(time.RFC3339, strings.TrimSpace(payload.Updated))
		return &ObjectAttrs{Size: size, ContentType: payload.ContentType, Updated: updated, ETag: payload.ETag}, nil
	}

	attrs, err := bs.client.Bucket(bs.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("object attrs %q: %w", key, err)
	}
	return &ObjectAttrs{Size: attrs.Size, ContentType: attrs.ContentType, Updated: attrs.Updated, ETag: attrs.Etag}, nil
}

// Delete treats a missing object as already deleted.
func (bs *blobStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := bs.client.Bucket(bs.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %q in bucket %q: %w", key, bs.bucket, err)
	}
	return nil
}

func (bs *blobStore) DeletePrefix(ctx context.Context, prefix string) error {
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return errors.New("refusing to delete an empty prefix")
	}
	listCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := bs.client.Bucket(bs.bucket).Objects(listCtx, &storage.Query{Prefix: prefix})
	var firstErr error
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("list prefix %q: %w", prefix, err)
		}
		if err := bs.Delete(ctx, attrs.Name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (bs *blobStore) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
	}
	if bs.mode == StorageModeGCSEmulator {
		base := bs.publicBaseURL
		if base == "" {
			base = bs.emulatorHost
		}
		if base != "" {
			return emulatorObjectURL(base, bs.bucket, key, true)
		}
	}
	if bs.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, bs.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucket, key)
}

func (bs *blobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("object key required")
	}
	if bs.mode == StorageModeGCSEmulator {
		return bs.PublicURL(key), nil
	}
	if ttl <= 0 {
		ttl = bs.signedTTL
	}
	signed, err := bs.client.Bucket(bs.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %q: %w", key, err)
	}
	return signed, nil
}

func (bs *blobStore) emulatorGet(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build emulator request: %w", err)
	}
	resp, err := bs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("emulator request: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, target)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("emulator request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func emulatorObjectURL(base, bucket, key string, media bool) string {
	u := fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s",
		strings.TrimRight(strings.TrimSpace(base), "/"),
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
	if media {
		u += "?alt=media"
	}
	return u
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case s == "":
		return ""
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".html"), strings.HasSuffix(s, ".htm"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(s, ".md"), strings.HasSuffix(s, ".markdown"):
		return "text/markdown; charset=utf-8"
	case strings.HasSuffix(s, ".txt"):
		return "text/plain; charset=utf-8"
	case strings.HasSuffix(s, ".csv"):
		return "text/csv; charset=utf-8"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".tif"), strings.HasSuffix(s, ".tiff"):
		return "image/tiff"
	default:
		return ""
	}
}
