// Package mirror keeps a copy of the synced documents' content in object
// storage. The portal database carries only metadata; the bytes live in a
// bucket keyed by record id. Mirroring is best-effort: a failed download
// or upload is logged and the metadata sync still converges.
package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"obecsync/internal/engine"
	"obecsync/internal/logging"
	"obecsync/internal/record"
)

var log = logging.Component("mirror")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// MaxBytes caps single-object downloads; 0 means no cap.
	MaxBytes int64
}

type Mirror struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
	http     *http.Client
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Mirror{
		client:   client,
		bucket:   cfg.Bucket,
		maxBytes: cfg.MaxBytes,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// Put downloads the document behind rec and stores its bytes under the
// record id.
func (m *Mirror) Put(ctx context.Context, rec record.Record) error {
	url := rec.Field("url")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if m.maxBytes > 0 {
		body = io.LimitReader(resp.Body, m.maxBytes)
	}
	_, err = m.client.PutObject(ctx, m.bucket, rec.ID, body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: rec.Field("mime_type"),
	})
	if err != nil {
		return fmt.Errorf("store object %s: %w", rec.ID, err)
	}
	return nil
}

// Remove deletes the mirrored object for id.
func (m *Mirror) Remove(ctx context.Context, id string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", id, err)
	}
	return nil
}

// Target decorates a file metadata target with content mirroring. Mirror
// errors never fail the record: metadata convergence is the engine's
// contract, the object copy catches up on the next run.
type Target struct {
	Inner  engine.Target
	Mirror *Mirror
}

func (t Target) List(ctx context.Context) ([]record.Record, error) {
	return t.Inner.List(ctx)
}

func (t Target) Create(ctx context.Context, rec record.Record) error {
	if err := t.Inner.Create(ctx, rec); err != nil {
		return err
	}
	if err := t.Mirror.Put(ctx, rec); err != nil {
		log.Warn("mirror put failed", "id", rec.ID, "error", err)
	}
	return nil
}

func (t Target) Update(ctx context.Context, id string, rec record.Record) error {
	if err := t.Inner.Update(ctx, id, rec); err != nil {
		return err
	}
	if err := t.Mirror.Put(ctx, rec); err != nil {
		log.Warn("mirror put failed", "id", rec.ID, "error", err)
	}
	return nil
}

func (t Target) Delete(ctx context.Context, id string) error {
	if err := t.Inner.Delete(ctx, id); err != nil {
		return err
	}
	if err := t.Mirror.Remove(ctx, id); err != nil {
		log.Warn("mirror remove failed", "id", id, "error", err)
	}
	return nil
}
