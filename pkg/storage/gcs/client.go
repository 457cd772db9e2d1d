// Package gcs stores uploaded media in a Cloud Storage bucket through the
// JSON API.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/gcp"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

const (
	defaultPublicBase = "https://storage.googleapis.com"
	pingTimeout       = 5 * time.Second
)

// Client uploads objects into one bucket and builds their public URLs.
type Client struct {
	objects    *storage.ObjectsService
	bucket     string
	publicBase string
}

// NewClient connects with the shared GCP credentials and verifies the bucket
// can be listed before returning.
func NewClient(ctx context.Context, cfg config.GCSConfig, creds config.GCPConfig, logg *logger.Logger) (*Client, error) {
	c, err := newClient(ctx, cfg, gcp.ClientOptions(creds, storage.DevstorageReadWriteScope)...)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", c.bucket), "gcs.connected")
	}
	return c, nil
}

func newClient(ctx context.Context, cfg config.GCSConfig, opts ...option.ClientOption) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs: bucket name is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: connect: %w", err)
	}
	public := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if public == "" {
		public = defaultPublicBase
	}
	return &Client{objects: svc.Objects, bucket: bucket, publicBase: public}, nil
}

// Ping lists at most one object, which needs storage.objects.list on the
// bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.objects == nil {
		return errors.New("gcs: client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.objects.List(c.bucket).MaxResults(1).Fields("items/name").Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcs: list bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Upload writes data as object and returns its public URL.
func (c *Client) Upload(ctx context.Context, object, contentType string, data []byte) (string, error) {
	if c == nil || c.objects == nil {
		return "", errors.New("gcs: client not initialized")
	}
	object = strings.TrimLeft(object, "/")
	if object == "" {
		return "", errors.New("gcs: object name is required")
	}
	call := c.objects.Insert(c.bucket, &storage.Object{Name: object, ContentType: contentType}).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Fields("name").
		Context(ctx)
	if _, err := call.Do(); err != nil {
		return "", fmt.Errorf("gcs: upload %s: %w", object, err)
	}
	return c.ObjectURL(object), nil
}

// ObjectURL escapes each path segment but keeps the slashes.
func (c *Client) ObjectURL(object string) string {
	segments := strings.Split(strings.TrimLeft(object, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.publicBase + "/" + url.PathEscape(c.bucket) + "/" + strings.Join(segments, "/")
}
