package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// GCSClient stores raw copies of uploaded knowledge documents so the
// indexing vendor is never the only holder of tenant data.
type GCSClient struct {
	client     *storage.Client
	bucketName string
}

func NewGCSClient(ctx context.Context, bucketName string) (*GCSClient, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %v", err)
	}

	return &GCSClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Upload writes content to the bucket and returns a gs:// URI for the object.
func (g *GCSClient) Upload(ctx context.Context, objectPath string, contentType string, content io.Reader) (string, error) {
	bucket := g.client.Bucket(g.bucketName)
	obj := bucket.Object(objectPath)

	writer := obj.NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, content); err != nil {
		return "", fmt.Errorf("failed to copy content: %v", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucketName, objectPath), nil
}

// Delete removes the object referenced by a gs:// URI. A missing object is
// not an error; the local row is the source of truth for existence.
func (g *GCSClient) Delete(ctx context.Context, gcsURI string) error {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return err
	}

	obj := g.client.Bucket(bucketName).Object(objectPath)
	if err := obj.Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return fmt.Errorf("failed to delete object: %v", err)
	}

	return nil
}

// GetPresignedURL returns a V4 signed download URL for a stored document.
func (g *GCSClient) GetPresignedURL(ctx context.Context, gcsURI string, expiresAt time.Time) (string, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return "", err
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expiresAt,
	}

	url, err := g.client.Bucket(bucketName).SignedURL(objectPath, opts)
	if err != nil {
		return "", fmt.Errorf("failed to get presigned url: %v", err)
	}
	return url, nil
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI format: %s", gcsURI)
	}
	rest := strings.TrimPrefix(gcsURI, "gs://")
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return "", "", fmt.Errorf("invalid GCS URI format, no object path: %s", gcsURI)
	}
	return rest[:slash], rest[slash+1:], nil
}
