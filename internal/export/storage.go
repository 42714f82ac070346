package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectWriter stores a finished statement and returns where it went.
type ObjectWriter interface {
	WriteObject(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// GCSWriter uploads statements to a Google Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSWriter struct {
	client *storage.Client
	bucket string
}

// NewGCSWriter creates a storage client for bucket.
func NewGCSWriter(ctx context.Context, bucket string) (*GCSWriter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSWriter{client: client, bucket: bucket}, nil
}

// Close closes the storage client.
func (g *GCSWriter) Close() error {
	return g.client.Close()
}

// WriteObject uploads r as name and returns its gs:// URI.
func (g *GCSWriter) WriteObject(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy statement to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return GCSURI(g.bucket, name), nil
}

// GCSURI formats a gs:// URI.
func GCSURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// ParseGCSURI splits gs://bucket/path into bucket and object path.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FileWriter writes statements under a local directory.
type FileWriter struct {
	Dir string
}

// WriteObject writes r to Dir/name, creating directories as needed. Names
// that leave Dir are rejected.
func (f FileWriter) WriteObject(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("export name %q is outside the export directory", name)
	}
	path := filepath.Join(f.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("write %q: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %q: %w", path, err)
	}
	return path, nil
}
