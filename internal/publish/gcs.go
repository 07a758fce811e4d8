package publish

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSUploader writes objects to a Google Cloud Storage bucket with a
// public-read ACL.
type GCSUploader struct {
	client *storage.Client
	bucket string
}

// NewGCSUploader connects to bucket. An empty credentialsFile uses the
// application default credentials.
func NewGCSUploader(ctx context.Context, bucket, credentialsFile string) (*GCSUploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("publish bucket is not configured")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

// Upload copies localPath to gs://<bucket>/<key>.
func (u *GCSUploader) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(key)
	w.PredefinedACL = "publicRead"

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("copy %s to gs://%s/%s: %w", localPath, u.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish gs://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}

// contentType guesses a MIME type from the key's extension.
func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".tar.gz"), strings.HasSuffix(key, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(key, ".sha1"):
		return "text/plain; charset=utf-8"
	}
	if t := mime.TypeByExtension(filepath.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
