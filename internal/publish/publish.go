// Package publish uploads archived binaries and their checksums to the
// binary host's object store.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/parts/internal/archive"
	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

// Uploader stores a local file under a public object key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// MissingArchiveError means the package has not been archived yet.
type MissingArchiveError struct {
	Path string
}

func (e *MissingArchiveError) Error() string {
	return fmt.Sprintf("archive not found: %s (run archive first)", e.Path)
}

// Publisher uploads the binary archive pair of a package.
type Publisher struct {
	archivesDir string
	uploader    Uploader
	logger      logging.Logger
}

// New creates a publisher reading from archivesDir.
func New(archivesDir string, uploader Uploader, logger logging.Logger) *Publisher {
	return &Publisher{
		archivesDir: archivesDir,
		uploader:    uploader,
		logger:      logging.OrNop(logger),
	}
}

// Upload publishes <nv>-binary.tar.gz and <nv>-binary.sha1. Both must
// exist; nothing is uploaded otherwise. Object keys are the file names, so
// the binary host serves them at the URLs the fetcher probes.
func (p *Publisher) Upload(ctx context.Context, def parts.Definition) ([]string, error) {
	names := []string{archive.BinaryFilename(def), archive.BinarySHA1Filename(def)}
	for _, name := range names {
		path := filepath.Join(p.archivesDir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &MissingArchiveError{Path: path}
			}
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
	}

	p.logger.Info("uploading", "package", def.String())
	for _, name := range names {
		if err := p.uploader.Upload(ctx, filepath.Join(p.archivesDir, name), name); err != nil {
			return nil, fmt.Errorf("upload %s: %w", name, err)
		}
		p.logger.Debug("uploaded", "key", name)
	}
	return names, nil
}
