package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

const downloadSuffix = ".partsdownload"

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// BinaryHost is the base URL of the binary distribution cache.
	BinaryHost string
	// ArchivesDir is the local archive cache.
	ArchivesDir string
	// TmpDir receives downloads before verification.
	TmpDir string
	// Signatures, when set, requires a valid .sig for binary archives.
	Signatures *SignatureVerifier
	Logger     logging.Logger
}

// Fetcher retrieves binary and source archives into the local cache.
type Fetcher struct {
	binaryHost  string
	archivesDir string
	tmpDir      string
	downloader  *Downloader
	signatures  *SignatureVerifier
	logger      logging.Logger
}

// NewFetcher creates a new fetcher
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if cfg.BinaryHost == "" {
		return nil, fmt.Errorf("BinaryHost is required")
	}
	if cfg.ArchivesDir == "" || cfg.TmpDir == "" {
		return nil, fmt.Errorf("ArchivesDir and TmpDir are required")
	}

	return &Fetcher{
		binaryHost:  strings.TrimRight(cfg.BinaryHost, "/"),
		archivesDir: cfg.ArchivesDir,
		tmpDir:      cfg.TmpDir,
		downloader:  NewDownloader(),
		signatures:  cfg.Signatures,
		logger:      logging.OrNop(cfg.Logger),
	}, nil
}

// Target binds the fetcher to one package definition for one install run.
func (f *Fetcher) Target(def parts.Definition) *Target {
	return &Target{fetcher: f, def: def}
}

// Target resolves archive locations for a single package version. The
// binary availability probe is evaluated at most once per Target.
type Target struct {
	fetcher *Fetcher
	def     parts.Definition

	probed        bool
	binaryPresent bool
}

// Definition returns the bound package definition.
func (t *Target) Definition() parts.Definition {
	return t.def
}

// BinaryURL is <host>/<name>-<version>-binary.tar.gz.
func (t *Target) BinaryURL() string {
	return t.fetcher.binaryHost + "/" + BinaryFilename(t.def)
}

// BinarySHA1URL is <host>/<name>-<version>-binary.sha1.
func (t *Target) BinarySHA1URL() string {
	return t.fetcher.binaryHost + "/" + BinarySHA1Filename(t.def)
}

// ArchivePath is the canonical cache path for kind.
func (t *Target) ArchivePath(kind parts.Kind) string {
	return filepath.Join(t.fetcher.archivesDir, ArchiveFilename(t.def, kind))
}

// ExtractionPath is the scratch directory archives are unpacked into.
func (t *Target) ExtractionPath() string {
	return filepath.Join(t.fetcher.tmpDir, t.def.NameWithVersion())
}

// Cached reports whether an archive of kind is already in the cache.
func (t *Target) Cached(kind parts.Kind) bool {
	return fileExists(t.ArchivePath(kind))
}

// BinaryPresent reports whether both the binary archive and its checksum
// are published. The probes run concurrently and the answer is memoized.
func (t *Target) BinaryPresent(ctx context.Context) bool {
	if t.probed {
		return t.binaryPresent
	}

	var archiveOK, sha1OK bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := t.fetcher.downloader.Exists(gctx, t.BinaryURL())
		archiveOK = ok
		return err
	})
	g.Go(func() error {
		ok, err := t.fetcher.downloader.Exists(gctx, t.BinarySHA1URL())
		sha1OK = ok
		return err
	})
	if err := g.Wait(); err != nil {
		t.fetcher.logger.Warn("binary probe failed", "package", t.def.String(), "error", err)
	}

	t.binaryPresent = archiveOK && sha1OK
	t.probed = true
	return t.binaryPresent
}

// BinarySHA1 downloads the published checksum file and returns its
// trimmed contents.
func (t *Target) BinarySHA1(ctx context.Context) (string, error) {
	if !t.BinaryPresent(ctx) {
		return "", &BinaryNotPresentError{Name: t.def.Name, Version: t.def.Version}
	}

	path := filepath.Join(t.fetcher.tmpDir, BinarySHA1Filename(t.def))
	defer os.Remove(path)
	if err := t.fetcher.downloader.DownloadToFile(ctx, t.BinarySHA1URL(), path); err != nil {
		return "", fmt.Errorf("download binary checksum: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read binary checksum: %w", err)
	}
	sum := strings.TrimSpace(string(data))
	if fields := strings.Fields(sum); len(fields) > 0 {
		sum = fields[0]
	}
	return sum, nil
}

// Fetch downloads the archive of kind into the cache and returns its path.
// The file is verified before it appears under its canonical name.
func (t *Target) Fetch(ctx context.Context, kind parts.Kind) (string, error) {
	var url, sum string
	switch kind {
	case parts.KindBinary:
		var err error
		if sum, err = t.BinarySHA1(ctx); err != nil {
			return "", err
		}
		url = t.BinaryURL()
	case parts.KindSource:
		if t.def.SourceURL == "" {
			return "", fmt.Errorf("%s has no source URL", t.def.String())
		}
		url, sum = t.def.SourceURL, t.def.SourceSHA1
	default:
		return "", fmt.Errorf("unknown archive kind: %s", kind)
	}

	dest := t.ArchivePath(kind)
	if err := t.download(ctx, url, dest, sum, kind == parts.KindBinary); err != nil {
		return "", err
	}
	return dest, nil
}

// download fetches url to a temporary path, verifies it, and renames it to
// dest. The temporary file never survives a failure.
func (t *Target) download(ctx context.Context, url, dest, sum string, signed bool) error {
	f := t.fetcher
	tmpPath := filepath.Join(f.tmpDir, filepath.Base(dest)+downloadSuffix)
	defer os.Remove(tmpPath)

	f.logger.Info("downloading", "url", url)
	if err := f.downloader.DownloadToFile(ctx, url, tmpPath); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}

	if sum != "" {
		if err := verifyDigest(tmpPath, sum); err != nil {
			var verr *VerificationFailedError
			if errors.As(err, &verr) {
				verr.Path = dest
			}
			return err
		}
	}

	if signed && f.signatures != nil {
		sigPath := tmpPath + ".sig"
		defer os.Remove(sigPath)
		if err := f.downloader.DownloadToFile(ctx, url+".sig", sigPath); err != nil {
			return &VerificationFailedError{Path: dest, Reason: fmt.Sprintf("signature unavailable: %v", err)}
		}
		if err := f.signatures.Verify(tmpPath, sigPath); err != nil {
			var verr *VerificationFailedError
			if errors.As(err, &verr) {
				verr.Path = dest
			}
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("move archive into cache: %w", err)
	}
	return nil
}

// BinaryFilename is <name>-<version>-binary.tar.gz.
func BinaryFilename(def parts.Definition) string {
	return def.NameWithVersion() + "-binary.tar.gz"
}

// BinarySHA1Filename is <name>-<version>-binary.sha1.
func BinarySHA1Filename(def parts.Definition) string {
	return def.NameWithVersion() + "-binary.sha1"
}

// ArchiveFilename is the cache file name for kind.
func ArchiveFilename(def parts.Definition, kind parts.Kind) string {
	if kind == parts.KindSource {
		if def.SourceFiletype == "" {
			return def.NameWithVersion()
		}
		return def.NameWithVersion() + "." + def.SourceFiletype
	}
	return BinaryFilename(def)
}

// fileExists checks if a file exists and is not empty
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
