package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Extractor handles archive extraction
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks archivePath into a freshly created dest. Binary archives
// are always tar; source archives dispatch on filetype, and anything that
// is neither tar nor zip is copied into dest unchanged.
func (e *Extractor) Extract(archivePath string, kind parts.Kind, filetype, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clear extraction dir: %w", err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}

	switch {
	case kind == parts.KindBinary, parts.IsFiletypeTar(filetype):
		return e.ExtractTar(archivePath, dest)
	case strings.EqualFold(filetype, "zip"):
		return e.ExtractZip(archivePath, dest)
	default:
		return copyFile(archivePath, filepath.Join(dest, filepath.Base(archivePath)))
	}
}

// ExtractTar extracts a plain, gzip or bzip2 compressed tar archive. The
// compression is detected from the leading bytes.
func (e *Extractor) ExtractTar(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	br := bufio.NewReader(archiveFile)
	head, _ := br.Peek(len(xzMagic))

	var r io.Reader = br
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gzipReader, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		r = gzipReader
	case bytes.HasPrefix(head, bzip2Magic):
		r = bzip2.NewReader(br)
	case bytes.HasPrefix(head, xzMagic):
		return fmt.Errorf("unsupported compression (xz): %s", archivePath)
	}

	tarReader := tar.NewReader(r)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := entryPath(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := makeDir(target, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeReg:
			if err := writeFile(target, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := replaceWithSymlink(destDir, header.Linkname, target); err != nil {
				return err
			}

		case tar.TypeLink:
			source, err := entryPath(destDir, header.Linkname)
			if err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("create hard link %s: %w", target, err)
			}

		default:
			// Skip other types (char devices, block devices, etc.)
			continue
		}
	}

	return nil
}

// ExtractZip extracts a zip archive, preserving permissions and symlinks.
func (e *Extractor) ExtractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		target, err := entryPath(destDir, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := makeDir(target, 0); err != nil {
				return err
			}

		case mode&os.ModeSymlink != 0:
			link, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := replaceWithSymlink(destDir, string(link), target); err != nil {
				return err
			}

		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open zip entry %s: %w", f.Name, err)
			}
			err = writeFile(target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// safeJoin joins name onto destDir and rejects entries escaping it.
func safeJoin(destDir, name string) (string, error) {
	clean := filepath.Clean(destDir)
	target := filepath.Join(clean, name)
	if target != clean && !strings.HasPrefix(target, clean+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return target, nil
}

// entryPath is safeJoin plus a check that no existing directory between
// destDir and the entry is a symlink, so a link unpacked earlier cannot
// redirect later entries outside destDir.
func entryPath(destDir, name string) (string, error) {
	target, err := safeJoin(destDir, name)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(destDir)
	if target == clean {
		return target, nil
	}

	rel, err := filepath.Rel(clean, filepath.Dir(target))
	if err != nil || rel == "." {
		return target, err
	}
	dir := clean
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		dir = filepath.Join(dir, part)
		info, err := os.Lstat(dir)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("inspect %s: %w", dir, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("illegal file path: %s goes through symlink %s", name, dir)
		}
	}
	return target, nil
}

// makeDir creates a directory entry. A mode of 0 keeps the default.
func makeDir(target string, mode os.FileMode) error {
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("illegal directory %s: is a symlink", target)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", target, err)
	}
	if mode != 0 {
		if err := os.Chmod(target, mode|0700); err != nil {
			return fmt.Errorf("chmod directory %s: %w", target, err)
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	if mode == 0 {
		mode = 0644
	}

	// Replace rather than write through an existing symlink.
	os.Remove(target)
	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}

	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	// OpenFile applies the umask; restore the archived mode.
	return os.Chmod(target, mode)
}

// replaceWithSymlink creates target -> linkname. Absolute link targets and
// relative ones resolving outside destDir are rejected.
func replaceWithSymlink(destDir, linkname, target string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("illegal symlink %s -> %s: absolute target", target, linkname)
	}
	clean := filepath.Clean(destDir)
	resolved := filepath.Join(filepath.Dir(target), linkname)
	if resolved != clean && !strings.HasPrefix(resolved, clean+string(os.PathSeparator)) {
		return fmt.Errorf("illegal symlink %s -> %s: target outside archive", target, linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}
	return nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	return writeFile(dst, in, info.Mode().Perm())
}
