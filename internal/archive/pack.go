package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

// PackResult describes a binary archive produced from an installed prefix.
type PackResult struct {
	Path     string
	SHA1Path string
	SHA1     string
	Size     int64
}

// Packer turns installed prefixes into binary archives.
type Packer struct {
	archivesDir string
	tmpDir      string
}

// NewPacker creates a packer writing into archivesDir via tmpDir.
func NewPacker(archivesDir, tmpDir string) *Packer {
	return &Packer{archivesDir: archivesDir, tmpDir: tmpDir}
}

// Pack archives prefix as <name>-<version>-binary.tar.gz and writes the
// matching .sha1 file (digest plus newline) next to it. Entries are stored
// relative to the prefix ("./bin/foo") and the gzip header carries no name
// or timestamp.
func (p *Packer) Pack(def parts.Definition, prefix string) (*PackResult, error) {
	info, err := os.Stat(prefix)
	if err != nil {
		return nil, fmt.Errorf("stat prefix: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prefix is not a directory: %s", prefix)
	}

	if err := os.MkdirAll(p.tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}
	if err := os.MkdirAll(p.archivesDir, 0755); err != nil {
		return nil, fmt.Errorf("create archives dir: %w", err)
	}

	tmpPath := filepath.Join(p.tmpDir, BinaryFilename(def))
	if err := writeTarGz(prefix, tmpPath); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	finalPath := filepath.Join(p.archivesDir, BinaryFilename(def))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("move archive: %w", err)
	}

	sum, err := HashFile(finalPath)
	if err != nil {
		return nil, err
	}
	sha1Path := filepath.Join(p.archivesDir, BinarySHA1Filename(def))
	if err := os.WriteFile(sha1Path, []byte(sum+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write checksum: %w", err)
	}

	stat, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return &PackResult{
		Path:     finalPath,
		SHA1Path: sha1Path,
		SHA1:     sum,
		Size:     stat.Size(),
	}, nil
}

func writeTarGz(root, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := "./" + filepath.ToSlash(rel)
		if rel == "." {
			name = "./"
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("tar header for %s: %w", path, err)
		}
		header.Name = name
		if info.IsDir() && name != "./" {
			header.Name += "/"
		}
		// Owner names vary between build hosts.
		header.Uname, header.Gname = "", ""

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write header for %s: %w", path, err)
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("archive %s: %w", root, walkErr)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return out.Close()
}
