// Package farm projects package prefixes into shared namespace directories
// through a tree of symbolic links, and removes them again.
//
// MergeTree and UnmergeTree are duals: for any tree T merged into an empty
// directory D, UnmergeTree(T, D) leaves nothing behind, D included.
package farm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
)

// Manager merges and unmerges package trees.
type Manager struct {
	logger logging.Logger
}

// New creates a farm manager.
func New(logger logging.Logger) *Manager {
	return &Manager{logger: logging.OrNop(logger)}
}

// MergeTree mirrors from into to. Real directories are recreated under to;
// every other entry becomes an absolute symlink to itself, replacing
// whatever was at the destination. With executableOnly, regular files
// without an executable bit are skipped. Nothing happens if from is not a
// traversable directory.
func (m *Manager) MergeTree(from, to string, executableOnly bool) error {
	if !traversable(from) {
		return nil
	}

	from, err := filepath.Abs(from)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", from, err)
	}

	if err := os.MkdirAll(to, 0755); err != nil {
		return fmt.Errorf("create %s: %w", to, err)
	}

	entries, err := os.ReadDir(from)
	if err != nil {
		return fmt.Errorf("read %s: %w", from, err)
	}

	for _, entry := range entries {
		src := filepath.Join(from, entry.Name())
		dst := filepath.Join(to, entry.Name())

		if entry.IsDir() {
			if err := m.MergeTree(src, dst, executableOnly); err != nil {
				return err
			}
			continue
		}

		if executableOnly && !linkable(entry) {
			continue
		}

		if err := m.link(src, dst); err != nil {
			return err
		}
	}

	return nil
}

// link makes dst a symlink to src, removing anything already at dst.
func (m *Manager) link(src, dst string) error {
	if existing, err := os.Lstat(dst); err == nil {
		if existing.Mode()&os.ModeSymlink != 0 {
			if old, err := os.Readlink(dst); err == nil && old != src {
				m.logger.Warn("replacing link owned by another tree", "link", dst, "old", old, "new", src)
			}
		} else {
			m.logger.Warn("replacing non-link entry", "path", dst)
		}
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove %s: %w", dst, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("inspect %s: %w", dst, err)
	}

	if err := os.Symlink(src, dst); err != nil {
		return fmt.Errorf("link %s: %w", dst, err)
	}
	m.logger.Debug("linked", "link", dst, "target", src)
	return nil
}

// UnmergeTree removes from to every entry MergeTree(from, to) would have
// created, then removes to itself if it is left empty. Nothing happens if
// from is not a traversable directory or to does not exist.
func (m *Manager) UnmergeTree(from, to string) error {
	if !traversable(from) {
		return nil
	}
	if _, err := os.Lstat(to); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("inspect %s: %w", to, err)
	}

	from, err := filepath.Abs(from)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", from, err)
	}

	entries, err := os.ReadDir(from)
	if err != nil {
		return fmt.Errorf("read %s: %w", from, err)
	}

	for _, entry := range entries {
		src := filepath.Join(from, entry.Name())
		dst := filepath.Join(to, entry.Name())

		if entry.IsDir() {
			if err := m.UnmergeTree(src, dst); err != nil {
				return err
			}
			continue
		}

		if err := m.unlink(src, dst); err != nil {
			return err
		}
	}

	remaining, err := os.ReadDir(to)
	if err != nil {
		return fmt.Errorf("read %s: %w", to, err)
	}
	if len(remaining) == 0 {
		if err := os.Remove(to); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", to, err)
		}
	}

	return nil
}

// unlink removes dst, including dangling links.
func (m *Manager) unlink(src, dst string) error {
	info, err := os.Lstat(dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("inspect %s: %w", dst, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if old, err := os.Readlink(dst); err == nil && old != src {
			m.logger.Warn("removing link owned by another tree", "link", dst, "target", old)
		}
	}

	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("remove %s: %w", dst, err)
	}
	m.logger.Debug("unlinked", "link", dst)
	return nil
}

// traversable reports whether path is a directory we may list: it must be
// a real directory (symlinks to directories included) with its search bit
// set.
func traversable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}

// linkable reports whether an entry passes the executable-only filter:
// symlinks always pass, regular files need an executable bit.
func linkable(entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink != 0 {
		return true
	}
	info, err := entry.Info()
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}

// Owns reports whether link is a symlink pointing inside prefix.
func Owns(link, prefix string) bool {
	target, err := os.Readlink(link)
	if err != nil {
		return false
	}
	prefix = filepath.Clean(prefix)
	return target == prefix || strings.HasPrefix(target, prefix+string(os.PathSeparator))
}
