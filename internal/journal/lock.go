package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	lockFile = "parts.lock"

	// StaleLockThreshold is the age after which a lock is stale even if its
	// owner looks alive (pids get reused).
	StaleLockThreshold = 2 * time.Hour
)

// ErrLockExists means another process holds the run lock.
var ErrLockExists = errors.New("parts lock exists: another operation may be in progress")

// Lock is the run lock of one parts root.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the run lock in dir with an exclusive create. A lock
// left by a dead process or older than StaleLockThreshold is replaced.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := filepath.Join(dir, lockFile)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if !isLockStale(ctx, path) {
			return nil, ErrLockExists
		}
		os.Remove(path)
		file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	data := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(data); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write lock data: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}
	return nil
}

func isLockStale(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > StaleLockThreshold {
		return true
	}

	pid, ok := lockOwner(path)
	if !ok {
		return false
	}
	alive, err := process.PidExistsWithContext(ctx, pid)
	return err == nil && !alive
}

// lockOwner reads the pid= line of a lock file.
func lockOwner(path string) (int32, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		value, found := strings.CutPrefix(scanner.Text(), "pid=")
		if !found {
			continue
		}
		pid, err := strconv.ParseInt(value, 10, 32)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return int32(pid), true
	}
	return 0, false
}
