// Package journal records engine operations on disk so an interrupted
// install or uninstall can be recognised on the next run, and provides the
// run lock that keeps two processes off the same root.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

// State is the state of a recorded operation.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Operation is the kind of engine operation recorded.
type Operation string

const (
	OperationInstall   Operation = "install"
	OperationUninstall Operation = "uninstall"
	OperationArchive   Operation = "archive"
)

const (
	schemaVersion = 1
	filePrefix    = "op-"
)

// Step is one completed lifecycle step.
type Step struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// Record is the on-disk record of one operation.
type Record struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
	Package   string    `json:"package"`
	PkgVer    string    `json:"package_version"`
	Source    string    `json:"source,omitempty"` // "binary" or "source" for installs
	State     State     `json:"state"`
	Steps     []Step    `json:"steps"`
	LastError string    `json:"last_error,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished,omitzero"`

	dir string
}

// Journal writes records into one directory.
type Journal struct {
	dir string
}

// New returns a journal stored in dir.
func New(dir string) *Journal {
	return &Journal{dir: dir}
}

// Begin creates and saves a pending record for op on def.
func (j *Journal) Begin(op Operation, def parts.Definition) (*Record, error) {
	r := &Record{
		Version:   schemaVersion,
		ID:        uuid.New().String(),
		Operation: op,
		Package:   def.Name,
		PkgVer:    def.Version,
		State:     StatePending,
		Steps:     []Step{},
		Started:   time.Now().UTC(),
		dir:       j.dir,
	}
	if err := r.save(); err != nil {
		return nil, err
	}
	return r, nil
}

// List loads every record in the journal, oldest first.
func (j *Journal) List() ([]*Record, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		r, err := Load(filepath.Join(j.dir, name))
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	sort.Slice(records, func(a, b int) bool {
		return records[a].Started.Before(records[b].Started)
	})
	return records, nil
}

// Unfinished returns records that never reached completed or failed: the
// process stopped while they were running.
func (j *Journal) Unfinished() ([]*Record, error) {
	records, err := j.List()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, r := range records {
		if r.State == StatePending || r.State == StateInProgress {
			out = append(out, r)
		}
	}
	return out, nil
}

// Prune deletes finished records older than age.
func (j *Journal) Prune(age time.Duration) (int, error) {
	records, err := j.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, r := range records {
		if r.State != StateCompleted && r.State != StateFailed {
			continue
		}
		if r.Finished.After(cutoff) {
			continue
		}
		if err := os.Remove(r.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove record: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Load reads a record from disk.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", filepath.Base(path), err)
	}
	r.dir = filepath.Dir(path)
	return &r, nil
}

// The mutators below accept a nil record so callers can run without a
// journal.

// SetSource records whether an install used the binary or source archive.
func (r *Record) SetSource(kind parts.Kind) error {
	if r == nil {
		return nil
	}
	r.Source = kind.String()
	return r.save()
}

// Step marks a step done and the operation in progress.
func (r *Record) Step(name string) error {
	if r == nil {
		return nil
	}
	r.State = StateInProgress
	r.Steps = append(r.Steps, Step{Name: name, At: time.Now().UTC()})
	return r.save()
}

// Complete marks the operation completed.
func (r *Record) Complete() error {
	if r == nil {
		return nil
	}
	r.State = StateCompleted
	r.LastError = ""
	r.Finished = time.Now().UTC()
	return r.save()
}

// Fail marks the operation failed with cause.
func (r *Record) Fail(cause error) error {
	if r == nil {
		return nil
	}
	r.State = StateFailed
	if cause != nil {
		r.LastError = cause.Error()
	}
	r.Finished = time.Now().UTC()
	return r.save()
}

func (r *Record) path() string {
	return filepath.Join(r.dir, fmt.Sprintf("%s%s-%s.json", filePrefix, r.Operation, r.ID))
}

// save writes the record with write-then-rename.
func (r *Record) save() error {
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	finalPath := r.path()
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}
