// Package lifecycle installs, uninstalls and archives packages: it drives
// the fetch, extract, build, publish sequence and rolls it back when any
// step fails.
//
// The orchestrator holds no locks. Callers serialize operations on one
// root themselves (the CLI takes the journal's run lock).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ZebulonRouseFrantzich/parts/internal/archive"
	"github.com/ZebulonRouseFrantzich/parts/internal/config"
	"github.com/ZebulonRouseFrantzich/parts/internal/farm"
	"github.com/ZebulonRouseFrantzich/parts/internal/journal"
	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
	"github.com/ZebulonRouseFrantzich/parts/internal/notify"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
	"github.com/ZebulonRouseFrantzich/parts/internal/platform"
)

// Notifier reports finished installs and uninstalls. It must not block the
// lifecycle on failure.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event, def parts.Definition)
}

// NotInstalledError reports an operation on a version that has no prefix.
type NotInstalledError struct {
	Name    string
	Version string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("%s %s is not installed", e.Name, e.Version)
}

// Config wires an Orchestrator. Paths, Fetcher and Runner are required.
type Config struct {
	Paths     config.Paths
	Fetcher   *archive.Fetcher
	Extractor *archive.Extractor
	Packer    *archive.Packer
	Farm      *farm.Manager
	Runner    parts.BuildRunner

	// Env is added to every hook's environment (build flags).
	Env []string

	// Detector and Compatible decide whether precompiled binaries may be
	// used on this host.
	Detector   platform.Detector
	Compatible platform.Rules

	Notifier Notifier
	Journal  *journal.Journal
	Logger   logging.Logger
}

// Orchestrator runs package lifecycles against one root.
type Orchestrator struct {
	paths     config.Paths
	fetcher   *archive.Fetcher
	extractor *archive.Extractor
	packer    *archive.Packer
	farm      *farm.Manager
	runner    parts.BuildRunner
	env       []string
	detector  platform.Detector
	rules     platform.Rules
	notifier  Notifier
	journal   *journal.Journal
	logger    logging.Logger

	compatOnce   sync.Once
	compatible   bool
	compatReason string
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Paths.Root == "" {
		return nil, errors.New("lifecycle: Paths is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("lifecycle: Fetcher is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("lifecycle: Runner is required")
	}

	logger := logging.OrNop(cfg.Logger)
	o := &Orchestrator{
		paths:     cfg.Paths,
		fetcher:   cfg.Fetcher,
		extractor: cfg.Extractor,
		packer:    cfg.Packer,
		farm:      cfg.Farm,
		runner:    cfg.Runner,
		env:       cfg.Env,
		detector:  cfg.Detector,
		rules:     cfg.Compatible,
		notifier:  cfg.Notifier,
		journal:   cfg.Journal,
		logger:    logger,
	}
	if o.extractor == nil {
		o.extractor = archive.NewExtractor()
	}
	if o.packer == nil {
		o.packer = archive.NewPacker(cfg.Paths.Archives(), cfg.Paths.Tmp())
	}
	if o.farm == nil {
		o.farm = farm.New(logger)
	}
	if o.detector == nil {
		o.detector = platform.NewDetector()
	}
	return o, nil
}

// BinaryCompatible reports whether this host may use precompiled binaries.
// The probe runs once per orchestrator; a detection failure counts as
// incompatible.
func (o *Orchestrator) BinaryCompatible(ctx context.Context) (bool, string) {
	o.compatOnce.Do(func() {
		ok, reason, err := platform.Probe(ctx, o.detector, o.rules)
		if err != nil {
			ok, reason = false, err.Error()
		}
		o.compatible, o.compatReason = ok, reason
	})
	return o.compatible, o.compatReason
}

// namespaceDir is the shared directory a prefix namespace is merged into.
func (o *Orchestrator) namespaceDir(ns parts.Namespace) string {
	return filepath.Join(o.paths.Root, ns.Dir)
}

func (o *Orchestrator) begin(op journal.Operation, def parts.Definition) *journal.Record {
	if o.journal == nil {
		return nil
	}
	rec, err := o.journal.Begin(op, def)
	if err != nil {
		o.logger.Warn("journal unavailable", "error", err)
		return nil
	}
	return rec
}

// track logs journal write failures; the journal never fails an operation.
func (o *Orchestrator) track(err error) {
	if err != nil {
		o.logger.Warn("journal write failed", "error", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, event notify.Event, def parts.Definition) {
	if o.notifier != nil {
		o.notifier.Notify(ctx, event, def)
	}
}

// removePrefix deletes the prefix and prunes packages/<name> once no
// version is left in it.
func removePrefix(layout parts.Layout) error {
	if err := os.RemoveAll(layout.Prefix); err != nil {
		return fmt.Errorf("remove prefix: %w", err)
	}
	entries, err := os.ReadDir(layout.Parent())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", layout.Parent(), err)
	}
	if len(entries) == 0 {
		if err := os.Remove(layout.Parent()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", layout.Parent(), err)
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
