package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ZebulonRouseFrantzich/parts/internal/archive"
	"github.com/ZebulonRouseFrantzich/parts/internal/config"
	"github.com/ZebulonRouseFrantzich/parts/internal/journal"
	"github.com/ZebulonRouseFrantzich/parts/internal/lifecycle"
	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
	"github.com/ZebulonRouseFrantzich/parts/internal/notify"
	"github.com/ZebulonRouseFrantzich/parts/internal/platform"
	"github.com/ZebulonRouseFrantzich/parts/internal/recipe"
	"github.com/ZebulonRouseFrantzich/parts/internal/registry"
	"github.com/ZebulonRouseFrantzich/parts/internal/runner"
)

// journalRetention is how long finished journal records are kept.
const journalRetention = 30 * 24 * time.Hour

// app is the engine wired against one root.
type app struct {
	paths    config.Paths
	settings *config.Settings
	logger   logging.Logger
	registry *registry.Registry
	journal  *journal.Journal
	orch     *lifecycle.Orchestrator
}

func newApp(opts *globalOptions, logOut io.Writer) (*app, error) {
	root := opts.root
	if root == "" {
		var err error
		if root, err = config.DefaultRoot(); err != nil {
			return nil, err
		}
	}
	paths, err := config.NewPaths(root)
	if err != nil {
		return nil, err
	}

	settings, err := config.Load(paths.SettingsFile())
	if err != nil {
		return nil, err
	}
	level := settings.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := logging.NewZerolog(logOut, level, settings.Log.Format)
	if err != nil {
		return nil, err
	}

	if err := paths.Ensure(); err != nil {
		return nil, err
	}

	detector := platform.NewDetector()
	loader := recipe.NewLoader(recipe.Config{
		Dir:      paths.Recipes(),
		Paths:    paths,
		Detector: detector,
		Logger:   logger,
	})
	reg := registry.New(registry.WithDiscoverer(loader), registry.WithLogger(logger))
	loader.SetResolver(reg)

	var signatures *archive.SignatureVerifier
	if settings.Keyring != "" {
		if signatures, err = archive.LoadKeyring(settings.Keyring); err != nil {
			return nil, err
		}
	}
	fetcher, err := archive.NewFetcher(archive.FetcherConfig{
		BinaryHost:  settings.BinaryHost,
		ArchivesDir: paths.Archives(),
		TmpDir:      paths.Tmp(),
		Signatures:  signatures,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	var notifier lifecycle.Notifier
	if settings.WebhookURL != "" {
		notifier = notify.NewWebhook(settings.WebhookURL, notify.WithLogger(logger))
	}

	jrnl := journal.New(paths.State())
	orch, err := lifecycle.New(lifecycle.Config{
		Paths:    paths,
		Fetcher:  fetcher,
		Runner:   runner.New(logger).WithEnv(config.EnvRoot + "=" + paths.Root),
		Env:      settings.Environ(),
		Detector: detector,
		Compatible: platform.Rules{
			OS:       settings.Compatible.OS,
			Arch:     settings.Compatible.Arch,
			Families: settings.Compatible.Families,
		},
		Notifier: notifier,
		Journal:  jrnl,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		paths:    paths,
		settings: settings,
		logger:   logger,
		registry: reg,
		journal:  jrnl,
		orch:     orch,
	}, nil
}

// locked runs fn while holding the root's run lock.
func (a *app) locked(ctx context.Context, fn func() error) error {
	lock, err := journal.AcquireLock(ctx, a.paths.State())
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warn("could not release lock", "error", err)
		}
	}()
	if err := fn(); err != nil {
		return err
	}
	if n, err := a.journal.Prune(journalRetention); err != nil {
		a.logger.Warn("could not prune journal", "error", err)
	} else if n > 0 {
		a.logger.Debug("pruned journal", "records", n)
	}
	return nil
}
