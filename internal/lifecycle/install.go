package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/parts/internal/archive"
	"github.com/ZebulonRouseFrantzich/parts/internal/journal"
	"github.com/ZebulonRouseFrantzich/parts/internal/notify"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

// InstallOptions controls one install.
type InstallOptions struct {
	// ForceSource skips the binary archive even when one is published.
	ForceSource bool
}

// Install installs pkg into packages/<name>/<version> and links its
// namespaces into the shared directories.
//
// On failure the scratch directory is removed, a cached archive that failed
// verification is deleted, and the name@version prefix is removed along
// with any farm links into it, whether or not this attempt created it. A
// failed install never leaves that version reported as installed. The
// returned error wraps the original cause.
func (o *Orchestrator) Install(ctx context.Context, pkg parts.Package, opts InstallOptions) (err error) {
	def := pkg.Definition()
	target := o.fetcher.Target(def)
	layout := parts.NewLayout(o.paths.Packages(), def)
	rec := o.begin(journal.OperationInstall, def)

	kind := o.chooseKind(ctx, target, opts)
	o.track(rec.SetSource(kind))

	defer func() {
		if err == nil {
			return
		}
		o.rollback(target, kind, layout, err)
		o.track(rec.Fail(err))
		o.logger.Error("install failed", "package", def.String(), "error", err)
	}()

	archivePath := target.ArchivePath(kind)
	if target.Cached(kind) {
		o.logger.Debug("using cached archive", "path", archivePath)
	} else {
		if archivePath, err = target.Fetch(ctx, kind); err != nil {
			return fmt.Errorf("fetch %s: %w", def, err)
		}
	}
	o.track(rec.Step("fetch"))

	scratch := target.ExtractionPath()
	o.logger.Info("extracting archive", "package", def.String())
	if err = o.extractor.Extract(archivePath, kind, def.SourceFiletype, scratch); err != nil {
		return fmt.Errorf("extract %s: %w", def, err)
	}
	o.track(rec.Step("extract"))

	for _, dir := range []string{o.paths.Etc(), o.paths.Var()} {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	hc := parts.HookContext{Dir: scratch, Layout: layout, Env: o.env, Runner: o.runner}
	if kind == parts.KindSource {
		o.logger.Info("compiling", "package", def.String())
		if err = pkg.Compile(ctx, hc); err != nil {
			return fmt.Errorf("compile %s: %w", def, err)
		}
		o.logger.Info("installing", "package", def.String())
		if err = pkg.Install(ctx, hc); err != nil {
			return fmt.Errorf("install %s: %w", def, err)
		}
		o.track(rec.Step("build"))
	} else {
		o.logger.Info("installing", "package", def.String())
		if err = relocate(scratch, layout); err != nil {
			return fmt.Errorf("install %s: %w", def, err)
		}
		o.track(rec.Step("relocate"))
	}

	if err = os.RemoveAll(scratch); err != nil {
		return fmt.Errorf("remove scratch dir: %w", err)
	}
	if err = os.MkdirAll(layout.Prefix, 0755); err != nil {
		return fmt.Errorf("create prefix: %w", err)
	}

	hc.Dir = layout.Prefix
	if err = pkg.PostInstall(ctx, hc); err != nil {
		return fmt.Errorf("post-install %s: %w", def, err)
	}
	o.track(rec.Step("post_install"))

	o.logger.Info("symlinking", "package", def.String())
	for _, ns := range parts.Namespaces {
		if err = o.farm.MergeTree(layout.Dir(ns.Dir), o.namespaceDir(ns), ns.ExecutableOnly); err != nil {
			return fmt.Errorf("link %s: %w", ns.Dir, err)
		}
	}
	o.track(rec.Step("merge"))

	o.logger.Info("installed", "package", def.String(), "source", kind.String())
	o.track(rec.Complete())
	o.notify(ctx, notify.EventInstalled, def)
	return nil
}

// chooseKind picks binary unless the caller forces source, the host cannot
// run published binaries, or no binary is published.
func (o *Orchestrator) chooseKind(ctx context.Context, target *archive.Target, opts InstallOptions) parts.Kind {
	if opts.ForceSource {
		return parts.KindSource
	}
	if ok, reason := o.BinaryCompatible(ctx); !ok {
		o.logger.Warn("host incompatible with binary packages, installing from source", "reason", reason)
		return parts.KindSource
	}
	if !target.BinaryPresent(ctx) {
		o.logger.Info("no binary published, installing from source", "package", target.Definition().String())
		return parts.KindSource
	}
	return parts.KindBinary
}

// relocate moves the extracted binary tree into place as the prefix,
// replacing an existing prefix of the same version.
func relocate(scratch string, layout parts.Layout) error {
	if err := os.RemoveAll(layout.Prefix); err != nil {
		return fmt.Errorf("remove old prefix: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(layout.Prefix), 0755); err != nil {
		return fmt.Errorf("create package dir: %w", err)
	}
	if err := os.Rename(scratch, layout.Prefix); err != nil {
		return fmt.Errorf("move into prefix: %w", err)
	}
	return nil
}

// rollback undoes a failed install. Cleanup errors are logged; the cause
// is what the caller sees.
func (o *Orchestrator) rollback(target *archive.Target, kind parts.Kind, layout parts.Layout, cause error) {
	var verr *archive.VerificationFailedError
	if errors.As(cause, &verr) {
		path := target.ArchivePath(kind)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("could not remove unverified archive", "path", path, "error", err)
		} else {
			o.logger.Info("removed unverified archive", "path", path)
		}
	}

	if err := os.RemoveAll(target.ExtractionPath()); err != nil {
		o.logger.Warn("could not remove scratch dir", "path", target.ExtractionPath(), "error", err)
	}

	if !exists(layout.Prefix) {
		return
	}
	for _, ns := range parts.Namespaces {
		if err := o.farm.UnmergeTree(layout.Dir(ns.Dir), o.namespaceDir(ns)); err != nil {
			o.logger.Warn("could not unlink namespace", "namespace", ns.Dir, "error", err)
		}
	}
	if err := removePrefix(layout); err != nil {
		o.logger.Warn("could not remove prefix", "path", layout.Prefix, "error", err)
	}
}
