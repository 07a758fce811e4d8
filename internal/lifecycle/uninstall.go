package lifecycle

import (
	"context"
	"fmt"

	"github.com/ZebulonRouseFrantzich/parts/internal/journal"
	"github.com/ZebulonRouseFrantzich/parts/internal/notify"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

// Uninstall stops a running service, unlinks the package's namespaces,
// removes its prefix and runs its post-uninstall hook.
func (o *Orchestrator) Uninstall(ctx context.Context, pkg parts.Package) (err error) {
	def := pkg.Definition()
	layout := parts.NewLayout(o.paths.Packages(), def)
	if !exists(layout.Prefix) {
		return &NotInstalledError{Name: def.Name, Version: def.Version}
	}

	rec := o.begin(journal.OperationUninstall, def)
	defer func() {
		if err != nil {
			o.track(rec.Fail(err))
			o.logger.Error("uninstall failed", "package", def.String(), "error", err)
		}
	}()

	hc := parts.HookContext{Dir: o.paths.Packages(), Layout: layout, Env: o.env, Runner: o.runner}

	if c, ok := pkg.(parts.Controllable); ok {
		o.stopService(ctx, def, c, hc)
	}

	o.logger.Info("removing symlinks", "package", def.String())
	for _, ns := range parts.Namespaces {
		if err = o.farm.UnmergeTree(layout.Dir(ns.Dir), o.namespaceDir(ns)); err != nil {
			return fmt.Errorf("unlink %s: %w", ns.Dir, err)
		}
	}
	o.track(rec.Step("unmerge"))

	if err = removePrefix(layout); err != nil {
		return err
	}
	o.track(rec.Step("remove"))

	if err = pkg.PostUninstall(ctx, hc); err != nil {
		return fmt.Errorf("post-uninstall %s: %w", def, err)
	}

	o.logger.Info("uninstalled", "package", def.String())
	o.track(rec.Complete())
	o.notify(ctx, notify.EventUninstalled, def)
	return nil
}

// stopService stops c if it reports itself running. Failures are logged
// and otherwise ignored.
func (o *Orchestrator) stopService(ctx context.Context, def parts.Definition, c parts.Controllable, hc parts.HookContext) {
	running, err := c.Running(ctx)
	if err != nil {
		o.logger.Warn("running check failed", "package", def.String(), "error", err)
		return
	}
	if !running {
		return
	}
	o.logger.Info("stopping", "package", def.String())
	if err := c.Stop(ctx, hc); err != nil {
		o.logger.Warn("stop failed, uninstalling anyway", "package", def.String(), "error", err)
	}
}
