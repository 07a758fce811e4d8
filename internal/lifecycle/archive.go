package lifecycle

import (
	"context"
	"fmt"

	"github.com/ZebulonRouseFrantzich/parts/internal/archive"
	"github.com/ZebulonRouseFrantzich/parts/internal/journal"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

// ArchiveInstalled packs the installed prefix of pkg into the binary
// archive and checksum files the binary host serves.
func (o *Orchestrator) ArchiveInstalled(ctx context.Context, pkg parts.Package) (*archive.PackResult, error) {
	def := pkg.Definition()
	layout := parts.NewLayout(o.paths.Packages(), def)
	if !exists(layout.Prefix) {
		return nil, &NotInstalledError{Name: def.Name, Version: def.Version}
	}

	rec := o.begin(journal.OperationArchive, def)
	o.logger.Info("archiving", "package", def.String())

	res, err := o.packer.Pack(def, layout.Prefix)
	if err != nil {
		o.track(rec.Fail(err))
		return nil, fmt.Errorf("archive %s: %w", def, err)
	}

	o.logger.Info("archived", "path", res.Path, "size", res.Size, "sha1", res.SHA1)
	o.track(rec.Complete())
	return res, nil
}
