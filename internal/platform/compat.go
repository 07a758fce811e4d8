package platform

import (
	"context"
	"fmt"
	"slices"
)

// Rules lists the hosts published binaries were built for. An empty list
// matches anything.
type Rules struct {
	OS       []string
	Arch     []string
	Families []string
}

// Check reports whether info satisfies the rules. When it does not, the
// returned reason names the first mismatch.
func (r Rules) Check(info *Info) (bool, string) {
	if info == nil {
		return false, "host unknown"
	}
	if len(r.OS) > 0 && !slices.Contains(r.OS, info.OS) {
		return false, fmt.Sprintf("os %s not in %v", info.OS, r.OS)
	}
	if len(r.Arch) > 0 && !slices.Contains(r.Arch, info.Arch) {
		return false, fmt.Sprintf("arch %s not in %v", info.Arch, r.Arch)
	}
	if len(r.Families) > 0 && info.IsLinux() && !slices.Contains(r.Families, info.Family) {
		family := info.Family
		if family == "" {
			family = FamilyUnknown
		}
		return false, fmt.Sprintf("distro family %s not in %v", family, r.Families)
	}
	return true, ""
}

// Probe detects the host and checks it against the rules.
func Probe(ctx context.Context, d Detector, r Rules) (bool, string, error) {
	info, err := d.Detect(ctx)
	if err != nil {
		return false, "", err
	}
	ok, reason := r.Check(info)
	return ok, reason, nil
}
