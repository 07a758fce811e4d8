// Package platform detects the host the package engine runs on and decides
// whether published binaries can be used there.
//
// Detection covers OS, architecture and, on Linux, the distribution and its
// family. The result is also exposed to package recipes as a read-only Lua
// table so a recipe can pick flags or steps per platform.
package platform

import "context"

// Linux distribution families.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info describes the host.
type Info struct {
	OS       string // runtime.GOOS
	Arch     string // normalized: "amd64", "arm64", or GOARCH for anything else
	ArchRaw  string // original GOARCH
	Platform string // distro ID (Linux only, e.g. "ubuntu")
	Family   string // canonical family (Linux only, e.g. "debian")
	Version  string // distro version (Linux only, e.g. "22.04")
}

// String renders the host as os/arch, with the distro when known.
func (i *Info) String() string {
	s := i.OS + "/" + i.Arch
	if i.Platform != "" {
		s += " (" + i.Platform
		if i.Version != "" {
			s += " " + i.Version
		}
		s += ")"
	}
	return s
}

// IsLinux reports whether the host runs Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS reports whether the host runs macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// InFamily reports whether the host is Linux of the given family.
func (i *Info) InFamily(family string) bool {
	return i.IsLinux() && i.Family == family
}

// Detector detects the current host.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector always reports the same host. It stands in for detection
// when the host is already known.
type StaticDetector struct {
	Info Info
}

// Detect returns a copy of the configured Info.
func (d StaticDetector) Detect(ctx context.Context) (*Info, error) {
	info := d.Info
	return &info, nil
}
