package platform

import "strings"

// familyMap maps gopsutil family and platform strings to canonical families.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"mint":     FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

// normalizeArch folds the common aliases of amd64 and arm64; anything else
// passes through unchanged.
func normalizeArch(arch string) string {
	switch arch {
	case "amd64", "x86_64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return arch
	}
}

func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily resolves the canonical family, trying the reported family first
// and the platform ID second (gopsutil leaves family empty on some distros).
func mapFamily(family, platform string) string {
	for _, candidate := range []string{family, platform} {
		if canonical, ok := familyMap[normalizePlatform(candidate)]; ok {
			return canonical
		}
	}
	return FamilyUnknown
}
