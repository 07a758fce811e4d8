package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector detects the running host.
type RealDetector struct{}

// NewDetector creates a detector for the running host.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect reads OS and architecture from the runtime and, on Linux, the
// distribution from gopsutil. A distro lookup failure leaves the distro
// fields empty; only cancellation is an error.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		ArchRaw: runtime.GOARCH,
		Arch:    normalizeArch(runtime.GOARCH),
	}

	if runtime.GOOS != "linux" {
		return info, nil
	}

	platform, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}

	platform = normalizePlatform(platform)
	if platform != "" {
		info.Platform = platform
		info.Family = mapFamily(family, platform)
		info.Version = normalizePlatform(version)
	}

	return info, nil
}
