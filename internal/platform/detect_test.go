package platform

import (
	"context"
	"runtime"
	"testing"
)

func TestRealDetectorDetect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %q, want %q", info.OS, runtime.GOOS)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %q, want %q", info.ArchRaw, runtime.GOARCH)
	}
	if info.Arch != normalizeArch(runtime.GOARCH) {
		t.Errorf("Arch = %q", info.Arch)
	}
	if info.Platform != "" && info.Family == "" {
		t.Error("Family empty while Platform is set")
	}
	if runtime.GOOS != "linux" && info.Platform != "" {
		t.Errorf("Platform = %q on non-Linux host", info.Platform)
	}
}

func TestRealDetectorCancelled(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("distro lookup only runs on Linux")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// gopsutil may answer from its cache before noticing the cancellation;
	// either way a nil info must come with an error.
	info, err := NewDetector().Detect(ctx)
	if info == nil && err == nil {
		t.Fatal("Detect() returned neither info nor error")
	}
}

func TestStaticDetectorReturnsCopy(t *testing.T) {
	d := StaticDetector{Info: Info{OS: "linux", Arch: "amd64"}}

	first, _ := d.Detect(context.Background())
	first.Arch = "arm64"
	second, _ := d.Detect(context.Background())

	if second.Arch != "amd64" {
		t.Errorf("Arch = %q after mutating an earlier result", second.Arch)
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{OS: "darwin", Arch: "arm64"}, "darwin/arm64"},
		{Info{OS: "linux", Arch: "amd64", Platform: "ubuntu", Version: "22.04"}, "linux/amd64 (ubuntu 22.04)"},
		{Info{OS: "linux", Arch: "amd64", Platform: "arch"}, "linux/amd64 (arch)"},
	}
	for _, tt := range tests {
		if got := tt.info.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
