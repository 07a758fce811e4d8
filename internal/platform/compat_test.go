package platform

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type failingDetector struct{ err error }

func (d failingDetector) Detect(context.Context) (*Info, error) { return nil, d.err }

func TestRulesCheck(t *testing.T) {
	ubuntu := &Info{OS: "linux", Arch: "amd64", Platform: "ubuntu", Family: FamilyDebian}
	fedora := &Info{OS: "linux", Arch: "amd64", Platform: "fedora", Family: FamilyFedora}
	mac := &Info{OS: "darwin", Arch: "arm64"}
	debianOnly := Rules{OS: []string{"linux"}, Arch: []string{"amd64"}, Families: []string{FamilyDebian}}

	tests := []struct {
		name   string
		rules  Rules
		info   *Info
		ok     bool
		reason string
	}{
		{"matching host", debianOnly, ubuntu, true, ""},
		{"other family", debianOnly, fedora, false, "distro family fedora"},
		{"other os", debianOnly, mac, false, "os darwin"},
		{"other arch", Rules{Arch: []string{"amd64"}}, mac, false, "arch arm64"},
		{"families ignored off linux", Rules{Families: []string{FamilyDebian}}, mac, true, ""},
		{"unknown family", debianOnly, &Info{OS: "linux", Arch: "amd64"}, false, "distro family unknown"},
		{"empty rules", Rules{}, fedora, true, ""},
		{"nil host", Rules{}, nil, false, "host unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := tt.rules.Check(tt.info)
			if ok != tt.ok {
				t.Errorf("Check() ok = %v, want %v", ok, tt.ok)
			}
			if !strings.HasPrefix(reason, tt.reason) {
				t.Errorf("Check() reason = %q, want prefix %q", reason, tt.reason)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	rules := Rules{OS: []string{"linux"}}

	ok, _, err := Probe(context.Background(), StaticDetector{Info: Info{OS: "linux", Arch: "amd64"}}, rules)
	if err != nil || !ok {
		t.Errorf("Probe() = %v, %v; want true, nil", ok, err)
	}

	boom := errors.New("boom")
	if _, _, err := Probe(context.Background(), failingDetector{err: boom}, rules); !errors.Is(err, boom) {
		t.Errorf("Probe() error = %v, want %v", err, boom)
	}
}
