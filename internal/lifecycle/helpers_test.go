package lifecycle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ZebulonRouseFrantzich/parts/internal/archive"
	"github.com/ZebulonRouseFrantzich/parts/internal/config"
	"github.com/ZebulonRouseFrantzich/parts/internal/journal"
	"github.com/ZebulonRouseFrantzich/parts/internal/notify"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
	"github.com/ZebulonRouseFrantzich/parts/internal/platform"
)

var fooDef = parts.Definition{
	Name:           "foo",
	Version:        "1.0",
	SourceFiletype: "tar.gz",
}

// host serves files by URL path and counts requests per method.
type host struct {
	mu       sync.Mutex
	files    map[string][]byte
	requests map[string]int
}

func newHost(t *testing.T, files map[string][]byte) (*host, *httptest.Server) {
	t.Helper()
	h := &host{files: files, requests: map[string]int{}}
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return h, server
}

func (h *host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests[r.Method+" "+r.URL.Path]++
	data, ok := h.files[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}

func (h *host) count(method, path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[method+" "+path]
}

type file struct {
	name string
	mode int64
	body string
}

// tarGz builds a gzip tar; names ending in "/" are directories.
func tarGz(t *testing.T, files ...file) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Mode: f.mode, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if strings.HasSuffix(f.name, "/") {
			hdr.Typeflag, hdr.Size = tar.TypeDir, 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(f.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// fooBinary is what the binary host publishes for foo 1.0.
func fooBinary(t *testing.T) []byte {
	return tarGz(t,
		file{name: "./", mode: 0755},
		file{name: "./bin/", mode: 0755},
		file{name: "./bin/foo", mode: 0755, body: "#!/bin/sh\necho foo\n"},
		file{name: "./share/man/man1/foo.1", mode: 0644, body: ".TH FOO 1\n"},
	)
}

// fooSource is the upstream source archive of foo 1.0.
func fooSource(t *testing.T) []byte {
	return tarGz(t,
		file{name: "foo-1.0/", mode: 0755},
		file{name: "foo-1.0/configure", mode: 0755, body: "#!/bin/sh\n"},
	)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event notify.Event, def parts.Definition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

type nopRunner struct{}

func (nopRunner) Run(context.Context, string, []string, ...string) error { return nil }

// fakePackage records hook calls. Install writes installFiles into the
// prefix the way `make install` would.
type fakePackage struct {
	parts.Base

	calls        []string
	dirs         map[string]string
	env          []string
	installFiles map[string]os.FileMode

	compileErr       error
	installErr       error
	postInstallErr   error
	postUninstallErr error
}

func newFakePackage(def parts.Definition) *fakePackage {
	return &fakePackage{
		Base: parts.Base{Def: def},
		dirs: map[string]string{},
		installFiles: map[string]os.FileMode{
			"bin/foo":       0755,
			"lib/libfoo.so": 0644,
		},
	}
}

func (p *fakePackage) record(hook string, hc parts.HookContext) {
	p.calls = append(p.calls, hook)
	p.dirs[hook] = hc.Dir
	p.env = hc.Env
}

func (p *fakePackage) Compile(ctx context.Context, hc parts.HookContext) error {
	p.record("compile", hc)
	return p.compileErr
}

func (p *fakePackage) Install(ctx context.Context, hc parts.HookContext) error {
	p.record("install", hc)
	for rel, mode := range p.installFiles {
		path := filepath.Join(hc.Layout.Prefix, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(rel), mode); err != nil {
			return err
		}
	}
	return p.installErr
}

func (p *fakePackage) PostInstall(ctx context.Context, hc parts.HookContext) error {
	p.record("post_install", hc)
	return p.postInstallErr
}

func (p *fakePackage) PostUninstall(ctx context.Context, hc parts.HookContext) error {
	p.record("post_uninstall", hc)
	return p.postUninstallErr
}

type env struct {
	paths    config.Paths
	host     *host
	url      string
	notifier *recordingNotifier
	journal  *journal.Journal
	orch     *Orchestrator
}

type envOption func(*Config)

func withRules(r platform.Rules) envOption {
	return func(c *Config) { c.Compatible = r }
}

func newEnv(t *testing.T, files map[string][]byte, opts ...envOption) *env {
	t.Helper()
	paths, err := config.NewPaths(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := paths.Ensure(); err != nil {
		t.Fatal(err)
	}

	h, server := newHost(t, files)
	fetcher, err := archive.NewFetcher(archive.FetcherConfig{
		BinaryHost:  server.URL,
		ArchivesDir: paths.Archives(),
		TmpDir:      paths.Tmp(),
	})
	if err != nil {
		t.Fatal(err)
	}

	e := &env{
		paths:    paths,
		host:     h,
		url:      server.URL,
		notifier: &recordingNotifier{},
		journal:  journal.New(paths.State()),
	}
	cfg := Config{
		Paths:   paths,
		Fetcher: fetcher,
		Runner:  nopRunner{},
		Env:     []string{"MAKEFLAGS=-j2"},
		Detector: platform.StaticDetector{Info: platform.Info{
			OS: "linux", Arch: "amd64", Platform: "ubuntu", Family: platform.FamilyDebian,
		}},
		Compatible: platform.Rules{OS: []string{"linux"}, Arch: []string{"amd64"}, Families: []string{platform.FamilyDebian}},
		Notifier:   e.notifier,
		Journal:    e.journal,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if e.orch, err = New(cfg); err != nil {
		t.Fatal(err)
	}
	return e
}

// sourceDef points foo's source URL at the test host.
func (e *env) sourceDef(data []byte) parts.Definition {
	def := fooDef
	def.SourceURL = e.url + "/src/foo-1.0.tar.gz"
	def.SourceSHA1 = sha1Hex(data)
	return def
}

func (e *env) prefix() string {
	return filepath.Join(e.paths.Packages(), "foo", "1.0")
}

func assertAbsent(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Lstat(p); !os.IsNotExist(err) {
			t.Errorf("%s exists, want absent", p)
		}
	}
}

func assertLink(t *testing.T, link, target string) {
	t.Helper()
	got, err := os.Readlink(link)
	if err != nil {
		t.Errorf("%s: %v", link, err)
		return
	}
	if got != target {
		t.Errorf("%s -> %s, want %s", link, got, target)
	}
}
