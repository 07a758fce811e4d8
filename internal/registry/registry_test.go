package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

func pkg(name, version string) parts.Package {
	return parts.Base{Def: parts.Definition{Name: name, Version: version}}
}

type fakeDiscoverer struct {
	mu    sync.Mutex
	defs  map[string]parts.Package
	finds map[string]int
	err   error
}

func (d *fakeDiscoverer) Find(ctx context.Context, name string) (parts.Package, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finds == nil {
		d.finds = map[string]int{}
	}
	d.finds[name]++
	if d.err != nil {
		return nil, false, d.err
	}
	p, ok := d.defs[name]
	return p, ok, nil
}

func (d *fakeDiscoverer) Names(ctx context.Context) ([]string, error) {
	var names []string
	for name := range d.defs {
		names = append(names, name)
	}
	return names, d.err
}

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	if err := r.Register("foo", func() parts.Package { return pkg("foo", "1.0") }); err != nil {
		t.Fatal(err)
	}

	got, err := r.Resolve(context.Background(), "foo")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Definition().Version != "1.0" {
		t.Errorf("Version = %q", got.Definition().Version)
	}

	var dup *DuplicateError
	if err := r.RegisterPackage(pkg("foo", "2.0")); !errors.As(err, &dup) {
		t.Errorf("duplicate Register() error = %v, want *DuplicateError", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := New(WithDiscoverer(&fakeDiscoverer{}))

	_, err := r.Resolve(context.Background(), "ghost")
	var nf *PackageNotFoundError
	if !errors.As(err, &nf) || nf.Name != "ghost" {
		t.Fatalf("Resolve() error = %v, want PackageNotFoundError(ghost)", err)
	}
}

func TestResolveDiscoversOnce(t *testing.T) {
	d := &fakeDiscoverer{defs: map[string]parts.Package{"foo": pkg("foo", "1.0")}}
	r := New(WithDiscoverer(d))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(ctx, "foo"); err != nil {
			t.Fatal(err)
		}
	}
	if d.finds["foo"] != 1 {
		t.Errorf("Find called %d times, want 1", d.finds["foo"])
	}
	if !reflect.DeepEqual(r.Names(), []string{"foo"}) {
		t.Errorf("Names() = %v", r.Names())
	}
}

func TestResolveDiscovererError(t *testing.T) {
	boom := errors.New("bad recipe")
	r := New(WithDiscoverer(&fakeDiscoverer{err: boom}))

	if _, err := r.Resolve(context.Background(), "foo"); !errors.Is(err, boom) {
		t.Errorf("Resolve() error = %v, want %v", err, boom)
	}
}

func TestResolveConcurrent(t *testing.T) {
	d := &fakeDiscoverer{defs: map[string]parts.Package{"foo": pkg("foo", "1.0")}}
	r := New(WithDiscoverer(d))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), "foo"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Resolve() error = %v", err)
	}
}

func TestDiscoverAllAndDependency(t *testing.T) {
	d := &fakeDiscoverer{defs: map[string]parts.Package{
		"foo": pkg("foo", "1.0"),
		"bar": pkg("bar", "2.0"),
	}}
	r := New(WithDiscoverer(d))
	ctx := context.Background()

	if err := r.DiscoverAll(ctx); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.Names(), []string{"bar", "foo"}) {
		t.Errorf("Names() = %v", r.Names())
	}

	def, err := r.Dependency(ctx, "bar")
	if err != nil || def.Version != "2.0" {
		t.Errorf("Dependency(bar) = %+v, %v", def, err)
	}
	if _, err := r.Dependency(ctx, "baz"); err == nil {
		t.Error("Dependency(baz) succeeded")
	}
}

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestInstalled(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root,
		"foo/1.0/bin",
		"foo/2.0/lib",
		"foo/3.0", // empty version: not installed
		"bar",     // no versions
		"baz/0.1/share",
	)
	if err := os.WriteFile(filepath.Join(root, "stray"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "foo", "notes"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Installed(root)
	if err != nil {
		t.Fatalf("Installed() error = %v", err)
	}
	want := map[string][]string{
		"foo": {"1.0", "2.0"},
		"baz": {"0.1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Installed() = %v, want %v", got, want)
	}

	for name, want := range map[string]bool{"foo": true, "bar": false, "qux": false} {
		got, err := IsInstalled(root, name)
		if err != nil || got != want {
			t.Errorf("IsInstalled(%s) = %v, %v; want %v", name, got, err, want)
		}
	}
}

func TestInstalledMissingRoot(t *testing.T) {
	got, err := Installed(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(got) != 0 {
		t.Errorf("Installed() = %v, %v", got, err)
	}
}
