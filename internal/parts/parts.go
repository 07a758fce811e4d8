// Package parts defines the package definition record, the hook interfaces
// a package implements, and the prefix layout each installed version gets.
package parts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind distinguishes precompiled archives from source archives.
type Kind string

const (
	// KindBinary is a precompiled archive published by the binary host.
	KindBinary Kind = "binary"
	// KindSource is the upstream source archive named by the definition.
	KindSource Kind = "source"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Definition is the immutable metadata of one package.
type Definition struct {
	Name           string   `validate:"required,max=64,excludesall=/,ne=.,ne=.."`
	Version        string   `validate:"required,max=64,excludesall=/,ne=.,ne=.."`
	Description    string   `validate:"max=512"`
	SourceURL      string   `validate:"omitempty,url"`
	SourceSHA1     string   `validate:"omitempty,len=40,hexadecimal"`
	SourceFiletype string   `validate:"omitempty,max=16,excludesall=/"`
	Dependencies   []string `validate:"dive,required"`
}

// NameWithVersion returns "<name>-<version>", the stem of every archive
// file name.
func (d Definition) NameWithVersion() string {
	return d.Name + "-" + d.Version
}

// String returns "name@version".
func (d Definition) String() string {
	return d.Name + "@" + d.Version
}

// BuildRunner executes argv commands for hooks. Implementations never go
// through a shell.
type BuildRunner interface {
	Run(ctx context.Context, dir string, env []string, argv ...string) error
}

// HookContext is handed to every hook.
type HookContext struct {
	// Dir is the working directory: the extraction root for Compile and
	// Install, the prefix for PostInstall, the packages root otherwise.
	Dir string
	// Layout describes the package prefix being installed or removed.
	Layout Layout
	// Env holds extra KEY=VALUE pairs for subprocesses.
	Env []string
	// Runner executes subprocesses.
	Runner BuildRunner
}

// Package is a package definition together with its build hooks.
type Package interface {
	Definition() Definition
	// Compile builds the extracted source.
	Compile(ctx context.Context, hc HookContext) error
	// Install installs the compiled source into the prefix.
	Install(ctx context.Context, hc HookContext) error
	// PostInstall runs inside the finished prefix.
	PostInstall(ctx context.Context, hc HookContext) error
	// PostUninstall runs after the prefix has been removed.
	PostUninstall(ctx context.Context, hc HookContext) error
	// Tips is shown to the user after a successful install.
	Tips() string
}

// Controllable is implemented by packages that run a service.
// Uninstall stops a running service first.
type Controllable interface {
	Start(ctx context.Context, hc HookContext) error
	Stop(ctx context.Context, hc HookContext) error
	Running(ctx context.Context) (bool, error)
}

// Base implements every hook of Package as a no-op. Embed it and override
// the hooks a package needs.
type Base struct {
	Def Definition
}

func (b Base) Definition() Definition {
	return b.Def
}

func (b Base) Compile(ctx context.Context, hc HookContext) error {
	return nil
}

func (b Base) Install(ctx context.Context, hc HookContext) error {
	return nil
}

func (b Base) PostInstall(ctx context.Context, hc HookContext) error {
	return nil
}

func (b Base) PostUninstall(ctx context.Context, hc HookContext) error {
	return nil
}

func (b Base) Tips() string {
	return ""
}

// Namespaces lists the prefix subdirectories published into the shared
// farm, in merge order. Uninstall uses the same order.
var Namespaces = []Namespace{
	{Dir: "bin", ExecutableOnly: true},
	{Dir: "sbin", ExecutableOnly: true},
	{Dir: "lib"},
	{Dir: "include"},
	{Dir: "share"},
}

// Namespace is one prefix subdirectory mirrored into <root>/<Dir>.
type Namespace struct {
	Dir            string
	ExecutableOnly bool
}

// PrefixDirs are the standard subdirectories of a prefix, each with a
// Layout accessor of the same name.
var PrefixDirs = []string{"bin", "sbin", "include", "lib", "libexec", "share"}

// Layout is the isolated prefix of one name@version.
type Layout struct {
	Prefix string
	name   string
}

// NewLayout returns the layout of def under packagesDir.
func NewLayout(packagesDir string, def Definition) Layout {
	return Layout{
		Prefix: filepath.Join(packagesDir, def.Name, def.Version),
		name:   def.Name,
	}
}

// Dir returns a subdirectory of the prefix.
func (l Layout) Dir(sub string) string { return filepath.Join(l.Prefix, sub) }

func (l Layout) Bin() string     { return l.Dir("bin") }
func (l Layout) Sbin() string    { return l.Dir("sbin") }
func (l Layout) Include() string { return l.Dir("include") }
func (l Layout) Lib() string     { return l.Dir("lib") }
func (l Layout) Libexec() string { return l.Dir("libexec") }
func (l Layout) Share() string   { return l.Dir("share") }
func (l Layout) Info() string    { return filepath.Join(l.Share(), "info") }
func (l Layout) Man() string     { return filepath.Join(l.Share(), "man") }
func (l Layout) Doc() string     { return filepath.Join(l.Share(), "doc", l.name) }

// ManSection returns share/man/man<n>; n must be 1 through 8.
func (l Layout) ManSection(n int) (string, error) {
	if n < 1 || n > 8 {
		return "", fmt.Errorf("man section out of range: %d", n)
	}
	return filepath.Join(l.Man(), fmt.Sprintf("man%d", n)), nil
}

// Parent returns packages/<name>, pruned when its last version goes.
func (l Layout) Parent() string { return filepath.Dir(l.Prefix) }

// IsFiletypeTar reports whether a source filetype is a tar-family archive.
func IsFiletypeTar(filetype string) bool {
	switch strings.ToLower(filetype) {
	case "tar", "tar.gz", "tar.bz2", "tar.bz", "tgz", "tbz2", "tbz":
		return true
	}
	return false
}
