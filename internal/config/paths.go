package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the on-disk layout rooted at a single parts directory.
//
//	<root>/packages/<name>/<version>/   isolated package prefixes
//	<root>/archives/                    binary and source archive cache
//	<root>/tmp/                         downloads and extraction scratch
//	<root>/{bin,sbin,lib,include,share} shared namespaces (symlink farm)
//	<root>/{etc,var}                    package configuration and data
//	<root>/recipes/                     Lua package definitions
//	<root>/state/                       operation journal and run lock
type Paths struct {
	Root string
}

// NewPaths returns the layout for root, made absolute so that farm links
// never depend on the working directory.
func NewPaths(root string) (Paths, error) {
	if root == "" {
		return Paths{}, fmt.Errorf("root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve root: %w", err)
	}
	return Paths{Root: abs}, nil
}

func (p Paths) Packages() string { return filepath.Join(p.Root, "packages") }
func (p Paths) Archives() string { return filepath.Join(p.Root, "archives") }
func (p Paths) Tmp() string      { return filepath.Join(p.Root, "tmp") }
func (p Paths) Bin() string      { return filepath.Join(p.Root, "bin") }
func (p Paths) Sbin() string     { return filepath.Join(p.Root, "sbin") }
func (p Paths) Lib() string      { return filepath.Join(p.Root, "lib") }
func (p Paths) Include() string  { return filepath.Join(p.Root, "include") }
func (p Paths) Share() string    { return filepath.Join(p.Root, "share") }
func (p Paths) Etc() string      { return filepath.Join(p.Root, "etc") }
func (p Paths) Var() string      { return filepath.Join(p.Root, "var") }
func (p Paths) Recipes() string  { return filepath.Join(p.Root, "recipes") }
func (p Paths) State() string    { return filepath.Join(p.Root, "state") }

// SettingsFile is the optional YAML settings file.
func (p Paths) SettingsFile() string { return filepath.Join(p.Root, "parts.yaml") }

// Ensure creates the working directories the engine writes into.
// Shared namespace directories are created lazily by the farm.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Packages(), p.Archives(), p.Tmp(), p.Etc(), p.Var(), p.State()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultRoot resolves the root directory: PARTS_ROOT if set, otherwise
// ~/.parts.
func DefaultRoot() (string, error) {
	if root := os.Getenv(EnvRoot); root != "" {
		return root, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".parts"), nil
}
