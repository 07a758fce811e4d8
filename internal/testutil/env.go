// Package testutil provides utilities for testing parts in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZebulonRouseFrantzich/parts/internal/config"
)

// SetupTestEnv points PARTS_ROOT at a fresh temporary root so tests never
// touch a real installation, and returns its layout with the working
// directories created. Cleanup is handled by t.TempDir.
func SetupTestEnv(t *testing.T) config.Paths {
	t.Helper()

	paths, err := config.NewPaths(filepath.Join(t.TempDir(), "parts"))
	if err != nil {
		t.Fatalf("failed to resolve test root: %v", err)
	}
	t.Setenv(config.EnvRoot, paths.Root)

	if err := paths.Ensure(); err != nil {
		t.Fatalf("failed to create test root: %v", err)
	}
	if err := os.MkdirAll(paths.Recipes(), 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", paths.Recipes(), err)
	}
	return paths
}

// WriteRecipe writes <name>.lua into the recipes directory.
func WriteRecipe(t *testing.T, paths config.Paths, name, src string) {
	t.Helper()
	path := filepath.Join(paths.Recipes(), name+".lua")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("failed to write recipe %s: %v", path, err)
	}
}

// WriteSettings writes parts.yaml into the root.
func WriteSettings(t *testing.T, paths config.Paths, yaml string) {
	t.Helper()
	if err := os.WriteFile(paths.SettingsFile(), []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
}
