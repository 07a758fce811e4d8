package journal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

var fooDef = parts.Definition{Name: "foo", Version: "1.0"}

func TestBeginWritesPendingRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	j := New(dir)

	r, err := j.Begin(OperationInstall, fooDef)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if r.ID == "" || r.State != StatePending || r.Version != schemaVersion {
		t.Errorf("record = %+v", r)
	}

	path := filepath.Join(dir, "op-install-"+r.ID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("record file missing: %v", err)
	}
	var onDisk map[string]interface{}
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk["package"] != "foo" || onDisk["package_version"] != "1.0" || onDisk["state"] != "pending" {
		t.Errorf("on-disk record = %v", onDisk)
	}
	if _, ok := onDisk["finished"]; ok {
		t.Error("unfinished record has a finished time")
	}
}

func TestRecordTransitions(t *testing.T) {
	j := New(t.TempDir())
	r, err := j.Begin(OperationInstall, fooDef)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.SetSource(parts.KindBinary); err != nil {
		t.Fatal(err)
	}
	for _, step := range []string{"fetch", "extract", "merge"} {
		if err := r.Step(step); err != nil {
			t.Fatal(err)
		}
	}

	loaded, err := Load(r.path())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.State != StateInProgress || loaded.Source != "binary" || len(loaded.Steps) != 3 {
		t.Errorf("in-progress record = %+v", loaded)
	}

	if err := r.Complete(); err != nil {
		t.Fatal(err)
	}
	loaded, _ = Load(r.path())
	if loaded.State != StateCompleted || loaded.Finished.IsZero() {
		t.Errorf("completed record = %+v", loaded)
	}
}

func TestRecordFail(t *testing.T) {
	j := New(t.TempDir())
	r, _ := j.Begin(OperationUninstall, fooDef)

	if err := r.Fail(errors.New("make: *** [all] Error 2")); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(r.path())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.State != StateFailed || !strings.Contains(loaded.LastError, "Error 2") {
		t.Errorf("failed record = %+v", loaded)
	}
	if filepath.Base(r.path()) != "op-uninstall-"+r.ID+".json" {
		t.Errorf("path = %s", r.path())
	}
}

func TestNilRecordIsNoop(t *testing.T) {
	var r *Record
	if err := r.Step("fetch"); err != nil {
		t.Error(err)
	}
	if err := r.SetSource(parts.KindSource); err != nil {
		t.Error(err)
	}
	if err := r.Complete(); err != nil {
		t.Error(err)
	}
	if err := r.Fail(errors.New("x")); err != nil {
		t.Error(err)
	}
}

func TestListAndUnfinished(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)

	done, _ := j.Begin(OperationInstall, fooDef)
	done.Complete()
	time.Sleep(2 * time.Millisecond)
	running, _ := j.Begin(OperationInstall, parts.Definition{Name: "bar", Version: "2"})
	running.Step("fetch")
	time.Sleep(2 * time.Millisecond)
	pending, _ := j.Begin(OperationUninstall, fooDef)

	if err := os.WriteFile(filepath.Join(dir, "parts.lock"), []byte("pid=1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	all, err := j.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != done.ID || all[2].ID != pending.ID {
		t.Errorf("List() order wrong: %d records", len(all))
	}

	unfinished, err := j.Unfinished()
	if err != nil {
		t.Fatal(err)
	}
	if len(unfinished) != 2 || unfinished[0].ID != running.ID || unfinished[1].ID != pending.ID {
		t.Errorf("Unfinished() = %d records", len(unfinished))
	}
}

func TestListMissingDir(t *testing.T) {
	records, err := New(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil || records != nil {
		t.Errorf("List() = %v, %v", records, err)
	}
}

func TestListCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "op-install-x.json"), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir).List(); err == nil {
		t.Error("List() accepted a corrupt record")
	}
}

func TestPrune(t *testing.T) {
	j := New(t.TempDir())
	old, _ := j.Begin(OperationInstall, fooDef)
	old.Complete()
	open, _ := j.Begin(OperationInstall, fooDef)

	removed, err := j.Prune(0)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("Prune() removed %d, want 1", removed)
	}
	if _, err := os.Stat(old.path()); !os.IsNotExist(err) {
		t.Error("finished record not pruned")
	}
	if _, err := os.Stat(open.path()); err != nil {
		t.Error("unfinished record pruned")
	}
}
