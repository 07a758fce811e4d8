package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

type upload struct {
	local string
	key   string
}

type fakeUploader struct {
	uploads []upload
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, localPath, key string) error {
	if u.err != nil {
		return u.err
	}
	u.uploads = append(u.uploads, upload{localPath, key})
	return nil
}

var fooDef = parts.Definition{Name: "foo", Version: "1.0"}

func writeArchives(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestUploadPublishesBothFiles(t *testing.T) {
	dir := t.TempDir()
	writeArchives(t, dir, "foo-1.0-binary.tar.gz", "foo-1.0-binary.sha1")
	u := &fakeUploader{}

	keys, err := New(dir, u, nil).Upload(context.Background(), fooDef)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	want := []upload{
		{filepath.Join(dir, "foo-1.0-binary.tar.gz"), "foo-1.0-binary.tar.gz"},
		{filepath.Join(dir, "foo-1.0-binary.sha1"), "foo-1.0-binary.sha1"},
	}
	if !reflect.DeepEqual(u.uploads, want) {
		t.Errorf("uploads = %v, want %v", u.uploads, want)
	}
	if !reflect.DeepEqual(keys, []string{"foo-1.0-binary.tar.gz", "foo-1.0-binary.sha1"}) {
		t.Errorf("keys = %v", keys)
	}
}

func TestUploadRequiresBothFiles(t *testing.T) {
	for _, present := range [][]string{
		nil,
		{"foo-1.0-binary.tar.gz"},
		{"foo-1.0-binary.sha1"},
	} {
		dir := t.TempDir()
		writeArchives(t, dir, present...)
		u := &fakeUploader{}

		_, err := New(dir, u, nil).Upload(context.Background(), fooDef)
		var missing *MissingArchiveError
		if !errors.As(err, &missing) {
			t.Errorf("present %v: error = %v, want MissingArchiveError", present, err)
		}
		if len(u.uploads) != 0 {
			t.Errorf("present %v: uploaded %v", present, u.uploads)
		}
	}
}

func TestUploadPropagatesUploaderError(t *testing.T) {
	dir := t.TempDir()
	writeArchives(t, dir, "foo-1.0-binary.tar.gz", "foo-1.0-binary.sha1")
	boom := errors.New("403")

	if _, err := New(dir, &fakeUploader{err: boom}, nil).Upload(context.Background(), fooDef); !errors.Is(err, boom) {
		t.Errorf("Upload() error = %v, want %v", err, boom)
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"foo-1.0-binary.tar.gz": "application/gzip",
		"foo-1.0-binary.sha1":   "text/plain; charset=utf-8",
		"foo.unknownext":        "application/octet-stream",
	}
	for key, want := range tests {
		if got := contentType(key); got != want {
			t.Errorf("contentType(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestNewGCSUploaderValidation(t *testing.T) {
	if _, err := NewGCSUploader(context.Background(), "", ""); err == nil {
		t.Error("empty bucket accepted")
	}
	if _, err := NewGCSUploader(context.Background(), "b", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing credentials file accepted")
	}
}
