package archive

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// sha1("hello world")
const helloSHA1 = "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"

func TestHashFile(t *testing.T) {
	path := writeTemp(t, "f", []byte("hello world"))

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if got != helloSHA1 {
		t.Errorf("HashFile() = %s, want %s", got, helloSHA1)
	}

	again, _ := HashFile(path)
	if again != got {
		t.Error("HashFile is not deterministic")
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestVerifyFile(t *testing.T) {
	path := writeTemp(t, "f", []byte("hello world"))

	tests := []struct {
		name     string
		expected string
		want     bool
	}{
		{"exact", helloSHA1, true},
		{"uppercase", strings.ToUpper(helloSHA1), true},
		{"trailing_newline", helloSHA1 + "\n", true},
		{"mismatch", strings.Repeat("0", 40), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyFile(path, tt.expected)
			if err != nil {
				t.Fatalf("VerifyFile() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyFile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyDigestMismatchKind(t *testing.T) {
	path := writeTemp(t, "f", []byte("hello world"))

	err := verifyDigest(path, strings.Repeat("a", 40))

	var verr *VerificationFailedError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *VerificationFailedError, got %T", err)
	}
	if verr.Actual != helloSHA1 {
		t.Errorf("Actual = %s", verr.Actual)
	}
	if !strings.Contains(verr.Error(), "checksum mismatch") {
		t.Errorf("Error() = %s", verr.Error())
	}
}
