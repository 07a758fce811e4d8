package archive

import (
	"crypto/sha1" //nolint:gosec // SHA1 is the digest the binary host publishes
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// HashFile returns the lowercase hex SHA1 digest of a file.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha1.New() //nolint:gosec
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyFile reports whether the file's SHA1 matches expected
// (case-insensitive, surrounding whitespace ignored). A mismatch is not an
// error; only I/O failures are.
func VerifyFile(path, expected string) (bool, error) {
	actual, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, strings.TrimSpace(expected)), nil
}

// verifyDigest checks path against expected and returns a
// *VerificationFailedError on mismatch.
func verifyDigest(path, expected string) error {
	actual, err := HashFile(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return &VerificationFailedError{
			Path:     path,
			Expected: strings.ToLower(strings.TrimSpace(expected)),
			Actual:   actual,
		}
	}
	return nil
}
