package archive

import "fmt"

// VerificationFailedError reports an archive that failed its digest or
// signature check. The file it refers to has already been discarded.
type VerificationFailedError struct {
	Path     string
	Expected string
	Actual   string
	Reason   string
}

func (e *VerificationFailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("verification failed for %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("verification failed for %s: checksum mismatch (expected %s, got %s)", e.Path, e.Expected, e.Actual)
}

// BinaryNotPresentError reports that no binary archive is published for a
// package version.
type BinaryNotPresentError struct {
	Name    string
	Version string
}

func (e *BinaryNotPresentError) Error() string {
	return fmt.Sprintf("binary package not present: %s %s", e.Name, e.Version)
}
