package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// SignatureVerifier checks detached OpenPGP signatures against a keyring.
type SignatureVerifier struct {
	keyring openpgp.EntityList
}

// NewSignatureVerifier creates a verifier for an in-memory keyring.
func NewSignatureVerifier(keyring openpgp.EntityList) *SignatureVerifier {
	return &SignatureVerifier{keyring: keyring}
}

// LoadKeyring reads an armored or binary public keyring.
func LoadKeyring(path string) (*SignatureVerifier, error) {
	keyringFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		// Try reading as non-armored keyring
		if _, seekErr := keyringFile.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return NewSignatureVerifier(keyring), nil
}

// Verify checks signaturePath as a detached signature of filePath.
// A bad signature is reported as *VerificationFailedError.
func (s *SignatureVerifier) Verify(filePath, signaturePath string) error {
	signed, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer signed.Close()

	sig, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sig.Close()

	// Try armored first, then binary
	_, err = openpgp.CheckArmoredDetachedSignature(s.keyring, signed, sig, nil)
	if err != nil {
		if _, seekErr := signed.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind file: %w", seekErr)
		}
		if _, seekErr := sig.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind signature: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(s.keyring, signed, sig, nil)
	}
	if err != nil {
		return &VerificationFailedError{
			Path:   filePath,
			Reason: fmt.Sprintf("bad signature: %v", err),
		}
	}

	return nil
}
