package backup

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"

	"groupseal/internal/domain"
)

// OpenPGP protects backups by encrypting them to an OpenPGP public key.
type OpenPGP struct{}

// Protect encrypts clearBackup to every key in armoredPublicKey and returns
// an ASCII-armored PGP message.
func (OpenPGP) Protect(clearBackup, armoredPublicKey string) (string, error) {
	recipients, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredPublicKey))
	if err != nil {
		return "", fmt.Errorf("read backup public key: %w", err)
	}
	if len(recipients) == 0 {
		return "", fmt.Errorf("read backup public key: no keys")
	}

	var buf bytes.Buffer
	aw, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return "", err
	}
	pw, err := openpgp.Encrypt(aw, recipients, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("encrypt backup: %w", err)
	}
	if _, err := pw.Write([]byte(clearBackup)); err != nil {
		return "", err
	}
	if err := pw.Close(); err != nil {
		return "", err
	}
	if err := aw.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Compile-time assertion that OpenPGP implements domain.BackupProtector.
var _ domain.BackupProtector = OpenPGP{}
