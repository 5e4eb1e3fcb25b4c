package backup

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"groupseal/internal/crypto"
	gerrors "groupseal/internal/errors"
)

const (
	// Header starts an armored backup.
	Header = "-----BEGIN MM E2EE PRIVATE KEY-----"
	// Footer ends an armored backup.
	Footer = "-----END MM E2EE PRIVATE KEY-----"

	lineWidth = 60
)

// ErrInvalidArmor is returned when the header or footer is missing.
var ErrInvalidArmor = errors.New("invalid armor format")

// Armor wraps data in the backup armor.
func Armor(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteByte('\n')
	for len(enc) > 0 {
		n := min(lineWidth, len(enc))
		sb.WriteString(enc[:n])
		sb.WriteByte('\n')
		enc = enc[n:]
	}
	sb.WriteString(Footer)
	return sb.String()
}

// Unarmor extracts the data between header and footer. Whitespace inside
// the block is ignored and text around it is allowed.
func Unarmor(text string) ([]byte, error) {
	start := strings.Index(text, Header)
	if start < 0 {
		return nil, ErrInvalidArmor
	}
	body := text[start+len(Header):]
	end := strings.Index(body, Footer)
	if end < 0 {
		return nil, ErrInvalidArmor
	}
	b64 := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, body[:end])
	return base64.StdEncoding.DecodeString(b64)
}

// Format produces the clear-text backup of an extractable key.
func Format(key *crypto.PrivateKeyMaterial) (string, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return Armor(data), nil
}

// Parse reads a clear-text backup into a key with the given extractability.
func Parse(text string, extractable bool) (*crypto.PrivateKeyMaterial, error) {
	data, err := Unarmor(text)
	if err != nil {
		return nil, gerrors.E(gerrors.InvalidPrivateKey, "backup parse", err)
	}
	return crypto.ParsePrivateKey(data, extractable)
}
