// Package vault protects provider API keys at rest. Values are stored as
// base64(plaintext + "|" + integrityTag) where the tag is an HMAC-SHA256 of
// the plaintext keyed by a process-wide secret. Decryption failures always
// surface as an empty result, which callers treat as "no credential
// configured" rather than an error.
package vault

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const separator = "|"

// KeyFormat is a pure predicate over a candidate plaintext key. Each
// provider adapter supplies one (prefix + character class + length range).
type KeyFormat func(string) bool

// Vault encrypts and decrypts credentials against a set of known key
// formats.
type Vault struct {
	secret  []byte
	formats []KeyFormat
}

func New(secret string, formats ...KeyFormat) *Vault {
	return &Vault{secret: []byte(secret), formats: formats}
}

// Encrypt wraps a plaintext key. Re-encrypting an already-encrypted value
// returns it unchanged, never double-wrapped. Returns "" when the plaintext
// matches no known provider key format or no vault secret is set.
func (v *Vault) Encrypt(plaintext string) string {
	if plaintext == "" || len(v.secret) == 0 {
		return ""
	}
	if v.isEncrypted(plaintext) {
		return plaintext
	}
	if !v.matchesKnownFormat(plaintext) {
		return ""
	}
	payload := plaintext + separator + v.tag(plaintext)
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// Decrypt recovers the plaintext key. A value that already matches a known
// key format is treated as legacy unencrypted storage and returned as-is.
// Any structural or integrity failure yields "".
func (v *Vault) Decrypt(ciphertext string) string {
	if ciphertext == "" || len(v.secret) == 0 {
		return ""
	}
	if v.matchesKnownFormat(ciphertext) {
		return ciphertext
	}

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ""
	}
	parts := strings.Split(string(decoded), separator)
	if len(parts) != 2 {
		return ""
	}
	plaintext, tag := parts[0], parts[1]

	if !hmac.Equal([]byte(tag), []byte(v.tag(plaintext))) {
		return ""
	}
	// A key that decrypts cleanly but no longer matches any provider format
	// is corrupt; never hand back a partial key.
	if !v.matchesKnownFormat(plaintext) {
		return ""
	}
	return plaintext
}

func (v *Vault) tag(plaintext string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Vault) matchesKnownFormat(s string) bool {
	for _, format := range v.formats {
		if format(s) {
			return true
		}
	}
	return false
}

// isEncrypted is a structural check: valid base64 whose payload contains
// exactly one separator.
func (v *Vault) isEncrypted(s string) bool {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return strings.Count(string(decoded), separator) == 1
}
