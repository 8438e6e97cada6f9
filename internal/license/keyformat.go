package license

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	apperrors "keyserve/internal/errors"
)

// Key format: PFIZER- followed by 4 hyphen-separated groups of 4 uppercase
// alphanumerics, e.g. PFIZER-AB12-CD34-EF56-GH78.
const (
	KeyPrefix     = "PFIZER"
	keyGroupCount = 4
	keyGroupLen   = 4
	keyAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var keyPattern = regexp.MustCompile(`^PFIZER-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// ValidKeyFormat reports whether key matches the license key pattern exactly.
// No normalization is applied: lowercase or unhyphenated input is rejected.
func ValidKeyFormat(key string) bool {
	return keyPattern.MatchString(key)
}

// ValidateKeyFormat returns ErrInvalidKeyFormat when key does not match the
// pattern.
func ValidateKeyFormat(key string) error {
	if !ValidKeyFormat(key) {
		return fmt.Errorf("%w: expected %s-XXXX-XXXX-XXXX-XXXX", apperrors.ErrInvalidKeyFormat, KeyPrefix)
	}
	return nil
}

// GenerateKey returns a fresh well-formed license key from crypto/rand.
// Random bytes are rejection-sampled so every alphabet character is equally
// likely. A generated key grants nothing by itself; it only becomes a valid
// license once an admin creates a record for it.
func GenerateKey() (string, error) {
	// Largest multiple of the alphabet size below 256; bytes at or above it
	// are discarded to avoid modulo bias.
	const limit = byte(256 / len(keyAlphabet) * len(keyAlphabet))

	var sb strings.Builder
	sb.WriteString(KeyPrefix)

	need := keyGroupCount * keyGroupLen
	written := 0
	buf := make([]byte, 2*need)
	for written < need {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			if written%keyGroupLen == 0 {
				sb.WriteByte('-')
			}
			sb.WriteByte(keyAlphabet[int(b)%len(keyAlphabet)])
			written++
			if written == need {
				break
			}
		}
	}
	return sb.String(), nil
}
