package access

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	hashScheme = "sha256"
	saltSize   = 16
)

// HashPassword returns "sha256$<salt>$<digest>" with a fresh random salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hashScheme + "$" + hex.EncodeToString(salt) + "$" + digest(salt, password), nil
}

// VerifyPassword accepts salted hashes and bare unsalted hex digests written
// by earlier versions.
func VerifyPassword(hash, password string) bool {
	parts := strings.Split(hash, "$")
	switch {
	case len(parts) == 3 && parts[0] == hashScheme:
		salt, err := hex.DecodeString(parts[1])
		if err != nil {
			return false
		}
		return equal(parts[2], digest(salt, password))
	case len(parts) == 1 && len(hash) == sha256.Size*2:
		return equal(strings.ToLower(hash), digest(nil, password))
	default:
		return false
	}
}

func digest(salt []byte, password string) string {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
