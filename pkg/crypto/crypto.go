package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// UnusablePasswordPrefix marks stored passwords that can never match a candidate.
const UnusablePasswordPrefix = "!"

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	if !HasUsablePassword(hashedPassword) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// UnusablePassword returns a random marker for accounts that authenticate only
// through an institution (CAS) login.
func UnusablePassword() (string, error) {
	token, err := GenerateToken(24)
	if err != nil {
		return "", err
	}
	return UnusablePasswordPrefix + token, nil
}

// HasUsablePassword reports whether the stored value is a real password hash.
func HasUsablePassword(stored string) bool {
	return stored != "" && !strings.HasPrefix(stored, UnusablePasswordPrefix)
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
