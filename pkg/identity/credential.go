package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password bounds for static realm accounts. bcrypt ignores input past
// MaxPasswordLength bytes, so longer passwords are refused outright.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72

	DefaultBcryptCost = 10
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters")
)

// ValidatePassword checks a candidate password against the length bounds.
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// HashPasswordWithCost validates password and returns its bcrypt hash,
// suitable for a static realm's password_hash.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(hash), err
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash is unparsable or weaker than
// DefaultBcryptCost.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost < DefaultBcryptCost
}
