package custody

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var costOverride atomic.Int32

// SetPasswordHashCost overrides the bcrypt cost, zero restores the default.
// Tests use it to keep suites fast.
func SetPasswordHashCost(cost int) {
	costOverride.Store(int32(cost))
}

func hashCost() int {
	if c := costOverride.Load(); c > 0 {
		return int(c)
	}
	return passwordHashCost()
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), hashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// VerifyPassword reports whether password matches hash.
// Malformed hashes yield false.
func VerifyPassword(password, hash string) bool {
	return ComparePasswordAndHash(password, hash) == nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// burnCompare runs a comparison against a throwaway hash so unknown
// usernames cost the same as wrong passwords.
func burnCompare(password string) {
	dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), hashCost())
		if err == nil {
			dummyHash = string(h)
		}
	})
	_ = VerifyPassword(password, dummyHash)
}
