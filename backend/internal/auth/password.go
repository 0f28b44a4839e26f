package auth

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"knowledge-base/backend/internal/constants"
	apperrors "knowledge-base/backend/pkg/errors"
)

// HashPassword validates and bcrypt-hashes a password
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePassword enforces the password policy
func ValidatePassword(password string) error {
	if len(password) < constants.MinPasswordLength {
		return apperrors.NewValidationFailed("password", fmt.Sprintf("must be at least %d characters", constants.MinPasswordLength))
	}
	if len(password) > 72 {
		return apperrors.NewValidationFailed("password", bcrypt.ErrPasswordTooLong.Error())
	}
	return nil
}

func newTokenID() string {
	return uuid.NewString()
}
