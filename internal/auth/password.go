package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (b *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare reports whether password matches hash. An empty hash never matches.
func (b *BcryptHasher) Compare(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

// PasswordPolicy describes what a new password must contain.
type PasswordPolicy struct {
	MinLength      int
	RequireMixed   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy accepts any non-empty password bcrypt can hash in
// full, matching what existing clients send.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{}
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return errors.New("password is too short")
	}
	if len(password) > maxPasswordBytes {
		return errors.New("password is too long")
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if p.RequireMixed && (!hasUpper || !hasLower) {
		return errors.New("password must contain upper and lower case letters")
	}
	if p.RequireDigit && !hasDigit {
		return errors.New("password must contain at least one number")
	}
	if p.RequireSpecial && !hasSpecial {
		return errors.New("password must contain at least one special character")
	}
	return nil
}
