package auth

import (
	"strings"
	"time"
)

// Purpose selects which pending code an OTP operation works on.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// PendingCode is an outstanding one-time code. Only the SHA-256 of the code
// is kept; the plaintext goes to the mailer and nowhere else.
type PendingCode struct {
	Hash      string
	ExpiresAt time.Time
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	VerifyOTP    *PendingCode
	ResetOTP     *PendingCode
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// pending returns a pointer to the slot for the given purpose.
func (u *User) pending(p Purpose) **PendingCode {
	if p == PurposeReset {
		return &u.ResetOTP
	}
	return &u.VerifyOTP
}

// Clone returns a deep copy so stores can hand out values callers may mutate.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.VerifyOTP != nil {
		v := *u.VerifyOTP
		c.VerifyOTP = &v
	}
	if u.ResetOTP != nil {
		r := *u.ResetOTP
		c.ResetOTP = &r
	}
	return &c
}

// NormalizeEmail lower-cases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
