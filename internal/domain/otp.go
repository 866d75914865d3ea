package domain

import (
	"fmt"
	"time"
)

// OTPPurpose identifica para que flujo se emitio un codigo.
type OTPPurpose string

const (
	OTPPurposeEmailVerification OTPPurpose = "email_verification"
	OTPPurposeLogin2FA          OTPPurpose = "login_2fa"
)

func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeEmailVerification, OTPPurposeLogin2FA:
		return true
	}
	return false
}

func (p OTPPurpose) String() string {
	return string(p)
}

// ParseOTPPurpose convierte el valor almacenado en un OTPPurpose conocido.
func ParseOTPPurpose(s string) (OTPPurpose, error) {
	p := OTPPurpose(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown otp purpose %q", s)
	}
	return p, nil
}

// OTPRecord es un codigo pendiente; solo existe uno vivo por (email, purpose).
type OTPRecord struct {
	Email     string
	Purpose   OTPPurpose
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired indica si el registro ya no es valido en now.
func (r OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
