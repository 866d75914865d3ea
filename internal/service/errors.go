package service

import (
	"errors"
	"time"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrOTPExpiredOrInvalid = errors.New("otp expired or invalid")
	ErrInvalidOTPPurpose   = errors.New("invalid otp purpose")
	ErrTwoFactorNotEnabled = errors.New("two factor not enabled")
	ErrEmailSendFailure    = errors.New("email send failed")
	ErrRateLimited         = errors.New("rate limited")
)

// RateLimitError acompaña a ErrRateLimited con la espera hasta que la ventana
// se libere. errors.Is(err, ErrRateLimited) sigue funcionando.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
