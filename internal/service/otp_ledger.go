package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-vault/internal/domain"
	"auth-vault/internal/repository"
)

const (
	otpTTL     = 10 * time.Minute
	otpMinCode = 100000
	otpSpan    = 900000
)

// OTPLedger emite y consume codigos de un solo uso.
type OTPLedger struct {
	otps repository.OTPRepository
	now  func() time.Time
}

func NewOTPLedger(otps repository.OTPRepository) *OTPLedger {
	return &OTPLedger{
		otps: otps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Issue genera un codigo nuevo y reemplaza cualquier codigo previo del mismo
// (email, purpose). Solo se persiste el hash.
func (l *OTPLedger) Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, time.Time, error) {
	if !purpose.Valid() {
		return "", time.Time{}, ErrInvalidOTPPurpose
	}
	code, hash, err := generateOTP()
	if err != nil {
		return "", time.Time{}, err
	}
	now := l.now()
	expiresAt := now.Add(otpTTL)
	err = l.otps.Upsert(ctx, domain.OTPRecord{
		Email:     normalizeEmail(email),
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store otp: %w", err)
	}
	return code, expiresAt, nil
}

// Verify consume el codigo si coincide y no expiro. Un fallo deja el registro
// intacto para reintentar hasta la expiracion.
func (l *OTPLedger) Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	if !purpose.Valid() {
		return ErrInvalidOTPPurpose
	}
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if !isValidOTPCode(code) {
		return ErrOTPExpiredOrInvalid
	}

	rec, err := l.otps.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOTPExpiredOrInvalid
		}
		return fmt.Errorf("load otp: %w", err)
	}
	if rec.Expired(l.now()) {
		return ErrOTPExpiredOrInvalid
	}
	if !verifyOTP(code, rec.CodeHash) {
		return ErrOTPExpiredOrInvalid
	}

	consumed, err := l.otps.Consume(ctx, email, purpose, rec.CodeHash)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		// otro request lo consumio o lo reemplazo entre Get y Consume
		return ErrOTPExpiredOrInvalid
	}
	return nil
}

// Purge borra los registros expirados.
func (l *OTPLedger) Purge(ctx context.Context) (int64, error) {
	return l.otps.DeleteExpired(ctx, l.now())
}

// OTPJanitor purga codigos expirados periodicamente.
type OTPJanitor struct {
	ledger   *OTPLedger
	interval time.Duration
	logger   *zap.Logger
}

func NewOTPJanitor(ledger *OTPLedger, interval time.Duration, logger *zap.Logger) *OTPJanitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &OTPJanitor{ledger: ledger, interval: interval, logger: logger}
}

// Run bloquea hasta que ctx se cancela.
func (j *OTPJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.ledger.Purge(ctx)
			if err != nil {
				if ctx.Err() == nil {
					j.logger.Warn("purge expired otps failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				j.logger.Debug("purged expired otps", zap.Int64("count", n))
			}
		}
	}
}

func generateOTP() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64()+otpMinCode)
	hash, err := hashOTP(code)
	if err != nil {
		return "", "", err
	}
	return code, hash, nil
}

func hashOTP(code string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	return saltStr + ":" + base64.StdEncoding.EncodeToString(hashBytes[:]), nil
}

func verifyOTP(code, stored string) bool {
	saltStr, expectedHash, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
