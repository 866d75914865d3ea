package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-vault/internal/domain"
	"auth-vault/internal/email"
	"auth-vault/internal/repository"
)

// AuthService coordina registro, verificacion de email, login, 2FA y logout.
type AuthService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	hasher     PasswordHasher
	otps       *OTPLedger
	sender     email.Sender
	otpLimiter OTPRateLimiter
	sessions   *SessionService
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	otps *OTPLedger,
	sender email.Sender,
	otpLimiter OTPRateLimiter,
	sessions *SessionService,
) *AuthService {
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(otpTTL, 5)
	}
	if hasher == nil {
		hasher = NewArgon2Hasher(DefaultArgon2Params)
	}
	return &AuthService{
		logger:     logger,
		users:      users,
		hasher:     hasher,
		otps:       otps,
		sender:     sender,
		otpLimiter: otpLimiter,
		sessions:   sessions,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Address   string
}

// VerifyResult: Profile es nil cuando el email ya estaba verificado.
type VerifyResult struct {
	Profile         *domain.Profile
	AlreadyVerified bool
}

// LoginResult: con TwoFactorRequired no hay perfil ni sesion todavia.
type LoginResult struct {
	Profile           *domain.Profile
	TwoFactorRequired bool
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	emailAddr := normalizeEmail(input.Email)

	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Address:      input.Address,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// dos registros concurrentes: la restriccion unica decide
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}

	return s.sendCode(ctx, user, domain.OTPPurposeEmailVerification)
}

func (s *AuthService) VerifyEmail(ctx context.Context, sess domain.SessionState, emailAddr, code string) (VerifyResult, domain.SessionState, error) {
	user, err := s.findByEmail(ctx, emailAddr)
	if err != nil {
		return VerifyResult{}, sess, err
	}
	if user.EmailVerified {
		return VerifyResult{AlreadyVerified: true}, sess, nil
	}

	if err := s.otps.Verify(ctx, user.Email, domain.OTPPurposeEmailVerification, code); err != nil {
		return VerifyResult{}, sess, err
	}

	now := s.now()
	user.EmailVerified = true
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.users.Save(ctx, user); err != nil {
		return VerifyResult{}, sess, fmt.Errorf("save user: %w", err)
	}

	next, err := s.sessions.Establish(ctx, sess, user.Identity())
	if err != nil {
		return VerifyResult{}, sess, err
	}
	profile := user.Profile()
	return VerifyResult{Profile: &profile}, next, nil
}

// ResendVerification reemite el codigo de verificacion. Devuelve true sin
// enviar nada si el email ya estaba verificado.
func (s *AuthService) ResendVerification(ctx context.Context, emailAddr string) (bool, error) {
	user, err := s.findByEmail(ctx, emailAddr)
	if err != nil {
		return false, err
	}
	if user.EmailVerified {
		return true, nil
	}
	if ok, wait := s.otpLimiter.Allow(ctx, otpLimiterKey(domain.OTPPurposeEmailVerification, user.Email)); !ok {
		return false, &RateLimitError{RetryAfter: wait}
	}
	return false, s.sendCode(ctx, user, domain.OTPPurposeEmailVerification)
}

func (s *AuthService) Login(ctx context.Context, sess domain.SessionState, emailAddr, password string) (LoginResult, domain.SessionState, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// mismo costo que un password incorrecto
			_, _ = s.hasher.Verify(password, s.dummy())
			return LoginResult{}, sess, ErrInvalidCredentials
		}
		return LoginResult{}, sess, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return LoginResult{}, sess, ErrInvalidCredentials
	}
	if !ok {
		return LoginResult{}, sess, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return LoginResult{}, sess, ErrEmailNotVerified
	}

	if user.TwoFactorEnabled {
		if ok, wait := s.otpLimiter.Allow(ctx, otpLimiterKey(domain.OTPPurposeLogin2FA, user.Email)); !ok {
			return LoginResult{}, sess, &RateLimitError{RetryAfter: wait}
		}
		if err := s.sendCode(ctx, user, domain.OTPPurposeLogin2FA); err != nil {
			return LoginResult{}, sess, err
		}
		return LoginResult{TwoFactorRequired: true}, sess, nil
	}

	profile, next, err := s.completeLogin(ctx, sess, user)
	if err != nil {
		return LoginResult{}, sess, err
	}
	return LoginResult{Profile: &profile}, next, nil
}

func (s *AuthService) VerifyTwoFactor(ctx context.Context, sess domain.SessionState, emailAddr, code string) (domain.Profile, domain.SessionState, error) {
	user, err := s.findByEmail(ctx, emailAddr)
	if err != nil {
		return domain.Profile{}, sess, err
	}
	if !user.TwoFactorEnabled {
		return domain.Profile{}, sess, ErrTwoFactorNotEnabled
	}
	if err := s.otps.Verify(ctx, user.Email, domain.OTPPurposeLogin2FA, code); err != nil {
		return domain.Profile{}, sess, err
	}
	return s.completeLogin(ctx, sess, user)
}

// Logout siempre devuelve un estado sin sesion, salvo que el store falle.
func (s *AuthService) Logout(ctx context.Context, sess domain.SessionState) (domain.SessionState, error) {
	if err := s.sessions.Destroy(ctx, sess); err != nil {
		return sess, err
	}
	return domain.SessionState{}, nil
}

func (s *AuthService) completeLogin(ctx context.Context, sess domain.SessionState, user domain.User) (domain.Profile, domain.SessionState, error) {
	now := s.now()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.users.Save(ctx, user); err != nil {
		return domain.Profile{}, sess, fmt.Errorf("save user: %w", err)
	}
	next, err := s.sessions.Establish(ctx, sess, user.Identity())
	if err != nil {
		return domain.Profile{}, sess, err
	}
	return user.Profile(), next, nil
}

// sendCode emite un OTP y lo entrega por correo. Si el envio falla el
// registro queda guardado; el cliente puede pedir un reenvio.
func (s *AuthService) sendCode(ctx context.Context, user domain.User, purpose domain.OTPPurpose) error {
	code, _, err := s.otps.Issue(ctx, user.Email, purpose)
	if err != nil {
		return err
	}

	msg := email.Message{
		To: user.Email,
		Data: email.OTPMailData{
			Email: user.Email,
			Name:  user.FirstName,
			OTP:   code,
		},
	}
	switch purpose {
	case domain.OTPPurposeEmailVerification:
		msg.Subject = "Verify your email"
		msg.Template = email.TemplateVerification
	case domain.OTPPurposeLogin2FA:
		msg.Subject = "Your login verification code"
		msg.Template = email.TemplateLogin2FA
	default:
		return ErrInvalidOTPPurpose
	}

	if s.sender == nil {
		return ErrEmailSendFailure
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		if errors.Is(err, email.ErrInvalidTemplateData) {
			return err
		}
		s.logger.Warn("send otp email failed",
			zap.Error(err),
			zap.String("email", user.Email),
			zap.String("purpose", purpose.String()),
		)
		return ErrEmailSendFailure
	}
	return nil
}

func (s *AuthService) findByEmail(ctx context.Context, emailAddr string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.dummyHash
}
