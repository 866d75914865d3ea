package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-vault/internal/domain"
	"auth-vault/internal/repository"
)

// UserService cubre las operaciones de perfil que requieren sesion.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
	now    func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	return &UserService{
		logger: logger,
		users:  users,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProfileUpdate: los campos nil no se tocan.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Address   *string
}

func (s *UserService) Me(ctx context.Context, sess domain.SessionState) (domain.Profile, error) {
	user, err := s.sessionUser(ctx, sess)
	if err != nil {
		return domain.Profile{}, err
	}
	return user.Profile(), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, sess domain.SessionState, update ProfileUpdate) (domain.Profile, error) {
	user, err := s.sessionUser(ctx, sess)
	if err != nil {
		return domain.Profile{}, err
	}

	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}
	if update.Address != nil {
		user.Address = *update.Address
	}
	user.UpdatedAt = s.now()

	if err := s.users.Save(ctx, user); err != nil {
		return domain.Profile{}, fmt.Errorf("save user: %w", err)
	}
	return user.Profile(), nil
}

// SetTwoFactor activa o desactiva el segundo factor por email.
func (s *UserService) SetTwoFactor(ctx context.Context, sess domain.SessionState, enabled bool) error {
	user, err := s.sessionUser(ctx, sess)
	if err != nil {
		return err
	}
	user.TwoFactorEnabled = enabled
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	s.logger.Info("two factor toggled", zap.String("user_id", user.ID), zap.Bool("enabled", enabled))
	return nil
}

func (s *UserService) sessionUser(ctx context.Context, sess domain.SessionState) (domain.User, error) {
	if !sess.Authenticated() {
		return domain.User{}, ErrNotAuthenticated
	}
	user, err := s.users.GetByID(ctx, sess.Identity.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}
