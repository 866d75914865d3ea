package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"auth-vault/internal/domain"
)

// SessionService emite y destruye sesiones del lado del servidor. El handle
// que recibe el cliente es un JWT firmado que solo lleva el id de sesion.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	store  SessionStore
	now    func() time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

var ErrSessionSecretMissing = errors.New("session secret not configured")

func NewSessionService(secret string, ttl time.Duration, store SessionStore) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &SessionService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "auth-vault",
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TTL es la vida maxima de la sesion y de su cookie.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Establish liga identity a una sesion nueva. Si current ya tenia una sesion,
// se destruye primero para no reutilizar handles previos al login.
func (s *SessionService) Establish(ctx context.Context, current domain.SessionState, identity domain.Identity) (domain.SessionState, error) {
	if len(s.secret) == 0 {
		return current, ErrSessionSecretMissing
	}
	if err := s.Destroy(ctx, current); err != nil {
		return current, err
	}

	id := uuid.NewString()
	if err := s.store.Save(ctx, id, identity, s.ttl); err != nil {
		return current, fmt.Errorf("save session: %w", err)
	}
	handle, err := s.sign(id, s.now())
	if err != nil {
		_ = s.store.Delete(ctx, id)
		return current, fmt.Errorf("sign session: %w", err)
	}
	return domain.SessionState{Handle: handle, Identity: &identity}, nil
}

// Current resuelve el handle de un request. Un handle invalido, expirado o
// sin entrada en el store equivale a no tener sesion.
func (s *SessionService) Current(ctx context.Context, handle string) (domain.SessionState, error) {
	id, ok := s.parse(handle)
	if !ok {
		return domain.SessionState{}, nil
	}
	identity, found, err := s.store.Load(ctx, id)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return domain.SessionState{}, nil
	}
	return domain.SessionState{Handle: handle, Identity: &identity}, nil
}

// Destroy es idempotente; solo falla si el store no puede borrar.
func (s *SessionService) Destroy(ctx context.Context, state domain.SessionState) error {
	id, ok := s.parse(state.Handle)
	if !ok {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func (s *SessionService) sign(id string, now time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *SessionService) parse(handle string) (string, bool) {
	handle = strings.TrimSpace(handle)
	if handle == "" || len(s.secret) == 0 {
		return "", false
	}
	var claims sessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(handle, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || strings.TrimSpace(claims.ID) == "" {
		return "", false
	}
	return claims.ID, true
}
