package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"auth-vault/internal/domain"
)

func TestSessionService_EstablishCurrentDestroy(t *testing.T) {
	svc := NewSessionService("secret", 24*time.Hour, NewMemorySessionStore())
	ctx := context.Background()
	identity := domain.Identity{ID: "u1", Email: "alice@example.com"}

	state, err := svc.Establish(ctx, domain.SessionState{}, identity)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if state.Handle == "" || state.Identity == nil || *state.Identity != identity {
		t.Fatalf("unexpected state: %+v", state)
	}

	current, err := svc.Current(ctx, state.Handle)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !current.Authenticated() || current.Identity.ID != "u1" {
		t.Fatalf("expected bound identity, got %+v", current)
	}

	if err := svc.Destroy(ctx, current); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	after, err := svc.Current(ctx, state.Handle)
	if err != nil {
		t.Fatalf("current after destroy: %v", err)
	}
	if after.Authenticated() {
		t.Fatalf("expected no identity after destroy")
	}
}

func TestSessionService_DestroyWithoutSessionIsIdempotent(t *testing.T) {
	svc := NewSessionService("secret", time.Hour, NewMemorySessionStore())
	if err := svc.Destroy(context.Background(), domain.SessionState{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := svc.Destroy(context.Background(), domain.SessionState{Handle: "garbage"}); err != nil {
		t.Fatalf("expected nil for unparseable handle, got %v", err)
	}
}

func TestSessionService_DestroyStoreFailure(t *testing.T) {
	store := &failingSessionStore{SessionStore: NewMemorySessionStore()}
	svc := NewSessionService("secret", time.Hour, store)
	ctx := context.Background()

	state, err := svc.Establish(ctx, domain.SessionState{}, domain.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	store.deleteErr = errStoreDown
	if err := svc.Destroy(ctx, state); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error surfaced, got %v", err)
	}
}

func TestSessionService_EstablishRotatesPrevious(t *testing.T) {
	svc := NewSessionService("secret", time.Hour, NewMemorySessionStore())
	ctx := context.Background()

	first, _ := svc.Establish(ctx, domain.SessionState{}, domain.Identity{ID: "u1"})
	second, err := svc.Establish(ctx, first, domain.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if second.Handle == first.Handle {
		t.Fatalf("expected a fresh handle")
	}
	old, _ := svc.Current(ctx, first.Handle)
	if old.Authenticated() {
		t.Fatalf("expected previous session destroyed")
	}
}

func TestSessionService_RejectsForeignAndExpiredHandles(t *testing.T) {
	store := NewMemorySessionStore()
	svc := NewSessionService("secret", time.Hour, store)
	ctx := context.Background()

	state, _ := svc.Establish(ctx, domain.SessionState{}, domain.Identity{ID: "u1"})

	other := NewSessionService("other-secret", time.Hour, store)
	if got, _ := other.Current(ctx, state.Handle); got.Authenticated() {
		t.Fatalf("expected handle signed with another secret rejected")
	}

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	if got, _ := svc.Current(ctx, state.Handle); got.Authenticated() {
		t.Fatalf("expected expired handle rejected")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{ID: "x", Issuer: "auth-vault"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if got, _ := NewSessionService("secret", time.Hour, store).Current(ctx, unsigned); got.Authenticated() {
		t.Fatalf("expected alg none rejected")
	}
}

func TestSessionService_MissingSecret(t *testing.T) {
	svc := NewSessionService("", time.Hour, nil)
	if _, err := svc.Establish(context.Background(), domain.SessionState{}, domain.Identity{ID: "u1"}); !errors.Is(err, ErrSessionSecretMissing) {
		t.Fatalf("expected ErrSessionSecretMissing, got %v", err)
	}
	if svc.TTL() != time.Hour {
		t.Fatalf("unexpected ttl %v", svc.TTL())
	}
}
