package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"auth-vault/internal/domain"
)

// SessionStore guarda la identidad de cada sesion con un TTL.
type SessionStore interface {
	Save(ctx context.Context, id string, identity domain.Identity, ttl time.Duration) error
	// Load devuelve ok=false si la sesion no existe o expiro.
	Load(ctx context.Context, id string) (domain.Identity, bool, error)
	Delete(ctx context.Context, id string) error
}

type memorySessionEntry struct {
	identity  domain.Identity
	expiresAt time.Time
}

// memorySessionSweepEvery acota cada cuanto Save recorre el mapa buscando
// sesiones vencidas que nadie volvio a cargar.
const memorySessionSweepEvery = time.Minute

type memorySessionStore struct {
	mu        sync.Mutex
	items     map[string]memorySessionEntry
	now       func() time.Time
	nextSweep time.Time
}

// NewMemorySessionStore es el fallback cuando no hay redis configurado.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		items: make(map[string]memorySessionEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *memorySessionStore) Save(_ context.Context, id string, identity domain.Identity, ttl time.Duration) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !now.Before(s.nextSweep) {
		for key, entry := range s.items {
			if now.After(entry.expiresAt) {
				delete(s.items, key)
			}
		}
		s.nextSweep = now.Add(memorySessionSweepEvery)
	}
	s.items[id] = memorySessionEntry{identity: identity, expiresAt: now.Add(ttl)}
	return nil
}

func (s *memorySessionStore) Load(_ context.Context, id string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return domain.Identity{}, false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.items, id)
		return domain.Identity{}, false, nil
	}
	return entry.identity, true, nil
}

func (s *memorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

type redisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client) SessionStore {
	if client == nil {
		return nil
	}
	return &redisSessionStore{
		client: client,
		prefix: "auth:session:",
	}
}

func (s *redisSessionStore) Save(ctx context.Context, id string, identity domain.Identity, ttl time.Duration) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+id, payload, ttl).Err()
}

func (s *redisSessionStore) Load(ctx context.Context, id string) (domain.Identity, bool, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Identity{}, false, nil
	}
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, err
	}
	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return domain.Identity{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return identity, true, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}
