package service

import (
	"context"
	"sync"
	"time"

	"auth-vault/internal/domain"
)

// OTPRateLimiter limita la frecuencia de emision de OTP por clave. Cuando
// niega, devuelve cuanto falta para que la ventana se libere.
type OTPRateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// otpLimiterKey separa los contadores por proposito.
func otpLimiterKey(purpose domain.OTPPurpose, email string) string {
	return purpose.String() + ":" + normalizeEmail(email)
}

type otpRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	hits      map[string][]time.Time
	now       func() time.Time
	nextSweep time.Time
}

// NewOTPRateLimiter crea un rate limiter en memoria.
func NewOTPRateLimiter(window time.Duration, max int) OTPRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &otpRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *otpRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	l.sweep(now, cutoff)

	kept := recentHits(l.hits[key], cutoff)
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false, kept[0].Add(l.window).Sub(now)
	}
	l.hits[key] = append(kept, now)
	return true, 0
}

// sweep descarta, una vez por ventana, las claves sin hits vigentes.
func (l *otpRateLimiter) sweep(now, cutoff time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, entries := range l.hits {
		if kept := recentHits(entries, cutoff); len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
	l.nextSweep = now.Add(l.window)
}

func recentHits(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
