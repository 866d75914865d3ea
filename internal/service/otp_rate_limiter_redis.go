package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ventana fija: INCR sobre la clave y PTTL para informar la espera. Si la
// clave quedo sin expiracion se la vuelve a fijar.
const redisOTPWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`

const redisLimiterTimeout = 500 * time.Millisecond

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisOTPRateLimiter comparte los contadores entre instancias del servicio.
type redisOTPRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int64
	prefix string
}

func NewRedisOTPRateLimiter(client *redis.Client, window time.Duration, max int) OTPRateLimiter {
	if client == nil {
		return nil
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisOTPRateLimiter{
		client: client,
		window: window,
		max:    int64(max),
		prefix: "auth:otp:rl:",
	}
}

// Allow falla abierto si redis no responde: el limite es una defensa
// secundaria y no debe bloquear el login.
func (l *redisOTPRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l == nil || l.client == nil {
		return true, 0
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false, l.window
	}

	ctx, cancel := context.WithTimeout(ctx, redisLimiterTimeout)
	defer cancel()
	count, ttl, err := l.hit(ctx, l.prefix+key)
	if err != nil {
		return true, 0
	}
	if count > l.max {
		return false, ttl
	}
	return true, 0
}

func (l *redisOTPRateLimiter) hit(ctx context.Context, redisKey string) (int64, time.Duration, error) {
	res, err := l.client.Eval(ctx, redisOTPWindowScript, []string{redisKey}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, redis.Nil
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}
