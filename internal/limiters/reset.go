package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCooldown            = errors.New("reset cooldown active")
	ErrEmailWindowExceeded = errors.New("reset email window exceeded")
	ErrIPWindowExceeded    = errors.New("reset ip window exceeded")
	ErrRedisUnavailable    = errors.New("reset limiter redis unavailable")
)

// Config holds the admission thresholds for reset requests.
type Config struct {
	Cooldown    time.Duration
	MaxPerEmail int
	MaxPerIP    int
	Window      time.Duration
}

// ResetLimiter throttles reset requests with a per-email cooldown and
// rolling-window counters per email and per IP. Calling any method on a nil
// receiver returns nil.
type ResetLimiter struct {
	redis  redis.UniversalClient
	config Config
	prefix string
	now    func() time.Time
}

// NewResetLimiter creates a [ResetLimiter]. The now function supplies logical
// time and may be nil, in which case [time.Now] is used.
func NewResetLimiter(redisClient redis.UniversalClient, cfg Config, prefix string, now func() time.Time) *ResetLimiter {
	if prefix == "" {
		prefix = "gr"
	}
	if now == nil {
		now = time.Now
	}
	return &ResetLimiter{
		redis:  redisClient,
		config: cfg,
		prefix: prefix,
		now:    now,
	}
}

func (l *ResetLimiter) cooldownKey(email string) string {
	return l.prefix + ":cd:" + email
}

func (l *ResetLimiter) emailWindowKey(email string) string {
	return l.prefix + ":we:" + email
}

func (l *ResetLimiter) ipWindowKey(ip string) string {
	return l.prefix + ":wi:" + ip
}

// CheckCooldown reports whether a request for email is inside the cooldown
// set by the previous request. On rejection it returns the remaining wait
// together with [ErrCooldown].
func (l *ResetLimiter) CheckCooldown(ctx context.Context, email string) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}

	wait, err := l.redis.PTTL(ctx, l.cooldownKey(email)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// PTTL returns a negative duration when the key is missing or has no
	// expiry; either way no cooldown is pending.
	if wait > 0 {
		return wait, ErrCooldown
	}

	return 0, nil
}

// CheckWindows reports whether email or ip has exhausted its rolling-window
// quota. An empty ip skips the per-IP check. Rejected requests do not count
// toward either window.
func (l *ResetLimiter) CheckWindows(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	count, err := l.windowCount(ctx, l.emailWindowKey(email))
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxPerEmail) {
		return ErrEmailWindowExceeded
	}

	if ip != "" {
		count, err := l.windowCount(ctx, l.ipWindowKey(ip))
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxPerIP) {
			return ErrIPWindowExceeded
		}
	}

	return nil
}

// RecordRequest charges one admitted request against the cooldown and both
// rolling windows.
func (l *ResetLimiter) RecordRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	now := l.now()
	member := strconv.FormatInt(now.UnixNano(), 10)

	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.cooldownKey(email), "1", l.config.Cooldown)

		pipe.ZAdd(ctx, l.emailWindowKey(email), redis.Z{
			Score:  float64(now.Unix()),
			Member: member,
		})
		pipe.Expire(ctx, l.emailWindowKey(email), l.config.Window)

		if ip != "" {
			pipe.ZAdd(ctx, l.ipWindowKey(ip), redis.Z{
				Score:  float64(now.Unix()),
				Member: member,
			})
			pipe.Expire(ctx, l.ipWindowKey(ip), l.config.Window)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func (l *ResetLimiter) windowCount(ctx context.Context, key string) (int64, error) {
	cutoff := l.now().Add(-l.config.Window).Unix()

	if err := l.redis.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count, err := l.redis.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count, nil
}
