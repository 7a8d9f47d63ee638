package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of a limiter check.
type Decision int

const (
	// Allowed means the caller is under the limit.
	Allowed Decision = iota
	// Limited means the fixed window is exhausted.
	Limited
	// Unavailable means the backing store could not be reached. Callers with a
	// fail-open policy treat this as Allowed.
	Unavailable
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Limited:
		return "limited"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// Limiter is a fixed-window counter on Redis (INCR + EXPIRE NX). FailOpen is a
// named policy choice: when Redis is unreachable the limiter reports
// Unavailable instead of rejecting legitimate traffic.
type Limiter struct {
	Client   *redis.Client
	Enabled  bool
	FailOpen bool
}

// New returns a limiter with the fail-open policy enabled.
func New(client *redis.Client) *Limiter {
	return &Limiter{Client: client, Enabled: true, FailOpen: true}
}

// Allow counts one hit for caller identity in the named bucket and decides
// whether it stays under limit for the window.
func (l *Limiter) Allow(ctx context.Context, bucket, callerID string, limit int, window time.Duration) Decision {
	if !l.Enabled {
		return Allowed
	}

	key := fmt.Sprintf("rl:%s:%s", bucket, hashCaller(callerID))

	pipe := l.Client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.FailOpen {
			return Unavailable
		}
		return Limited
	}

	if incr.Val() > int64(limit) {
		return Limited
	}
	return Allowed
}

func hashCaller(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:24]
}
