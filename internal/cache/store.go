package cache

import (
	"context"
	"time"
)

// Store is the shared key/value cache consulted across requests. Values are
// opaque strings; expired entries behave exactly like absent ones.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Increment atomically adds one to a counter and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)
}

// Pinger is implemented by stores backed by a remote connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Purger is implemented by stores that can drop expired entries eagerly.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
