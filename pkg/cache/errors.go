package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when the Redis server cannot be reached.
var ErrUnavailable = errors.New("cache backend unavailable")

// connectAttempts bounds the PINGs NewRedisCache sends before giving up.
const connectAttempts = 3

// connectBackoff is the wait after the first failed PING. It doubles per
// attempt; tests shorten it.
var connectBackoff = time.Second

// pingUntilReady calls ping until the server answers. A server reply such as
// WRONGPASS or an unknown DB index is returned at once; only transport
// failures are retried.
func pingUntilReady(ctx context.Context, ping func(context.Context) error) error {
	wait := connectBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if !isTransportFailure(err) {
			return err
		}
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			wait *= 2
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, connectAttempts, err)
}

// isTransportFailure reports whether err came from the connection rather
// than from a Redis reply or the caller's context.
func isTransportFailure(err error) bool {
	var reply redis.Error
	if errors.As(err, &reply) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
