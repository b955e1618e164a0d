package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const (
	connectAttempts = 3
	retryInterval   = time.Second
)

// New parses url, connects and pings, retrying a few times while the server
// comes up.
func New(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var lastErr error
	for attempt := range connectAttempts {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if attempt == connectAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, oops.Code("REDIS_NOT_READY").Wrap(ctx.Err())
		case <-time.After(retryInterval):
		}
	}
	return nil, oops.Code("REDIS_NOT_READY").With("attempts", connectAttempts).Wrap(lastErr)
}
