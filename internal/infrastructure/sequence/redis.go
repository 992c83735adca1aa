package sequence

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Incrementer is the part of a redis client the generator needs.
type Incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisGenerator keeps one INCR counter per code, shared by every instance.
type RedisGenerator struct {
	client Incrementer
	prefix string
}

func NewRedisGenerator(client Incrementer, keyPrefix string) *RedisGenerator {
	return &RedisGenerator{client: client, prefix: keyPrefix}
}

// NewRedisClient opens a client for addr.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func (g *RedisGenerator) Next(ctx context.Context, code string) (string, error) {
	n, err := g.client.Incr(ctx, g.prefix+"sequence:"+code).Result()
	if err != nil {
		return "", errors.Wrapf(err, "next %s", code)
	}
	return Format(code, n), nil
}
