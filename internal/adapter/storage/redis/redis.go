package redis

import (
	"context"
	"fmt"
	"time"

	"crypto-exchange-api/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const dialTimeout = 5 * time.Second

// NewClient dials Redis and fails fast if the server is unreachable.
// The returned client backs the settlement cache, so startup refuses
// to proceed without it.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("redis connected")
	return client, nil
}
