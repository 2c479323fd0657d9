package redis

import (
	"testing"

	"crypto-exchange-api/config"

	"github.com/stretchr/testify/assert"
)

func TestRedisConfig_Addr(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.RedisConfig
		want string
	}{
		{"custom port", config.RedisConfig{Host: "redis.example.com", Port: 6380}, "redis.example.com:6380"},
		{"defaults", config.RedisConfig{Host: "localhost", Port: 6379}, "localhost:6379"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.Addr())
		})
	}
}
