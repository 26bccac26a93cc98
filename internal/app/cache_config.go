package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/charlesng35/regprofile/internal/cache"
)

// rateStoreTimeout bounds Redis calls made on the request path.
const rateStoreTimeout = 2 * time.Second

// RateStoreRedis returns the Redis settings for the shared rate limit store. The
// boolean is false when Redis is disabled or has no address. Address may be a
// redis:// or rediss:// URL, whose credentials, database and TLS mode then apply.
func (c CacheConfig) RateStoreRedis() (cache.RedisConfig, bool, error) {
	settings := c.Redis
	addr := strings.TrimSpace(settings.Address)
	if !settings.Enabled || addr == "" {
		return cache.RedisConfig{}, false, nil
	}

	out := cache.RedisConfig{
		Address:  addr,
		Username: strings.TrimSpace(settings.Username),
		Password: settings.Password,
		DB:       settings.DB,
		TLS:      settings.TLS,
		Timeout:  settings.Timeout,
	}

	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return cache.RedisConfig{}, false, fmt.Errorf("cache.redis.address: %w", err)
		}
		out.Address = opts.Addr
		out.DB = opts.DB
		out.TLS = opts.TLSConfig != nil
		if opts.Username != "" {
			out.Username = opts.Username
		}
		if opts.Password != "" {
			out.Password = opts.Password
		}
	}

	if out.Timeout <= 0 || out.Timeout > rateStoreTimeout {
		out.Timeout = rateStoreTimeout
	}
	return out, true, nil
}
