// Package redis owns the go-redis connection pool that backs the Redis
// report sink, with configuration defaults, validation and a health check.
//
//	client, err := redis.New(cfg.Redis, log)
//	sink := filters.RedisSink("store", client.Unwrap(), filters.RedisSinkConfig{
//	    KeyPrefix: client.Config().KeyPrefix,
//	    TTL:       client.Config().TTL,
//	})
package redis
