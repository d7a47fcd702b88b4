package bootstrap

import (
	"context"
	"io"
	"strings"

	"github.com/kbukum/reportflow/config"
	"github.com/kbukum/reportflow/encryption"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/filters"
	"github.com/kbukum/reportflow/kafka"
	"github.com/kbukum/reportflow/redis"
	"github.com/kbukum/reportflow/report"
)

// Names of the filters and predicates New registers, as referenced from
// chain definitions.
const (
	FilterPass       = "pass"
	FilterRedact     = "redact"
	FilterEncodeJSON = "encode_json"
	FilterDecodeJSON = "decode_json"
	FilterGzip       = "gzip"
	FilterGunzip     = "gunzip"
	FilterEncrypt    = "encrypt"
	FilterDecrypt    = "decrypt"
	FilterRedisSink  = "redis_sink"
	FilterKafkaSink  = "kafka_sink"

	PredicateNotEmpty = "not_empty"
)

// registerBuiltins adds the filters that need no connection. Encrypt and
// decrypt are only present when encryption is enabled.
func registerBuiltins(reg *filter.Registry, cfg *config.Config) error {
	reg.Register(filter.PassThrough(FilterPass))

	redact, err := filters.Redact(FilterRedact, cfg.Redact.Patterns...)
	if err != nil {
		return err
	}
	reg.Register(redact)

	reg.Register(filters.EncodeJSON(FilterEncodeJSON))
	reg.Register(filters.DecodeJSON(FilterDecodeJSON))

	gz, err := filters.Gzip(FilterGzip, cfg.Gzip.Level)
	if err != nil {
		return err
	}
	reg.Register(gz)
	reg.Register(filters.Gunzip(FilterGunzip))

	if cfg.Encryption.Enabled {
		alg, err := encryption.ParseAlgorithm(cfg.Encryption.Algorithm)
		if err != nil {
			return err
		}
		c, err := encryption.New(cfg.Encryption.Passphrase, alg)
		if err != nil {
			return err
		}
		reg.Register(filters.Encrypt(FilterEncrypt, c))
		reg.Register(filters.Decrypt(FilterDecrypt, c))
	}

	reg.RegisterPredicate(PredicateNotEmpty, func(_ context.Context, reports report.Set) (bool, error) {
		return !reports.IsEmpty(), nil
	})
	return nil
}

// connectSinks creates the clients of the enabled sinks and registers the
// sink filters. Clients are closed by Shutdown.
func (a *App) connectSinks() error {
	if a.Cfg.Redis.Enabled {
		client, err := redis.New(a.Cfg.Redis, a.Logger)
		if err != nil {
			return err
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
		rc := client.Config()
		a.Registry.Register(filters.RedisSink(FilterRedisSink, client.Unwrap(), filters.RedisSinkConfig{
			KeyPrefix: rc.KeyPrefix,
			TTL:       rc.TTL,
		}))
		a.Summary.TrackSink(FilterRedisSink, "redis", rc.Addr)
	}

	if a.Cfg.Kafka.Enabled {
		w := a.writer
		if w == nil {
			kw, err := kafka.NewWriter(a.Cfg.Kafka, a.Logger)
			if err != nil {
				return err
			}
			w = kw
		}
		if c, ok := w.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
		a.Registry.Register(filters.KafkaSink(FilterKafkaSink, w, a.Cfg.Kafka.Topic))
		a.Summary.TrackSink(FilterKafkaSink, "kafka", a.Cfg.Kafka.Topic+"@"+strings.Join(a.Cfg.Kafka.Brokers, ","))
	}
	return nil
}
