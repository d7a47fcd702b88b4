package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/kafka"
	"github.com/kbukum/reportflow/report"
)

// RedisSinkConfig configures RedisSink.
type RedisSinkConfig struct {
	// KeyPrefix is prepended to report ids, separated by a colon.
	KeyPrefix string
	// TTL of 0 means no expiration.
	TTL time.Duration
}

// RedisSink stores every report as JSON under its id and passes the set
// through unchanged. All writes of an invocation go out in one pipeline.
func RedisSink(name string, rdb goredis.Cmdable, cfg RedisSinkConfig) filter.Filter {
	key := func(id string) string {
		if cfg.KeyPrefix == "" {
			return id
		}
		return cfg.KeyPrefix + ":" + id
	}
	return filter.Async(name, func(ctx context.Context, reports report.Set) (report.Set, error) {
		values := make(map[string][]byte, reports.Len())
		for _, id := range reports.IDs() {
			doc, _ := reports.Get(id)
			b, err := json.Marshal(doc)
			if err != nil {
				return report.EmptySet(), apperrors.EncodingFailed(EncodingJSON, id, err)
			}
			values[id] = b
		}
		_, err := rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
			for id, b := range values {
				p.Set(ctx, key(id), b, cfg.TTL)
			}
			return nil
		})
		if err != nil {
			return report.EmptySet(), apperrors.DeliveryFailed("redis", err)
		}
		return reports, nil
	})
}

// MessageWriter is the part of a kafka-go Writer KafkaSink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// KafkaSink publishes every report as a JSON message keyed by report id
// and passes the set through unchanged. Broker errors that kafka classifies
// as transient are retryable.
func KafkaSink(name string, w MessageWriter, topic string) filter.Filter {
	target := fmt.Sprintf("kafka topic %s", topic)
	return filter.Async(name, func(ctx context.Context, reports report.Set) (report.Set, error) {
		msgs := make([]kafkago.Message, 0, reports.Len())
		for _, id := range reports.IDs() {
			doc, _ := reports.Get(id)
			b, err := json.Marshal(doc)
			if err != nil {
				return report.EmptySet(), apperrors.EncodingFailed(EncodingJSON, id, err)
			}
			msgs = append(msgs, kafkago.Message{
				Topic: topic,
				Key:   []byte(id),
				Value: b,
				Headers: []kafkago.Header{
					{Key: "content-type", Value: []byte("application/json")},
				},
			})
		}
		if len(msgs) == 0 {
			return reports, nil
		}
		if err := w.WriteMessages(ctx, msgs...); err != nil {
			appErr := apperrors.DeliveryFailed(target, err)
			appErr.Retryable = kafka.IsRetryableError(err)
			return report.EmptySet(), appErr
		}
		return reports, nil
	})
}
