package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/logger"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{EnableSASL: true}
	cfg.ApplyDefaults()

	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != "localhost:9092" {
		t.Errorf("unexpected brokers %v", cfg.Brokers)
	}
	if cfg.Compression != "snappy" || cfg.BatchSize != 100 || cfg.RequiredAcks != -1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.WriteTimeout != 10*time.Second || cfg.BatchTimeout != 10*time.Millisecond {
		t.Errorf("unexpected timeouts: %+v", cfg)
	}
	if cfg.SASLMechanism != "PLAIN" {
		t.Errorf("expected PLAIN SASL default, got %q", cfg.SASLMechanism)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{Enabled: true, Topic: "crashes"}
		cfg.ApplyDefaults()
		return cfg
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"disabled skips checks", func(c *Config) { *c = Config{} }, false},
		{"missing topic", func(c *Config) { c.Topic = "" }, true},
		{"bad broker", func(c *Config) { c.Brokers = []string{"no-port"} }, true},
		{"bad compression", func(c *Config) { c.Compression = "brotli" }, true},
		{"bad SASL mechanism", func(c *Config) { c.EnableSASL, c.SASLMechanism, c.Username = true, "GSSAPI", "u" }, true},
		{"SASL without username", func(c *Config) { c.EnableSASL = true }, true},
		{"cert without key", func(c *Config) { c.TLSCertFile = "client.pem" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestNewWriter(t *testing.T) {
	cfg := Config{Enabled: true, Brokers: []string{"broker-1:9092", "broker-2:9092"}, Topic: "crashes", Compression: "zstd"}
	w, err := NewWriter(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if w.Topic != "" {
		t.Errorf("expected writer without topic, got %q", w.Topic)
	}
	if w.Compression != kafkago.Zstd {
		t.Errorf("expected zstd, got %v", w.Compression)
	}
	if w.RequiredAcks != kafkago.RequireAll {
		t.Errorf("expected RequireAll, got %v", w.RequiredAcks)
	}
}

func TestNewWriter_Rejects(t *testing.T) {
	if _, err := NewWriter(Config{}, logger.NewNop()); err == nil {
		t.Error("expected error for disabled kafka")
	}
	if _, err := NewWriter(Config{Enabled: true}, logger.NewNop()); err == nil {
		t.Error("expected error for missing topic")
	}
}

func TestSASLMechanism(t *testing.T) {
	for _, mech := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		m, err := saslMechanism(&Config{SASLMechanism: mech, Username: "user", Password: "pass"})
		if err != nil || m == nil {
			t.Errorf("%s: expected mechanism, got %v %v", mech, m, err)
		}
	}
	if _, err := saslMechanism(&Config{SASLMechanism: "GSSAPI"}); err == nil {
		t.Error("expected error for unsupported mechanism")
	}
}

func TestTLSConfig_MissingCAFile(t *testing.T) {
	if _, err := tlsConfig(&Config{EnableTLS: true, TLSCAFile: "/nonexistent/ca.pem"}); err == nil {
		t.Error("expected error for missing CA file")
	}
}

func TestCompressionCodec(t *testing.T) {
	tests := map[string]kafkago.Compression{
		"gzip": kafkago.Gzip, "lz4": kafkago.Lz4, "zstd": kafkago.Zstd,
		"snappy": kafkago.Snappy, "none": 0, "": kafkago.Snappy,
	}
	for name, want := range tests {
		if got := compressionCodec(name); got != want {
			t.Errorf("compressionCodec(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"temporary broker error", kafkago.LeaderNotAvailable, true},
		{"permanent broker error", kafkago.MessageSizeTooLarge, false},
		{"wrapped broker error", fmt.Errorf("write: %w", kafkago.NotEnoughReplicas), true},
		{"connection refused", errors.New("dial tcp 10.0.0.1:9092: connect: connection refused"), true},
		{"unknown", errors.New("something else"), false},
		{"batch all transient", kafkago.WriteErrors{nil, kafkago.RequestTimedOut}, true},
		{"batch with permanent", kafkago.WriteErrors{kafkago.RequestTimedOut, kafkago.TopicAuthorizationFailed}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
