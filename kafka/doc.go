// Package kafka builds the kafka-go writer behind the Kafka report sink,
// with optional TLS and SASL, and classifies write errors as retryable or
// permanent.
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  topic: crash-reports
//	  compression: zstd
package kafka
