/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package queue

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/metrics"
)

// KafkaConfig configures a KafkaTransport.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// GroupID is the consumer group shared by all consumers of this process.
	GroupID string

	// TLS configuration for secure connections.
	TLS *KafkaTLSConfig

	// SASL authentication configuration.
	SASL *KafkaSASLConfig

	// WriteTimeout is the timeout for writing messages.
	// Default: 10 seconds
	WriteTimeout time.Duration

	// RequiredAcks determines the level of acknowledgment required.
	// -1: all replicas, 0: none, 1: leader only
	// Default: -1 (all replicas)
	RequiredAcks int

	// CompressionCodec for message compression.
	// Valid values: "none", "gzip", "snappy", "lz4", "zstd"
	// Default: "snappy"
	CompressionCodec string
}

// KafkaTLSConfig holds TLS configuration for Kafka connections.
type KafkaTLSConfig struct {
	// Enabled turns on TLS for the Kafka connection.
	Enabled bool

	// CACert is the PEM-encoded CA certificate for verifying the server.
	CACert []byte

	// ClientCert is the PEM-encoded client certificate for mTLS.
	ClientCert []byte

	// ClientKey is the PEM-encoded client private key for mTLS.
	ClientKey []byte

	// InsecureSkipVerify skips server certificate verification.
	// WARNING: Only use for testing.
	InsecureSkipVerify bool
}

// LoadKafkaTLSConfig reads PEM material from disk. Empty paths are skipped.
func LoadKafkaTLSConfig(caFile, certFile, keyFile string, insecure bool) (*KafkaTLSConfig, error) {
	cfg := &KafkaTLSConfig{Enabled: true, InsecureSkipVerify: insecure}
	var err error
	if caFile != "" {
		if cfg.CACert, err = os.ReadFile(caFile); err != nil {
			return nil, fmt.Errorf("failed to read Kafka CA file: %w", err)
		}
	}
	if certFile != "" {
		if cfg.ClientCert, err = os.ReadFile(certFile); err != nil {
			return nil, fmt.Errorf("failed to read Kafka client certificate: %w", err)
		}
	}
	if keyFile != "" {
		if cfg.ClientKey, err = os.ReadFile(keyFile); err != nil {
			return nil, fmt.Errorf("failed to read Kafka client key: %w", err)
		}
	}
	return cfg, nil
}

// KafkaSASLConfig holds SASL authentication configuration.
type KafkaSASLConfig struct {
	// Mechanism is the SASL mechanism to use.
	// Valid values: "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"
	Mechanism string

	// Username for SASL authentication.
	Username string

	// Password for SASL authentication.
	Password string
}

// KafkaTransport publishes to and consumes from Kafka topics. Consumers commit
// an offset only once the message is settled, so an unacknowledged message is
// fetched again after a restart or rebalance.
type KafkaTransport struct {
	brokers      []string
	groupID      string
	tlsConfig    *tls.Config
	mechanism    sasl.Mechanism
	writeTimeout time.Duration
	requiredAcks int
	compression  kafka.Compression
	logger       *zap.Logger

	mu      sync.Mutex
	closers []func() error
	closed  bool
}

// NewKafkaTransport validates cfg and builds the shared TLS and SASL settings.
func NewKafkaTransport(cfg KafkaConfig, logger *zap.Logger) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("Kafka consumer group is required")
	}

	t := &KafkaTransport{
		brokers:      cfg.Brokers,
		groupID:      cfg.GroupID,
		writeTimeout: cfg.WriteTimeout,
		requiredAcks: cfg.RequiredAcks,
		logger:       logger.Named("kafka-queue"),
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			logger.Error("failed to build Kafka TLS config",
				zap.Error(err),
				zap.Strings("brokers", cfg.Brokers))
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		t.tlsConfig = tlsConfig
	}

	if cfg.SASL != nil && cfg.SASL.Mechanism != "" {
		mechanism, err := buildSASLMechanism(cfg.SASL)
		if err != nil {
			logger.Error("failed to build Kafka SASL mechanism",
				zap.Error(err),
				zap.String("mechanism", cfg.SASL.Mechanism))
			return nil, fmt.Errorf("failed to build SASL mechanism: %w", err)
		}
		t.mechanism = mechanism
	}

	if t.writeTimeout <= 0 {
		t.writeTimeout = 10 * time.Second
	}
	if t.requiredAcks == 0 {
		t.requiredAcks = -1 // Default to all replicas
	}

	t.compression = kafka.Snappy
	switch cfg.CompressionCodec {
	case "none":
		t.compression = 0
	case "gzip":
		t.compression = kafka.Gzip
	case "lz4":
		t.compression = kafka.Lz4
	case "zstd":
		t.compression = kafka.Zstd
	case "snappy", "":
	default:
		logger.Warn("unknown compression codec, defaulting to snappy",
			zap.String("codec", cfg.CompressionCodec))
	}

	t.logger.Info("Kafka transport created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("group_id", cfg.GroupID),
		zap.Bool("tls_enabled", t.tlsConfig != nil),
		zap.Bool("sasl_enabled", t.mechanism != nil))

	return t, nil
}

// Publisher implements Transport.
func (t *KafkaTransport) Publisher(topic string) (Publisher, error) {
	if topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(t.brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		// Writes are synchronous per payload; do not wait for a batch to fill.
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           t.writeTimeout,
		RequiredAcks:           kafka.RequiredAcks(t.requiredAcks),
		Compression:            t.compression,
		Transport:              &kafka.Transport{TLS: t.tlsConfig, SASL: t.mechanism},
		AllowAutoTopicCreation: false,
	}
	p := &KafkaPublisher{topic: topic, writer: w, logger: t.logger.With(zap.String("topic", topic))}
	if err := t.track(p.Close); err != nil {
		_ = w.Close()
		return nil, err
	}
	return p, nil
}

// Consumer implements Transport.
func (t *KafkaTransport) Consumer(topic string, opts ConsumerOptions) (Consumer, error) {
	if topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     t.brokers,
		GroupID:     t.groupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			TLS:           t.tlsConfig,
			SASLMechanism: t.mechanism,
		},
	})
	c := &KafkaConsumer{topic: topic, reader: r, opts: opts, logger: t.logger.With(zap.String("topic", topic))}
	if err := t.track(c.Close); err != nil {
		_ = r.Close()
		return nil, err
	}
	return c, nil
}

func (t *KafkaTransport) track(closer func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.closers = append(t.closers, closer)
	return nil
}

// Close closes every publisher and consumer opened through the transport.
func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	closers := t.closers
	t.closers = nil
	t.closed = true
	t.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// KafkaPublisher writes payloads to a single topic.
type KafkaPublisher struct {
	topic  string
	writer *kafka.Writer
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Publish writes payloads synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, payloads ...[]byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		metrics.QueueErrors.WithLabelValues(p.topic, "closed").Inc()
		return ErrClosed
	}
	p.mu.Unlock()

	if len(payloads) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(payloads))
	for _, payload := range payloads {
		messages = append(messages, kafka.Message{Value: payload})
	}

	metrics.QueueMessagesInFlight.WithLabelValues(p.topic).Add(float64(len(messages)))
	defer metrics.QueueMessagesInFlight.WithLabelValues(p.topic).Sub(float64(len(messages)))

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		errorType := classifyKafkaError(err)
		metrics.QueueErrors.WithLabelValues(p.topic, errorType).Inc()

		logFields := []zap.Field{
			zap.Error(err),
			zap.String("error_type", errorType),
			zap.Duration("duration", time.Since(start)),
			zap.Int("messages", len(messages)),
		}
		switch errorType {
		case "network", "dns", "timeout":
			p.logger.Warn("Kafka temporarily unavailable", logFields...)
		case "auth", "authorization":
			p.logger.Error("Kafka authentication/authorization failed", logFields...)
		case "tls":
			p.logger.Error("Kafka TLS error", logFields...)
		default:
			p.logger.Error("failed to write to Kafka", logFields...)
		}
		return fmt.Errorf("failed to write to Kafka topic %s (%s): %w", p.topic, errorType, err)
	}
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

// Name returns the topic.
func (p *KafkaPublisher) Name() string {
	return p.topic
}

// Stats returns writer statistics.
func (p *KafkaPublisher) Stats() kafka.WriterStats {
	return p.writer.Stats()
}

// KafkaConsumer reads one topic as a member of the transport's consumer group.
type KafkaConsumer struct {
	topic  string
	reader *kafka.Reader
	opts   ConsumerOptions
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Consume fetches, delivers and commits messages one at a time. An unsettled
// message stops consumption without committing; the group redelivers it.
func (c *KafkaConsumer) Consume(ctx context.Context, h Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			errorType := classifyKafkaError(err)
			metrics.QueueErrors.WithLabelValues(c.topic, errorType).Inc()
			return fmt.Errorf("failed to fetch from Kafka topic %s (%s): %w", c.topic, errorType, err)
		}

		msg := Message{Key: m.Key, Payload: m.Value}
		if err := deliver(ctx, c.topic, msg, h, c.opts, c.logger.With(
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset))); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.QueueErrors.WithLabelValues(c.topic, "commit").Inc()
			return fmt.Errorf("failed to commit offset %d on %s: %w", m.Offset, c.topic, err)
		}
	}
}

// Close closes the Kafka reader.
func (c *KafkaConsumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.reader.Close()
	})
	return c.closeErr
}

// classifyKafkaError categorizes Kafka errors for metrics and logging.
func classifyKafkaError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	// Check for context errors first (timeout/cancellation)
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "network"
	}

	switch {
	case strings.Contains(errStr, "SASL") || strings.Contains(errStr, "authentication"):
		return "auth"
	case strings.Contains(errStr, "authorization") || strings.Contains(errStr, "ACL"):
		return "authorization"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "network"
	case strings.Contains(errStr, "broker") || strings.Contains(errStr, "leader"):
		return "broker"
	case strings.Contains(errStr, "topic"):
		return "topic"
	case strings.Contains(errStr, "TLS") || strings.Contains(errStr, "certificate"):
		return "tls"
	default:
		return "other"
	}
}

// buildTLSConfig creates a TLS configuration from KafkaTLSConfig.
func buildTLSConfig(cfg *KafkaTLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // Configurable for testing
	}

	if len(cfg.CACert) > 0 {
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(cfg.CACert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	// Add client certificate if provided (mTLS)
	if len(cfg.ClientCert) > 0 && len(cfg.ClientKey) > 0 {
		cert, err := tls.X509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// buildSASLMechanism creates a SASL mechanism from KafkaSASLConfig.
func buildSASLMechanism(cfg *KafkaSASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}, nil
	case "SCRAM-SHA-256":
		mechanism, err := scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to create SCRAM-SHA-256 mechanism: %w", err)
		}
		return mechanism, nil
	case "SCRAM-SHA-512":
		mechanism, err := scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to create SCRAM-SHA-512 mechanism: %w", err)
		}
		return mechanism, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}
