package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// ConfigPathEnv overrides the default config file location.
const ConfigPathEnv = "FORWARDER_CONFIG_PATH"

// KafkaPasswordEnv overrides kafka.sasl.password so the secret can stay out of the file.
const KafkaPasswordEnv = "FORWARDER_KAFKA_PASSWORD"

// Duration is a time.Duration that unmarshals from strings such as "5s" or "1500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Server struct {
	ListenAddress string `yaml:"listenAddress"`
}

type Pipeline struct {
	// BulkSize is the number of split events that seals a batch.
	BulkSize int `yaml:"bulkSize"`
	// BulkTimeout seals a non-empty batch this long after its first item arrived.
	BulkTimeout Duration `yaml:"bulkTimeout"`
	// DispatchConcurrency is the number of batch consumers running in parallel.
	DispatchConcurrency int `yaml:"dispatchConcurrency"`
	// LogicalAddress is passed to the downstream store on every call.
	LogicalAddress string `yaml:"logicalAddress"`
	// Handoff controls retries when publishing a sealed batch fails.
	Handoff Retry `yaml:"handoff"`
}

// Retry is an exponential backoff policy.
type Retry struct {
	MaxRetries        int      `yaml:"maxRetries"`
	InitialDelay      Duration `yaml:"initialDelay"`
	MaxDelay          Duration `yaml:"maxDelay"`
	BackoffMultiplier float64  `yaml:"backoffMultiplier"`
}

type Queues struct {
	// Transport selects the queue implementation: "kafka" or "memory".
	Transport     string `yaml:"transport"`
	Inbound       string `yaml:"inbound"`
	Batch         string `yaml:"batch"`
	DeadLetter    string `yaml:"deadLetter"`
	ConsumerGroup string `yaml:"consumerGroup"`
	// Redelivery is applied to messages whose handler asks for a retry.
	Redelivery Retry `yaml:"redelivery"`
}

type KafkaTLS struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"caFile"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

type KafkaSASL struct {
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type Kafka struct {
	Brokers      []string  `yaml:"brokers"`
	TLS          KafkaTLS  `yaml:"tls"`
	SASL         KafkaSASL `yaml:"sasl"`
	Compression  string    `yaml:"compression"`
	WriteTimeout Duration  `yaml:"writeTimeout"`
	RequiredAcks int       `yaml:"requiredAcks"`
}

// Redis optionally replaces the queue dead-letter destination with a Redis list.
type Redis struct {
	URL           string `yaml:"url"`
	DeadLetterKey string `yaml:"deadLetterKey"`
}

type CircuitBreaker struct {
	Enabled          bool     `yaml:"enabled"`
	FailureThreshold int      `yaml:"failureThreshold"`
	SuccessThreshold int      `yaml:"successThreshold"`
	OpenTimeout      Duration `yaml:"openTimeout"`
}

type StoreLog struct {
	// Type selects the downstream client: "http" or "stub".
	Type               string         `yaml:"type"`
	Endpoint           string         `yaml:"endpoint"`
	Timeout            Duration       `yaml:"timeout"`
	CAFile             string         `yaml:"caFile"`
	CertFile           string         `yaml:"certFile"`
	KeyFile            string         `yaml:"keyFile"`
	InsecureSkipVerify bool           `yaml:"insecureSkipVerify"`
	CircuitBreaker     CircuitBreaker `yaml:"circuitBreaker"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Pipeline Pipeline `yaml:"pipeline"`
	Queues   Queues   `yaml:"queues"`
	Kafka    Kafka    `yaml:"kafka"`
	Redis    Redis    `yaml:"redis"`
	StoreLog StoreLog `yaml:"storeLog"`
}

// Load loads the forwarder configuration from a file path.
// If configPath is empty, FORWARDER_CONFIG_PATH is consulted and then "./config.yaml".
// Defaults are applied but the result is not validated.
func Load(configPath ...string) (Config, error) {
	path := "./config.yaml"
	if env := os.Getenv(ConfigPathEnv); env != "" {
		path = env
	}
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open forwarder config file %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	if pw := os.Getenv(KafkaPasswordEnv); pw != "" {
		config.Kafka.SASL.Password = pw
	}
	config.Defaults()
	return config, nil
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8081"
	}
	if c.Pipeline.BulkSize == 0 {
		c.Pipeline.BulkSize = 10
	}
	if c.Pipeline.BulkTimeout == 0 {
		c.Pipeline.BulkTimeout = Duration(10 * time.Second)
	}
	if c.Pipeline.DispatchConcurrency == 0 {
		c.Pipeline.DispatchConcurrency = 1
	}
	c.Pipeline.Handoff.defaults(5)
	if c.Queues.Transport == "" {
		c.Queues.Transport = "kafka"
	}
	if c.Queues.ConsumerGroup == "" {
		c.Queues.ConsumerGroup = "auditlog-forwarder"
	}
	c.Queues.Redelivery.defaults(6)
	if c.Kafka.WriteTimeout == 0 {
		c.Kafka.WriteTimeout = Duration(10 * time.Second)
	}
	if c.Redis.URL != "" && c.Redis.DeadLetterKey == "" {
		c.Redis.DeadLetterKey = c.Queues.DeadLetter
	}
	if c.StoreLog.Type == "" {
		c.StoreLog.Type = "http"
	}
	if c.StoreLog.Timeout == 0 {
		c.StoreLog.Timeout = Duration(30 * time.Second)
	}
}

func (r *Retry) defaults(maxRetries int) {
	if r.MaxRetries == 0 {
		r.MaxRetries = maxRetries
	}
	if r.InitialDelay == 0 {
		r.InitialDelay = Duration(time.Second)
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = Duration(time.Minute)
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}
