// Package config holds the collector's configuration model and its loader.
//
// Durations are configured in milliseconds (`*_ms` keys) and exposed as time.Duration
// through accessor methods, so YAML and environment overrides stay plain integers.
package config

import "time"

// EmbeddedConfig holds the raw application.yaml compiled into the binary.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// PacingConfig controls the delay before each outbound request and identity rotation.
type PacingConfig struct {
	MinDelayMs          int      `yaml:"min_delay_ms"`
	MaxDelayMs          int      `yaml:"max_delay_ms"`
	RotateIdentityEvery int      `yaml:"rotate_identity_every"`
	RequestsPerMinute   int      `yaml:"requests_per_minute"`
	UserAgents          []string `yaml:"user_agents"`
}

// MinDelay returns the lower bound of the pacing delay.
func (c PacingConfig) MinDelay() time.Duration { return millis(c.MinDelayMs) }

// MaxDelay returns the upper bound of the pacing delay.
func (c PacingConfig) MaxDelay() time.Duration { return millis(c.MaxDelayMs) }

// BackoffConfig controls retry delays and budgets per response classification.
type BackoffConfig struct {
	// BaseDelayMs is multiplied by 2^attempt.
	BaseDelayMs int `yaml:"base_delay_ms"`
	// SoftLimitCeilingMs caps delays after an explicit rate-limit response.
	SoftLimitCeilingMs int `yaml:"soft_limit_ceiling_ms"`
	// SoftLimitMaxAttempts is the retry budget after rate-limit responses.
	SoftLimitMaxAttempts int `yaml:"soft_limit_max_attempts"`
	// ErrorCeilingMs caps delays after hard and network errors.
	ErrorCeilingMs int `yaml:"error_ceiling_ms"`
	// ErrorMaxAttempts is the retry budget after hard and network errors.
	ErrorMaxAttempts int `yaml:"error_max_attempts"`
	// JitterFraction is the +/- fraction applied to every delay (0.2 = ±20%).
	JitterFraction float64 `yaml:"jitter_fraction"`
}

// BaseDelay returns the exponential base.
func (c BackoffConfig) BaseDelay() time.Duration { return millis(c.BaseDelayMs) }

// SoftLimitCeiling returns the delay cap for rate-limited retries.
func (c BackoffConfig) SoftLimitCeiling() time.Duration { return millis(c.SoftLimitCeilingMs) }

// ErrorCeiling returns the delay cap for hard and network error retries.
func (c BackoffConfig) ErrorCeiling() time.Duration { return millis(c.ErrorCeilingMs) }

// BatchConfig controls partitioning and the cool-down between batches.
type BatchConfig struct {
	Size              int `yaml:"size"`
	InterBatchPauseMs int `yaml:"inter_batch_pause_ms"`
	RequestTimeoutMs  int `yaml:"request_timeout_ms"`
}

// InterBatchPause returns the pause between two batches.
func (c BatchConfig) InterBatchPause() time.Duration { return millis(c.InterBatchPauseMs) }

// RequestTimeout returns the per-request timeout; expiry is classified as a network error.
func (c BatchConfig) RequestTimeout() time.Duration { return millis(c.RequestTimeoutMs) }

// SessionConfig controls session-level failure handling.
type SessionConfig struct {
	// AbortFailureRate is the per-batch failure ratio above which a batch counts as offending.
	AbortFailureRate float64 `yaml:"abort_failure_rate"`
	// AbortConsecutiveBatches is how many offending batches in a row abort the session.
	AbortConsecutiveBatches int `yaml:"abort_consecutive_batches"`
	// FailedItemRetryCap is how many times a failed item is picked up again on resume.
	FailedItemRetryCap int `yaml:"failed_item_retry_cap"`
	// AcceptableFailureRate is the largest failed/total ratio still finalized as completed.
	AcceptableFailureRate float64 `yaml:"acceptable_failure_rate"`
}

// CollectorConfig is the configuration surface handed to the session supervisor.
type CollectorConfig struct {
	Pacing  PacingConfig  `yaml:"pacing"`
	Backoff BackoffConfig `yaml:"backoff"`
	Batch   BatchConfig   `yaml:"batch"`
	Session SessionConfig `yaml:"session"`
}

// SourceConfig configures the Sofascore client.
type SourceConfig struct {
	BaseURL          string `yaml:"base_url"`
	TeamHistoryLimit int    `yaml:"team_history_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig names the DB connections used by each persistence concern.
type InfrastructureConfig struct {
	LedgerDBRef string `yaml:"ledger_db_ref"`
	StoreDBRef  string `yaml:"store_db_ref"`
}

// DefaultDBRef is the connection name used when a ref is not configured.
const DefaultDBRef = "metadata"

// LedgerRef returns the connection name of the session ledger.
func (c InfrastructureConfig) LedgerRef() string {
	if c.LedgerDBRef != "" {
		return c.LedgerDBRef
	}
	return DefaultDBRef
}

// StoreRef returns the connection name of the record store; it shares the ledger
// connection when unset.
func (c InfrastructureConfig) StoreRef() string {
	if c.StoreDBRef != "" {
		return c.StoreDBRef
	}
	return c.LedgerRef()
}

// Refs returns the distinct connection names in use, ledger first.
func (c InfrastructureConfig) Refs() []string {
	if c.StoreRef() == c.LedgerRef() {
		return []string{c.LedgerRef()}
	}
	return []string{c.LedgerRef(), c.StoreRef()}
}

// OtlpEndpointConfig selects the OTLP transport; gRPC wins when both are set.
type OtlpEndpointConfig struct {
	GrpcEndpoint string `yaml:"grpc_endpoint"`
	HttpEndpoint string `yaml:"http_endpoint"`
}

// Enabled reports whether any endpoint is configured.
func (c OtlpEndpointConfig) Enabled() bool {
	return c.GrpcEndpoint != "" || c.HttpEndpoint != ""
}

// OtlpConfig holds trace and metric exporter endpoints.
type OtlpConfig struct {
	Traces  OtlpEndpointConfig `yaml:"traces"`
	Metrics OtlpEndpointConfig `yaml:"metrics"`
}

// MetricsConfig holds metrics and tracing settings.
type MetricsConfig struct {
	AsyncBufferSize int        `yaml:"async_buffer_size"`
	ListenAddress   string     `yaml:"listen_address"`
	Otlp            OtlpConfig `yaml:"otlp"`
}

// ExportConfig selects where exported tables are written.
type ExportConfig struct {
	Storage         string `yaml:"storage"`
	BaseDir         string `yaml:"base_dir"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	// Compression is the parquet codec: SNAPPY, GZIP or NONE.
	Compression string `yaml:"compression"`
}

// MatchdayConfig holds everything under the "matchday" top-level key.
type MatchdayConfig struct {
	Collector      CollectorConfig      `yaml:"collector"`
	Source         SourceConfig         `yaml:"source"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Export         ExportConfig         `yaml:"export"`
	// AdapterConfigs holds named database connections, decoded lazily by the DB providers.
	AdapterConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root configuration document.
type Config struct {
	Matchday       MatchdayConfig `yaml:"matchday"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// DefaultUserAgents is the identity pool rotated by the pacing controller.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// NewCollectorConfig returns the collector defaults.
func NewCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Pacing: PacingConfig{
			MinDelayMs:          1000,
			MaxDelayMs:          3000,
			RotateIdentityEvery: 10,
			RequestsPerMinute:   50,
			UserAgents:          append([]string(nil), DefaultUserAgents...),
		},
		Backoff: BackoffConfig{
			BaseDelayMs:          2000,
			SoftLimitCeilingMs:   60000,
			SoftLimitMaxAttempts: 3,
			ErrorCeilingMs:       15000,
			ErrorMaxAttempts:     2,
			JitterFraction:       0.2,
		},
		Batch: BatchConfig{
			Size:              10,
			InterBatchPauseMs: 120000,
			RequestTimeoutMs:  10000,
		},
		Session: SessionConfig{
			AbortFailureRate:        0.5,
			AbortConsecutiveBatches: 2,
			FailedItemRetryCap:      2,
			AcceptableFailureRate:   0.25,
		},
	}
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Matchday: MatchdayConfig{
			Collector: NewCollectorConfig(),
			Source: SourceConfig{
				BaseURL:          "https://api.sofascore.com/api/v1",
				TeamHistoryLimit: 10,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Infrastructure: InfrastructureConfig{
				LedgerDBRef: "metadata",
				StoreDBRef:  "metadata",
			},
			Metrics: MetricsConfig{
				AsyncBufferSize: 100,
			},
			Export: ExportConfig{
				Storage:     "local",
				BaseDir:     "exports",
				Compression: "SNAPPY",
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}
