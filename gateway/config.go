package gateway

import (
	"time"

	"github.com/aperturestack/llmgateway/batch"
	"github.com/aperturestack/llmgateway/cache"
	"github.com/aperturestack/llmgateway/failover"
	"github.com/aperturestack/llmgateway/observe"
	"github.com/aperturestack/llmgateway/queue"
	"github.com/aperturestack/llmgateway/ratelimit"
	"github.com/aperturestack/llmgateway/resilience"
	"github.com/aperturestack/llmgateway/secret"
)

// ProviderSpec describes one upstream backend at configuration time (§6,
// §4.7's ordered Provider Entry list).
type ProviderSpec struct {
	// Name identifies this provider in logs, metrics, and the
	// AllProvidersFailedError breakdown.
	Name string

	// Priority ranks dispatch order; lower tries first.
	Priority int

	// Endpoint is the provider's API base URL.
	Endpoint string

	// APIToken is either a literal token or, when Config.SecretProvider
	// is set, a reference resolved once at New time.
	APIToken string
}

// Config configures a Gateway (§6's caller-supplied configuration
// knobs).
type Config struct {
	// DefaultModel is used when a caller does not specify one.
	DefaultModel string

	// MaxTokenLimit caps maxTokens accepted from callers.
	MaxTokenLimit int

	Providers []ProviderSpec

	// SecretProvider resolves APIToken references. If nil, APIToken
	// values are used literally.
	SecretProvider secret.Provider

	// Retry/backoff knobs, shared by every provider entry (§4.3, §6).
	MaxRetryAttempts    int
	InitialRetryDelayMs int
	BackoffMultiplier   float64
	JitterFactor        float64

	// Circuit breaker knobs, shared by every provider entry (§4.2, §6).
	CircuitBreakerFailureThreshold float64
	CircuitBreakerResetTimeoutMs   int

	// Token bucket base rates (§6): per-second 1 req / burst 5 and
	// per-minute 50 req / burst 100 by default.
	PerSecondRate  float64
	PerSecondBurst float64
	PerMinuteRate  float64
	PerMinuteBurst float64

	// MaxBatchAgeMs bounds how long a pending batch waits before flush
	// (§4.5, §6). Default: 500.
	MaxBatchAgeMs int

	// RequestTimeoutSeconds bounds total queue-plus-execution time per
	// ticket (§4.4, §6). Default: 30.
	RequestTimeoutSeconds int

	// QueueCapacity is the hard upper bound on live tickets (§4.4).
	// Default: 1000.
	QueueCapacity int

	// CacheTTL controls how long a completed completion stays in the
	// response cache (§4.8). Default: 5 minutes.
	CacheTTL time.Duration

	// Cache backs the response cache adapter. Defaults to an in-process
	// cache.MemoryCache when nil.
	Cache cache.Cache

	// Observe configures ambient logging/metrics/tracing. Defaults to
	// everything disabled (noop).
	Observe observe.Config

	// AdminAPIKey, if set, guards the operator status endpoint
	// (gateway/adminserver.go) with auth.APIKeyAuthenticator.
	AdminAPIKey string
}

func (c Config) withDefaults() Config {
	if c.DefaultModel == "" {
		c.DefaultModel = "claude-3-5-sonnet-20241022"
	}
	if c.MaxTokenLimit <= 0 {
		c.MaxTokenLimit = 4096
	}
	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = 3
	}
	if c.InitialRetryDelayMs <= 0 {
		c.InitialRetryDelayMs = 1000
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = 0.1
	}
	if c.CircuitBreakerFailureThreshold <= 0 {
		c.CircuitBreakerFailureThreshold = 0.5
	}
	if c.CircuitBreakerResetTimeoutMs <= 0 {
		c.CircuitBreakerResetTimeoutMs = 30000
	}
	if c.PerSecondRate <= 0 {
		c.PerSecondRate = 1
	}
	if c.PerSecondBurst <= 0 {
		c.PerSecondBurst = 5
	}
	if c.PerMinuteRate <= 0 {
		c.PerMinuteRate = 50
	}
	if c.PerMinuteBurst <= 0 {
		c.PerMinuteBurst = 100
	}
	if c.MaxBatchAgeMs <= 0 {
		c.MaxBatchAgeMs = 500
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 1000
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.Observe.ServiceName == "" {
		c.Observe.ServiceName = "llmgateway"
	}
	return c
}

func (c Config) retryConfig() failover.RetryConfig {
	return failover.RetryConfig{
		MaxAttempts:       c.MaxRetryAttempts,
		InitialDelay:      time.Duration(c.InitialRetryDelayMs) * time.Millisecond,
		BackoffMultiplier: c.BackoffMultiplier,
		JitterFactor:      c.JitterFactor,
	}
}

func (c Config) breakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: c.CircuitBreakerFailureThreshold,
		ResetTimeout:     time.Duration(c.CircuitBreakerResetTimeoutMs) * time.Millisecond,
	}
}

func (c Config) bucketConfig() ratelimit.Config {
	return ratelimit.Config{
		PerSecondRate:  c.PerSecondRate,
		PerSecondBurst: c.PerSecondBurst,
		PerMinuteRate:  c.PerMinuteRate,
		PerMinuteBurst: c.PerMinuteBurst,
	}
}

func (c Config) batchConfig() batch.Config {
	maxAge := time.Duration(c.MaxBatchAgeMs) * time.Millisecond
	sweep := maxAge / 2
	if sweep <= 0 || sweep > time.Second {
		sweep = time.Second
	}
	return batch.Config{
		MaxBatchAge:   maxAge,
		SweepInterval: sweep,
	}
}

func (c Config) queueConfig() queue.Config {
	return queue.Config{
		Capacity:       c.QueueCapacity,
		RequestTimeout: time.Duration(c.RequestTimeoutSeconds) * time.Second,
	}
}
