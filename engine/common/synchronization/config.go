package synchronization

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/trace"
)

// Request tiers, also used as metric labels.
const (
	TierRequest        = "request"
	TierDelayedRequest = "delayed_request"
	TierBackupRequest  = "backup_request"
)

type Config struct {
	// TickPeriod is the interval between periodic state broadcasts.
	TickPeriod time.Duration
	// TickCooldown is the minimal interval between two eager broadcasts.
	TickCooldown time.Duration

	RequestDelay        time.Duration
	DelayedRequestDelay time.Duration
	BackupRequestDelay  time.Duration

	InboundQueueCapacity    int
	ChainEventQueueCapacity int
	InternalQueueCapacity   int
	SubmissionCapacity      int

	// RequestRateLimit is the rate at which requests of one peer are served.
	RequestRateLimit rate.Limit
	RequestRateBurst int
	// RateLimitedPeers bounds the number of peers with a tracked limiter.
	RateLimitedPeers int

	Tracer module.Tracer
}

func DefaultConfig() *Config {
	return &Config{
		TickPeriod:              5 * time.Second,
		TickCooldown:            500 * time.Millisecond,
		RequestDelay:            0,
		DelayedRequestDelay:     500 * time.Millisecond,
		BackupRequestDelay:      5 * time.Second,
		InboundQueueCapacity:    1000,
		ChainEventQueueCapacity: 1000,
		InternalQueueCapacity:   100,
		SubmissionCapacity:      100,
		RequestRateLimit:        rate.Limit(10),
		RequestRateBurst:        20,
		RateLimitedPeers:        1024,
		Tracer:                  trace.NewNoopTracer(),
	}
}

type OptionFunc func(*Config)

// WithTickPeriod sets the interval between periodic state broadcasts.
func WithTickPeriod(period time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.TickPeriod = period
	}
}

// WithTickCooldown sets the minimal interval between eager state broadcasts.
func WithTickCooldown(cooldown time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.TickCooldown = cooldown
	}
}

// WithRequestDelays sets the delays of the delayed and backup request tiers.
func WithRequestDelays(delayed, backup time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.DelayedRequestDelay = delayed
		cfg.BackupRequestDelay = backup
	}
}

// WithRequestRateLimit sets the per-peer limit on served requests.
func WithRequestRateLimit(limit rate.Limit, burst int) OptionFunc {
	return func(cfg *Config) {
		cfg.RequestRateLimit = limit
		cfg.RequestRateBurst = burst
	}
}

func WithInboundQueueCapacity(capacity int) OptionFunc {
	return func(cfg *Config) {
		cfg.InboundQueueCapacity = capacity
	}
}

// WithTracer sets the tracer spans of handled messages, chain events and
// submissions are opened on.
func WithTracer(tracer module.Tracer) OptionFunc {
	return func(cfg *Config) {
		cfg.Tracer = tracer
	}
}
