package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process-level configuration. Empty connection URLs select
// the in-memory implementations so the service runs without infrastructure
// in development.
type Server struct {
	Addr     string `env:"SPHERE_ADDR"  envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL"    envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	// TrustedProxies lists the CIDRs whose forwarding headers name the client.
	// Empty means every request is keyed on its peer address.
	TrustedProxies []netip.Prefix `env:"TRUSTED_PROXIES" envSeparator:","`

	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	Verifier    VerifierConfig
	Publication PublicationConfig
	Tracing     TracingConfig
	RateLimit   RateLimitConfig
}

// RedisConfig holds connection and pool settings for the session store.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

type KafkaConfig struct {
	Brokers     []string `env:"KAFKA_BROKERS"        envSeparator:","`
	RewardTopic string   `env:"REWARD_TOPIC"         envDefault:"sphere.rewards"`
	Partitions  int32    `env:"REWARD_TOPIC_PARTITIONS" envDefault:"3"`
}

type AuthConfig struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER"`
}

// VerifierConfig points at the external proof verifier.
type VerifierConfig struct {
	URL            string        `env:"VERIFIER_URL"`
	Timeout        time.Duration `env:"VERIFIER_TIMEOUT"  envDefault:"5s"`
	PublicEndpoint string        `env:"PUBLIC_ENDPOINT"   envDefault:"http://localhost:8080"`
	PostScope      string        `env:"POST_SCOPE"        envDefault:"self-sphere-post"`
	CommentScope   string        `env:"COMMENT_SCOPE"     envDefault:"self-sphere-comment"`
	// TokenSignalIndex is the public-signal position carrying the user
	// identifier the correlation token was bound to.
	TokenSignalIndex int `env:"VERIFIER_USER_IDENTIFIER_INDEX" envDefault:"20"`
}

type PublicationConfig struct {
	PendingTTL    time.Duration `env:"PENDING_TTL"           envDefault:"30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"        envDefault:"1m"`
	FailOpen      bool          `env:"ELIGIBILITY_FAIL_OPEN" envDefault:"false"`
}

// RateLimitConfig sets per-IP budgets per minute. Zero disables a class.
type RateLimitConfig struct {
	Disabled        bool `env:"RATE_LIMIT_DISABLED"          envDefault:"false"`
	ReadsPerMinute  int  `env:"RATE_LIMIT_READS_PER_MINUTE"  envDefault:"300"`
	WritesPerMinute int  `env:"RATE_LIMIT_WRITES_PER_MINUTE" envDefault:"60"`
}

// TracingConfig enables OTLP/HTTP span export when Endpoint is set.
type TracingConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED"      envDefault:"true"`
	Endpoint    string  `env:"OTEL_ENDPOINT"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// FromEnv parses the server configuration from environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Publication.PendingTTL <= 0 {
		return Server{}, fmt.Errorf("PENDING_TTL must be positive")
	}
	if cfg.Publication.SweepInterval <= 0 {
		return Server{}, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return Server{}, fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1]")
	}
	return cfg, nil
}
