package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Cookie    CookieSettings    `mapstructure:"cookie"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection and key prefixes.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	OTPPrefix  string `mapstructure:"otp_prefix"`
}

// KafkaSettings configures the outbound mail queue.
type KafkaSettings struct {
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

// AuthSettings holds every knob of the passwordless login flow. The two
// allow-lists are distinct on purpose: eligibility gates code issuance,
// authorization gates the protected area.
type AuthSettings struct {
	EligibleIdentities   []string      `mapstructure:"eligible_identities"`
	AuthorizedIdentities []string      `mapstructure:"authorized_identities"`
	CodeTTL              time.Duration `mapstructure:"code_ttl"`
	CodeCooldown         time.Duration `mapstructure:"code_cooldown"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	SessionIdleTTL       time.Duration `mapstructure:"session_idle_ttl"`
	SessionAbsoluteCap   time.Duration `mapstructure:"session_absolute_cap"`
	StoreTimeout         time.Duration `mapstructure:"store_timeout"`
}

// CookieSettings configures the session credential carrier.
type CookieSettings struct {
	Name   string `mapstructure:"name"`
	Domain string `mapstructure:"domain"`
	Secure bool   `mapstructure:"secure"`
}

// RateLimitSettings configures the per-IP sliding windows on the auth
// endpoints, on top of the per-identity issuance cooldown.
type RateLimitSettings struct {
	WindowDuration    time.Duration `mapstructure:"window_duration"`
	IssueMaxAttempts  int           `mapstructure:"issue_max_attempts"`
	VerifyMaxAttempts int           `mapstructure:"verify_max_attempts"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("GATE")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.otp_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.consumer_group",
		"auth.eligible_identities",
		"auth.authorized_identities",
		"auth.code_ttl",
		"auth.code_cooldown",
		"auth.max_attempts",
		"auth.session_idle_ttl",
		"auth.session_absolute_cap",
		"auth.store_timeout",
		"cookie.name",
		"cookie.domain",
		"cookie.secure",
		"rate_limit.window_duration",
		"rate_limit.issue_max_attempts",
		"rate_limit.verify_max_attempts",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "admin-gate")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "gate")
	v.SetDefault("postgres.password", "gate_password")
	v.SetDefault("postgres.database", "gate")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.otp_prefix", "gate:otp")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "gate")
	v.SetDefault("kafka.consumer_group", "gate-mailer")

	// One fixed, documented set of windows: code valid 10 minutes,
	// reissue throttled for 60 seconds, five attempts per code, sessions
	// idle out after 15 minutes, no absolute cap unless configured.
	v.SetDefault("auth.eligible_identities", []string{})
	v.SetDefault("auth.authorized_identities", []string{})
	v.SetDefault("auth.code_ttl", "10m")
	v.SetDefault("auth.code_cooldown", "60s")
	v.SetDefault("auth.max_attempts", 5)
	v.SetDefault("auth.session_idle_ttl", "15m")
	v.SetDefault("auth.session_absolute_cap", "0")
	v.SetDefault("auth.store_timeout", "3s")

	v.SetDefault("cookie.name", "admin_session")
	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.secure", false)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.issue_max_attempts", 10)
	v.SetDefault("rate_limit.verify_max_attempts", 15)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "GATE_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
