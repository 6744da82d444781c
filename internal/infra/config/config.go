package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

const envPrefix = "CRED"

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Session   SessionSettings   `mapstructure:"session"`
	Recovery  RecoverySettings  `mapstructure:"recovery"`
	Store     StoreSettings     `mapstructure:"store"`
	Mail      MailSettings      `mapstructure:"mail"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsDevelopment reports whether development-only response fields are enabled.
func (a AppSettings) IsDevelopment() bool {
	return a.Env == "development"
}

// IsProduction reports whether the service runs with production defaults.
func (a AppSettings) IsProduction() bool {
	return a.Env == "production"
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	Schema            string        `mapstructure:"schema"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	MigrateOnStart    bool          `mapstructure:"migrate_on_start"`
}

// DSN renders the connection string used by both pgxpool and database/sql.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// RateLimitSettings configures the per-IP throttles in front of the auth routes.
type RateLimitSettings struct {
	GeneralWindow       time.Duration `mapstructure:"general_window"`
	GeneralMaxAttempts  int           `mapstructure:"general_max_attempts"`
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	LoginWindow         time.Duration `mapstructure:"login_window"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	RecoveryMaxAttempts int           `mapstructure:"recovery_max_attempts"`
}

type AuthSettings struct {
	JWTSecret        string           `mapstructure:"jwt_secret"`
	JWTIssuer        string           `mapstructure:"jwt_issuer"`
	UsernameRequired bool             `mapstructure:"username_required"`
	UsernameMin      int              `mapstructure:"username_min"`
	UsernameMax      int              `mapstructure:"username_max"`
	NormalizeEmails  bool             `mapstructure:"normalize_emails"`
	Password         PasswordSettings `mapstructure:"password"`
	Hashing          HashingSettings  `mapstructure:"hashing"`
}

// PasswordSettings toggles the complexity rules applied to new passwords.
type PasswordSettings struct {
	MinLength      int    `mapstructure:"min_length"`
	RequireUpper   bool   `mapstructure:"require_upper"`
	RequireLower   bool   `mapstructure:"require_lower"`
	RequireDigit   bool   `mapstructure:"require_digit"`
	RequireSpecial bool   `mapstructure:"require_special"`
	SpecialChars   string `mapstructure:"special_chars"`
	MinStrength    int    `mapstructure:"min_strength"`
}

type HashingSettings struct {
	Algorithm  string         `mapstructure:"algorithm"`
	BcryptCost int            `mapstructure:"bcrypt_cost"`
	Argon2     Argon2Settings `mapstructure:"argon2"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type SessionSettings struct {
	CookieName   string        `mapstructure:"cookie_name"`
	TTL          time.Duration `mapstructure:"ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	SecureCookie *bool         `mapstructure:"secure_cookie"`
}

// CodePolicy bounds issuance of one verification code kind.
type CodePolicy struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
	Expiration  time.Duration `mapstructure:"expiration"`
}

type RecoverySettings struct {
	CodeLength        int           `mapstructure:"code_length"`
	PasswordReset     CodePolicy    `mapstructure:"password_reset"`
	EmailVerification CodePolicy    `mapstructure:"email_verification"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	// MaxAttempts is how many wrong codes a link token survives before its code expires.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// StoreSettings bounds every persistence call.
type StoreSettings struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type MailSettings struct {
	Transport   string                        `mapstructure:"transport"`
	Timeout     time.Duration                 `mapstructure:"timeout"`
	Retries     uint64                        `mapstructure:"retries"`
	LinkBaseURL string                        `mapstructure:"link_base_url"`
	SMTP        SMTPSettings                  `mapstructure:"smtp"`
	AMQP        AMQPSettings                  `mapstructure:"amqp"`
	Profiles    map[string]domain.MailProfile `mapstructure:"profiles"`
}

type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"pass"`
}

type AMQPSettings struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// TelemetrySettings configures OpenTelemetry tracing.
type TelemetrySettings struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

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
		"postgres.schema",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"postgres.migrate_on_start",
		"redis.enabled",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"rate_limit.general_window",
		"rate_limit.general_max_attempts",
		"rate_limit.window_duration",
		"rate_limit.login_window",
		"rate_limit.login_max_attempts",
		"rate_limit.recovery_max_attempts",
		"auth.jwt_secret",
		"auth.jwt_issuer",
		"auth.username_required",
		"auth.username_min",
		"auth.username_max",
		"auth.normalize_emails",
		"auth.password.min_length",
		"auth.password.require_upper",
		"auth.password.require_lower",
		"auth.password.require_digit",
		"auth.password.require_special",
		"auth.password.special_chars",
		"auth.password.min_strength",
		"auth.hashing.algorithm",
		"auth.hashing.bcrypt_cost",
		"auth.hashing.argon2.memory",
		"auth.hashing.argon2.iterations",
		"auth.hashing.argon2.parallelism",
		"auth.hashing.argon2.salt_length",
		"auth.hashing.argon2.key_length",
		"session.cookie_name",
		"session.ttl",
		"session.refresh_ttl",
		"session.secure_cookie",
		"recovery.code_length",
		"recovery.password_reset.window",
		"recovery.password_reset.max_requests",
		"recovery.password_reset.expiration",
		"recovery.email_verification.window",
		"recovery.email_verification.max_requests",
		"recovery.email_verification.expiration",
		"recovery.sweep_interval",
		"recovery.max_attempts",
		"store.timeout",
		"mail.transport",
		"mail.timeout",
		"mail.retries",
		"mail.link_base_url",
		"mail.smtp.host",
		"mail.smtp.port",
		"mail.smtp.user",
		"mail.smtp.pass",
		"mail.amqp.url",
		"mail.amqp.queue",
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.otlp_endpoint",
		"telemetry.insecure",
		"telemetry.sampling_rate",
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
	v.SetDefault("app.name", "credential-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.schema", "auth")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.migrate_on_start", false)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "cred:rate-limit")

	// Empty broker list selects the logging publisher.
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "cred")
	v.SetDefault("kafka.async", true)

	v.SetDefault("rate_limit.general_window", "15m")
	v.SetDefault("rate_limit.general_max_attempts", 100)
	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_window", "5m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.recovery_max_attempts", 20)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "credential-service")
	v.SetDefault("auth.username_required", true)
	v.SetDefault("auth.username_min", 3)
	v.SetDefault("auth.username_max", 50)
	v.SetDefault("auth.normalize_emails", true)
	v.SetDefault("auth.password.min_length", 8)
	v.SetDefault("auth.password.require_upper", false)
	v.SetDefault("auth.password.require_lower", false)
	v.SetDefault("auth.password.require_digit", false)
	v.SetDefault("auth.password.require_special", false)
	v.SetDefault("auth.password.special_chars", "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~")
	v.SetDefault("auth.password.min_strength", 0)

	v.SetDefault("auth.hashing.algorithm", "bcrypt")
	v.SetDefault("auth.hashing.bcrypt_cost", 10)
	v.SetDefault("auth.hashing.argon2.memory", 65536) // 64 MB
	v.SetDefault("auth.hashing.argon2.iterations", 3)
	v.SetDefault("auth.hashing.argon2.parallelism", 4)
	v.SetDefault("auth.hashing.argon2.salt_length", 16)
	v.SetDefault("auth.hashing.argon2.key_length", 32)

	v.SetDefault("session.cookie_name", "auth_token")
	v.SetDefault("session.ttl", "60m")
	v.SetDefault("session.refresh_ttl", "1h")

	v.SetDefault("recovery.code_length", 5)
	v.SetDefault("recovery.password_reset.window", "15m")
	v.SetDefault("recovery.password_reset.max_requests", 5)
	v.SetDefault("recovery.password_reset.expiration", "10m")
	v.SetDefault("recovery.email_verification.window", "15m")
	v.SetDefault("recovery.email_verification.max_requests", 5)
	v.SetDefault("recovery.email_verification.expiration", "60m")
	v.SetDefault("recovery.sweep_interval", "5m")
	v.SetDefault("recovery.max_attempts", 5)

	v.SetDefault("store.timeout", "5s")

	v.SetDefault("mail.transport", "log")
	v.SetDefault("mail.timeout", "10s")
	v.SetDefault("mail.retries", 3)
	v.SetDefault("mail.link_base_url", "http://localhost:3000")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.amqp.queue", "mail.outbound")
	v.SetDefault("mail.profiles", map[string]any{
		domain.MailProfileNoReply: map[string]any{"name": "No Reply", "address": "no-reply@example.com"},
		domain.MailProfileSupport: map[string]any{"name": "Support", "address": "support@example.com"},
	})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "credential-service")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
