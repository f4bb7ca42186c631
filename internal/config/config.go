package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	ProviderFirebase = "firebase"
	ProviderSupabase = "supabase"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StaticDir       string        `mapstructure:"static_dir"`
	IndexFile       string        `mapstructure:"index_file"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	MetricsPrefix   string        `mapstructure:"metrics_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type AuthConfig struct {
	Provider string         `mapstructure:"provider"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
}

type FirebaseConfig struct {
	ProjectID string `mapstructure:"project_id"`
	CertsURL  string `mapstructure:"certs_url"`
}

// SupabaseConfig configures the Supabase verifier. Users can edit their own
// user_metadata, so AppMetadataAdminOnly should be set in production to keep
// the admin flag server-controlled.
type SupabaseConfig struct {
	URL                  string        `mapstructure:"url"`
	AnonKey              string        `mapstructure:"anon_key"`
	JWTSecret            string        `mapstructure:"jwt_secret"`
	Audience             string        `mapstructure:"audience"`
	Introspect           bool          `mapstructure:"introspect"`
	Timeout              time.Duration `mapstructure:"timeout"`
	AppMetadataAdminOnly bool          `mapstructure:"app_metadata_admin_only"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Channel       string        `mapstructure:"channel"`
	HealthAddr    string        `mapstructure:"health_addr"`
	MaxRetries    int           `mapstructure:"max_retries"`
	ClaimTimeout  time.Duration `mapstructure:"claim_timeout"`
}

// Secrets are only ever read from the environment.
type Secrets struct {
	SupabaseURL       string `envconfig:"SUPABASE_URL"`
	SupabaseKey       string `envconfig:"SUPABASE_KEY"`
	SupabaseJWTSecret string `envconfig:"SUPABASE_JWT_SECRET"`
	FirebaseProjectID string `envconfig:"FIREBASE_PROJECT_ID"`
	DatabasePassword  string `envconfig:"DATABASE_PASSWORD"`
	RedisURL          string `envconfig:"REDIS_URL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.static_dir", "./public")
	v.SetDefault("server.index_file", "./views/index.html")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.metrics_prefix", "clinic_api")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.backend", BackendPostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "clinic")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.key_prefix", "clinic")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("auth.provider", ProviderSupabase)
	v.SetDefault("auth.supabase.audience", "authenticated")
	v.SetDefault("auth.supabase.timeout", 10*time.Second)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.channel", "clinic.events")
	v.SetDefault("outbox.health_addr", ":8081")
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.claim_timeout", 5*time.Minute)
}

// LoadConfig reads config.yml from the usual search paths, then applies
// environment overrides and secrets. A missing config file is not an error.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	return load(v)
}

// LoadFile is LoadConfig for an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s Secrets) {
	if s.SupabaseURL != "" {
		c.Auth.Supabase.URL = s.SupabaseURL
	}
	if s.SupabaseKey != "" {
		c.Auth.Supabase.AnonKey = s.SupabaseKey
	}
	if s.SupabaseJWTSecret != "" {
		c.Auth.Supabase.JWTSecret = s.SupabaseJWTSecret
	}
	if s.FirebaseProjectID != "" {
		c.Auth.Firebase.ProjectID = s.FirebaseProjectID
	}
	if s.DatabasePassword != "" {
		c.Database.Password = s.DatabasePassword
	}
	if s.RedisURL != "" {
		c.Redis.URL = s.RedisURL
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Auth.Provider {
	case ProviderFirebase:
		if c.Auth.Firebase.ProjectID == "" {
			return errors.New("firebase project id must be provided")
		}
	case ProviderSupabase:
		s := c.Auth.Supabase
		if s.JWTSecret == "" && !s.Introspect {
			return errors.New("supabase requires a JWT secret or session introspection")
		}
		if s.Introspect && (s.URL == "" || s.AnonKey == "") {
			return errors.New("Supabase URL and Key must be provided in environment variables")
		}
	default:
		return fmt.Errorf("unknown auth provider %q", c.Auth.Provider)
	}

	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
