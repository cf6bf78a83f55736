package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stride/internal/oauth/token"
)

// EnvPrefix namespaces every environment override, e.g. STRIDE_SERVER_ADDR.
const EnvPrefix = "STRIDE"

// Config is the complete runtime configuration of the auth server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	OAuth    OAuthConfig
	Audit    AuditConfig
	Log      LogConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	AdminToken      string
	CookieSecure    bool
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// DatabaseConfig configures the Postgres record stores. An empty URL selects
// the in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the transaction and login session stores. An empty
// URL selects the in-memory stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type OAuthConfig struct {
	AuthCodeBytes    int
	AccessTokenBytes int
	AuthCodeTTL      time.Duration
	TransactionTTL   time.Duration
	SessionTTL       time.Duration
	StoreTimeout     time.Duration
	BcryptCost       int
	SweepInterval    time.Duration
}

// AuditConfig selects the audit sink. No brokers means in-memory.
type AuditConfig struct {
	KafkaBrokers []string
	Topic        string
}

type LogConfig struct {
	Level  string
	Format string
}

// SetDefaults registers a default for every key. AutomaticEnv only resolves
// keys viper already knows about.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.cookie_secure", true)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 35*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("oauth.auth_code_bytes", 16)
	v.SetDefault("oauth.access_token_bytes", 256)
	v.SetDefault("oauth.auth_code_ttl", 10*time.Minute)
	v.SetDefault("oauth.transaction_ttl", 10*time.Minute)
	v.SetDefault("oauth.session_ttl", 24*time.Hour)
	v.SetDefault("oauth.store_timeout", 5*time.Second)
	v.SetDefault("oauth.bcrypt_cost", 12)
	v.SetDefault("oauth.sweep_interval", time.Minute)

	v.SetDefault("audit.kafka_brokers", []string{})
	v.SetDefault("audit.topic", "stride.audit")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// NewViper returns a viper instance with defaults and environment binding.
// When configFile is non-empty it is read as YAML.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			AdminToken:      v.GetString("server.admin_token"),
			CookieSecure:    v.GetBool("server.cookie_secure"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		OAuth: OAuthConfig{
			AuthCodeBytes:    v.GetInt("oauth.auth_code_bytes"),
			AccessTokenBytes: v.GetInt("oauth.access_token_bytes"),
			AuthCodeTTL:      v.GetDuration("oauth.auth_code_ttl"),
			TransactionTTL:   v.GetDuration("oauth.transaction_ttl"),
			SessionTTL:       v.GetDuration("oauth.session_ttl"),
			StoreTimeout:     v.GetDuration("oauth.store_timeout"),
			BcryptCost:       v.GetInt("oauth.bcrypt_cost"),
			SweepInterval:    v.GetDuration("oauth.sweep_interval"),
		},
		Audit: AuditConfig{
			KafkaBrokers: splitList(v.GetStringSlice("audit.kafka_brokers")),
			Topic:        v.GetString("audit.topic"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.OAuth.AuthCodeBytes < 16 {
		errs = append(errs, errors.New("oauth.auth_code_bytes must be at least 16"))
	}
	if token.EncodedLen(c.OAuth.AuthCodeBytes) > token.MaxCodeLen {
		errs = append(errs, fmt.Errorf("oauth.auth_code_bytes must be at most %d", token.MaxBytes(token.MaxCodeLen)))
	}
	if c.OAuth.AccessTokenBytes < 32 {
		errs = append(errs, errors.New("oauth.access_token_bytes must be at least 32"))
	}
	if token.EncodedLen(c.OAuth.AccessTokenBytes) > token.MaxAccessTokenLen {
		errs = append(errs, fmt.Errorf("oauth.access_token_bytes must be at most %d", token.MaxBytes(token.MaxAccessTokenLen)))
	}
	if c.Server.RequestTimeout > 0 && c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Server.RequestTimeout {
		errs = append(errs, errors.New("server.write_timeout must exceed server.request_timeout"))
	}
	for key, d := range map[string]time.Duration{
		"oauth.auth_code_ttl":   c.OAuth.AuthCodeTTL,
		"oauth.transaction_ttl": c.OAuth.TransactionTTL,
		"oauth.session_ttl":     c.OAuth.SessionTTL,
		"oauth.store_timeout":   c.OAuth.StoreTimeout,
		"oauth.sweep_interval":  c.OAuth.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.Topic == "" {
		errs = append(errs, errors.New("audit.topic is required when audit.kafka_brokers is set"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
