// Package config loads gateway configuration from YAML files and environment
// variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root gateway configuration.
type Config struct {
	Environment string          `mapstructure:"environment" yaml:"environment"`
	LogLevel    string          `mapstructure:"log_level" yaml:"log_level"`
	Server      ServerConfig    `mapstructure:"server" yaml:"server"`
	Redis       RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Auth        AuthConfig      `mapstructure:"auth" yaml:"auth"`
	RateLimit   RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	WebSocket   WSConfig        `mapstructure:"websocket" yaml:"websocket"`
	Events      EventsConfig    `mapstructure:"events" yaml:"events"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// RedisConfig holds connection settings for the counter store.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DB           int           `mapstructure:"db" yaml:"db"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// RateLimitConfig holds admission-layer settings.
type RateLimitConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// WSConfig holds fan-out hub settings.
type WSConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	SendBufferSize  int           `mapstructure:"send_buffer_size" yaml:"send_buffer_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout" yaml:"pong_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
}

// EventsConfig holds the optional Kafka event bridge settings.
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
	GroupID string   `mapstructure:"group_id" yaml:"group_id"`
}

// Load reads configuration from the optional config file and the environment.
// Environment variables use the GOLIVE_ prefix with dots replaced by
// underscores, e.g. GOLIVE_REDIS_ADDR.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GOLIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 50)
	v.SetDefault("redis.min_idle_conns", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	// Bounded timeouts keep the fail-open path responsive when Redis is slow.
	v.SetDefault("redis.read_timeout", 500*time.Millisecond)
	v.SetDefault("redis.write_timeout", 500*time.Millisecond)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.key_prefix", "ratelimit")

	v.SetDefault("websocket.read_buffer_size", 4096)
	v.SetDefault("websocket.write_buffer_size", 4096)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.ping_interval", 30*time.Second)
	v.SetDefault("websocket.pong_timeout", 60*time.Second)
	v.SetDefault("websocket.write_timeout", 10*time.Second)
	v.SetDefault("websocket.max_message_size", 4096)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "golive.domain-events")
	v.SetDefault("events.group_id", "golive-gateway")
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if cfg.Events.Enabled && len(cfg.Events.Brokers) == 0 {
		return fmt.Errorf("events enabled but no brokers configured")
	}
	return nil
}
