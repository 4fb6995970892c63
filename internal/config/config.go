package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	Alpaca     AlpacaConfig
	Stream     StreamConfig
	Cache      CacheConfig
	Kafka      KafkaConfig
	ServiceKey string
	Logging    LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// AlpacaConfig holds primary provider credentials and endpoints. Missing
// credentials degrade the service to the REST and secondary fallback
// paths rather than crashing it.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	DataURL   string
	BrokerURL string
}

// StreamConfig holds the real-time feed settings. The watch-list is the
// single source of truth for which symbols are kept live, consumed by
// both the stream manager and the quote resolver.
type StreamConfig struct {
	Enabled           bool
	EndpointFast      string
	EndpointDelayed   string
	WatchList         []string
	ReconnectDelay    time.Duration
	MaxReconnects     int
	AuthTimeout       time.Duration
	HeartbeatInterval time.Duration
}

// CacheConfig holds TTLs for the memoization caches
type CacheConfig struct {
	SeriesTTL time.Duration
	AssetsTTL time.Duration
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	ClientID  string
	TickTopic string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Read from environment variables
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	// Alpaca defaults
	v.SetDefault("alpaca.dataURL", "https://data.alpaca.markets/v2")
	v.SetDefault("alpaca.brokerURL", "https://api.alpaca.markets/v2")

	// Stream defaults
	v.SetDefault("stream.enabled", true)
	v.SetDefault("stream.endpointFast", "wss://stream.data.alpaca.markets/v2/iex")
	v.SetDefault("stream.endpointDelayed", "wss://stream.data.alpaca.markets/v2/delayed_sip")
	v.SetDefault("stream.watchList", []string{
		"AAPL", "MSFT", "GOOGL", "AMZN", "META", "TSLA", "NVDA", "NFLX",
	})
	v.SetDefault("stream.reconnectDelay", "5s")
	v.SetDefault("stream.maxReconnects", 5)
	v.SetDefault("stream.authTimeout", "15s")
	v.SetDefault("stream.heartbeatInterval", "30s")

	// Cache defaults
	v.SetDefault("cache.seriesTTL", "5m")
	v.SetDefault("cache.assetsTTL", "1h")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.clientID", "market-data-service")
	v.SetDefault("kafka.tickTopic", "market-ticks")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
