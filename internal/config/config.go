package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProviderConfig declares one upstream search provider.
type ProviderConfig struct {
	Name         string   `mapstructure:"name"`
	BaseURL      string   `mapstructure:"base_url"`
	APIKeyEnv    string   `mapstructure:"api_key_env"`
	Priority     int      `mapstructure:"priority"`
	TimeoutMs    int64    `mapstructure:"timeout_ms"`
	Capabilities []string `mapstructure:"capabilities"`

	APIKey string `mapstructure:"-"`
}

type Config struct {
	Server struct {
		Port string
	}
	Cache struct {
		TTL      time.Duration
		Capacity int
	}
	RateLimit struct {
		Quota  int
		Window time.Duration
	}
	Stream struct {
		Stagger time.Duration
		Grace   time.Duration
		Workers int
	}
	Providers []ProviderConfig
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("cache.ttl_ms", 300000)
	viper.SetDefault("cache.capacity", 1000)
	viper.SetDefault("ratelimit.quota", 100)
	viper.SetDefault("ratelimit.window_ms", 600000)
	viper.SetDefault("stream.stagger_ms", 50)
	viper.SetDefault("stream.grace_ms", 300000)
	viper.SetDefault("stream.workers", 32)
	viper.SetDefault("provider.timeout_ms", 15000)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	config.Server.Port = viper.GetString("server.port")
	config.Cache.TTL = time.Duration(viper.GetInt64("cache.ttl_ms")) * time.Millisecond
	config.Cache.Capacity = viper.GetInt("cache.capacity")
	config.RateLimit.Quota = viper.GetInt("ratelimit.quota")
	config.RateLimit.Window = time.Duration(viper.GetInt64("ratelimit.window_ms")) * time.Millisecond
	config.Stream.Stagger = time.Duration(viper.GetInt64("stream.stagger_ms")) * time.Millisecond
	config.Stream.Grace = time.Duration(viper.GetInt64("stream.grace_ms")) * time.Millisecond
	config.Stream.Workers = viper.GetInt("stream.workers")

	if err := viper.UnmarshalKey("providers", &config.Providers); err != nil {
		return nil, fmt.Errorf("invalid providers config: %w", err)
	}

	defaultTimeout := viper.GetInt64("provider.timeout_ms")
	for i := range config.Providers {
		p := &config.Providers[i]
		if p.TimeoutMs <= 0 {
			p.TimeoutMs = defaultTimeout
		}
		if p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
	}

	// With no providers declared, fall back to the two well-known
	// upstreams keyed from the environment.
	if len(config.Providers) == 0 {
		config.Providers = []ProviderConfig{
			{
				Name:         "tavily",
				BaseURL:      envOr("TAVILY_BASE_URL", "https://api.tavily.com"),
				APIKey:       os.Getenv("TAVILY_API_KEY"),
				Priority:     1,
				TimeoutMs:    defaultTimeout,
				Capabilities: []string{"web_search", "answer"},
			},
			{
				Name:         "firecrawl",
				BaseURL:      envOr("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),
				APIKey:       os.Getenv("FIRECRAWL_API_KEY"),
				Priority:     2,
				TimeoutMs:    2 * defaultTimeout,
				Capabilities: []string{"web_search", "scrape"},
			},
		}
	}

	return &config, nil
}

func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// Configured reports whether the provider has usable credentials.
func (p ProviderConfig) Configured() bool {
	return p.APIKey != "" && p.BaseURL != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
