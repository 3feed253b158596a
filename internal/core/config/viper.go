package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching Default()
	def := Default()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout.String())

	v.SetDefault("engine.fallback_cap", def.Engine.FallbackCap)
	v.SetDefault("engine.sequential_threshold", def.Engine.SequentialThreshold)
	v.SetDefault("engine.workers", def.Engine.Workers)
	v.SetDefault("engine.profile_timeout", def.Engine.ProfileTimeout.String())
	v.SetDefault("engine.match_timeout", def.Engine.MatchTimeout.String())
	v.SetDefault("engine.cache_ttl", def.Engine.CacheTTL.String())
	v.SetDefault("engine.cache_disabled", def.Engine.CacheDisabled)
	v.SetDefault("engine.flush_interval", def.Engine.FlushInterval.String())
	v.SetDefault("engine.frequency_decay", def.Engine.FrequencyDecay)
	v.SetDefault("engine.recorder_buffer", def.Engine.RecorderBuffer)

	v.SetDefault("db.url", def.DBURL)

	// Bind environment variables with KW_ prefix
	v.SetEnvPrefix("KW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Engine: EngineConfig{
			FallbackCap:         v.GetInt("engine.fallback_cap"),
			SequentialThreshold: v.GetInt("engine.sequential_threshold"),
			Workers:             v.GetInt("engine.workers"),
			ProfileTimeout:      v.GetDuration("engine.profile_timeout"),
			MatchTimeout:        v.GetDuration("engine.match_timeout"),
			CacheTTL:            v.GetDuration("engine.cache_ttl"),
			CacheDisabled:       v.GetBool("engine.cache_disabled"),
			FlushInterval:       v.GetDuration("engine.flush_interval"),
			FrequencyDecay:      v.GetFloat64("engine.frequency_decay"),
			RecorderBuffer:      v.GetInt("engine.recorder_buffer"),
		},
		DBURL: v.GetString("db.url"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
