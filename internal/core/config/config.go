// Package config provides configuration management for killwatch services.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds configuration for the HTTP service.
type ServerConfig struct {
	Host            string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// EngineConfig holds configuration for the matching engine.
type EngineConfig struct {
	FallbackCap         int
	SequentialThreshold int
	Workers             int
	ProfileTimeout      time.Duration
	MatchTimeout        time.Duration
	CacheTTL            time.Duration
	CacheDisabled       bool
	FlushInterval       time.Duration
	FrequencyDecay      float64
	RecorderBuffer      int
}

// Config is the root configuration.
type Config struct {
	Server ServerConfig
	Engine EngineConfig
	DBURL  string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8440,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Engine: EngineConfig{
			FallbackCap:         100,
			SequentialThreshold: 10,
			Workers:             4,
			ProfileTimeout:      50 * time.Millisecond,
			MatchTimeout:        time.Second,
			CacheTTL:            10 * time.Second,
			FlushInterval:       5 * time.Second,
			FrequencyDecay:      0.9,
			RecorderBuffer:      4096,
		},
		DBURL: "sqlite://killwatch.db",
	}
}

// validate checks port range and positive engine bounds.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Engine.FallbackCap <= 0 {
		return fmt.Errorf("engine.fallback_cap must be positive, got %d", cfg.Engine.FallbackCap)
	}
	if cfg.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.FrequencyDecay <= 0 || cfg.Engine.FrequencyDecay >= 1 {
		return fmt.Errorf("engine.frequency_decay must be in (0, 1), got %v", cfg.Engine.FrequencyDecay)
	}
	if cfg.Engine.FlushInterval <= 0 {
		return fmt.Errorf("engine.flush_interval must be positive, got %v", cfg.Engine.FlushInterval)
	}
	if cfg.DBURL == "" {
		return fmt.Errorf("database URL is required")
	}
	return nil
}
