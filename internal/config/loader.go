package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("SEOPOCKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("seopocket")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "seopocket"))
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".seopocket"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("engine.coalesce", cfg.Engine.Coalesce)

	v.SetDefault("fetch.attempt_timeout", cfg.Fetch.AttemptTimeout)
	v.SetDefault("fetch.min_html_length", cfg.Fetch.MinHTMLLength)
	v.SetDefault("fetch.max_body_size", cfg.Fetch.MaxBodySize)
	v.SetDefault("fetch.crawler_ua", cfg.Fetch.CrawlerUA)
	v.SetDefault("fetch.visitor_ua", cfg.Fetch.VisitorUA)

	v.SetDefault("strategies.order", cfg.Strategies.Order)
	v.SetDefault("strategies.gateway.base_url", cfg.Strategies.Gateway.BaseURL)
	v.SetDefault("strategies.gateway.lang", cfg.Strategies.Gateway.Lang)
	v.SetDefault("strategies.gateway.timeout", cfg.Strategies.Gateway.Timeout)
	v.SetDefault("strategies.translate.enabled", cfg.Strategies.Translate.Enabled)
	v.SetDefault("strategies.translate.timeout", cfg.Strategies.Translate.Timeout)
	v.SetDefault("strategies.translate.rate_per_sec", cfg.Strategies.Translate.RatePerSec)
	v.SetDefault("strategies.translate.burst", cfg.Strategies.Translate.Burst)
	v.SetDefault("strategies.render.endpoint", cfg.Strategies.Render.Endpoint)
	v.SetDefault("strategies.render.timeout", cfg.Strategies.Render.Timeout)
	v.SetDefault("strategies.solver.timeout", cfg.Strategies.Solver.Timeout)
	v.SetDefault("strategies.browser.enabled", cfg.Strategies.Browser.Enabled)
	v.SetDefault("strategies.browser.challenge_wait", cfg.Strategies.Browser.ChallengeWait)

	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.mongo_database", cfg.Cache.MongoDatabase)
	v.SetDefault("cache.mongo_collection", cfg.Cache.MongoCollection)

	v.SetDefault("cloaking.abs_threshold", cfg.Cloaking.AbsThreshold)
	v.SetDefault("cloaking.rel_threshold", cfg.Cloaking.RelThreshold)
	v.SetDefault("cloaking.strict", cfg.Cloaking.Strict)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
