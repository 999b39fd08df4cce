package config

import (
	"fmt"
	"net/url"
)

// knownStrategies are the names accepted in strategies.order.
var knownStrategies = map[string]bool{
	"gateway":         true,
	"translate":       true,
	"render":          true,
	"solver":          true,
	"browser":         true,
	"browser_stealth": true,
	"browser_proxy":   true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}

	if cfg.Fetch.AttemptTimeout <= 0 {
		return fmt.Errorf("fetch.attempt_timeout must be > 0")
	}
	if cfg.Fetch.MinHTMLLength < 0 {
		return fmt.Errorf("fetch.min_html_length must be >= 0, got %d", cfg.Fetch.MinHTMLLength)
	}
	if cfg.Fetch.MaxBodySize <= 0 {
		return fmt.Errorf("fetch.max_body_size must be > 0")
	}

	if len(cfg.Strategies.Order) == 0 {
		return fmt.Errorf("strategies.order must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Strategies.Order))
	for _, name := range cfg.Strategies.Order {
		if !knownStrategies[name] {
			return fmt.Errorf("strategies.order contains unknown strategy %q", name)
		}
		if seen[name] {
			return fmt.Errorf("strategies.order lists %q twice", name)
		}
		seen[name] = true
	}

	if cfg.Strategies.Browser.ProxyURL != "" {
		if _, err := url.Parse(cfg.Strategies.Browser.ProxyURL); err != nil {
			return fmt.Errorf("invalid strategies.browser.proxy_url: %w", err)
		}
	}
	if cfg.Strategies.Translate.RatePerSec <= 0 {
		return fmt.Errorf("strategies.translate.rate_per_sec must be > 0")
	}

	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}
	if cfg.Cache.MongoURI != "" {
		if cfg.Cache.MongoDatabase == "" || cfg.Cache.MongoCollection == "" {
			return fmt.Errorf("cache.mongo_database and cache.mongo_collection are required when cache.mongo_uri is set")
		}
	}

	if cfg.Cloaking.AbsThreshold < 0 {
		return fmt.Errorf("cloaking.abs_threshold must be >= 0, got %d", cfg.Cloaking.AbsThreshold)
	}
	if cfg.Cloaking.RelThreshold < 0 || cfg.Cloaking.RelThreshold > 1 {
		return fmt.Errorf("cloaking.rel_threshold must be in [0,1], got %g", cfg.Cloaking.RelThreshold)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be debug/info/warn/error, got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", cfg.Log.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is a valid acquisition target.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
