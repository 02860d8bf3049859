package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Strategy string

const (
	StrategySSE     Strategy = "sse"
	StrategyPolling Strategy = "polling"
)

type SSEConfig struct {
	MaxReconnectAttempts  int
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
	HeartbeatInterval     time.Duration
	HandshakeTimeout      time.Duration
}

type Config struct {
	APIBaseURL string

	Strategy        Strategy
	PollingInterval time.Duration
	FetchTimeout    time.Duration
	SSE             SSEConfig

	// PartnerAllowlist limits the SSE strategy to specific partner IDs.
	// Empty means every partner may use SSE.
	PartnerAllowlist       []string
	PollingFallbackEnabled bool

	StorePath   string
	MetricsAddr string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = getEnvOrDefault("FEED_API_BASE_URL", "http://localhost:8080/api")
	cfg.StorePath = getEnvOrDefault("FEED_STORE_PATH", "./data/feed")
	cfg.MetricsAddr = getEnvOrDefault("FEED_METRICS_ADDR", ":9091")

	strategy := Strategy(getEnvOrDefault("FEED_STRATEGY", "sse"))
	if strategy != StrategySSE && strategy != StrategyPolling {
		return nil, fmt.Errorf("invalid FEED_STRATEGY %q: must be sse or polling", strategy)
	}
	cfg.Strategy = strategy

	var err error
	if cfg.PollingInterval, err = getDuration("FEED_POLLING_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getDuration("FEED_FETCH_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.SSE.InitialReconnectDelay, err = getDuration("FEED_SSE_INITIAL_RECONNECT_DELAY", "1s"); err != nil {
		return nil, err
	}
	if cfg.SSE.MaxReconnectDelay, err = getDuration("FEED_SSE_MAX_RECONNECT_DELAY", "30s"); err != nil {
		return nil, err
	}
	if cfg.SSE.HeartbeatInterval, err = getDuration("FEED_SSE_HEARTBEAT_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	if cfg.SSE.HandshakeTimeout, err = getDuration("FEED_SSE_HANDSHAKE_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	attemptsStr := getEnvOrDefault("FEED_SSE_MAX_RECONNECT_ATTEMPTS", "5")
	attempts, err := strconv.Atoi(attemptsStr)
	if err != nil || attempts < 0 {
		return nil, fmt.Errorf("invalid FEED_SSE_MAX_RECONNECT_ATTEMPTS: %q", attemptsStr)
	}
	cfg.SSE.MaxReconnectAttempts = attempts

	fallbackStr := getEnvOrDefault("FEED_POLLING_FALLBACK_ENABLED", "true")
	fallback, err := strconv.ParseBool(fallbackStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_POLLING_FALLBACK_ENABLED: %q", fallbackStr)
	}
	cfg.PollingFallbackEnabled = fallback

	if allowlist := os.Getenv("FEED_SSE_PARTNER_ALLOWLIST"); allowlist != "" {
		for _, id := range strings.Split(allowlist, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.PartnerAllowlist = append(cfg.PartnerAllowlist, id)
			}
		}
	}

	return cfg, nil
}

// SSEEnabledForPartner is the per-partner rollout flag for the SSE strategy.
func (c *Config) SSEEnabledForPartner(partnerID string) bool {
	if len(c.PartnerAllowlist) == 0 {
		return true
	}
	for _, id := range c.PartnerAllowlist {
		if id == partnerID {
			return true
		}
	}
	return false
}

// StreamURL is the order event stream endpoint.
func (c *Config) StreamURL() string {
	return c.APIBaseURL + "/partner/orders/sse"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	raw := getEnvOrDefault(key, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
