package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, StrategySSE, cfg.Strategy)
	require.Equal(t, 30*time.Second, cfg.PollingInterval)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout)
	require.Equal(t, 5, cfg.SSE.MaxReconnectAttempts)
	require.Equal(t, time.Second, cfg.SSE.InitialReconnectDelay)
	require.Equal(t, 30*time.Second, cfg.SSE.MaxReconnectDelay)
	require.True(t, cfg.PollingFallbackEnabled)
	require.Empty(t, cfg.PartnerAllowlist)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FEED_API_BASE_URL", "https://api.example.com/v1")
	t.Setenv("FEED_STRATEGY", "polling")
	t.Setenv("FEED_POLLING_INTERVAL", "5s")
	t.Setenv("FEED_SSE_MAX_RECONNECT_ATTEMPTS", "3")
	t.Setenv("FEED_POLLING_FALLBACK_ENABLED", "false")
	t.Setenv("FEED_SSE_PARTNER_ALLOWLIST", "p1, p2,,p3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, StrategyPolling, cfg.Strategy)
	require.Equal(t, 5*time.Second, cfg.PollingInterval)
	require.Equal(t, 3, cfg.SSE.MaxReconnectAttempts)
	require.False(t, cfg.PollingFallbackEnabled)
	require.Equal(t, []string{"p1", "p2", "p3"}, cfg.PartnerAllowlist)
	require.Equal(t, "https://api.example.com/v1/partner/orders/sse", cfg.StreamURL())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("FEED_STRATEGY", "websocket")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("FEED_POLLING_INTERVAL", "soon")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestSSEEnabledForPartner(t *testing.T) {
	open := &Config{}
	require.True(t, open.SSEEnabledForPartner("anyone"))

	gated := &Config{PartnerAllowlist: []string{"p1", "p2"}}
	require.True(t, gated.SSEEnabledForPartner("p1"))
	require.False(t, gated.SSEEnabledForPartner("p3"))
}
