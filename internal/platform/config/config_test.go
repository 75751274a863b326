package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sphere.rewards", cfg.Kafka.RewardTopic)
	assert.Equal(t, "self-sphere-post", cfg.Verifier.PostScope)
	assert.Equal(t, "self-sphere-comment", cfg.Verifier.CommentScope)
	assert.Equal(t, 20, cfg.Verifier.TokenSignalIndex)
	assert.Equal(t, 30*time.Minute, cfg.Publication.PendingTTL)
	assert.False(t, cfg.Publication.FailOpen)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.Tracing.Endpoint)
	assert.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 0)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SPHERE_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ELIGIBILITY_FAIL_OPEN", "true")
	t.Setenv("PENDING_TTL", "5m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,fd00::/8")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Publication.FailOpen)
	assert.Equal(t, 5*time.Minute, cfg.Publication.PendingTTL)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("fd00::/8")}, cfg.TrustedProxies)
}

func TestFromEnv_RejectsBadValues(t *testing.T) {
	t.Run("unparseable duration", func(t *testing.T) {
		t.Setenv("VERIFIER_TIMEOUT", "soon")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("malformed proxy cidr", func(t *testing.T) {
		t.Setenv("TRUSTED_PROXIES", "10.0.0.0/33")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("sample ratio out of range", func(t *testing.T) {
		t.Setenv("OTEL_SAMPLE_RATIO", "1.5")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		t.Setenv("PENDING_TTL", "0s")
		_, err := FromEnv()
		require.Error(t, err)
	})
}
