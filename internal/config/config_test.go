package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, uint16(3000), cfg.HttpServerPort)
	assert.Equal(t, SinkRedis, cfg.SinkBackend)
	assert.Equal(t, 1024, cfg.SinkQueueSize)
	assert.Equal(t, 1, cfg.SinkWorkers)
	assert.Equal(t, 5*time.Second, cfg.SinkTimeout)
	assert.Equal(t, 10*time.Second, cfg.LastSeenInterval)
	assert.Empty(t, cfg.JwtSecret)
	assert.True(t, cfg.UsesPostgres())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8085")
	t.Setenv("SINK_BACKEND", "none")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LAST_SEEN_INTERVAL", "1m")

	cfg, err := parse()
	require.NoError(t, err)
	assert.Equal(t, uint16(8085), cfg.HttpServerPort)
	assert.Equal(t, SinkNone, cfg.SinkBackend)
	assert.Equal(t, "s3cret", cfg.JwtSecret)
	assert.Equal(t, time.Minute, cfg.LastSeenInterval)
	assert.False(t, cfg.UsesPostgres())
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"SINK_BACKEND":     "kafka",
		"HTTP_SERVER_PORT": "80",
		"SINK_WORKERS":     "0",
		"REDIS_PORT":       "not-a-number",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := parse()
			assert.Error(t, err)
		})
	}
}
