package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadServer_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ordernum")
	t.Setenv("APP_PORT", "")
	t.Setenv("NUMERATOR_STRATEGY", "")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "strict", cfg.PreviewStrategy)
	assert.Equal(t, int64(50), cfg.CachedRangeSize)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadServer_RejectsUnknownStrategy(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ordernum")
	t.Setenv("NUMERATOR_STRATEGY", "random")
	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadClient_Overrides(t *testing.T) {
	t.Setenv("ORDERNUM_API_URL", "http://erp.local")
	t.Setenv("ORDERNUM_PREVIEW_WAIT", "750ms")
	t.Setenv("ORDERNUM_REQUEST_TIMEOUT", "not-a-duration")

	cfg := LoadClient()
	assert.Equal(t, "http://erp.local", cfg.BaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.PreviewWait)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}
