// pkg/realtime/config_test.go
package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := &Config{URL: "ws://localhost:9000/ws"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.LivenessInterval)
}

func TestConfigValidateMissingURL(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidURL)
}

func TestBackoffDelayLinear(t *testing.T) {
	cfg := DefaultConfig()

	// 线性退避：第 n 次重试等待 BaseDelay * n
	assert.Equal(t, 2*time.Second, cfg.BackoffDelay(1))
	assert.Equal(t, 4*time.Second, cfg.BackoffDelay(2))
	assert.Equal(t, 6*time.Second, cfg.BackoffDelay(3))
	assert.Equal(t, 8*time.Second, cfg.BackoffDelay(4))
	assert.Equal(t, 10*time.Second, cfg.BackoffDelay(5))
}
