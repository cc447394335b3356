// app/tracker/internal/presence/presence_test.go
package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.TTL)
	assert.Equal(t, "@every 1m", cfg.SweepSpec)
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "presence:user:agent-42", userKey("agent-42"))
}
