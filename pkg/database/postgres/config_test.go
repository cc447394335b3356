// pkg/database/postgres/config_test.go
package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{Host: "db.internal", DBName: "parcels"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "parcels", cfg.DBName)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "postgres", cfg.User)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
}

func TestConfigValidateNil(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrNilConfig)
}
