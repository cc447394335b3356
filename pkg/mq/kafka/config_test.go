// pkg/mq/kafka/config_test.go
package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Brokers: []string{"kafka-1:9092"}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100, cfg.Producer.BatchSize)
	assert.Equal(t, time.Second, cfg.Producer.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Producer.WriteTimeout)
}

func TestConfigValidateNoBrokers(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrNoBrokers)

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}
