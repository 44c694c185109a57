package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 1*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 5, cfg.RetryMaxRetries)
	assert.Equal(t, 100, cfg.RetryMaxQueueSize)
	assert.Equal(t, 24*time.Hour, cfg.RetryQueueMaxAge)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
	assert.NotEmpty(t, cfg.LocalDatabaseDSN)
	assert.NotEmpty(t, cfg.RemoteDatabaseDSN)
}

func TestApplyJSON_OverridesOnlySetFields(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	raw := []byte(`{
		"remote_database_dsn": "postgres://x/y",
		"lock_timeout": "2s",
		"retry_max_retries": 7,
		"retry_interval": "10s"
	}`)

	c := &jsonConfig{}
	require.NoError(t, json.Unmarshal(raw, c))
	applyJSON(cfg, c)

	assert.Equal(t, "postgres://x/y", cfg.RemoteDatabaseDSN)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, 7, cfg.RetryMaxRetries)
	assert.Equal(t, 10*time.Second, cfg.RetryInterval)
	// untouched fields keep defaults
	assert.Equal(t, 1*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, "remindsafe.db", cfg.LocalDatabaseDSN)
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, d.Duration)

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}
