package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
)

func storeConfig() *Config {
	return &Config{
		PGHost:     "db.example",
		PGPort:     "5432",
		PGDatabase: "assets",
		PGUser:     "svc",
		PGPassword: "secret",
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_HOST_CW", "db.example")
	t.Setenv("PG_PORT_CW", "")
	t.Setenv("LOG_FORMAT", "")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "db.example", config.PGHost)
	assert.Equal(t, "5432", config.PGPort, "port defaults when unset")
	assert.Equal(t, "auto", config.LogFormat)
	assert.Equal(t, 4, config.Workers)
	assert.Equal(t, "data/bc_boundary.geojson", config.BoundaryPath)
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("PG_DATABASE_CW", "parks")
	t.Setenv("AGO_HOST", "https://portal.example")
	t.Setenv("AGO_USERNAME", "svc_bcparks")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "parks", config.PGDatabase)
	assert.Equal(t, "https://portal.example", config.AGOHost)
	assert.Equal(t, "svc_bcparks", config.AGOUsername)
}

func TestValidateStoreComplete(t *testing.T) {
	assert.NoError(t, storeConfig().ValidateStore())
}

func TestValidateStoreNamesMissingSettings(t *testing.T) {
	config := storeConfig()
	config.PGPassword = ""
	config.PGHost = ""

	err := config.ValidateStore()
	require.Error(t, err)

	var cfgErr *errors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "PG_HOST_CW, PG_PASSWORD_CW")
}

func TestValidateRemoteNamesMissingSettings(t *testing.T) {
	config := &Config{AGOHost: "https://portal.example"}

	err := config.ValidateRemote()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGO_LAYER_URL")
	assert.Contains(t, err.Error(), "AGO_PASSWORD")
	assert.Contains(t, err.Error(), "AGO_USERNAME")
	assert.NotContains(t, err.Error(), "AGO_HOST")
}
