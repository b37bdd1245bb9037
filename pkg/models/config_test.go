package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigYAML(t *testing.T) {
	config := DefaultConfig()
	config.WorkspaceID = "ws-1"
	config.Report.Pusher = "local"

	data, err := yaml.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "workspace: scm-dev")
	assert.Contains(t, string(data), "onelake_blob_url:")

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "ws-1", loaded.WorkspaceID)
	assert.Equal(t, "local", loaded.Report.Pusher)
	assert.Equal(t, 5*time.Second, loaded.Polling.Interval)
}

func TestEmptyConfig(t *testing.T) {
	var config Config
	require.NoError(t, yaml.Unmarshal([]byte("workspace: other\n"), &config))
	assert.Equal(t, "other", config.Workspace)
	assert.Empty(t, config.DataFile)
	assert.Zero(t, config.Polling.MaxAttempts)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "defaultRawData", config.Variable)
	assert.Equal(t, "FY26", config.FiscalYear)
	assert.Equal(t, "SLS MBR", config.Report.ModelName)
	assert.Equal(t, 30, config.Polling.MaxAttempts)
	assert.Equal(t, "chain", config.Auth.Provider)
}
