package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CreatesConfig(t *testing.T) {
	dir := t.TempDir()
	clientPath := filepath.Join(dir, "client", "config.json")
	binary := filepath.Join(dir, "tier-classifier")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))

	// Act
	path, err := Register(Options{
		ClientConfigPath: clientPath,
		BinaryPath:       binary,
		ConfigPath:       filepath.Join(dir, "config.yaml"),
		Env:              map[string]string{"TIER_LOGGING_LEVEL": "warn"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, clientPath, path)

	config, err := LoadClientConfig(clientPath)
	require.NoError(t, err)
	entry, ok := config.MCPServers[DefaultServerName]
	require.True(t, ok)
	assert.Equal(t, binary, entry.Command)
	assert.Equal(t, []string{"mcp", "--config", filepath.Join(dir, "config.yaml")}, entry.Args)
	assert.Equal(t, "warn", entry.Env["TIER_LOGGING_LEVEL"])

	status, err := GetStatus(clientPath, "")
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Empty(t, status.Issues)
}

func TestRegister_PreservesOtherSettings(t *testing.T) {
	clientPath := filepath.Join(t.TempDir(), "config.json")
	existing := `{
  "theme": "dark",
  "mcpServers": {"other": {"command": "/usr/bin/other"}}
}`
	require.NoError(t, os.WriteFile(clientPath, []byte(existing), 0644))

	_, err := Register(Options{ClientConfigPath: clientPath, BinaryPath: "/opt/tier-classifier", ServerName: "tiers"})
	require.NoError(t, err)

	data, err := os.ReadFile(clientPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "dark", doc["theme"])

	servers := doc["mcpServers"].(map[string]any)
	assert.Contains(t, servers, "other")
	assert.Contains(t, servers, "tiers")
}

func TestGetStatus(t *testing.T) {
	clientPath := filepath.Join(t.TempDir(), "config.json")

	status, err := GetStatus(clientPath, "")
	require.NoError(t, err)
	assert.False(t, status.Registered)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "not registered")

	_, err = Register(Options{ClientConfigPath: clientPath, BinaryPath: "/nonexistent/tier-classifier"})
	require.NoError(t, err)

	status, err = GetStatus(clientPath, "")
	require.NoError(t, err)
	assert.True(t, status.Registered)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "Server binary not found")
}

func TestLoadClientConfig_Invalid(t *testing.T) {
	clientPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(clientPath, []byte("{not json"), 0644))

	_, err := LoadClientConfig(clientPath)

	assert.Error(t, err)
}
