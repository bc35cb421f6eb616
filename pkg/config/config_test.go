package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedsDefaultsWithoutAnEnvVar(t *testing.T) {
	t.Setenv("NEARCLIP_CONFIG_YAML", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, ":0", cfg.WifiListenAddr)
}

func TestLoadAssignsARandomDeviceIDWhenUnset(t *testing.T) {
	t.Setenv("NEARCLIP_CONFIG_YAML", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.DeviceID)
	_, err = uuid.Parse(cfg.DeviceID)
	assert.NoError(t, err, "device id should be a valid uuid")
}

func TestLoadFileOverlaysYAMLOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_id: fixed-device\nretry_count: 7\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fixed-device", cfg.DeviceID)
	assert.Equal(t, 7, cfg.RetryCount)
	assert.Equal(t, "5s", cfg.AckTimeout.String())
}

func TestLoadFileRejectsADirectory(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(dir)
	assert.Error(t, err)
}

func TestLoadFileRejectsAnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry_count: -1\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
