package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
[Logger]
log-level = "debug"
format = "json"

[Dispatch]
interval-ms = 25
settings = "/tmp/out.toml"

[Network]
bind-cidr = "192.168.6.0/24"

[MQTT]
enabled = true
server = "broker.local"
topic-prefix = "stage"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(writeFile(t, "conf.toml", validConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 25, cfg.Dispatch.IntervalMs)
	assert.Equal(t, "/tmp/out.toml", cfg.Dispatch.Settings)
	assert.Equal(t, "192.168.6.0/24", cfg.Network.BindCIDR)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.local", cfg.MQTT.Host)
	assert.Equal(t, "stage", cfg.MQTT.TopicPrefix)
	// defaults survive
	assert.Equal(t, "1883", cfg.MQTT.Port)
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(writeFile(t, "empty.toml", ""))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 50, cfg.Dispatch.IntervalMs)
	assert.Equal(t, "dmxout", cfg.MQTT.TopicPrefix)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestNewConfigErrors(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = NewConfig(writeFile(t, "bad.toml", "[Logger\n"))
	assert.Error(t, err)
}

func TestSettingsTypedAccess(t *testing.T) {
	s := NewSettings()
	assert.Equal(t, "E131", s.String("output", "out_type", "E131"))
	assert.Equal(t, uint32(512), s.Uint("output", "universe_size", 512))

	s.SetString("output", "out_type", "DDP")
	s.SetUint("output", "universe_size", 170)
	assert.Equal(t, "DDP", s.String("output", "out_type", "E131"))
	assert.Equal(t, uint32(170), s.Uint("output", "universe_size", 512))

	// wrong type falls back to the default
	assert.Equal(t, uint32(9), s.Uint("output", "out_type", 9))
}

func TestSettingsSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	s := NewSettings()
	s.SetString("output", "ip_address", "10.0.0.1")
	s.SetUint("output", "start_channel", 7)
	require.NoError(t, s.Save(path))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", loaded.String("output", "ip_address", ""))
	assert.Equal(t, uint32(7), loaded.Uint("output", "start_channel", 1))
}

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "x", s.String("output", "out_type", "x"))
}

func TestLoadSettingsNegativeUint(t *testing.T) {
	s, err := LoadSettings(writeFile(t, "neg.toml", "[output]\nstart_channel = -4\n"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), s.Uint("output", "start_channel", 1))
}

func TestLoadSettingsUintOverflow(t *testing.T) {
	s, err := LoadSettings(writeFile(t, "big.toml", "[output]\nuniverse_size = 4294967296\nstart_channel = 4294967295\n"))
	require.NoError(t, err)
	assert.Equal(t, uint32(512), s.Uint("output", "universe_size", 512))
	assert.Equal(t, uint32(4294967295), s.Uint("output", "start_channel", 1))
}

var errFlush = errors.New("flush failed")

type failingCloser struct {
	written int
}

func (f *failingCloser) Write(p []byte) (int, error) {
	f.written += len(p)
	return len(p), nil
}

func (f *failingCloser) Close() error { return errFlush }

func TestSettingsWriteReportsCloseError(t *testing.T) {
	s := NewSettings()
	s.SetString("output", "out_type", "DDP")

	w := &failingCloser{}
	assert.ErrorIs(t, s.write(w), errFlush)
	assert.NotZero(t, w.written)
}

func TestSaveToMissingDir(t *testing.T) {
	s := NewSettings()
	assert.Error(t, s.Save(filepath.Join(t.TempDir(), "no", "such", "settings.toml")))
}
