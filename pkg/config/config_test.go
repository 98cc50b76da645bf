package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/notify"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 0, cfg.HCIDevice)
	assert.Equal(t, uint8(5), cfg.InquiryLength)
	assert.Equal(t, []string{"audio", "rendering"}, cfg.RequiredServices)
	assert.Equal(t, uint8(1), cfg.ProtectionLevel)
	assert.Equal(t, 64, cfg.Notifications.BufferSize)
	assert.Equal(t, "gapctl", cfg.Notifications.MQTT.ClientID)
	assert.Equal(t, "classicgap", cfg.Notifications.MQTT.TopicPrefix)
	assert.Empty(t, cfg.BondStore)
	assert.Empty(t, cfg.AgentScript)

	assert.NoError(t, cfg.Validate(), "defaults MUST validate")

	mask, err := cfg.ServiceMask()
	require.NoError(t, err)
	assert.Equal(t, device.AudioSinkServices, mask)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
log_format: json
hci_device: 1
inquiry_length: 8
required_services: [networking, object-transfer]
notifications:
  buffer_size: 16
  mqtt:
    broker: tcp://localhost:1883
    qos: 1
bond_store: /var/lib/gapctl/bonds.db
agent_script: examples/agent.lua
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1, cfg.HCIDevice)
	assert.Equal(t, uint8(8), cfg.InquiryLength)
	assert.Equal(t, []string{"networking", "object-transfer"}, cfg.RequiredServices)
	assert.Equal(t, uint8(1), cfg.ProtectionLevel, "unset keys MUST keep their defaults")
	assert.Equal(t, 16, cfg.Notifications.BufferSize)
	assert.Equal(t, "/var/lib/gapctl/bonds.db", cfg.BondStore)

	mqtt, ok := cfg.MQTTOptions()
	require.True(t, ok)
	assert.Equal(t, notify.MQTTOptions{
		Broker:      "tcp://localhost:1883",
		ClientID:    "gapctl",
		TopicPrefix: "classicgap",
		QoS:         1,
	}, mqtt)

	opts, err := cfg.ControllerOptions()
	require.NoError(t, err)
	assert.Equal(t, uint8(8), opts.InquiryLength)
	assert.Equal(t, device.ServiceNetworking|device.ServiceObjectTransfer, opts.RequiredServices)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, ok := cfg.MQTTOptions()
	assert.False(t, ok, "MQTT MUST stay disabled without a broker")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "scan_timeout: 10s"},
		{"bad level", "log_level: loud"},
		{"bad format", "log_format: xml"},
		{"negative device", "hci_device: -1"},
		{"zero inquiry length", "inquiry_length: 0"},
		{"inquiry length too long", "inquiry_length: 49"},
		{"unknown service", "required_services: [audio, teleportation]"},
		{"no services", "required_services: []"},
		{"empty buffer", "notifications: {buffer_size: 0}"},
		{"qos out of range", "notifications: {mqtt: {qos: 3}}"},
		{"not yaml", "log_level: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "gapctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("inquiry_length: 3\n"), 0o600))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), cfg.InquiryLength)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		format   string
		expected logrus.Level
	}{
		{name: "creates logger with debug level", level: "debug", format: "text", expected: logrus.DebugLevel},
		{name: "creates logger with warn level", level: "warn", format: "text", expected: logrus.WarnLevel},
		{name: "json format", level: "error", format: "json", expected: logrus.ErrorLevel},
		{name: "falls back to info", level: "bogus", format: "text", expected: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level, LogFormat: tt.format}
			logger := cfg.NewLogger()

			assert.Equal(t, tt.expected, logger.GetLevel())
			if tt.format == "json" {
				formatter, ok := logger.Formatter.(*logrus.JSONFormatter)
				require.True(t, ok)
				assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
				return
			}
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
