package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogger(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "gapctl.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("log_level: warn\nhci_device: 2\n"), 0o600))

	tests := []struct {
		name     string
		args     []string
		expected logrus.Level
		hci      int
		wantErr  bool
	}{
		{name: "silent by default", args: nil, expected: logrus.PanicLevel},
		{name: "verbose", args: []string{"--verbose"}, expected: logrus.DebugLevel},
		{name: "log level wins over verbose", args: []string{"--verbose", "--log-level", "error"}, expected: logrus.ErrorLevel},
		{name: "config file level", args: []string{"--config", configFile}, expected: logrus.WarnLevel, hci: 2},
		{name: "flag overrides config", args: []string{"--config", configFile, "--log-level", "info", "--hci", "1"}, expected: logrus.InfoLevel, hci: 1},
		{name: "invalid level", args: []string{"--log-level", "loud"}, wantErr: true},
		{name: "missing config", args: []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))

			cfg, logger, err := setup(cmd)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, logger.GetLevel())
			assert.Equal(t, tt.hci, cfg.HCIDevice)
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", formatVersion("1.2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
