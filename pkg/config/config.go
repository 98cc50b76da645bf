package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/classicgap/gap"
	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
	"github.com/srg/classicgap/internal/notify"
)

// MQTTConfig enables the MQTT notification mirror when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id" default:"gapctl"`
	TopicPrefix string `yaml:"topic_prefix" default:"classicgap"`
	QoS         uint8  `yaml:"qos" default:"0"`
}

// NotificationsConfig controls how notifications leave the controller.
type NotificationsConfig struct {
	BufferSize int        `yaml:"buffer_size" default:"64"`
	MQTT       MQTTConfig `yaml:"mqtt"`
}

// Config holds application configuration
type Config struct {
	LogLevel  string `yaml:"log_level" default:"info"`
	LogFormat string `yaml:"log_format" default:"text"`

	HCIDevice        int      `yaml:"hci_device" default:"0"`
	InquiryLength    uint8    `yaml:"inquiry_length" default:"5"`
	RequiredServices []string `yaml:"required_services" default:"[audio,rendering]"`
	ProtectionLevel  uint8    `yaml:"protection_level" default:"1"`

	Notifications NotificationsConfig `yaml:"notifications"`

	// BondStore is the SQLite file of bonded peers. Empty disables it.
	BondStore string `yaml:"bond_store"`
	// AgentScript answers pairing prompts. Empty means interactive.
	AgentScript string `yaml:"agent_script"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format: %q is not text or json", c.LogFormat)
	}
	if c.HCIDevice < 0 {
		return fmt.Errorf("hci_device: %d is negative", c.HCIDevice)
	}
	if c.InquiryLength == 0 || c.InquiryLength > hci.MaxInquiryLength {
		return fmt.Errorf("inquiry_length: %d out of range 1..%d", c.InquiryLength, hci.MaxInquiryLength)
	}
	if _, err := c.ServiceMask(); err != nil {
		return fmt.Errorf("required_services: %w", err)
	}
	if c.Notifications.BufferSize <= 0 {
		return fmt.Errorf("notifications.buffer_size: %d must be positive", c.Notifications.BufferSize)
	}
	if c.Notifications.MQTT.QoS > 2 {
		return fmt.Errorf("notifications.mqtt.qos: %w", notify.ErrInvalidQoS)
	}
	return nil
}

// ServiceMask folds RequiredServices into a Class of Device mask.
func (c *Config) ServiceMask() (device.ClassOfDevice, error) {
	if len(c.RequiredServices) == 0 {
		return 0, fmt.Errorf("at least one service is required")
	}
	var mask device.ClassOfDevice
	for _, name := range c.RequiredServices {
		s, err := device.ParseService(strings.TrimSpace(name))
		if err != nil {
			return 0, err
		}
		mask |= s
	}
	return mask, nil
}

// ControllerOptions returns the discovery options for gap.NewController.
func (c *Config) ControllerOptions() (*gap.Options, error) {
	mask, err := c.ServiceMask()
	if err != nil {
		return nil, err
	}
	opts := gap.DefaultOptions()
	opts.InquiryLength = c.InquiryLength
	opts.RequiredServices = mask
	return opts, nil
}

// MQTTOptions returns the MQTT mirror settings, or false when disabled.
func (c *Config) MQTTOptions() (notify.MQTTOptions, bool) {
	m := c.Notifications.MQTT
	if m.Broker == "" {
		return notify.MQTTOptions{}, false
	}
	return notify.MQTTOptions{
		Broker:      m.Broker,
		ClientID:    m.ClientID,
		TopicPrefix: m.TopicPrefix,
		QoS:         m.QoS,
	}, true
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		return logger
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
