package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/srg/classicgap/internal/groutine"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	maxQoS                   = 2
)

var (
	ErrMQTTConnect = errors.New("mqtt connection failed")
	ErrInvalidQoS  = errors.New("mqtt QoS must be 0, 1 or 2")
)

// MQTTClient is the part of a paho client the publisher needs.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTOptions configures ConnectMQTT.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// MQTTPublisher mirrors notifications as JSON onto "<prefix>/<topic>".
// The device list is published retained so late subscribers see the
// current registry.
type MQTTPublisher struct {
	client     MQTTClient
	disconnect func()
	prefix     string
	qos        byte
	logger     *logrus.Logger
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(client MQTTClient, prefix string, qos byte, logger *logrus.Logger) (*MQTTPublisher, error) {
	if qos > maxQoS {
		return nil, ErrInvalidQoS
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    qos,
		logger: logger,
	}, nil
}

// ConnectMQTT dials the broker and returns a publisher owning the connection.
func ConnectMQTT(opts MQTTOptions, logger *logrus.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = logrus.New()
	}

	co := pahomqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultConnectTimeout)
	co.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.WithError(err).WithField("broker", opts.Broker).Warn("MQTT connection lost")
	})

	client := pahomqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrMQTTConnect, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMQTTConnect, err)
	}

	p, err := NewMQTTPublisher(client, opts.TopicPrefix, opts.QoS, logger)
	if err != nil {
		client.Disconnect(defaultDisconnectQuiesce)
		return nil, err
	}
	p.disconnect = func() { client.Disconnect(defaultDisconnectQuiesce) }

	logger.WithFields(logrus.Fields{
		"broker": opts.Broker,
		"prefix": p.prefix,
	}).Info("Connected to MQTT broker")
	return p, nil
}

// TopicFor returns the full MQTT topic for a notification.
func (p *MQTTPublisher) TopicFor(n Notification) string {
	if p.prefix == "" {
		return n.Topic()
	}
	return p.prefix + "/" + n.Topic()
}

// Publish serialises n and hands it to the client. Delivery is confirmed in
// the background; failures are logged.
func (p *MQTTPublisher) Publish(n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.logger.WithError(err).WithField("topic", n.Topic()).Error("Failed to encode notification")
		return
	}

	topic := p.TopicFor(n)
	_, retained := n.(DeviceListChanged)
	token := p.client.Publish(topic, p.qos, retained, payload)

	groutine.Go(context.Background(), "mqtt-publish", func(context.Context) {
		if !token.WaitTimeout(defaultPublishTimeout) {
			p.logger.WithField("topic", topic).Warnf("MQTT publish not confirmed after %v", defaultPublishTimeout)
			return
		}
		if err := token.Error(); err != nil {
			p.logger.WithError(err).WithField("topic", topic).Warn("MQTT publish failed")
		}
	})
}

// Close disconnects a publisher created by ConnectMQTT.
func (p *MQTTPublisher) Close() {
	if p.disconnect != nil {
		p.disconnect()
	}
}
