// Package notify publishes automation commands to an MQTT broker so other
// systems can follow what the automations do.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"smarthome_collector/internal/config"
	"smarthome_collector/internal/logger"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesceMS   = 250
)

var (
	ErrDisabled         = errors.New("mqtt: disabled")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
)

// CommandMessage is the JSON payload published for every automation command.
type CommandMessage struct {
	Automation string    `json:"automation"`
	Action     string    `json:"action"`
	DeviceID   string    `json:"device_id"`
	Reason     string    `json:"reason"`
	Success    bool      `json:"success"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Publisher is what automations depend on.
type Publisher interface {
	PublishCommand(msg CommandMessage) error
}

// Nop discards messages; used when MQTT is disabled.
type Nop struct{}

func (Nop) PublishCommand(CommandMessage) error { return nil }

// pahoPublisher is the part of pahomqtt.Client used here.
type pahoPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// pahoConn is the part of pahomqtt.Client that Connect drives.
type pahoConn interface {
	pahoPublisher
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
}

var newPahoClient = func(opts *pahomqtt.ClientOptions) pahoConn { return pahomqtt.NewClient(opts) }

// MQTTPublisher publishes command messages with the configured QoS.
type MQTTPublisher struct {
	client pahoPublisher
	closer func()
	prefix string
	qos    byte
	log    *logger.Logger
}

// Connect dials the broker and returns a publisher. Reconnects are handled by paho.
func Connect(cfg config.MQTTConfig, log *logger.Logger) (*MQTTPublisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	log = log.Named("mqtt")

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(defaultConnectTimeout).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			log.Warnw("mqtt_connection_lost", "err", err)
		}).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			log.Infow("mqtt_connected", "broker", cfg.Broker)
		})

	client := newPahoClient(opts)
	token := client.Connect()
	// With connect retry on, paho keeps dialing in the background until disconnected.
	if !token.WaitTimeout(defaultConnectTimeout) {
		client.Disconnect(disconnectQuiesceMS)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(disconnectQuiesceMS)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &MQTTPublisher{
		client: client,
		closer: func() { client.Disconnect(disconnectQuiesceMS) },
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		log:    log,
	}, nil
}

// CommandTopic is {prefix}/automation/{automation}/command.
func CommandTopic(prefix, automation string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return "automation/" + automation + "/command"
	}
	return prefix + "/automation/" + automation + "/command"
}

func (p *MQTTPublisher) PublishCommand(msg CommandMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPublishFailed, err)
	}
	topic := CommandTopic(p.prefix, msg.Automation)

	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		p.log.Warnw("mqtt_publish_timeout", "topic", topic)
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		p.log.Warnw("mqtt_publish_failed", "topic", topic, "err", err)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}
