package status

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config holds the MQTT broker settings for the presence publisher.
type Config struct {
	Host     string
	Port     int
	TLS      bool
	ClientID string
	Username string
	Password string
	QoS      byte
	// TopicPrefix is prepended to the status and page topics.
	TopicPrefix string
}

// Logger defines the logging interface used by the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// pagePayload is the retained page announcement.
type pagePayload struct {
	Page     string    `json:"page"`
	Detached bool      `json:"detached"`
	At       time.Time `json:"at"`
}

// Publisher announces daemon presence and the current page over MQTT.
//
// Presence uses the standard LWT pattern: a retained "offline" will is
// registered at connect, a retained "online" is published once the
// session is up, and a clean shutdown publishes "offline" explicitly.
type Publisher struct {
	cfg    Config
	client mqtt.Client
	logger Logger
}

// New creates a Publisher. Call Connect before publishing.
func New(cfg Config) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "hadeck"
	}
	return &Publisher{cfg: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

func (p *Publisher) statusTopic() string {
	return p.cfg.TopicPrefix + "/status"
}

func (p *Publisher) pageTopic() string {
	return p.cfg.TopicPrefix + "/page"
}

// Connect establishes the broker session and announces online presence.
func (p *Publisher) Connect() error {
	scheme := "tcp"
	if p.cfg.TLS {
		scheme = "ssl"
	}
	broker := fmt.Sprintf("%s://%s:%d", scheme, p.cfg.Host, p.cfg.Port)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(p.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(p.statusTopic(), "offline", p.cfg.QoS, true).
		SetOnConnectHandler(func(c mqtt.Client) {
			c.Publish(p.statusTopic(), p.cfg.QoS, true, "online")
			p.logger.Debug("presence announced", "topic", p.statusTopic())
		})
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connecting to mqtt broker %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to mqtt broker %s: %w", broker, err)
	}

	p.logger.Info("mqtt presence connected", "broker", broker)
	return nil
}

// PublishPage announces the current page, retained.
func (p *Publisher) PublishPage(page string, detached bool) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}
	payload, err := json.Marshal(pagePayload{Page: page, Detached: detached, At: time.Now().UTC()})
	if err != nil {
		return
	}
	p.client.Publish(p.pageTopic(), p.cfg.QoS, true, payload)
}

// Close publishes offline presence and disconnects cleanly.
func (p *Publisher) Close() {
	if p.client == nil {
		return
	}
	if p.client.IsConnected() {
		token := p.client.Publish(p.statusTopic(), p.cfg.QoS, true, "offline")
		token.WaitTimeout(2 * time.Second)
	}
	p.client.Disconnect(250)
	p.client = nil
}
