package mqtt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Message is one payload to publish. Retained messages are stored by the
// broker and delivered immediately to late subscribers.
type Message struct {
	Topic   string
	Payload string
	Retain  bool
}

// DeliveryError is returned when a connect, publish or subscribe against the
// broker fails.
type DeliveryError struct {
	Op  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("broker %s failed: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Config holds the broker connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// ClientID is the client identifier prefix; a random suffix is appended
	// per connection so overlapping runs don't kick each other off the broker.
	ClientID string
	// Timeout bounds connect and per-message acknowledgement waits.
	// Defaults to 10 seconds.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to an MQTT broker with one short-lived authenticated
// connection per operation, matching the telemetry publish pattern where a
// cycle runs every few minutes.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	newClient func(*paho.ClientOptions) paho.Client
}

// New creates a new broker client using the given config.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("broker host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 1883
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "homemon"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:       cfg,
		logger:    cfg.Logger,
		newClient: paho.NewClient,
	}, nil
}

// Publish opens one connection, publishes every message in order and
// disconnects. All messages are sent with QoS 0.
func (c *Client) Publish(ctx context.Context, msgs []Message) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	for _, m := range msgs {
		token := client.Publish(m.Topic, 0, m.Retain, m.Payload)
		if err := c.wait(ctx, token); err != nil {
			return &DeliveryError{Op: "publish", Err: fmt.Errorf("topic %s: %w", m.Topic, err)}
		}
		c.logger.LogAttrs(ctx, slog.LevelDebug, "Published message",
			slog.String("topic", m.Topic),
			slog.String("payload", m.Payload),
			slog.Bool("retain", m.Retain))
	}
	return nil
}

// Await subscribes to the given topic and returns the payload of the first
// message received, typically the broker-retained last value. It blocks until
// a message arrives or ctx is done.
func (c *Client) Await(ctx context.Context, topic string) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Disconnect(250)
	payloads := make(chan string, 1)
	token := client.Subscribe(topic, 0, func(_ paho.Client, m paho.Message) {
		select {
		case payloads <- string(m.Payload()):
		default:
		}
	})
	if err := c.wait(ctx, token); err != nil {
		return "", &DeliveryError{Op: "subscribe", Err: fmt.Errorf("topic %s: %w", topic, err)}
	}
	select {
	case p := <-payloads:
		c.logger.LogAttrs(ctx, slog.LevelDebug, "Received message",
			slog.String("topic", topic),
			slog.String("payload", p))
		return p, nil
	case <-ctx.Done():
		return "", &DeliveryError{Op: "await", Err: ctx.Err()}
	}
}

func (c *Client) connect(ctx context.Context) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", c.cfg.Host, c.cfg.Port)).
		SetClientID(fmt.Sprintf("%s-%s", c.cfg.ClientID, uuid.NewString()[:8])).
		SetConnectTimeout(c.cfg.Timeout).
		SetKeepAlive(60 * time.Second)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	client := c.newClient(opts)
	if err := c.wait(ctx, client.Connect()); err != nil {
		return nil, &DeliveryError{Op: "connect", Err: err}
	}
	return client, nil
}

func (c *Client) wait(ctx context.Context, token paho.Token) error {
	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", c.cfg.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
