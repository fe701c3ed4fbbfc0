package thingspeak

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a delivery failure.
type Kind int

const (
	KindOther Kind = iota
	KindUnreachable
	KindRejected
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindMalformedResponse:
		return "malformed response"
	default:
		return "other"
	}
}

// DeliveryError is returned for any failed update, carrying the failure
// classification so the caller can log it without string matching.
type DeliveryError struct {
	Kind Kind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("thingspeak delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Config holds the settings for a Client.
type Config struct {
	// BaseURL is the channel update endpoint, e.g. https://api.thingspeak.com/update.
	BaseURL string
	// APIKey is the channel write key. Optional when BaseURL already carries it.
	APIKey string
	// Timeout bounds one update request. Defaults to 10 seconds.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client posts channel updates to the ThingSpeak HTTP API. One update carries
// the whole batch as positional field parameters.
type Client struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a new client using the given config.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: u,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}, nil
}

// Update sends one channel update with the given values mapped positionally
// to field1..fieldN. Value ordering must match the configured channel order.
func (c *Client) Update(ctx context.Context, values []string) error {
	params := make(url.Values, len(values)+1)
	for i, v := range values {
		params.Set(fmt.Sprintf("field%d", i+1), v)
	}
	return c.get(ctx, params)
}

// Notify sends a single named field update, used for event-style triggers
// such as motion detection.
func (c *Client) Notify(ctx context.Context, field, value string) error {
	params := url.Values{}
	params.Set(field, value)
	return c.get(ctx, params)
}

func (c *Client) get(ctx context.Context, params url.Values) error {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	u := *c.baseURL
	if q := u.Query(); len(q) > 0 {
		for k, vs := range params {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	} else {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &DeliveryError{Kind: KindOther, Err: err}
	}
	res, err := c.client.Do(req)
	if err != nil {
		return &DeliveryError{Kind: KindUnreachable, Err: err}
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1024))
	if err != nil {
		return &DeliveryError{Kind: KindMalformedResponse, Err: err}
	}
	if res.StatusCode >= 400 {
		return &DeliveryError{
			Kind: KindRejected,
			Err:  fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	// the update endpoint answers the new entry ID as plain text, 0 on rejection
	entry, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return &DeliveryError{
			Kind: KindMalformedResponse,
			Err:  fmt.Errorf("unexpected response body %q", strings.TrimSpace(string(body))),
		}
	}
	if entry == 0 {
		return &DeliveryError{Kind: KindRejected, Err: fmt.Errorf("update rejected by remote")}
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "Update accepted", slog.Int("entry", entry))
	return nil
}
