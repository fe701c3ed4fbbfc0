// Package mprofi is a client for the mprofi.pl bulk-SMS REST API.
package mprofi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an API failure.
type Kind int

const (
	KindConnection Kind = iota
	KindAuth
	KindNotFound
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	default:
		return "malformed response"
	}
}

// APIError is returned for any failed API call.
type APIError struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("mprofi API error (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("mprofi API error (%s): %v", e.Kind, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrEmptyQueue is returned by Send when no messages have been queued.
var ErrEmptyQueue = errors.New("no messages queued")

// Message is one SMS to deliver.
type Message struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// SentMessage is a queued message together with the ID assigned by the API.
type SentMessage struct {
	Message
	ID int `json:"id"`
}

// MessageStatus is the delivery state of one sent message.
type MessageStatus struct {
	ID        int     `json:"id"`
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
	Timestamp *string `json:"ts"`
}

// Config holds the settings for a Client.
type Config struct {
	// BaseURL defaults to the public API, https://api.mprofi.pl.
	BaseURL string
	// APIVersion defaults to "1.0".
	APIVersion string
	// Token is the account API token from the mprofi panel.
	Token string
	// Timeout bounds one API call. Defaults to 10 seconds.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client queues messages and sends them in one API call, choosing the single
// or bulk endpoint by queue size. It is meant for single-threaded use; it is
// not safe for concurrent calls.
type Client struct {
	baseURL    string
	apiVersion string
	token      string
	client     *http.Client
	logger     *slog.Logger

	queue []Message
	sent  []SentMessage
}

// New creates a new client using the given config.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("API token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mprofi.pl"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		token:      cfg.Token,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}, nil
}

// Add queues one message for the next Send.
func (c *Client) Add(recipient, message string) error {
	if recipient == "" {
		return fmt.Errorf("recipient must not be empty")
	}
	if message == "" {
		return fmt.Errorf("message must not be empty")
	}
	c.queue = append(c.queue, Message{Recipient: recipient, Message: message})
	return nil
}

// Send delivers every queued message in one API call and returns the queued
// messages with their assigned IDs. One queued message goes to the send
// endpoint, several to sendbulk. The reference string is stored by the API to
// mark the batch; when empty a random one is generated.
func (c *Client) Send(ctx context.Context, reference string) ([]SentMessage, error) {
	if len(c.queue) == 0 {
		return nil, ErrEmptyQueue
	}
	if reference == "" {
		reference = uuid.NewString()
	}
	var (
		endpoint string
		payload  any
	)
	if len(c.queue) == 1 {
		endpoint = "send"
		payload = struct {
			Message
			Reference string `json:"reference"`
		}{Message: c.queue[0], Reference: reference}
	} else {
		endpoint = "sendbulk"
		payload = struct {
			Messages  []Message `json:"messages"`
			Reference string    `json:"reference"`
		}{Messages: c.queue, Reference: reference}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)
	res, err := c.client.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindConnection, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, &APIError{
			Kind:   KindAuth,
			Status: res.StatusCode,
			Err:    fmt.Errorf("endpoint %s rejected the request; is the token active?", endpoint),
		}
	}
	ids, err := decodeIDs(res.Body, len(c.queue))
	if err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Err: err}
	}
	sent := make([]SentMessage, len(c.queue))
	for i, m := range c.queue {
		sent[i] = SentMessage{Message: m, ID: ids[i]}
	}
	c.sent = sent
	c.queue = nil
	c.logger.LogAttrs(ctx, slog.LevelInfo, "Messages sent",
		slog.Int("count", len(sent)),
		slog.String("reference", reference))
	return sent, nil
}

// Status fetches the delivery state of the given message IDs, or of every
// message from the last Send when no IDs are given.
func (c *Client) Status(ctx context.Context, ids ...int) ([]MessageStatus, error) {
	if len(ids) == 0 {
		for _, m := range c.sent {
			ids = append(ids, m.ID)
		}
	}
	statuses := make([]MessageStatus, 0, len(ids))
	for _, id := range ids {
		s, err := c.status(ctx, id)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func (c *Client) status(ctx context.Context, id int) (MessageStatus, error) {
	u := c.endpoint("status") + "?" + url.Values{"id": []string{strconv.Itoa(id)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return MessageStatus{}, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	res, err := c.client.Do(req)
	if err != nil {
		return MessageStatus{}, &APIError{Kind: KindConnection, Err: err}
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		return MessageStatus{}, &APIError{
			Kind:   KindNotFound,
			Status: res.StatusCode,
			Err:    fmt.Errorf("no message with ID %d", id),
		}
	case res.StatusCode >= 400:
		return MessageStatus{}, &APIError{
			Kind:   KindAuth,
			Status: res.StatusCode,
			Err:    fmt.Errorf("status request rejected; is the token active?"),
		}
	}
	var s MessageStatus
	if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
		return MessageStatus{}, &APIError{Kind: KindMalformedResponse, Err: err}
	}
	return s, nil
}

func (c *Client) endpoint(name string) string {
	return fmt.Sprintf("%s/%s/%s/", c.baseURL, c.apiVersion, name)
}

// decodeIDs reads the assigned message IDs from a send or sendbulk response.
// The send endpoint answers {"id": N}, sendbulk {"result": [{"id": N}, ...]}.
func decodeIDs(r io.Reader, count int) ([]int, error) {
	if count == 1 {
		var res struct {
			ID *int `json:"id"`
		}
		if err := json.NewDecoder(r).Decode(&res); err != nil {
			return nil, err
		}
		if res.ID == nil {
			return nil, fmt.Errorf("response carries no message ID")
		}
		return []int{*res.ID}, nil
	}
	var res struct {
		Result []struct {
			ID int `json:"id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, err
	}
	if len(res.Result) != count {
		return nil, fmt.Errorf("expected %d message IDs, got %d", count, len(res.Result))
	}
	ids := make([]int, count)
	for i, r := range res.Result {
		ids[i] = r.ID
	}
	return ids, nil
}
