// Package motion watches a PIR sensor pin and raises notifications when
// movement is detected.
package motion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mjarco/homemon/pkg/gpio"
	"github.com/mjarco/homemon/pkg/mprofi"
)

// Notifier posts a single-field event to the logging endpoint.
type Notifier interface {
	Notify(ctx context.Context, field, value string) error
}

// Asker retrieves the current (retained) payload of a broker topic.
type Asker interface {
	Await(ctx context.Context, topic string) (string, error)
}

// Sender queues and sends SMS messages.
type Sender interface {
	Add(recipient, message string) error
	Send(ctx context.Context, reference string) ([]mprofi.SentMessage, error)
}

// Config holds the settings for a Watcher.
type Config struct {
	// Attempts is how many times the pin is polled before giving up.
	// Defaults to 120.
	Attempts int
	// PollInterval is the pause between polls. Defaults to 1 second.
	PollInterval time.Duration
	// AwaitTimeout bounds the wait for the broker payload after a detection.
	// Defaults to 30 seconds.
	AwaitTimeout time.Duration
	// Field is the logging-endpoint field updated on detection.
	Field string
	// Topic is the broker topic holding the alert mode payload.
	Topic string
	// Recipient, Message and Reference describe the SMS to send when the
	// policy fires.
	Recipient string
	Message   string
	Reference string
	Policy    AlertPolicy
	Logger    *slog.Logger
}

// Watcher polls a digital input pin and, on a high read, notifies the logging
// endpoint, consults the broker-held alert mode and conditionally sends an
// SMS. Notification failures are logged, never fatal: a detection is still a
// detection when a downstream collaborator is down.
type Watcher struct {
	cfg      Config
	pin      gpio.InputPin
	notifier Notifier
	asker    Asker
	sender   Sender
	logger   *slog.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// New creates a watcher using the given config.
func New(cfg Config, pin gpio.InputPin, notifier Notifier, asker Asker, sender Sender) (*Watcher, error) {
	if pin == nil {
		return nil, fmt.Errorf("input pin is required")
	}
	if cfg.Field == "" {
		return nil, fmt.Errorf("notification field is required")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 120
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{
		cfg:      cfg,
		pin:      pin,
		notifier: notifier,
		asker:    asker,
		sender:   sender,
		logger:   cfg.Logger,
		now:      time.Now,
		wait:     sleep,
	}, nil
}

// Watch polls the pin once per interval for the configured number of attempts
// and reports whether motion was detected. It returns an error only when ctx
// is cancelled or every pin read failed.
func (w *Watcher) Watch(ctx context.Context) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < w.cfg.Attempts; attempt++ {
		if attempt > 0 {
			if err := w.wait(ctx, w.cfg.PollInterval); err != nil {
				return false, err
			}
		}
		high, err := w.pin.Read()
		if err != nil {
			lastErr = err
			w.logger.LogAttrs(ctx, slog.LevelWarn, "Pin read failed", slog.Any("error", err))
			continue
		}
		lastErr = nil
		if !high {
			continue
		}
		w.logger.LogAttrs(ctx, slog.LevelInfo, "Motion detected", slog.Int("attempt", attempt+1))
		w.handle(ctx)
		return true, nil
	}
	if lastErr != nil {
		return false, fmt.Errorf("reading motion pin: %w", lastErr)
	}
	return false, nil
}

func (w *Watcher) handle(ctx context.Context) {
	if err := w.notifier.Notify(ctx, w.cfg.Field, "1"); err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "Motion notification failed", slog.Any("error", err))
	}
	if w.asker == nil || w.cfg.Topic == "" {
		return
	}
	awaitCtx, cancel := context.WithTimeout(ctx, w.cfg.AwaitTimeout)
	defer cancel()
	payload, err := w.asker.Await(awaitCtx, w.cfg.Topic)
	if err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "No alert mode from broker, skipping SMS", slog.Any("error", err))
		return
	}
	if !w.cfg.Policy.ShouldAlert(payload, w.now()) {
		w.logger.LogAttrs(ctx, slog.LevelInfo, "Alert suppressed by policy", slog.String("payload", payload))
		return
	}
	if w.sender == nil {
		w.logger.LogAttrs(ctx, slog.LevelWarn, "Alert wanted but no SMS sender configured")
		return
	}
	if err := w.sendAlert(ctx); err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "SMS alert failed", slog.Any("error", err))
		return
	}
	w.logger.LogAttrs(ctx, slog.LevelInfo, "SMS alert sent", slog.String("recipient", w.cfg.Recipient))
}

func (w *Watcher) sendAlert(ctx context.Context) error {
	if err := w.sender.Add(w.cfg.Recipient, w.cfg.Message); err != nil {
		return err
	}
	_, err := w.sender.Send(ctx, w.cfg.Reference)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
