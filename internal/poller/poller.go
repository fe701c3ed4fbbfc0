// Package poller drives the periodic acquire/format/deliver cycle.
package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mjarco/homemon/pkg/sensor"
)

// Sink is one delivery target with its own failure domain. A failing sink
// never prevents delivery to the sinks after it.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, batch sensor.Batch) error
}

// Acquirer produces one batch of readings per cycle.
type Acquirer interface {
	AcquireAll(ctx context.Context, channels []sensor.Channel) sensor.Batch
}

// Config holds the settings for a Poller.
type Config struct {
	// Channels to read each cycle, in delivery order.
	Channels []sensor.Channel
	// Interval between cycles. Defaults to 600 seconds.
	Interval time.Duration
	// RetryPause is the shortened pause after a cycle that failed
	// unexpectedly. Defaults to 10 seconds.
	RetryPause time.Duration
	Logger     *slog.Logger
}

// Poller runs the delivery loop: acquire every channel, deliver the batch to
// each sink in order, wait, repeat. Per-sink failures and unexpected cycle
// errors are logged and never end the loop; only ctx cancellation does.
type Poller struct {
	channels   []sensor.Channel
	interval   time.Duration
	retryPause time.Duration
	acquirer   Acquirer
	sinks      []Sink
	scheduler  Scheduler
	logger     *slog.Logger
}

// New creates a poller using the given config.
func New(cfg Config, acquirer Acquirer, scheduler Scheduler, sinks ...Sink) (*Poller, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}
	if acquirer == nil {
		return nil, fmt.Errorf("acquirer is required")
	}
	if scheduler == nil {
		scheduler = IntervalScheduler{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 600 * time.Second
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		channels:   cfg.Channels,
		interval:   cfg.Interval,
		retryPause: cfg.RetryPause,
		acquirer:   acquirer,
		sinks:      sinks,
		scheduler:  scheduler,
		logger:     cfg.Logger,
	}, nil
}

// Run executes cycles until ctx is done and returns ctx's error.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.LogAttrs(ctx, slog.LevelInfo, "Starting delivery loop",
		slog.Int("channels", len(p.channels)),
		slog.Int("sinks", len(p.sinks)),
		slog.Duration("interval", p.interval))
	for {
		pause := p.interval
		if err := p.cycle(ctx); err != nil {
			p.logger.LogAttrs(ctx, slog.LevelError, "Cycle failed", slog.Any("error", err))
			pause = p.retryPause
		}
		if err := p.scheduler.Wait(ctx, pause); err != nil {
			p.logger.LogAttrs(ctx, slog.LevelInfo, "Delivery loop stopped", slog.Any("cause", err))
			return err
		}
	}
}

// cycle runs one acquire/deliver pass. Sink errors are contained here; the
// returned error covers only unexpected failures, including recovered panics.
func (p *Poller) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	batch := p.acquirer.AcquireAll(ctx, p.channels)
	for _, r := range batch {
		if !r.Valid() {
			continue
		}
		p.logger.LogAttrs(ctx, slog.LevelDebug, "Acquired reading",
			slog.String("channel", r.Channel.Name),
			slog.Float64("temperature", r.Temperature),
			slog.Float64("humidity", r.Humidity))
	}
	for _, s := range p.sinks {
		if err := s.Deliver(ctx, batch); err != nil {
			p.logger.LogAttrs(ctx, slog.LevelError, "Delivery failed",
				slog.String("sink", s.Name()),
				slog.Any("error", err))
		}
	}
	return nil
}
