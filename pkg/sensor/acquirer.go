package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// ErrReadFailed marks a reading whose acquisition exhausted all retries.
var ErrReadFailed = errors.New("sensor read failed")

// DefaultRetries is the number of read attempts per channel per cycle. The
// DHT22 one-wire protocol regularly fails its checksum, so a handful of
// attempts is needed for a reliable value.
const DefaultRetries = 10

// Acquirer reads configured channels through a RawReader, retrying transient
// failures. It never returns an error for a single bad channel: exhausted
// retries yield a sentinel Reading instead.
type Acquirer struct {
	reader  RawReader
	retries int
	logger  *slog.Logger
}

// NewAcquirer creates an Acquirer on top of the given reader. A non-positive
// retries falls back to DefaultRetries.
func NewAcquirer(reader RawReader, retries int, logger *slog.Logger) *Acquirer {
	if retries <= 0 {
		retries = DefaultRetries
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Acquirer{
		reader:  reader,
		retries: retries,
		logger:  logger,
	}
}

// Acquire reads one channel, retrying up to the configured attempt count.
// Values are rounded to one decimal before being handed downstream.
func (a *Acquirer) Acquire(ctx context.Context, ch Channel) Reading {
	var lastErr error
	for attempt := 1; attempt <= a.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		t, h, err := a.reader.Read(ctx, ch.Pin)
		if err != nil {
			lastErr = err
			a.logger.LogAttrs(ctx, slog.LevelDebug, "Sensor read attempt failed",
				slog.String("channel", ch.Name),
				slog.Int("pin", ch.Pin),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			continue
		}
		return Reading{
			Channel:     ch,
			Temperature: round1(t),
			Humidity:    round1(h),
		}
	}
	a.logger.LogAttrs(ctx, slog.LevelWarn, "Sensor read failed",
		slog.String("channel", ch.Name),
		slog.Int("pin", ch.Pin),
		slog.Int("attempts", a.retries),
		slog.Any("error", lastErr))
	return Reading{
		Channel:     ch,
		Temperature: math.NaN(),
		Humidity:    math.NaN(),
		Err:         fmt.Errorf("%w: channel %s: %v", ErrReadFailed, ch.Name, lastErr),
	}
}

// AcquireAll reads every channel sequentially and independently. The returned
// batch always has exactly one reading per channel, in the given order; a
// failed channel never prevents acquisition of the remaining ones.
func (a *Acquirer) AcquireAll(ctx context.Context, channels []Channel) Batch {
	batch := make(Batch, 0, len(channels))
	for _, ch := range channels {
		batch = append(batch, a.Acquire(ctx, ch))
	}
	return batch
}
