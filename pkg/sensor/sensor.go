package sensor

import (
	"context"
	"math"
	"strconv"
)

// Channel is one configured physical sensor input mapped to a logical name.
// Channels are defined at startup and never change for the lifetime of the
// process.
type Channel struct {
	Pin              int    `mapstructure:"pin"`
	Name             string `mapstructure:"name"`
	TemperatureTopic string `mapstructure:"temperature_topic"`
	HumidityTopic    string `mapstructure:"humidity_topic"`
}

// Reading is the result of one acquisition attempt on one channel. A failed
// acquisition carries NaN values and a non-nil Err so that downstream
// consumers always have a value for every channel position.
type Reading struct {
	Channel     Channel
	Temperature float64
	Humidity    float64
	Err         error
}

// Valid reports whether the reading holds actual sensor values.
func (r Reading) Valid() bool {
	return r.Err == nil
}

// Batch is the complete set of readings for one poll cycle, exactly one per
// configured channel, in configuration order.
type Batch []Reading

// RawReader reads one sensor channel once. Implementations do not retry;
// transient read failures are handled by Acquirer.
type RawReader interface {
	Read(ctx context.Context, pin int) (temperature, humidity float64, err error)
}

// FormatValue renders a value in the fixed one-decimal notation used in
// outbound payloads. NaN (the failed-acquisition sentinel) renders as "NaN".
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
