// Package dht reads DHT22 temperature/humidity sensors over their one-wire
// GPIO protocol.
package dht

import (
	"context"

	godht "github.com/d2r2/go-dht"
)

// Reader reads one sensor value per call from a DHT-family sensor attached to
// a GPIO pin. It performs exactly one protocol exchange per Read; checksum
// retries belong to the caller.
type Reader struct {
	sensorType godht.SensorType
}

// NewReader creates a reader for DHT22 sensors.
func NewReader() *Reader {
	return &Reader{sensorType: godht.DHT22}
}

func (r *Reader) Read(_ context.Context, pin int) (float64, float64, error) {
	temperature, humidity, err := godht.ReadDHTxx(r.sensorType, pin, false)
	if err != nil {
		return 0, 0, err
	}
	return float64(temperature), float64(humidity), nil
}
