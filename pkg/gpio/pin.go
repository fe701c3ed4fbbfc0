// Package gpio exposes digital input pins behind a small interface so that
// the rest of the daemon never touches memory-mapped hardware directly.
package gpio

import (
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// InputPin is one digital input.
type InputPin interface {
	// Read reports whether the pin is high.
	Read() (bool, error)
}

// Pin is an InputPin backed by the BCM2835 GPIO range.
type Pin struct {
	pin rpio.Pin
}

// Open maps the GPIO memory range and configures the given BCM pin as input.
// Call Close when done.
func Open(pin int) (*Pin, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("opening GPIO memory range: %w", err)
	}
	p := rpio.Pin(pin)
	p.Input()
	return &Pin{pin: p}, nil
}

func (p *Pin) Read() (bool, error) {
	return p.pin.Read() == rpio.High, nil
}

// Close unmaps the GPIO memory range.
func (p *Pin) Close() error {
	return rpio.Close()
}
