package poller

import (
	"context"

	"github.com/mjarco/homemon/pkg/mqtt"
	"github.com/mjarco/homemon/pkg/sensor"
)

// Updater is the slice of the ThingSpeak client the sink needs.
type Updater interface {
	Update(ctx context.Context, values []string) error
}

// ThingSpeakSink delivers a batch as one channel update with two positional
// fields per channel, temperature then humidity, in channel order. Failed
// readings keep their positions as the NaN sentinel so field indices never
// shift.
type ThingSpeakSink struct {
	Client Updater
}

func (s *ThingSpeakSink) Name() string {
	return "thingspeak"
}

func (s *ThingSpeakSink) Deliver(ctx context.Context, batch sensor.Batch) error {
	values := make([]string, 0, len(batch)*2)
	for _, r := range batch {
		values = append(values, sensor.FormatValue(r.Temperature), sensor.FormatValue(r.Humidity))
	}
	return s.Client.Update(ctx, values)
}

// Publisher is the slice of the broker client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, msgs []mqtt.Message) error
}

// BrokerSink delivers a batch as retained messages, one per mapped topic.
// Channels without a topic for a value are skipped; failed readings still
// publish the sentinel so subscribers see that the last value is stale.
type BrokerSink struct {
	Client Publisher
}

func (s *BrokerSink) Name() string {
	return "broker"
}

func (s *BrokerSink) Deliver(ctx context.Context, batch sensor.Batch) error {
	msgs := make([]mqtt.Message, 0, len(batch)*2)
	for _, r := range batch {
		if topic := r.Channel.TemperatureTopic; topic != "" {
			msgs = append(msgs, mqtt.Message{
				Topic:   topic,
				Payload: sensor.FormatValue(r.Temperature),
				Retain:  true,
			})
		}
		if topic := r.Channel.HumidityTopic; topic != "" {
			msgs = append(msgs, mqtt.Message{
				Topic:   topic,
				Payload: sensor.FormatValue(r.Humidity),
				Retain:  true,
			})
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return s.Client.Publish(ctx, msgs)
}
