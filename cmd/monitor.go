package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mjarco/homemon/internal/poller"
	"github.com/mjarco/homemon/pkg/dht"
	"github.com/mjarco/homemon/pkg/mqtt"
	"github.com/mjarco/homemon/pkg/sensor"
	"github.com/mjarco/homemon/pkg/thingspeak"
)

var monitorCmd = &cobra.Command{
	Use:          "monitor",
	Short:        "Poll DHT22 sensors and forward readings to ThingSpeak and MQTT",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// both subcommands carry flags for the shared keys, so bind at
		// invocation time rather than in init
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		var channels []sensor.Channel
		if err := viper.UnmarshalKey("channels", &channels); err != nil {
			return fmt.Errorf("invalid channel configuration: %w", err)
		}
		if len(channels) == 0 {
			return fmt.Errorf("at least one channel must be configured")
		}
		logger.LogAttrs(
			nil,
			slog.LevelInfo,
			"Configured channels",
			slog.Int("count", len(channels)),
			slog.Any("channels", channelNames(channels)),
		)
		ts, err := thingspeak.New(thingspeak.Config{
			BaseURL: viper.GetString("thingspeak.url"),
			APIKey:  viper.GetString("thingspeak.api_key"),
			Timeout: viper.GetDuration("thingspeak.timeout"),
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		broker, err := mqtt.New(mqtt.Config{
			Host:     viper.GetString("mqtt.host"),
			Port:     viper.GetInt("mqtt.port"),
			Username: viper.GetString("mqtt.username"),
			Password: viper.GetString("mqtt.password"),
			ClientID: viper.GetString("mqtt.client_id"),
			Timeout:  viper.GetDuration("mqtt.timeout"),
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		acquirer := sensor.NewAcquirer(dht.NewReader(), viper.GetInt("sensor.retries"), logger)
		p, err := poller.New(poller.Config{
			Channels:   channels,
			Interval:   viper.GetDuration("interval"),
			RetryPause: viper.GetDuration("retry_pause"),
			Logger:     logger,
		},
			acquirer,
			poller.IntervalScheduler{},
			&poller.ThingSpeakSink{Client: ts},
			&poller.BrokerSink{Client: broker},
		)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func channelNames(channels []sensor.Channel) []string {
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name
	}
	return names
}

func init() {
	monitorCmd.Flags().Duration("interval", 0, "pause between poll cycles")
	monitorCmd.Flags().Duration("retry_pause", 0, "pause after a failed cycle")
	monitorCmd.Flags().Int("sensor.retries", 0, "read attempts per channel per cycle")
	monitorCmd.Flags().String("thingspeak.url", "", "ThingSpeak update URL")
	monitorCmd.Flags().String("thingspeak.api_key", "", "ThingSpeak write API key")
	monitorCmd.Flags().Duration("thingspeak.timeout", 0, "ThingSpeak request timeout")
	monitorCmd.Flags().String("mqtt.host", "", "MQTT broker host")
	monitorCmd.Flags().Int("mqtt.port", 0, "MQTT broker port")
	monitorCmd.Flags().String("mqtt.username", "", "MQTT username")
	monitorCmd.Flags().String("mqtt.password", "", "MQTT password")
	monitorCmd.Flags().String("mqtt.client_id", "", "MQTT client ID prefix")
	monitorCmd.Flags().Duration("mqtt.timeout", 0, "MQTT operation timeout")

	viper.SetDefault("interval", "600s")
	viper.SetDefault("retry_pause", "10s")
	viper.SetDefault("sensor.retries", sensor.DefaultRetries)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.client_id", "homemon")

	rootCmd.AddCommand(monitorCmd)
}
