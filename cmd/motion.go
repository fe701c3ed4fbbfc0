package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mjarco/homemon/internal/motion"
	"github.com/mjarco/homemon/pkg/gpio"
	"github.com/mjarco/homemon/pkg/mprofi"
	"github.com/mjarco/homemon/pkg/mqtt"
	"github.com/mjarco/homemon/pkg/thingspeak"
)

var motionCmd = &cobra.Command{
	Use:          "motion",
	Short:        "Watch a PIR sensor pin and raise notifications on movement",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		pin, err := gpio.Open(viper.GetInt("motion.pin"))
		if err != nil {
			return err
		}
		defer pin.Close()
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
		var sender motion.Sender
		if token := viper.GetString("sms.token"); token != "" {
			sms, err := mprofi.New(mprofi.Config{
				BaseURL: viper.GetString("sms.url"),
				Token:   token,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			sender = sms
		} else {
			logger.Info("No SMS token configured, alerts will be logged only")
		}
		w, err := motion.New(motion.Config{
			Attempts:     viper.GetInt("motion.attempts"),
			PollInterval: viper.GetDuration("motion.poll_interval"),
			AwaitTimeout: viper.GetDuration("motion.await_timeout"),
			Field:        viper.GetString("motion.field"),
			Topic:        viper.GetString("motion.topic"),
			Recipient:    viper.GetString("sms.recipient"),
			Message:      viper.GetString("sms.message"),
			Reference:    viper.GetString("sms.reference"),
			Policy: motion.AlertPolicy{
				TriggerPayload:  viper.GetString("alert.trigger_payload"),
				SuppressPayload: viper.GetString("alert.suppress_payload"),
				NightStart:      viper.GetInt("alert.night_start"),
				NightEnd:        viper.GetInt("alert.night_end"),
			},
			Logger: logger,
		}, pin, ts, broker, sender)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		detected, err := w.Watch(ctx)
		if err != nil {
			return err
		}
		if !detected {
			logger.LogAttrs(ctx, slog.LevelInfo, "No motion within the watch window")
		}
		return nil
	},
}

func init() {
	motionCmd.Flags().Int("motion.pin", 0, "BCM pin number of the PIR sensor")
	motionCmd.Flags().Int("motion.attempts", 0, "number of pin polls before giving up")
	motionCmd.Flags().Duration("motion.poll_interval", 0, "pause between pin polls")
	motionCmd.Flags().Duration("motion.await_timeout", 0, "wait for the broker alert mode")
	motionCmd.Flags().String("motion.field", "", "ThingSpeak field updated on detection")
	motionCmd.Flags().String("motion.topic", "", "broker topic holding the alert mode")
	motionCmd.Flags().String("thingspeak.url", "", "ThingSpeak update URL")
	motionCmd.Flags().String("thingspeak.api_key", "", "ThingSpeak write API key")
	motionCmd.Flags().Duration("thingspeak.timeout", 0, "ThingSpeak request timeout")
	motionCmd.Flags().String("mqtt.host", "", "MQTT broker host")
	motionCmd.Flags().Int("mqtt.port", 0, "MQTT broker port")
	motionCmd.Flags().String("mqtt.username", "", "MQTT username")
	motionCmd.Flags().String("mqtt.password", "", "MQTT password")
	motionCmd.Flags().String("mqtt.client_id", "", "MQTT client ID prefix")
	motionCmd.Flags().Duration("mqtt.timeout", 0, "MQTT operation timeout")
	motionCmd.Flags().String("sms.token", "", "mprofi API token")
	motionCmd.Flags().String("sms.url", "", "mprofi API base URL")
	motionCmd.Flags().String("sms.recipient", "", "SMS alert recipient")
	motionCmd.Flags().String("sms.message", "", "SMS alert text")
	motionCmd.Flags().String("sms.reference", "", "SMS batch reference")
	motionCmd.Flags().Int("alert.night_start", 0, "night window start hour")
	motionCmd.Flags().Int("alert.night_end", 0, "night window end hour")
	motionCmd.Flags().String("alert.trigger_payload", "", "payload that always alerts")
	motionCmd.Flags().String("alert.suppress_payload", "", "payload that never alerts")

	viper.SetDefault("motion.attempts", 120)
	viper.SetDefault("motion.poll_interval", "1s")
	viper.SetDefault("motion.await_timeout", "30s")
	viper.SetDefault("motion.field", "field1")
	viper.SetDefault("sms.message", "Motion detected at home")
	viper.SetDefault("alert.night_start", motion.DefaultPolicy.NightStart)
	viper.SetDefault("alert.night_end", motion.DefaultPolicy.NightEnd)
	viper.SetDefault("alert.trigger_payload", motion.DefaultPolicy.TriggerPayload)
	viper.SetDefault("alert.suppress_payload", motion.DefaultPolicy.SuppressPayload)

	rootCmd.AddCommand(motionCmd)
}
