package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/events"
	"github.com/alfredjeanlab/kgview/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [topic]",
	Short: "Print explorer events as they happen",
	Long: `Subscribe to explorer events on NATS (KGV_NATS_URL) and print them.
The topic may use NATS wildcards; the default is every explorer event.`,
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATSURL == "" {
			return fmt.Errorf("KGV_NATS_URL is not set")
		}
		topic := firstArg(args)
		if topic == "" {
			topic = events.AllTopics
		}

		sub, err := events.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()

		fmt.Fprintf(os.Stderr, "Watching %s on %s\n", ui.RenderAccent(topic), cfg.NATSURL)
		ctx := cmd.Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				if jsonOutput {
					fmt.Printf("{\"topic\":%q,\"data\":%s}\n", msg.Topic, msg.Data)
					continue
				}
				line := string(msg.Data)
				if event, err := msg.Decode(); err == nil {
					line = events.Summary(event)
				} else {
					logger.Debug("undecoded event", zap.String("topic", msg.Topic), zap.Error(err))
				}
				fmt.Printf("%s %s %s\n",
					ui.RenderMuted(time.Now().Format("15:04:05")),
					ui.RenderCommand(msg.Topic),
					line)
			}
		}
	},
}
