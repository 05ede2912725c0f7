package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pixellocker/internal/platform/kafka/consumer"
	"pixellocker/pkg/platform/outbox/worker"
)

// tailedEvent is one ledger event as printed by events tail.
type tailedEvent struct {
	Topic     string            `json:"topic"`
	Partition int32             `json:"partition"`
	Offset    int64             `json:"offset"`
	Key       string            `json:"key"`
	Headers   map[string]string `json:"headers,omitempty"`
	Event     json.RawMessage   `json:"event"`
}

func eventsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Ledger event stream utilities",
	}

	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print ledger events from Kafka as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			brokers := v.GetString("brokers")
			if brokers == "" {
				return fmt.Errorf("--brokers (PIXELLOCKER_BROKERS) is required")
			}
			limit := v.GetInt64("limit")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			out := cmd.OutOrStdout()
			var seen atomic.Int64
			handler := consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
				ev := tailedEvent{
					Topic:     msg.Topic,
					Partition: msg.Partition,
					Offset:    msg.Offset,
					Key:       string(msg.Key),
					Headers:   msg.Headers,
					Event:     msg.Value,
				}
				if !json.Valid(ev.Event) {
					ev.Event, _ = json.Marshal(string(msg.Value))
				}
				if err := printJSON(out, ev); err != nil {
					return err
				}
				if limit > 0 && seen.Add(1) >= limit {
					cancel()
				}
				return nil
			})

			c, err := consumer.New(consumer.Config{
				Brokers:   brokers,
				GroupID:   v.GetString("group"),
				Topics:    []string{v.GetString("topic")},
				FromStart: v.GetBool("from-start"),
			}, handler, slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)))
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	tail.Flags().String("brokers", "", "comma-separated Kafka seed brokers")
	tail.Flags().String("topic", worker.DefaultTopic, "ledger events topic")
	tail.Flags().String("group", "lockerctl-tail", "consumer group id")
	tail.Flags().Bool("from-start", false, "start from the earliest offset when the group has no commits")
	tail.Flags().Int64("limit", 0, "stop after this many events (0 = until interrupted)")

	cmd.AddCommand(tail)
	return cmd
}
