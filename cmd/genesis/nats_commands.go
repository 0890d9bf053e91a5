package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	natspkg "github.com/brojonat/genesis/service/nats"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand tails session or transaction events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to session events or settled transactions",
		ArgsUsage: "[session_id]",
		Description: `Subscribe to events published to NATS JetStream.

With a session id, streams that session's events (subject sessions.{id}).
With --address, streams settled transactions sent from that address
(subject txns.{address}). With neither, streams every session's events.

Example:
  genesis nats subscribe --address 0.0.123456 --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Stream settled transactions for this address",
			},
			&cli.BoolFlag{
				Name:  "replay",
				Usage: "Deliver all retained messages, not just new ones",
			},
			&cli.StringFlag{
				Name:  "durable",
				Usage: "Durable consumer name (survives restarts)",
			},
		},
		Action: func(c *cli.Context) error {
			subject := "sessions.*"
			switch {
			case c.String("address") != "":
				subject = natspkg.TransactionSubject(c.String("address"))
			case c.NArg() == 1:
				subject = natspkg.SessionSubject(c.Args().First())
			}

			nc, err := natspkg.Connect(c.String("nats-url"), "genesis-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(c.App.ErrWriter, "Subscribed to %s (Ctrl+C to stop)\n\n", subject)
			}

			return natspkg.Subscribe(ctx, js, natspkg.SubscribeOptions{
				Subject: subject,
				Durable: c.String("durable"),
				Replay:  c.Bool("replay"),
			}, func(msg jetstream.Msg) error {
				if jsonOutput {
					fmt.Fprintln(c.App.Writer, string(msg.Data()))
					return nil
				}
				return printNATSMessage(c, msg)
			})
		},
	}
}

func printNATSMessage(c *cli.Context, msg jetstream.Msg) error {
	out := c.App.Writer

	var probe struct {
		RecordID string `json:"record_id"`
	}
	if err := json.Unmarshal(msg.Data(), &probe); err != nil {
		// Malformed messages are acked and skipped.
		fmt.Fprintf(c.App.ErrWriter, "skipping malformed message on %s: %v\n", msg.Subject(), err)
		return nil
	}

	if probe.RecordID != "" {
		var ev natspkg.TransactionEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			return nil
		}
		fmt.Fprintf(out, "[%s] %s %g %s %s -> %s (%s)\n",
			ev.Network, ev.Status, ev.Amount, ev.Currency, ev.FromAddress, ev.ToAddress, ev.Hash)
		return nil
	}

	var ev natspkg.SessionEvent
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		return nil
	}
	fmt.Fprintf(out, "[%s #%d] %s %s -> %s balance=%g\n",
		ev.SessionID, ev.Seq, ev.Kind, ev.From, ev.To, ev.Balance)
	return nil
}
