package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/brojonat/genesis/client"
	"github.com/brojonat/genesis/service/session"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func sessionCommands() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Manage wallet sessions over the HTTP API",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a new disconnected session",
				Action: func(c *cli.Context) error {
					snap, err := newClient(c).CreateSession(c.Context)
					if err != nil {
						return fmt.Errorf("failed to create session: %w", err)
					}
					return printSnapshot(c, snap)
				},
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List session ids",
				Action: func(c *cli.Context) error {
					ids, err := newClient(c).ListSessions(c.Context)
					if err != nil {
						return fmt.Errorf("failed to list sessions: %w", err)
					}
					if c.Bool("json") {
						return outputJSON(c.App.Writer, ids)
					}
					for _, id := range ids {
						fmt.Fprintln(c.App.Writer, id)
					}
					fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d sessions\n", len(ids))
					return nil
				},
			},
			sessionAction("get", "Show a session", func(ctx context.Context, cl *client.Client, id string) (*session.Snapshot, error) {
				return cl.GetSession(ctx, id)
			}),
			sessionAction("connect", "Connect the session's wallet", func(ctx context.Context, cl *client.Client, id string) (*session.Snapshot, error) {
				return cl.Connect(ctx, id)
			}),
			sessionAction("disconnect", "Disconnect and reset the session", func(ctx context.Context, cl *client.Client, id string) (*session.Snapshot, error) {
				return cl.Disconnect(ctx, id)
			}),
			sessionAction("refresh", "Refresh the session's balance", func(ctx context.Context, cl *client.Client, id string) (*session.Snapshot, error) {
				return cl.RefreshBalance(ctx, id)
			}),
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Disconnect and remove a session",
				ArgsUsage: "SESSION_ID",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("session id is required")
					}
					id := c.Args().First()
					if err := newClient(c).DeleteSession(c.Context, id); err != nil {
						return fmt.Errorf("failed to delete session: %w", err)
					}
					fmt.Fprintf(c.App.ErrWriter, "✓ Session %s deleted\n", id)
					return nil
				},
			},
			sendCommand(),
			watchCommand(),
		},
	}
}

// sessionAction builds a command that takes a session id and prints the
// resulting snapshot.
func sessionAction(name, usage string, fn func(context.Context, *client.Client, string) (*session.Snapshot, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "SESSION_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("session id is required")
			}
			snap, err := fn(c.Context, newClient(c), c.Args().First())
			if err != nil {
				return fmt.Errorf("%s failed: %w", name, err)
			}
			return printSnapshot(c, snap)
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Transfer funds and wait for settlement",
		ArgsUsage: "SESSION_ID RECIPIENT AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("usage: genesis session send SESSION_ID RECIPIENT AMOUNT")
			}
			id, to := c.Args().Get(0), c.Args().Get(1)
			amount, err := strconv.ParseFloat(c.Args().Get(2), 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", c.Args().Get(2), err)
			}

			result, err := newClient(c).SendTransaction(c.Context, id, to, amount)
			if err != nil {
				return fmt.Errorf("transfer failed: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, result)
			}
			fmt.Fprintf(c.App.Writer, "✓ Transfer confirmed\n")
			fmt.Fprintf(c.App.Writer, "  Hash:    %s\n", result.Hash)
			fmt.Fprintf(c.App.Writer, "  Balance: %g %s\n", result.Session.Balance, result.Session.Currency)
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Follow a session's events",
		ArgsUsage: "SESSION_ID",
		Description: `Stream session events from the server. Each event is printed as one JSON
line. Use --jq to print only events for which every filter is truthy.

Example:
  genesis session watch --jq '.kind == "transaction_confirmed"' --count 1 3f0c...`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter that must evaluate truthy (repeatable)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Exit after this many matching events (0 streams forever)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("session id is required")
			}
			id := c.Args().First()

			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			limit := c.Int("count")
			matched := 0

			err = newClient(c).Stream(ctx, id, func(ev client.StreamEvent) error {
				if ev.Name != "session" {
					return nil
				}

				var v interface{}
				if err := json.Unmarshal(ev.Data, &v); err != nil {
					return fmt.Errorf("failed to decode event: %w", err)
				}
				if !matchesAll(filters, v) {
					return nil
				}

				fmt.Fprintln(c.App.Writer, string(ev.Data))

				matched++
				if limit > 0 && matched >= limit {
					return errWatchDone
				}
				return nil
			})
			if errors.Is(err, errWatchDone) {
				return nil
			}
			return err
		},
	}
}

// errWatchDone stops a watch after --count matching events.
var errWatchDone = errors.New("watch done")

func newClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func compileFilters(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// matchesAll reports whether every filter's first result is truthy.
func matchesAll(codes []*gojq.Code, v interface{}) bool {
	for _, code := range codes {
		iter := code.Run(v)
		result, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := result.(error); isErr {
			return false
		}
		if !isTruthy(result) {
			return false
		}
	}
	return true
}

func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

func printSnapshot(c *cli.Context, snap *session.Snapshot) error {
	if c.Bool("json") {
		return outputJSON(c.App.Writer, snap)
	}
	writeSnapshot(c.App.Writer, snap)
	return nil
}

func writeSnapshot(out io.Writer, snap *session.Snapshot) {
	fmt.Fprintf(out, "Session:   %s\n", snap.SessionID)
	fmt.Fprintf(out, "Status:    %s\n", snap.Status)
	fmt.Fprintf(out, "Network:   %s\n", snap.Network)
	if snap.Address != "" {
		fmt.Fprintf(out, "Address:   %s\n", snap.Address)
		fmt.Fprintf(out, "Balance:   %g %s (available %g)\n", snap.Balance, snap.Currency, snap.Available)
	}
	if snap.Provider != "" {
		fmt.Fprintf(out, "Provider:  %s\n", snap.Provider)
	}
	if snap.LastError != "" {
		fmt.Fprintf(out, "Error:     %s\n", snap.LastError)
	}
	if len(snap.Transactions) == 0 {
		return
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tAMOUNT\tTO\tHASH\tTIME")
	for _, tx := range snap.Transactions {
		fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%s\t%s\n",
			tx.ID,
			tx.Status,
			tx.Amount,
			tx.To,
			tx.Hash,
			tx.Timestamp.Format(time.RFC3339),
		)
	}
	w.Flush()
}
