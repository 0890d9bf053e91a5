package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/genesis/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func journalListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List journaled transactions for an address or session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Sending or receiving address",
			},
			&cli.StringFlag{
				Name:  "network",
				Usage: "Restrict to a network (with --address)",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session id",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   50,
				Usage:   "Maximum number of transactions",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of transactions to skip",
			},
		},
		Action: func(c *cli.Context) error {
			address, sessionID := c.String("address"), c.String("session")
			if address == "" && sessionID == "" {
				return fmt.Errorf("--address or --session is required")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			ctx := context.Background()
			limit, offset := int32(c.Int("limit")), int32(c.Int("offset"))

			var txns []*db.Transaction
			var total int64 = -1
			if sessionID != "" {
				txns, err = store.ListTransactionsBySession(ctx, sessionID, limit, offset)
			} else {
				txns, err = store.ListTransactionsByAddress(ctx, db.ListTransactionsByAddressParams{
					Address: address,
					Network: c.String("network"),
					Limit:   limit,
					Offset:  offset,
				})
				if err == nil {
					total, err = store.CountTransactionsByAddress(ctx, address, c.String("network"))
				}
			}
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, txns)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSESSION\tSTATUS\tAMOUNT\tFROM\tTO\tHASH\tSETTLED")
			for _, tx := range txns {
				settled := "-"
				if tx.SettledAt != nil {
					settled = tx.SettledAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%g %s\t%s\t%s\t%s\t%s\n",
					tx.ID,
					tx.SessionID,
					tx.Status,
					tx.Amount,
					tx.Currency,
					tx.FromAddress,
					tx.ToAddress,
					formatOptional(tx.Hash),
					settled,
				)
			}
			w.Flush()

			if total >= 0 {
				fmt.Fprintf(c.App.ErrWriter, "\nShowing %d of %d transactions\n", len(txns), total)
			} else {
				fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d transactions\n", len(txns))
			}
			return nil
		},
	}
}

func journalPruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete journaled transactions recorded before a cutoff",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:     "older-than",
				Usage:    "Delete transactions recorded longer ago than this (e.g. 720h)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			olderThan := c.Duration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			cutoff := time.Now().Add(-olderThan)
			n, err := store.DeleteTransactionsOlderThan(context.Background(), cutoff)
			if err != nil {
				return fmt.Errorf("failed to prune journal: %w", err)
			}

			fmt.Fprintf(c.App.Writer, "✓ Deleted %d transactions recorded before %s\n", n, cutoff.Format(time.RFC3339))
			return nil
		},
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}

func formatOptional(s *string) string {
	if s != nil && *s != "" {
		return *s
	}
	return "-"
}
