package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/huddle/internal/stockd"
)

func stockdCmd(a *app) *cobra.Command {
	var (
		symbols  []string
		interval time.Duration
		seed     uint64
	)

	cmd := &cobra.Command{
		Use:   "stockd",
		Short: "Publish stock quotes into a session",
		Long: `Join (creating if needed) the configured session and keep one byte
array per ticker symbol filled with the latest quote.

Clients ask for a ticker by creating its byte array or by sending the
symbol on the request channel (stocks.channel, default StockRequests).

Examples:
  huddle stockd --session=StockSession
  huddle stockd --symbols=AAPL,MSFT --interval=5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("symbols") {
				a.cfg.Stocks.Symbols = symbols
			}
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.StockInterval()
			}
			if !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano())
			}
			return runStockd(a, interval, seed)
		},
	}

	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Symbols published from the start")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh period (default: stocks.interval)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for the simulated feed")

	return cmd
}

func runStockd(a *app, interval time.Duration, seed uint64) error {
	ctx, stop := signalContext()
	defer stop()

	sess, err := a.join(ctx, true)
	if err != nil {
		return err
	}
	defer leave(sess)

	pub := stockd.NewPublisher(sess, stockd.NewRandomFeed(seed), stockd.Config{
		Symbols:        a.cfg.Stocks.Symbols,
		Interval:       interval,
		RequestChannel: a.cfg.Stocks.Channel,
		Logger:         a.logger,
	})

	success("Publishing quotes to %s as %s", sess.URL(), sess.Client().Name())
	info("Refresh: every %s", interval)
	info("Requests: channel %q", a.cfg.Stocks.Channel)

	if err := pub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
