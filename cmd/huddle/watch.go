package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vango-dev/huddle/internal/stockd"
	"github.com/vango-dev/huddle/pkg/payload"
)

func watchCmd(a *app) *cobra.Command {
	var request bool

	cmd := &cobra.Command{
		Use:   "watch <symbol>...",
		Short: "Follow stock quotes",
		Long: `Join the configured session and print each quote for the given
symbols as it changes. The current quote is printed on join.

Examples:
  huddle watch AAPL MSFT --session=StockSession
  huddle watch TSLA --request`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(a, cmd.OutOrStdout(), args, request)
		},
	}

	cmd.Flags().BoolVar(&request, "request", false, "Also ask the publisher on the request channel")

	return cmd
}

func runWatch(a *app, out io.Writer, symbols []string, request bool) error {
	ctx, stop := signalContext()
	defer stop()

	sess, err := a.join(ctx, false)
	if err != nil {
		return err
	}
	defer leave(sess)

	// Stop every watcher once the session goes away.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		outMu sync.Mutex
		wg    sync.WaitGroup
	)
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		w, err := stockd.Watch(ctx, sess, sym, a.logger)
		if err != nil {
			return err
		}
		if request {
			if err := stockd.Request(ctx, sess, a.cfg.Stocks.Channel, sym); err != nil {
				return err
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer w.Close(context.Background())
			var seq uint64
			for {
				quote, next, err := w.Wait(ctx, seq)
				if err != nil {
					return
				}
				seq = next
				outMu.Lock()
				printQuote(out, quote)
				outMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if errors.Is(ctx.Err(), context.Canceled) && sess.Destroyed() {
		warn("session %s was closed", sess.Name())
	}
	return nil
}

func printQuote(w io.Writer, s payload.Stock) {
	if !s.Valid {
		fmt.Fprintf(w, "%-6s  (no quote)\n", s.Symbol)
		return
	}
	fmt.Fprintf(w, "%-6s  %10s  %8s  %8s  %s\n", s.Symbol, s.Value, s.Change, s.PercentChange, s.Time)
}
