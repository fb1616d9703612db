package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	ierrors "github.com/vango-dev/huddle/internal/errors"
	"github.com/vango-dev/huddle/pkg/payload"
	"github.com/vango-dev/huddle/pkg/session"
)

// Message formats understood by tail and send.
const (
	formatRaw        = "raw"
	formatStock      = "stock"
	formatMIDI       = "midi"
	formatWhiteboard = "whiteboard"
)

func tailCmd(a *app) *cobra.Command {
	var (
		format     string
		unreliable bool
		unordered  bool
	)

	cmd := &cobra.Command{
		Use:   "tail <channel>",
		Short: "Print a channel's messages",
		Long: `Join a channel in the configured session and print every message
delivered to this client until interrupted.

Formats:
  raw         payload as text
  stock       encoded stock quotes
  midi        encoded MIDI relay messages
  whiteboard  whiteboard command lines

Examples:
  huddle tail chat
  huddle tail Whiteboard --format=whiteboard`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decode, err := decoder(format)
			if err != nil {
				return err
			}
			opts := session.DefaultChannelOptions()
			opts.Reliable = !unreliable
			opts.Ordered = !unordered
			return runTail(a, cmd.OutOrStdout(), args[0], opts, decode)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatRaw, "Payload format: raw, stock, midi, whiteboard")
	cmd.Flags().BoolVar(&unreliable, "unreliable", false, "Create the channel as unreliable")
	cmd.Flags().BoolVar(&unordered, "unordered", false, "Create the channel as unordered")

	return cmd
}

// decoder returns a function rendering payloads of format as text.
func decoder(format string) (func([]byte) (string, error), error) {
	switch format {
	case formatRaw:
		return func(p []byte) (string, error) { return string(p), nil }, nil
	case formatStock:
		return func(p []byte) (string, error) {
			s, err := payload.DecodeStock(p)
			if err != nil {
				return "", err
			}
			if !s.Valid {
				return s.Symbol + " (no quote)", nil
			}
			return fmt.Sprintf("%s %s %s %s %s", s.Symbol, s.Value, s.Change, s.PercentChange, s.Time), nil
		}, nil
	case formatMIDI:
		return func(p []byte) (string, error) {
			m, err := payload.DecodeMIDI(p)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%+v", m), nil
		}, nil
	case formatWhiteboard:
		return func(p []byte) (string, error) {
			c, err := payload.ParseCommand(string(p))
			if err != nil {
				return "", err
			}
			return c.String(), nil
		}, nil
	default:
		return nil, ierrors.New("H500").
			WithDetail(fmt.Sprintf("unknown format %q", format)).
			WithSuggestion("Use one of: raw, stock, midi, whiteboard")
	}
}

func runTail(a *app, out io.Writer, channel string, opts session.ChannelOptions, decode func([]byte) (string, error)) error {
	ctx, stop := signalContext()
	defer stop()

	sess, err := a.join(ctx, false)
	if err != nil {
		return err
	}
	defer leave(sess)

	ch, err := sess.CreateChannel(ctx, channel, opts)
	if err != nil {
		return err
	}
	inbox, err := ch.NewInbox(ctx)
	if err != nil {
		return err
	}
	defer inbox.Close(context.Background())

	success("Tailing %s/%s as %s", sess.URL(), channel, sess.Client().Name())

	for {
		d, err := inbox.Receive(ctx)
		if errors.Is(err, session.ErrClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		text, err := decode(d.Payload)
		if err != nil {
			a.logger.Warn("undecodable message", "channel", channel, "sender", d.Sender, "error", err)
			continue
		}
		marker := " "
		if d.Priority == session.PriorityHigh {
			marker = "!"
		}
		fmt.Fprintf(out, "%s %-12s %s\n", marker, d.Sender, text)
	}
}
