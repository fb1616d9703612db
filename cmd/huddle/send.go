package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	ierrors "github.com/vango-dev/huddle/internal/errors"
	"github.com/vango-dev/huddle/pkg/payload"
	"github.com/vango-dev/huddle/pkg/session"
)

func sendCmd(a *app) *cobra.Command {
	var (
		to     []string
		high   bool
		all    bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "send <channel> <message>...",
		Short: "Send a message on a channel",
		Long: `Join a channel in the configured session and send one message.

By default the message goes to every other member. --to limits it to
the named clients; --all includes this client.

Examples:
  huddle send chat hello everyone
  huddle send chat psst --to=alice --priority-high
  huddle send Whiteboard "1 LINE 0 0 100 100" --format=whiteboard`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := strings.Join(args[1:], " ")
			body, err := encodeMessage(format, msg)
			if err != nil {
				return err
			}
			p := session.PriorityNormal
			if high {
				p = session.PriorityHigh
			}
			return runSend(a, args[0], to, all, p, body)
		},
	}

	cmd.Flags().StringSliceVar(&to, "to", nil, "Recipients (default: every other member)")
	cmd.Flags().BoolVar(&all, "all", false, "Also deliver to this client")
	cmd.Flags().BoolVar(&high, "priority-high", false, "Send at high priority")
	cmd.Flags().StringVarP(&format, "format", "f", formatRaw, "Message format: raw, whiteboard")

	return cmd
}

// encodeMessage checks msg against format and returns the payload.
func encodeMessage(format, msg string) ([]byte, error) {
	switch format {
	case formatRaw:
		return []byte(msg), nil
	case formatWhiteboard:
		c, err := payload.ParseCommand(msg)
		if err != nil {
			return nil, ierrors.New("H400").Wrap(err)
		}
		return c.MarshalText()
	default:
		return nil, ierrors.New("H500").
			WithDetail(fmt.Sprintf("unknown format %q", format)).
			WithSuggestion("Use one of: raw, whiteboard")
	}
}

func runSend(a *app, channel string, to []string, all bool, p session.Priority, body []byte) error {
	ctx, stop := signalContext()
	defer stop()

	sess, err := a.join(ctx, false)
	if err != nil {
		return err
	}
	defer leave(sess)

	ch, err := sess.CreateChannel(ctx, channel, session.DefaultChannelOptions())
	if err != nil {
		return err
	}

	switch {
	case len(to) > 0:
		err = ch.SendToClients(ctx, to, p, body)
	case all:
		err = ch.SendToAll(ctx, p, body)
	default:
		err = ch.SendToOthers(ctx, p, body)
	}
	if err != nil {
		return err
	}
	success("Sent %d bytes on %s", len(body), channel)
	return nil
}
