package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/huddle/internal/errors"
	"github.com/vango-dev/huddle/pkg/auth"
)

func tokenCmd(a *app) *cobra.Command {
	var anySession bool

	cmd := &cobra.Command{
		Use:   "token <client-name>",
		Short: "Issue a session token",
		Long: `Issue a token that lets <client-name> join sessions on an endpoint
configured with the same auth.secret.

The token is bound to the configured session unless --any-session is set.

Examples:
  huddle token alice --session=StockSession
  huddle watch AAPL --name=alice --token=$(huddle token alice)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.Secret == "" {
				return errors.New("H102").
					WithDetail("auth.secret is not set").
					WithSuggestion("Set auth.secret in huddle.yaml")
			}
			sessionName := a.cfg.Session
			if anySession {
				sessionName = ""
			}
			issuer := auth.NewTokenIssuer([]byte(a.cfg.Auth.Secret), a.cfg.TokenTTL())
			token, err := issuer.Issue(args[0], sessionName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&anySession, "any-session", false, "Make the token valid for every session")

	return cmd
}
