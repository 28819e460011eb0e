package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"farm-console/internal/services"
	"farm-console/internal/tokenstore"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the credential the push connection authenticates with",
		Long: `Manage the stored backend token. Only the redis store outlives this
process; with TOKEN_STORE=memory use POST /session on a running agent.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <token>",
			Short: "Store a token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTokenStore(cmd, func(store tokenstore.Store, key string) error {
					if err := store.Set(cmd.Context(), key, args[0]); err != nil {
						return err
					}
					color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "token stored")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTokenStore(cmd, func(store tokenstore.Store, key string) error {
					token, err := store.Get(cmd.Context(), key)
					if errors.Is(err, tokenstore.ErrNotFound) {
						color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "no token stored")
						return nil
					}
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), token)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every stored credential",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTokenStore(cmd, func(store tokenstore.Store, _ string) error {
					if err := store.Clear(cmd.Context()); err != nil {
						return err
					}
					color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "credentials cleared")
					return nil
				})
			},
		},
	)
	return cmd
}

func withTokenStore(cmd *cobra.Command, fn func(store tokenstore.Store, key string) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if cfg.TokenStore.Kind != "redis" {
		logger.Warnf("TOKEN_STORE=%s does not persist across processes", cfg.TokenStore.Kind)
	}
	store, err := services.OpenTokenStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if r, ok := store.(*tokenstore.Redis); ok {
		defer r.Close()
	}
	return fn(store, cfg.TokenStore.Key)
}
