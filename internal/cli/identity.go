package cli

import (
	"fmt"

	"github.com/rpggio/prodreport/internal/envelope"
	"github.com/spf13/cobra"
)

func newKeygenCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new base64 AES-256 key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := envelope.GenerateKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
}

func newWhoamiCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print this installation's author id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wired, ctx, done, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer done()

			id, err := wired.Identity.AuthorID(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
}
