package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/spf13/cobra"
)

func newCatalogCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and extend the pick-list catalog",
	}

	cmd.AddCommand(newCatalogShowCmd(a))
	cmd.AddCommand(newCatalogAddCmd(a))
	cmd.AddCommand(newCatalogSyncCmd(a))

	return cmd
}

func newCatalogShowCmd(a *App) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Fetch the reference catalog and print it merged with local additions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wired, ctx, done, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer done()

			var merged catalog.Catalog
			if local {
				merged, _, err = wired.Catalog.Load(ctx)
			} else {
				server, ferr := wired.Client.FetchReference(ctx)
				if ferr != nil {
					return ferr
				}
				merged, err = wired.Catalog.Reconcile(ctx, server)
			}
			if err != nil {
				return err
			}
			return a.writeJSON(cmd, merged)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Print the locally stored catalog without contacting the backend")
	return cmd
}

func newCatalogAddCmd(a *App) *cobra.Command {
	var step string

	cmd := &cobra.Command{
		Use:   "add <category> <value>",
		Short: "Add an option to a local pick-list; use 'catalog sync' to publish it",
		Example: `  reportctl catalog add aiTools "Claude"
  reportctl catalog add sdlcTasks "Pairing" --step Build`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, value := args[0], args[1]
			if category == catalog.Tasks && step == "" {
				return errors.New("missing --step (sdlcTasks options belong to an SDLC step)")
			}

			wired, ctx, done, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer done()

			if category == catalog.Tasks {
				err = wired.Catalog.AddTask(ctx, step, value)
			} else {
				err = wired.Catalog.AddOption(ctx, category, value)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %q to %s\n", value, category)
			return err
		},
	}

	cmd.Flags().StringVar(&step, "step", "", "SDLC step for sdlcTasks options")
	return cmd
}

type syncResult struct {
	Pushed int    `json:"pushed"`
	Error  string `json:"error,omitempty"`
}

func newCatalogSyncCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending local catalog changes to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wired, ctx, done, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer done()

			server, err := wired.Client.FetchReference(ctx)
			if err != nil {
				return err
			}
			// The local copy may predate the server's current lists, so each
			// delta is merged onto the server baseline before it replaces it.
			pushed, pushErr := wired.Catalog.Push(ctx, func(ctx context.Context, d catalog.Delta) error {
				if d.Category == catalog.Tasks {
					d.Tasks = catalog.MergeTasks(server.Tasks, d.Tasks, d.TaskAltered)
				} else {
					d.Values = catalog.Merge(server.Lists[d.Category], d.Values, d.Altered)
				}
				return wired.Client.PushCatalog(ctx, d)
			})
			res := syncResult{Pushed: pushed}
			if pushErr != nil {
				res.Error = pushErr.Error()
			}
			if err := a.writeJSON(cmd, res); err != nil {
				return err
			}
			return pushErr
		},
	}
}
