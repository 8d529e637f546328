// Package cli implements the reportctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/prodreport/internal/app"
	"github.com/rpggio/prodreport/internal/config"
	"github.com/spf13/cobra"
)

// App carries the flags shared by every command.
type App struct {
	BaseURL   string
	StorePath string
	Key       string
	Pretty    bool
	Verbose   bool
	Timeout   time.Duration
}

func NewRootCmd() *cobra.Command {
	a := &App{}

	cmd := &cobra.Command{
		Use:          "reportctl",
		Short:        "Submit and review encrypted productivity reports",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a key and share it with the team
  reportctl keygen

  # Submit a report from a YAML file
  reportctl submit --thread t-42 --file report.yaml

  # List a thread's submitted reports for one member
  reportctl list --thread t-42 --member Ana --status submitted
`),
	}

	cmd.PersistentFlags().StringVar(&a.BaseURL, "api", "", "Backend base URL (overrides PRODREPORT_API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&a.StorePath, "store", "", "Local store path (overrides PRODREPORT_STORE_PATH)")
	cmd.PersistentFlags().StringVar(&a.Key, "key", "", "Base64 encryption key (overrides PRODREPORT_KEY)")
	cmd.PersistentFlags().BoolVar(&a.Pretty, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().BoolVarP(&a.Verbose, "verbose", "v", false, "Log to stderr at debug level")
	cmd.PersistentFlags().DurationVar(&a.Timeout, "timeout", 2*time.Minute, "Overall time limit for backend calls")

	cmd.AddCommand(newKeygenCmd(a))
	cmd.AddCommand(newWhoamiCmd(a))
	cmd.AddCommand(newCatalogCmd(a))
	cmd.AddCommand(newSubmitCmd(a))
	cmd.AddCommand(newListCmd(a))

	return cmd
}

// open loads the configuration, applies flag overrides and wires the app.
func (a *App) open(cmd *cobra.Command) (*app.App, context.Context, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if a.BaseURL != "" {
		cfg.API.BaseURL = a.BaseURL
	}
	if a.StorePath != "" {
		cfg.Store.Path = a.StorePath
	}
	if a.Key != "" {
		cfg.Key = a.Key
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if a.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.Timeout)
	wired, err := app.New(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	done := func() {
		wired.Sessions.CloseAll(ctx)
		if err := wired.Close(); err != nil {
			logger.Warn("closing stores failed", "error", err)
		}
		cancel()
	}
	return wired, ctx, done, nil
}

func (a *App) writeJSON(cmd *cobra.Command, v any) error {
	var (
		data []byte
		err  error
	)
	if a.Pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
