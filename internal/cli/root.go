// Package cli implements laborctl, the command-line front end of the import
// service.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ay01sec/labor-admin-sub000/internal/app"
	"github.com/ay01sec/labor-admin-sub000/internal/config"
	"github.com/ay01sec/labor-admin-sub000/internal/core"
	"github.com/ay01sec/labor-admin-sub000/internal/logging"
	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

type storeOpener func(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error)

// rootOptions holds persistent flags and state shared by subcommands.
type rootOptions struct {
	storeDriver string
	logLevel    string

	openStore storeOpener
	cfg       *config.Config
}

// NewRootCmd creates the laborctl command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{openStore: app.OpenStore})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "laborctl",
		Short: "Import and export labor-admin master data as CSV",
		Long: `laborctl validates and imports employee, client and site CSV files
into the labor-admin store, and exports templates and existing records.

Files may be UTF-8 (with or without BOM), Shift_JIS or EUC-JP.`,
		SilenceUsage:      true,
		PersistentPreRunE: opts.setup,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.storeDriver, "store", "", "document store: memory, mongo or postgres (default STORE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default LOG_LEVEL)")

	rootCmd.AddCommand(
		newImportCmd(opts),
		newValidateCmd(opts),
		newTemplateCmd(opts),
		newExportCmd(opts),
		newEntitiesCmd(opts),
		newHistoryCmd(opts),
	)
	return rootCmd
}

// setup loads .env and the environment, applies flag overrides and installs
// the logger on stderr.
func (o *rootOptions) setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.storeDriver != "" {
		cfg.Store.Driver = o.storeDriver
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
	o.cfg = cfg
	return nil
}

// service opens the store and builds an import service over it.
func (o *rootOptions) service(ctx context.Context) (*core.Service, func(), error) {
	st, closeFn, err := o.openStore(ctx, o.cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return app.NewService(st, o.cfg.Import), closeFn, nil
}
