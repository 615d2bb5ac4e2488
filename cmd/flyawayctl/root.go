package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/garnizeh/flyaway/internal/config"
	"github.com/garnizeh/flyaway/internal/db"
	"github.com/garnizeh/flyaway/internal/repository/sqlite"
	"github.com/spf13/cobra"
)

// commandContext loads the configuration once for every subcommand.
type commandContext struct {
	configPath *string
	cfg        *config.Config
}

func (c *commandContext) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.LoadConfig(*c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// openRepo opens the configured database. The caller closes the returned DB.
func (c *commandContext) openRepo(ctx context.Context) (*db.DB, *sqlite.SQLiteRepo, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	return d, sqlite.New(d, logger), nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "flyawayctl",
		Short:         "Flyaway administration CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newInitCommand(ctx))
	rootCmd.AddCommand(newBackupCommand(ctx))
	rootCmd.AddCommand(newRestoreCommand(ctx))
	rootCmd.AddCommand(newLeaderboardCommand(ctx))
	rootCmd.AddCommand(newPromoteCommand(ctx))

	return rootCmd
}
