package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	dbfs "github.com/garnizeh/flyaway/db"
	"github.com/garnizeh/flyaway/internal/db"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Apply migrations and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := ctx.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			if err := db.Migrate(cmd.Context(), d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database initialized successfully.")
			return nil
		},
	}
}

// lockDatabase serialises backup and restore runs against one database file.
func lockDatabase(dbPath string) (*flock.Flock, error) {
	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another backup or restore is running")
	}
	return lock, nil
}

func newBackupCommand(ctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent copy of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.DatabasePath + ".bak"
			}

			lock, err := lockDatabase(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			// VACUUM INTO refuses to overwrite
			if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove old backup: %w", err)
			}

			d, _, err := ctx.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			if _, err := d.Exec(cmd.Context(), `VACUUM INTO '`+strings.ReplaceAll(out, "'", "''")+`'`); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database backup written to %s.\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Backup file (default <database>.bak)")
	return cmd
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the database with a backup; stop the server first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			if from == "" {
				from = cfg.DatabasePath + ".bak"
			}

			lock, err := lockDatabase(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			if err := replaceFile(from, cfg.DatabasePath); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database restored from %s.\n", from)
			return nil
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "Backup file (default <database>.bak)")
	return cmd
}

// replaceFile copies src next to dst and renames it into place, so dst is
// never left half written.
func replaceFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".restore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
