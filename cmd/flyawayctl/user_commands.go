package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/garnizeh/flyaway/internal/leveling"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/spf13/cobra"
)

func newLeaderboardCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show users ranked by XP",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, repo, err := ctx.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			users, err := repo.ListUsersByXP(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users yet.")
				return nil
			}

			rows := make([][]string, 0, len(users))
			for _, e := range leveling.Rank(users) {
				rows = append(rows, []string{
					strconv.Itoa(e.Rank),
					e.Name,
					e.Email,
					humanize.Comma(e.XP),
					strconv.Itoa(e.Level),
					humanize.Comma(e.XPToNext),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Name", "Email", "XP", "Level", "To next"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of users to show")
	return cmd
}

func newPromoteCommand(ctx *commandContext) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "promote <email>",
		Short: "Set a user's role (admin by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != models.RoleAdmin && role != models.RoleUser {
				return fmt.Errorf("invalid role %q: use %s or %s", role, models.RoleAdmin, models.RoleUser)
			}

			d, repo, err := ctx.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			email := strings.ToLower(strings.TrimSpace(args[0]))
			u, err := repo.GetUserByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("find user: %w", err)
			}
			if u == nil {
				return fmt.Errorf("no user with email %s", email)
			}

			if err := repo.SetUserRole(cmd.Context(), u.ID, role); err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s. Existing tokens keep their old role until they expire.\n", email, role)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "Role to grant (admin or user)")
	return cmd
}
