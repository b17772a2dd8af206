package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/activeobjects-uk/nanoclaw/internal/adapters/linear"
)

// userLister is the part of the Linear client the ids command reads.
type userLister interface {
	Viewer(ctx context.Context) (*linear.User, error)
	Users(ctx context.Context) ([]linear.User, error)
}

func newIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "Show Linear user ids for configuration",
		Long: `Prints the account behind the API key (LINEAR_USER_ID) and every
workspace member (candidates for LINEAR_ALLOWED_USERS).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(false); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return printIDs(ctx, cmd.OutOrStdout(), linear.NewClient(cfg.Linear.APIKey))
		},
	}
}

func printIDs(ctx context.Context, w io.Writer, api userLister) error {
	viewer, err := api.Viewer(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch viewer: %w", err)
	}
	users, err := api.Users(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	printHeader(w, "This account")
	printRow(w, viewer.DisplayOrName(), viewer.ID)
	printFooter(w)
	_, _ = fmt.Fprintln(w, dimStyle.Render("  set LINEAR_USER_ID="+viewer.ID))
	_, _ = fmt.Fprintln(w)

	printHeader(w, "Workspace users")
	for i := range users {
		printRow(w, users[i].DisplayOrName(), users[i].ID)
	}
	printFooter(w)
	_, _ = fmt.Fprintln(w, dimStyle.Render("  LINEAR_ALLOWED_USERS takes a comma-separated list of these ids"))
	return nil
}
