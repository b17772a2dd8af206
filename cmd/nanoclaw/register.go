package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/activeobjects-uk/nanoclaw/internal/store"
)

func newRegisterCmd() *cobra.Command {
	var noTriggerRequired bool

	cmd := &cobra.Command{
		Use:     "register <jid> <name> <folder> [trigger]",
		Short:   "Register a chat group with the router",
		Example: `  nanoclaw register "linear:__channel__" "Linear Issues" linear "@Andy" --no-trigger-required`,
		Args:    cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			group := groupFromArgs(args, noTriggerRequired)

			st, err := store.Open(cfg.Store.Driver, cfg.Store.DBPath())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.RegisterGroup(group); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s → %s/ (requiresTrigger=%t)\n",
				successStyle.Render("Registered group:"), group.JID, group.Folder, group.RequiresTrigger)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noTriggerRequired, "no-trigger-required", false, "respond to every message, not only ones carrying the trigger")
	return cmd
}

// groupFromArgs builds a group from <jid> <name> <folder> [trigger].
// A trigger that looks like a flag is ignored.
func groupFromArgs(args []string, noTriggerRequired bool) store.Group {
	g := store.Group{
		JID:             args[0],
		Name:            args[1],
		Folder:          args[2],
		RequiresTrigger: !noTriggerRequired,
	}
	if len(args) > 3 && !strings.HasPrefix(args[3], "--") {
		g.Trigger = args[3]
	}
	return g
}
