package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/activeobjects-uk/nanoclaw/internal/channel"
	"github.com/activeobjects-uk/nanoclaw/internal/store"
)

func newStateCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show or reset the processed-issue record",
		Long: `Lists the issues the channel has already delivered with the update time it
last saw for each. --reset clears the record so every assigned issue is
delivered again on the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Store.Driver, cfg.Store.DBPath())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if reset {
				if err := st.DeleteState(channel.StateKey); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Processed-issue record cleared."))
				return nil
			}

			raw, err := st.GetState(channel.StateKey)
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), raw)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "clear the processed-issue record")
	return cmd
}

func printState(w io.Writer, raw string) error {
	if raw == "" {
		_, _ = fmt.Fprintln(w, dimStyle.Render("No processed issues recorded."))
		return nil
	}
	record, err := channel.DecodeProcessedIssues(raw)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(record))
	for id := range record {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	printHeader(w, fmt.Sprintf("Processed issues (%d)", len(ids)))
	for _, id := range ids {
		printRow(w, id, channel.FormatTimestamp(record[id]))
	}
	printFooter(w)
	return nil
}
