package main

import (
	"fmt"

	"pausesync/cmd/pausepeer/ui"
	"pausesync/internal/journal"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var path string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded pause transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.InfoMsg("no transitions recorded in %s", path))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.History(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "journal", "", "Path to the journal database")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of most recent transitions to show (0 for all)")
	_ = cmd.MarkFlagRequired("journal")
	return cmd
}
