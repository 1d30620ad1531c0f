package main

import (
	"fmt"

	"pausesync/cmd/pausepeer/ui"
	"pausesync/internal/clocksync"

	"github.com/spf13/cobra"
)

func clockCmd() *cobra.Command {
	var pool string

	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Measure the local clock offset once",
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := clocksync.Query(pool)
			if err != nil {
				return fmt.Errorf("query %s: %w", pool, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.KeyValues("",
				ui.KV("pool", pool),
				ui.KV("offset", offset.String()),
				ui.KV("seconds", fmt.Sprintf("%.6f", offset.Seconds())),
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&pool, "pool", clocksync.DefaultPool, "NTP server or pool")
	return cmd
}
