package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kindredhq/intake/internal/store"
)

func newListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored profiles as JSON, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			profiles, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
			if err != nil {
				return fmt.Errorf("open profile store: %w", err)
			}
			defer profiles.Close()

			subs, err := profiles.List(ctx, limit)
			if err != nil {
				return err
			}
			if subs == nil {
				subs = []store.Submission{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(subs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum profiles to print; 0 prints all")
	return cmd
}
