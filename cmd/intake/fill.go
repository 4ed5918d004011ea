package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kindredhq/intake/internal/console"
	"github.com/kindredhq/intake/internal/store"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/profile"
)

// newDriver builds the prompt driver of the fill command.
var newDriver = func(cmd *cobra.Command) console.PromptDriver {
	return console.NewSurveyDriver(cmd.OutOrStdout())
}

func newFillCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Answer the intake in the terminal and print the record as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			catalog, err := profile.LoadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}
			cache, err := media.NewPreviewCache(media.GalleryCapacity + 1)
			if err != nil {
				return err
			}
			runner := console.NewRunner(newDriver(cmd), catalog,
				media.NewStager(media.DefaultStagerConfig(), cache, media.WithLogger(logger)),
				console.WithLogger(logger),
			)

			ctx := cmd.Context()
			rec, err := runner.Run(ctx, profile.Record{})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return err
			}
			if !save {
				return nil
			}
			return saveRecord(ctx, cmd, cfg.StoreDriver, cfg.StoreDSN, rec)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the completed profile")
	return cmd
}

func saveRecord(ctx context.Context, cmd *cobra.Command, driver, dsn string, rec profile.Record) error {
	profiles, err := store.Open(ctx, driver, dsn)
	if err != nil {
		return fmt.Errorf("open profile store: %w", err)
	}
	defer profiles.Close()
	id, err := profiles.Save(ctx, "console", rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "saved profile %s\n", id)
	return err
}
