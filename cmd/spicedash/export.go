package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-dash/internal/cli"
	"github.com/Veraticus/spice-dash/internal/data"
	"github.com/Veraticus/spice-dash/internal/storage"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the aggregate views to a SQLite report database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := startManager(ctx, nil)
			if err != nil {
				return err
			}
			defer data.Shutdown()

			db, err := storage.NewSQLiteStorage(m.Settings().ExportDB)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil {
					slog.Warn("Failed to close export database", "error", cerr)
				}
			}()

			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate export database: %w", err)
			}
			runID, err := db.SaveReport(ctx, storage.BuildReport(m, time.Now()))
			if err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}
			if keep > 0 {
				pruned, err := db.Prune(ctx, keep)
				if err != nil {
					return fmt.Errorf("failed to prune old runs: %w", err)
				}
				if pruned > 0 {
					slog.Info("Pruned old export runs", "count", pruned)
				}
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported run %d to %s", runID, db.Path())))
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 10, "number of export runs to retain (0 keeps all)")
	return cmd
}
