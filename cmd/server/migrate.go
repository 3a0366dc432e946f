package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status|redo|reset|version]",
		Short:     "Apply or inspect the embedded schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "redo", "reset", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()

			if to != "" {
				return database.MigrateTo(ctx, db, to)
			}
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			if err := database.Migrate(ctx, db, command); err != nil {
				return err
			}
			logg.Info(logg.WithField(ctx, "command", command), "migrate finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "migrate up or down to this version")
	return cmd
}
