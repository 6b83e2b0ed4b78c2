package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"keepsake/internal/config"
	"keepsake/internal/store"
)

type migrateResult struct {
	Applied []store.MigrationInfo `json:"applied" yaml:"applied"`
	Status  *store.MigrationStatus `json:"status" yaml:"status"`
}

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the keepsake database",
		Long:  "Apply pending schema migrations. With --inspect (alias --dry-run) only the plan is shown.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspect {
				plan, err := store.InspectMigrations(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if *jsonOutput {
					return writeJSON(plan)
				}
				return printMigrationPlan(plan)
			}

			applied, status, err := store.Migrate(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", cfg.DBPath, err)
			}
			if *jsonOutput {
				return writeJSON(migrateResult{Applied: applied, Status: status})
			}
			if len(applied) == 0 {
				return writePlain("Schema already at version %d.\n", status.CurrentVersion)
			}
			for _, m := range applied {
				if err := writePlain("applied %d: %s\n", m.Version, m.Description); err != nil {
					return err
				}
			}
			return writePlain("Schema now at version %d.\n", status.CurrentVersion)
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status without applying")
	cmd.Flags().BoolVar(&inspect, "dry-run", false, "alias for --inspect")
	return cmd
}

func printMigrationPlan(plan *store.MigrationStatus) error {
	if err := writePlain("schema version %d of %d\n", plan.CurrentVersion, plan.AvailableVersion); err != nil {
		return err
	}
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	for _, m := range plan.Pending {
		if err := writePlain("pending %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}
