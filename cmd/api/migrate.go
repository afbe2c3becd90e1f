package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Run database migrations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(persistence.MigrateUp), string(persistence.MigrateDown), string(persistence.MigrateStatus)},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction := persistence.MigrateUp
	if len(args) == 1 {
		direction = persistence.MigrationDirection(args[0])
	}
	switch direction {
	case persistence.MigrateUp, persistence.MigrateDown, persistence.MigrateStatus:
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}

	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	return persistence.Migrate(cmd.Context(), rt.pg.Pool, direction, rt.logger)
}
