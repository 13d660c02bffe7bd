package ticketd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogenes-ai-code/ticketcore/internal/schema"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <project>...",
	Short: "Provision project schemas",
	Long: `Migrate creates the schema for each named project and applies the
ticketing migrations to it. Safe to re-run; all DDL is idempotent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migs := schema.Migrations(cfg.MigrationOffset)
	for _, project := range args {
		if !projectNamePattern.MatchString(project) {
			return fmt.Errorf("invalid project name: %q", project)
		}
		schemaName := cfg.SchemaPrefix + project
		if err := schema.Apply(cmd.Context(), db, schemaName, migs); err != nil {
			return fmt.Errorf("failed to migrate project %q: %w", project, err)
		}
		logger.Printf("migrated project %q (schema %s, %d migrations)",
			project, schemaName, len(migs))
	}
	return nil
}
