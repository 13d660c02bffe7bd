package ticketd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/diogenes-ai-code/ticketcore/internal/config"
	"github.com/diogenes-ai-code/ticketcore/internal/host"
)

// projectNamePattern limits project names to identifier-safe characters so
// the derived schema name is always a valid identifier.
var projectNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func newLogger() *log.Logger {
	return log.New(os.Stdout, "[ticketd] ", log.LstdFlags)
}

// openDB opens the shared Postgres pool.
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildDeps wires the host callables around one pool and the configured
// project naming scheme. Every project shares the pool; isolation comes from
// the per-project schema.
func buildDeps(cfg *config.Config, db *sql.DB, logger *log.Logger) host.Deps {
	return host.Deps{
		GetDB: func(ctx context.Context, project string) (*sql.DB, error) {
			return db, nil
		},
		CheckProject: func(ctx context.Context, project string) error {
			if project == "" {
				return nil // GetProject applies the default
			}
			if !projectNamePattern.MatchString(project) {
				return fmt.Errorf("invalid project name: %q", project)
			}
			return nil
		},
		GetProject: func(ctx context.Context, project string) (string, error) {
			if project == "" {
				return cfg.DefaultProject, nil
			}
			return project, nil
		},
		ResolveSchema: func(project string) string {
			return cfg.SchemaPrefix + project
		},
		Logger: logger,
	}
}
