// Package schema holds the DDL for the ticketing tables and the migration
// records handed to the host at registration time.
//
// All DDL is written against {schema} placeholders. Substitution happens
// against a schema name obtained from the host's resolver, never from user
// input, and the name is validated as a SQL identifier before use. Values
// always travel as bound parameters.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// DefaultOffset is the first migration ID when the host does not supply one.
const DefaultOffset = 26

// ProjectSchema marks a migration as applying to every project schema.
const ProjectSchema = "project"

// TypeCustom is the migration type for raw-SQL migrations.
const TypeCustom = "custom"

// Spec carries the executable part of a migration record.
type Spec struct {
	CreateIfNotExists bool   `json:"create_if_not_exists"`
	SQL               string `json:"sql"`
}

// Migration is one schema migration record, keyed by a stable integer ID.
// The host owns execution; the core only describes what to run.
type Migration struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Table       string `json:"table"`
	Schema      string `json:"schema"`
	Spec        Spec   `json:"spec"`
}

const ticketTableSQL = `
CREATE TABLE IF NOT EXISTS {schema}.ticket (
    id SERIAL PRIMARY KEY,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    status TEXT NOT NULL,
    priority TEXT NOT NULL DEFAULT 'medium',
    assignee TEXT,
    reporter TEXT,
    tags TEXT,
    metadata TEXT,
    content_hash TEXT,
    created_at DOUBLE PRECISION NOT NULL,
    updated_at DOUBLE PRECISION NOT NULL,
    closed_at DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_ticket_type ON {schema}.ticket (type);
CREATE INDEX IF NOT EXISTS idx_ticket_status ON {schema}.ticket (status);
CREATE INDEX IF NOT EXISTS idx_ticket_priority ON {schema}.ticket (priority);
CREATE INDEX IF NOT EXISTS idx_ticket_assignee ON {schema}.ticket (assignee)
    WHERE assignee IS NOT NULL;
`

const ticketHistoryTableSQL = `
CREATE TABLE IF NOT EXISTS {schema}.ticket_history (
    id SERIAL PRIMARY KEY,
    ticket_id INTEGER NOT NULL,
    field TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT,
    changed_by TEXT,
    changed_at DOUBLE PRECISION NOT NULL,
    FOREIGN KEY (ticket_id) REFERENCES {schema}.ticket(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_ticket_history_ticket ON {schema}.ticket_history (ticket_id);
`

const ticketLinkTableSQL = `
CREATE TABLE IF NOT EXISTS {schema}.ticket_link (
    id SERIAL PRIMARY KEY,
    source_id INTEGER NOT NULL,
    target_id INTEGER NOT NULL,
    link_type TEXT NOT NULL,
    created_at DOUBLE PRECISION NOT NULL,
    FOREIGN KEY (source_id) REFERENCES {schema}.ticket(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES {schema}.ticket(id) ON DELETE CASCADE,
    UNIQUE (source_id, target_id, link_type)
);
CREATE INDEX IF NOT EXISTS idx_ticket_link_source ON {schema}.ticket_link (source_id);
CREATE INDEX IF NOT EXISTS idx_ticket_link_target ON {schema}.ticket_link (target_id);
`

const ticketTsvSQL = `
ALTER TABLE {schema}.ticket ADD COLUMN IF NOT EXISTS tsv tsvector;

CREATE OR REPLACE FUNCTION {schema}.ticket_tsv_update()
RETURNS TRIGGER AS $$
BEGIN
    NEW.tsv := to_tsvector(
        'english',
        coalesce(NEW.title, '') || ' ' || coalesce(NEW.description, '')
    );
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS ticket_tsv_update ON {schema}.ticket;
CREATE TRIGGER ticket_tsv_update
    BEFORE INSERT OR UPDATE OF title, description ON {schema}.ticket
    FOR EACH ROW EXECUTE FUNCTION {schema}.ticket_tsv_update();
`

const ticketGinIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_ticket_tsv ON {schema}.ticket
    USING gin (tsv)
    WHERE tsv IS NOT NULL;
`

// Migrations returns the five migration records with contiguous IDs starting
// at offset. An offset <= 0 selects DefaultOffset.
func Migrations(offset int) []Migration {
	if offset <= 0 {
		offset = DefaultOffset
	}
	return []Migration{
		{
			ID:          offset,
			Description: "create_ticket_table",
			Type:        TypeCustom,
			Table:       "ticket",
			Schema:      ProjectSchema,
			Spec:        Spec{CreateIfNotExists: true, SQL: ticketTableSQL},
		},
		{
			ID:          offset + 1,
			Description: "create_ticket_history_table",
			Type:        TypeCustom,
			Table:       "ticket_history",
			Schema:      ProjectSchema,
			Spec:        Spec{CreateIfNotExists: true, SQL: ticketHistoryTableSQL},
		},
		{
			ID:          offset + 2,
			Description: "create_ticket_link_table",
			Type:        TypeCustom,
			Table:       "ticket_link",
			Schema:      ProjectSchema,
			Spec:        Spec{CreateIfNotExists: true, SQL: ticketLinkTableSQL},
		},
		{
			ID:          offset + 3,
			Description: "add_ticket_tsv_column_and_trigger",
			Type:        TypeCustom,
			Table:       "ticket",
			Schema:      ProjectSchema,
			Spec:        Spec{CreateIfNotExists: true, SQL: ticketTsvSQL},
		},
		{
			ID:          offset + 4,
			Description: "add_ticket_tsv_gin_index",
			Type:        TypeCustom,
			Table:       "ticket",
			Schema:      ProjectSchema,
			Spec:        Spec{CreateIfNotExists: true, SQL: ticketGinIndexSQL},
		},
	}
}

// identPattern matches a safe, unquoted Postgres identifier.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdent returns an error unless name is a safe SQL identifier.
func ValidIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid schema identifier: %q", name)
	}
	return nil
}

// Expand substitutes {schema} markers in a SQL template.
func Expand(sqlText, schemaName string) string {
	return strings.ReplaceAll(sqlText, "{schema}", schemaName)
}

// SchemaSQL returns the complete DDL for one project schema as a single
// script, with {schema} substituted. Used for projects created after boot.
func SchemaSQL(schemaName string) string {
	var b strings.Builder
	for _, m := range Migrations(DefaultOffset) {
		b.WriteString(Expand(m.Spec.SQL, schemaName))
		b.WriteString("\n")
	}
	return b.String()
}

// Execer is the subset of database/sql needed to apply migrations.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Apply creates the schema if needed and executes every migration record
// against it. Used by the reference host and the test harness; production
// hosts run the records through their own migration machinery.
func Apply(ctx context.Context, db Execer, schemaName string, migs []Migration) error {
	if err := ValidIdent(schemaName); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schemaName); err != nil {
		return fmt.Errorf("create schema %s: %w", schemaName, err)
	}
	for _, m := range migs {
		if _, err := db.ExecContext(ctx, Expand(m.Spec.SQL, schemaName)); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.ID, m.Description, err)
		}
	}
	return nil
}
