// Package host defines the callables an embedding server injects into the
// ticketing core, and the per-request session built from them.
//
// The core owns no process-wide state. Connection pooling, project
// resolution, and schema mapping all belong to the host; they enter through
// a Deps value at registration time and nowhere else.
package host

import (
	"context"
	"database/sql"
	"log"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/schema"
	"github.com/diogenes-ai-code/ticketcore/internal/ticket"
)

// GetDBFunc returns the connection pool serving the given project.
type GetDBFunc func(ctx context.Context, project string) (*sql.DB, error)

// CheckProjectFunc validates a project name. A non-nil return short-circuits
// the request as a validation failure.
type CheckProjectFunc func(ctx context.Context, project string) error

// GetProjectFunc resolves the canonical project name (for example, applying
// a default when the caller supplied none).
type GetProjectFunc func(ctx context.Context, project string) (string, error)

// ResolveSchemaFunc maps a canonical project name to its database schema.
// Optional; identity when nil.
type ResolveSchemaFunc func(project string) string

// Deps bundles the host-injected callables. GetDB, CheckProject, and
// GetProject are required; ResolveSchema and Logger are optional.
type Deps struct {
	GetDB         GetDBFunc
	CheckProject  CheckProjectFunc
	GetProject    GetProjectFunc
	ResolveSchema ResolveSchemaFunc
	Logger        *log.Logger
}

// Validate reports whether the required callables are present.
func (d *Deps) Validate() error {
	if d.GetDB == nil {
		return errors.Internal("host did not provide a GetDB callable")
	}
	if d.CheckProject == nil {
		return errors.Internal("host did not provide a CheckProject callable")
	}
	if d.GetProject == nil {
		return errors.Internal("host did not provide a GetProject callable")
	}
	return nil
}

// Logf logs through the host's logger when one was provided.
func (d *Deps) Logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

// Session is one request's scoped view of a project: a dedicated connection
// plus a ticket service bound to the project's schema. Callers must Release
// it on every exit path.
type Session struct {
	Project string
	Schema  string
	Svc     *ticket.Service

	conn *sql.Conn
}

// Acquire validates the project, resolves its schema, takes a connection
// from the host's pool, and binds a service to it.
func (d *Deps) Acquire(ctx context.Context, project string) (*Session, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := d.CheckProject(ctx, project); err != nil {
		return nil, errors.Validation("%v", err)
	}
	name, err := d.GetProject(ctx, project)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to resolve project")
	}

	schemaName := name
	if d.ResolveSchema != nil {
		schemaName = d.ResolveSchema(name)
	}
	if err := schema.ValidIdent(schemaName); err != nil {
		return nil, errors.WrapInternal(err, "host resolved an unusable schema for project %q", name)
	}

	pool, err := d.GetDB(ctx, name)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to get database for project %q", name)
	}
	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to acquire connection for project %q", name)
	}

	svc, err := ticket.New(conn, schemaName)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Session{Project: name, Schema: schemaName, Svc: svc, conn: conn}, nil
}

// Release returns the session's connection to the pool. Safe to call more
// than once.
func (s *Session) Release() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
