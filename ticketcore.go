// Package ticketcore is an embeddable, multi-tenant ticketing core.
//
// A host server calls Register once at boot, handing over its RPC registry,
// HTTP router, and the callables that resolve projects to database schemas.
// In return it receives the migration records to run per project schema.
// The core keeps no state of its own; every ticket lives in the host's
// Postgres, one schema per project.
package ticketcore

import (
	"github.com/diogenes-ai-code/ticketcore/internal/host"
	"github.com/diogenes-ai-code/ticketcore/internal/httpapi"
	"github.com/diogenes-ai-code/ticketcore/internal/schema"
	"github.com/diogenes-ai-code/ticketcore/internal/tools"
)

// Host callable types. See their definitions in the host contract.
type (
	GetDBFunc         = host.GetDBFunc
	CheckProjectFunc  = host.CheckProjectFunc
	GetProjectFunc    = host.GetProjectFunc
	ResolveSchemaFunc = host.ResolveSchemaFunc
	Deps              = host.Deps
)

// Handler is an RPC tool bound onto the host's registry.
type Handler = tools.Handler

// Registrar is the host's RPC registry contract.
type Registrar = tools.Registrar

// Router is the host's HTTP mux contract. *http.ServeMux satisfies it.
type Router = httpapi.Router

// Migration is one schema migration record handed back at registration.
type Migration = schema.Migration

// DefaultMigrationOffset is the first migration ID when the host does not
// supply its own offset.
const DefaultMigrationOffset = schema.DefaultOffset

// Options configures Register. Deps is required; RPC and HTTP are each
// optional so a host can expose only one surface.
type Options struct {
	RPC  Registrar
	HTTP Router
	Deps Deps

	// MigrationOffset is the ID of the first migration record.
	// Zero selects DefaultMigrationOffset.
	MigrationOffset int
}

// RegisterResult carries everything the host needs to provision storage:
// the migration records for its migration runner, and SchemaSQL for
// projects created after boot.
type RegisterResult struct {
	Migrations []Migration
	SchemaSQL  func(schemaName string) string
}

// Register binds the RPC tools and HTTP endpoints onto the host and returns
// the migration records. It is synchronous and has no side effects beyond
// the registrations.
func Register(opts Options) (*RegisterResult, error) {
	if err := opts.Deps.Validate(); err != nil {
		return nil, err
	}

	deps := opts.Deps
	if opts.RPC != nil {
		tools.Bind(opts.RPC, &deps)
	}
	if opts.HTTP != nil {
		httpapi.Mount(opts.HTTP, &deps)
	}

	return &RegisterResult{
		Migrations: schema.Migrations(opts.MigrationOffset),
		SchemaSQL:  schema.SchemaSQL,
	}, nil
}
