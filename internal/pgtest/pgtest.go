// Package pgtest provides a shared throwaway Postgres for integration
// tests. One container serves the whole test binary; isolation between
// tests comes from per-test schemas, mirroring how projects isolate in
// production.
package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/diogenes-ai-code/ticketcore/internal/schema"
)

var (
	once     sync.Once
	dsn      string
	startErr error

	schemaSeq atomic.Int64
)

func start() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ticketcore"),
		tcpostgres.WithUsername("ticketcore"),
		tcpostgres.WithPassword("ticketcore"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		startErr = err
		return
	}
	dsn, startErr = ctr.ConnectionString(ctx, "sslmode=disable")
}

// DB returns a pool connected to the shared test container, skipping the
// test when no container runtime is available.
func DB(t *testing.T) *sql.DB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(start)
	if startErr != nil {
		t.Skipf("could not start postgres container: %v", startErr)
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })
	return db
}

// Schema creates a fresh schema with the full ticketing DDL applied and
// drops it when the test finishes.
func Schema(t *testing.T, db *sql.DB) string {
	t.Helper()
	name := fmt.Sprintf("test_%d_%d", time.Now().Unix(), schemaSeq.Add(1))

	ctx := context.Background()
	require.NoError(t, schema.Apply(ctx, db, name, schema.Migrations(0)))
	t.Cleanup(func() {
		db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+name+" CASCADE")
	})
	return name
}
