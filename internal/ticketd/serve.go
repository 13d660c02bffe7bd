package ticketd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogenes-ai-code/ticketcore/internal/httpapi"
	"github.com/diogenes-ai-code/ticketcore/internal/schema"
	"github.com/diogenes-ai-code/ticketcore/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ticketing server",
	Long: `Serve starts the HTTP API and the RPC tool endpoint. Project
schemas must be provisioned first with "ticketd migrate".`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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

	deps := buildDeps(cfg, db, logger)
	registry := newRPCRegistry()
	mux := http.NewServeMux()

	tools.Bind(registry, &deps)
	httpapi.Mount(mux, &deps)
	mux.HandleFunc("POST /rpc/{tool}", registry.handle)
	mux.HandleFunc("GET /health", handleHealth(db))

	logger.Printf("serving %d migrations from offset %d",
		len(schema.Migrations(cfg.MigrationOffset)), firstMigrationID(cfg.MigrationOffset))

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	logger.Printf("listening on %s", listener.Addr())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Printf("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

func firstMigrationID(offset int) int {
	return schema.Migrations(offset)[0].ID
}

// handleHealth reports process and database liveness.
func handleHealth(db interface {
	PingContext(ctx context.Context) error
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

var (
	_ httpapi.Router  = (*http.ServeMux)(nil)
	_ tools.Registrar = (*rpcRegistry)(nil)
)
