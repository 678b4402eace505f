// Command hybridtable-server wires configuration, the table schema
// registry, the Postgres store adapter, the embedder, the index registry,
// and the hybrid orchestrator into an HTTP server, grounded on
// so-ta-ai-orchestration/cmd/api/main.go's construction order and graceful
// shutdown.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/agentplexus/hybridtable/config"
	"github.com/agentplexus/hybridtable/embed"
	"github.com/agentplexus/hybridtable/httpapi"
	"github.com/agentplexus/hybridtable/hybridsearch"
	"github.com/agentplexus/hybridtable/observe"
	"github.com/agentplexus/hybridtable/registry"
	"github.com/agentplexus/hybridtable/schema"
	"github.com/agentplexus/hybridtable/store/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	schemas, err := config.LoadSchemas(cfg.SchemaFile)
	if err != nil {
		log.Fatalf("load schemas: %v", err)
	}
	schemaRegistry, err := schema.NewRegistry(schemas)
	if err != nil {
		log.Fatalf("build schema registry: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	logger.Info("connected to database")

	adapter := postgres.New(db)
	embedder := embed.NewHashEmbedder(cfg.EmbedderDimensions)
	observer := observe.New(logger)

	if err := os.MkdirAll(cfg.IndexesDir, 0o755); err != nil {
		log.Fatalf("create indexes dir: %v", err)
	}

	ctx := context.Background()
	indexRegistry, err := registry.New(ctx, schemaRegistry, adapter, embedder, cfg.IndexesDir, registry.WithObserver(observer))
	if err != nil {
		log.Fatalf("build index registry: %v", err)
	}
	logger.Info("vector indices loaded")

	orchestrator := hybridsearch.New(schemaRegistry, indexRegistry, adapter, embedder, observer)
	router := httpapi.NewRouter(orchestrator, indexRegistry)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited gracefully")
}
