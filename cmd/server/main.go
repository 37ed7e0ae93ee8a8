/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize store (memory, SQLite, or Postgres)
  3. Create API handler with dependencies
  4. Attach Redis summary cache (optional)
  5. Start audit scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080, env PORT)
  -store           Store backend: memory, sqlite, postgres (default: sqlite)
  -db              SQLite database path (default: commission.db)
                   Use ":memory:" for in-memory database
  -dsn             Postgres DSN (env DATABASE_URL)
  -redis           Redis URL for the summary cache (env REDIS_URL)
                   Empty disables caching
  -audit-interval  Scheduler interval for overdue sweep + audit (default: 1h)
  -no-audit        Disable the audit scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and close the store
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/commission.db"

  # Run with in-memory store (demos, no persistence)
  ./server -store=memory

  # Run against Postgres with Redis caching
  ./server -store=postgres -dsn="$DATABASE_URL" -redis="redis://localhost:6379/0"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pleeno/commission-engine/api"
	"github.com/pleeno/commission-engine/plan"
	memstore "github.com/pleeno/commission-engine/plan/store"
	"github.com/pleeno/commission-engine/store/postgres"
	"github.com/pleeno/commission-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment defaults")
	}

	// Flags (defaults pick up the environment where one is set)
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	storeKind := flag.String("store", envOr("STORE_BACKEND", "sqlite"), "Store backend: memory, sqlite, postgres")
	dbPath := flag.String("db", envOr("DATABASE_PATH", "commission.db"), "SQLite database path")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN")
	redisURL := flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL for the summary cache (empty disables)")
	auditInterval := flag.Duration("audit-interval", time.Hour, "Audit scheduler interval")
	noAudit := flag.Bool("no-audit", false, "Disable the audit scheduler")
	flag.Parse()

	// Initialize store
	store, closeStore, err := openStore(*storeKind, *dbPath, *dsn)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	// Initialize handler
	handler := api.NewHandler(store)

	// Summary cache is optional; the engine recomputes on a miss either way.
	if *redisURL != "" {
		cache, err := api.NewRedisCache(*redisURL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, summary cache disabled: %v", err)
		} else {
			handler.UseCache(cache)
			defer cache.Close()
		}
	}

	// Audit scheduler: overdue sweep + commission drift audit
	scheduler := api.NewAuditScheduler(store, handler.Service)
	scheduler.CheckInterval = *auditInterval
	scheduler.Enabled = !*noAudit
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api/v1", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// openStore builds the configured store backend. The returned close function
// is a no-op for the memory store.
func openStore(kind, dbPath, dsn string) (plan.TxStore, func() error, error) {
	switch kind {
	case "memory":
		log.Println("Using in-memory store (data is not persisted)")
		return memstore.NewTxMemory(), func() error { return nil }, nil
	case "sqlite":
		s, err := sqlite.New(dbPath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Using SQLite store at %s", dbPath)
		return s, s.Close, nil
	case "postgres":
		if dsn == "" {
			return nil, nil, fmt.Errorf("postgres store requires -dsn or DATABASE_URL")
		}
		s, err := postgres.New(dsn)
		if err != nil {
			return nil, nil, err
		}
		log.Println("Using Postgres store")
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (want memory, sqlite, or postgres)", kind)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
