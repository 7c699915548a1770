package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stocklink/bomsync/internal/bom"
	"github.com/stocklink/bomsync/internal/config"
	"github.com/stocklink/bomsync/internal/database"
	"github.com/stocklink/bomsync/internal/events"
	"github.com/stocklink/bomsync/internal/handlers"
	"github.com/stocklink/bomsync/internal/models"
	"github.com/stocklink/bomsync/internal/platform"
	"github.com/stocklink/bomsync/internal/ws"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-migrate schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.Account{},
		&models.Product{},
		&models.Variation{},
		&models.BillOfMaterials{},
		&models.BOMItem{},
		&models.StockAudit{},
		&models.SyncRun{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Progress hub for bulk sync websocket feed
	hub := ws.NewHub()
	go hub.Run()

	// 5. Commerce platform clients (per-account, cached sessions)
	sessions := platform.NewSessionCache(cfg.Platform.SessionTTL)
	clients := platform.NewRegistry(db.DB, sessions, cfg.Platform.CallTimeout)

	// 6. Resolution engine wiring
	repo := bom.NewRepository(db.DB)
	audit := bom.NewAuditLogger(db.DB)
	runs := bom.NewRunStore(db.DB)

	orchestrator := bom.NewOrchestrator(repo, clients, audit, runs, cfg.Sync.Parallelism)
	orchestrator.SetProgress(func(runID string, result bom.SyncResult) {
		hub.Broadcast(map[string]interface{}{
			"type":   "sync_progress",
			"run_id": runID,
			"result": result,
		})
	})

	listener := bom.NewDeductionListener(repo, clients, audit, cfg.Sync.Parallelism)

	// 7. Order event consumer (disabled when AMQP_URL not configured)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var consumer *events.Consumer
	if cfg.Events.AMQPURL != "" {
		conn, ch, err := events.Connect(cfg.Events.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to connect to message broker: %v", err)
		}
		consumer = events.NewConsumer(conn, ch, listener)
		if err := consumer.Start(consumerCtx); err != nil {
			log.Fatalf("Failed to start order consumer: %v", err)
		}
		log.Println("✅ Order event consumer started")
	} else {
		log.Println("ℹ️  AMQP_URL not set, order event consumer disabled (webhook only)")
	}

	// 8. HTTP router
	router := handlers.NewRouter(db, cfg, orchestrator, runs, listener, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s [%s]\n", cfg.Port, cfg.NodeEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop order consumer
	stopConsumer()
	if consumer != nil {
		consumer.Close()
	}

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
