package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/suturelab/tissuesim/internal/api"
	"github.com/suturelab/tissuesim/internal/api/handlers"
	"github.com/suturelab/tissuesim/internal/config"
	"github.com/suturelab/tissuesim/internal/database"
	"github.com/suturelab/tissuesim/internal/migrations"
	"github.com/suturelab/tissuesim/internal/redis"
	"github.com/suturelab/tissuesim/internal/relay"
	"github.com/suturelab/tissuesim/internal/session"
	"github.com/suturelab/tissuesim/internal/store"
	"github.com/suturelab/tissuesim/internal/tissue"
	"github.com/suturelab/tissuesim/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if scale := cfg.TimeScale(); scale != 1 {
		log.Printf("[SIM] SIM_TICK_HZ=%d runs simulated time at %.2fx wall time", cfg.TickHz, scale)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres is optional; without it sessions live in memory only.
	var eventStore session.EventStore
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			log.Println("↗ Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, migrations.DefaultDir); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		eventStore = store.New(db)
	} else {
		log.Println("[DB] DATABASE_URL not set - contact events will not be persisted")
	}

	// Redis is optional; without it the instance runs alone.
	var (
		sessionRelay session.Relay
		summaryCache handlers.SummaryCache
		rl           *relay.Relay
	)
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		rl = relay.New(rdb, cfg.InstanceID)
		sessionRelay = rl
		summaryCache = rl
	} else {
		log.Println("[RELAY] REDIS_URL not set - running as a single instance")
	}

	mgr := session.NewManager(ctx, tissue.DefaultMaterials(), session.OptionsFromConfig(cfg), eventStore, sessionRelay)

	hub := ws.NewHub()
	go hub.Run(ctx)
	mgr.SetBroadcaster(hub)

	if rl != nil {
		rl.StartSubscriber(ctx, mgr)
	}

	// Close sessions nobody has touched within the idle timeout
	mgr.StartExpiryChecker(ctx, time.Duration(cfg.ExpiryCheckSeconds)*time.Second)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, mgr, hub, summaryCache, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Printf("Starting tissuesim server on port %s (instance=%s)", port, cfg.InstanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	mgr.Shutdown(shutdownCtx)
}
