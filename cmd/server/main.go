package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tcgscan/collection-engine/internal/api"
	"github.com/tcgscan/collection-engine/internal/database"
	"github.com/tcgscan/collection-engine/internal/models"
	"github.com/tcgscan/collection-engine/internal/services"
)

func main() {
	// Optional .env file for local development
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./cardscan.db"
	}

	// Initialize database
	if err := database.Initialize(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	snapshots := database.NewSnapshotCache(database.GetDB())

	// Active game: the collection service keys by id, the catalog by name
	game := models.Game{ID: 1, Name: "dragon ball fusion world"}
	if idStr := os.Getenv("DEFAULT_TCG_ID"); idStr != "" {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			game.ID = id
		}
	}
	if name := os.Getenv("DEFAULT_TCG_NAME"); name != "" {
		game.Name = name
	}
	games := services.NewGameState(game)

	collectionURL := os.Getenv("COLLECTION_API_URL")
	if collectionURL == "" {
		log.Fatal("COLLECTION_API_URL is required")
	}
	catalogURL := os.Getenv("CATALOG_API_URL")
	if catalogURL == "" {
		log.Fatal("CATALOG_API_URL is required")
	}

	// Bearer credential for the collection service. Token storage belongs
	// to the auth collaborator; a static token covers the service account
	// deployment.
	token := services.StaticToken(os.Getenv("API_TOKEN"))

	// Initialize services
	store := services.NewCollectionStore(collectionURL, game.ID, token, snapshots)
	store.LoadCached()

	catalogRate := 5.0
	if rateStr := os.Getenv("CATALOG_RATE_LIMIT"); rateStr != "" {
		if parsed, err := strconv.ParseFloat(rateStr, 64); err == nil {
			catalogRate = parsed
		}
	}
	catalog := services.NewCatalogFetcher(catalogURL, catalogRate, snapshots)

	syncInterval := 15 * time.Minute
	if intervalStr := os.Getenv("SYNC_INTERVAL"); intervalStr != "" {
		if parsed, err := time.ParseDuration(intervalStr); err == nil {
			syncInterval = parsed
		}
	}
	worker := services.NewSyncWorker(store, catalog, games, syncInterval)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start sync worker in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in sync worker: %v - restarting in 30 seconds", r)
					}
				}()
				worker.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Sync worker restarting after panic recovery...")
			}
		}
	}()

	// Setup router
	router := api.SetupRouter(store, catalog, worker, games)

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the sync worker
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
