package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"pedidos-backend/internal/config"
	"pedidos-backend/internal/database"
	"pedidos-backend/internal/handlers"
	"pedidos-backend/internal/imagestore"
	"pedidos-backend/internal/middleware"
	"pedidos-backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database client
	dbClient, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database client: %v", err)
	}
	defer dbClient.Close()

	// Run migrations
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := migrator.Run(); err != nil {
		migrator.Close()
		log.Fatalf("Migration failed: %v", err)
	}
	migrator.Close()
	log.Println("Migrations completed successfully")

	// Hosted image store client
	storeClient, err := imagestore.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.StorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize image store client: %v", err)
	}

	// Temp dir for multipart uploads
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	pedidoService := service.New(dbClient, storeClient, cfg.StorageFolder)
	pedidosHandler := handlers.NewPedidosHandler(pedidoService)

	// Setup router
	router := gin.Default()

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// Temp uploads are also served statically, an artifact of the upload
	// middleware rather than part of the API.
	router.Static("/uploads", cfg.UploadDir)

	auth := middleware.AuthMiddleware(cfg)
	upload := middleware.UploadMiddleware(cfg.UploadDir)

	// Pedido routes
	router.POST("/pedidos", auth, upload, pedidosHandler.Create)
	router.GET("/pedidos", pedidosHandler.List)
	router.GET("/pedidos/user", auth, pedidosHandler.ListByUser)
	router.GET("/pedidos/:id", pedidosHandler.Get)
	router.PUT("/pedidos/:id", auth, upload, pedidosHandler.Update)
	router.DELETE("/pedidos/:id", auth, pedidosHandler.Delete)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
