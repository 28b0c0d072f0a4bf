package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"catalog-service/internal/clients"
	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/importer"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
)

// @title Catalog Service API
// @version 1.0.0
// @description Product catalog with CSV/XLSX import, variation generation and image rehosting
// @host localhost:8087
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(logrus.DebugLevel)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Redis is optional: without it the repository reads straight from the
	// database.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		} else {
			redisClient = redis.NewClient(redisOpts)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
				redisClient = nil
			} else {
				log.Println("✓ Redis connected successfully")
			}
			cancel()
		}
	}

	catalogRepo := repository.NewCatalogRepository(db, redisClient)

	// Event publisher only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher()
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	mediaClient := clients.NewMediaClient(cfg.MediaServiceURL)

	// Keep a typed-nil publisher out of the interface value.
	var eventSink importer.EventSink
	if eventsPublisher != nil {
		eventSink = eventsPublisher
	}

	pipeline := importer.New(catalogRepo, mediaClient, eventSink)

	catalogHandler := handlers.NewCatalogHandler(catalogRepo, mediaClient, eventSink, cfg.DefaultPageSize, cfg.MaxPageSize)
	importHandler := handlers.NewImportHandler(pipeline, cfg.ImportBatchSize, cfg.MaxUploadBytes)
	batchHandler := handlers.NewBatchHandler(catalogRepo)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	api.Use(middleware.UserContextMiddleware())
	api.Use(middleware.TenantMiddleware())
	{
		catalog := api.Group("/catalog")
		{
			catalog.GET("/products", catalogHandler.GetProducts)
			catalog.GET("/products/:id", catalogHandler.GetProduct)
			catalog.POST("/products", catalogHandler.CreateProduct)
			catalog.PUT("/products/:id", catalogHandler.UpdateProduct)
			catalog.DELETE("/products/:id", catalogHandler.DeleteProduct)

			catalog.GET("/products/:id/variations", catalogHandler.GetVariations)
			catalog.POST("/products/:id/variations", catalogHandler.CreateVariation)
			catalog.PUT("/variations/:id", catalogHandler.UpdateVariation)
			catalog.DELETE("/variations/:id", catalogHandler.DeleteVariation)

			catalog.POST("/products/:id/images", catalogHandler.AddImage)
			catalog.DELETE("/images/:id", catalogHandler.DeleteImage)

			catalog.GET("/sizes", catalogHandler.GetSizes)
			catalog.GET("/frame-types", catalogHandler.GetFrameTypes)
			catalog.GET("/categories", catalogHandler.GetCategories)

			catalog.GET("/import/template", importHandler.GetImportTemplate)
			catalog.POST("/import", importHandler.ImportProducts)
			catalog.POST("/import/preview", importHandler.PreviewImport)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/batch", batchHandler.ExecuteBatch)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down catalog-service...")
	log.Println("Catalog service stopped")
}
