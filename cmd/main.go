package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"reservation-market/internal/auth"
	"reservation-market/internal/config"
	"reservation-market/internal/database"
	"reservation-market/internal/handlers"
	"reservation-market/internal/jobs"
	"reservation-market/internal/realtime"
	"reservation-market/internal/repository"
	"reservation-market/internal/services"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	log.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repository and change feed
	repo := repository.NewRepository(database.GetDB())
	feed := realtime.NewHub()

	// Initialize services
	rateLimitService := services.NewRateLimitService(repo, cfg.RateLimit.MaxAttempts, cfg.RateLimit.WindowSeconds)
	bidService := services.NewBidService(database.GetDB(), repo, rateLimitService, feed, cfg.App.BidExpiryDays)
	listingService := services.NewListingService(database.GetDB(), repo, feed)
	saleService := services.NewSaleService(repo)

	// Initialize handlers
	listingHandler := handlers.NewListingHandler(listingService, saleService)
	bidHandler := handlers.NewBidHandler(bidService)
	feedHandler := handlers.NewFeedHandler(feed)

	// Start the expiry sweep job
	sweeper := jobs.NewBidSweeper(bidService, cfg.App.SweepInterval)
	go sweeper.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Public listing routes
	router.GET("/api/listings", listingHandler.GetListings)
	router.GET("/api/listings/:id", listingHandler.GetListing)
	router.GET("/api/listings/:id/stats", listingHandler.GetMarketStats)
	router.GET("/api/listings/:id/sales", listingHandler.GetSaleHistory)
	router.GET("/api/listings/:id/bids", bidHandler.GetListingBids)

	// Change feed (public)
	router.GET("/ws/listings/:id", feedHandler.ListingFeed)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/listings", listingHandler.CreateListing)
		api.PUT("/listings/:id/ask", listingHandler.UpdateAsk)
		api.DELETE("/listings/:id", listingHandler.DeleteListing)
		api.POST("/listings/:id/buy", listingHandler.BuyNow)
		api.POST("/listings/:id/bids", bidHandler.PlaceBid)
		api.POST("/listings/:id/bids/:bidId/accept", bidHandler.AcceptBid)
		api.GET("/my/bids", bidHandler.GetMyBids)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	sweeper.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
