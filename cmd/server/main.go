package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardmart/backend/docs"
	"github.com/cardmart/backend/internal/database"
	mW "github.com/cardmart/backend/internal/middleware"
	"github.com/cardmart/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Card Mart Storefront API
// @version 1.0
// @description API for the virtual card record storefront
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("admin.username", "ADMIN_USERNAME")
	viper.BindEnv("admin.password", "ADMIN_PASSWORD")
	viper.BindEnv("admin.seed_balance", "ADMIN_SEED_BALANCE")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Card Mart Storefront API"
	docs.SwaggerInfo.Description = "API for the virtual card record storefront"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewAccountLedgerService(db)
	pricingService := services.NewPricingService(db)
	inventoryService := services.NewInventoryService(db)
	notifyService := services.NewNotifyService(redisClient)
	purchaseService := services.NewPurchaseService(db, ledgerService, inventoryService, pricingService, notifyService)
	accountService := services.NewAccountService(db, ledgerService)
	authService := services.NewAuthService(db, ledgerService, redisClient)
	adminService := services.NewAdminService(db, inventoryService)
	receiptService := services.NewReceiptService(db, redisClient)

	if err := authService.SeedAdmin(context.Background()); err != nil {
		log.Fatalf("Failed to seed bootstrap admin: %v", err)
	}

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Get("/cards", inventoryService.ListAvailableCards)
		r.Get("/tiers", pricingService.ListTiers)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/auth/logout", authService.Logout)
			r.Get("/auth/account", authService.GetAccount)

			r.Get("/balance", accountService.GetBalance)
			r.Post("/deposit", accountService.Deposit)
			r.Get("/transactions", accountService.ListTransactions)
			r.Post("/push-token", accountService.RegisterPushToken)

			r.Post("/purchase", purchaseService.PurchaseCard)

			r.Get("/receipts/{entryId}/qr", receiptService.ReceiptQR)

			// Admin endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminOnly)

				r.Get("/admin/accounts", adminService.ListAccounts)
				r.Put("/admin/accounts/{accountId}", adminService.UpdateAccount)
				r.Delete("/admin/accounts/{accountId}", adminService.DeleteAccount)

				r.Get("/admin/cards", adminService.ListAllCards)
				r.Post("/admin/cards", adminService.CreateCard)
				r.Put("/admin/cards/{cardId}", adminService.UpdateCard)
				r.Delete("/admin/cards/{cardId}", adminService.DeleteCard)

				r.Get("/admin/tiers", pricingService.ListTiers)
				r.Put("/admin/tiers/{tier}", pricingService.SetTierPrice)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
