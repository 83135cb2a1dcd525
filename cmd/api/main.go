package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	"github.com/carlosmourajunior/minhasfinancas/internal/config"
	"github.com/carlosmourajunior/minhasfinancas/internal/database"
	_ "github.com/carlosmourajunior/minhasfinancas/internal/docs" // Import swagger docs
	"github.com/carlosmourajunior/minhasfinancas/internal/handlers"
	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
	"github.com/carlosmourajunior/minhasfinancas/internal/metrics"
	"github.com/carlosmourajunior/minhasfinancas/internal/middleware"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
	"github.com/carlosmourajunior/minhasfinancas/internal/validator"
)

// @title           Minhas Finanças API
// @version         1.0
// @description     Tracks bills, installment plans, recurring expenses and credit card statements.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbManager, err := database.NewManager(database.ConfigFrom(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db := dbManager.DB()
	metrics.Init(db)
	validator.Register()

	opts := services.BillingOptions{
		Clock:        billing.SystemClock{Location: appConfig.Location},
		Alerts:       appConfig.Billing.Alerts(),
		SeriesLength: appConfig.Billing.RecurringSeriesLength,
	}

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	categoryService := services.NewCategoryService(db, appConfig.Billing.StatementCategoryName)
	cardService := services.NewCardService(db, opts)
	obligationService := services.NewObligationService(db, opts)
	statementService := services.NewStatementService(db, categoryService, opts)
	reportService := services.NewReportService(db, opts)
	importService := services.NewImportService(db, opts)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	cardHandler := handlers.NewCardHandler(cardService, auditService)
	obligationHandler := handlers.NewObligationHandler(obligationService, importService, auditService)
	statementHandler := handlers.NewStatementHandler(statementService, auditService)
	reportHandler := handlers.NewReportHandler(reportService)
	importHandler := handlers.NewImportHandler(importService, auditService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", middleware.ScrapeAuth(appConfig.MetricsToken), gin.WrapH(promhttp.Handler()))
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	cards := protected.Group("/cards")
	cards.POST("", cardHandler.CreateCard)
	cards.GET("", cardHandler.GetCards)
	cards.GET("/:id", cardHandler.GetCard)
	cards.PUT("/:id", cardHandler.UpdateCard)
	cards.DELETE("/:id", cardHandler.DeleteCard)
	cards.GET("/:id/estimate", cardHandler.EstimateStatements)
	cards.GET("/:id/statements", statementHandler.GetCardStatements)
	cards.GET("/:id/statements/summary", statementHandler.GetCardStatementSummary)

	statements := protected.Group("/statements")
	statements.GET("/pending", statementHandler.GetPendingStatements)
	statements.GET("/summary", statementHandler.GetStatementSummary)
	statements.GET("/:id", statementHandler.GetStatement)
	statements.POST("/:id/confirm", statementHandler.ConfirmStatement)
	statements.GET("/:id/export", statementHandler.ExportStatement)

	obligations := protected.Group("/obligations")
	obligations.POST("", obligationHandler.CreateObligation)
	obligations.GET("", obligationHandler.GetObligations)
	obligations.GET("/due-today", obligationHandler.GetDueToday)
	obligations.GET("/export", obligationHandler.ExportCSV)
	obligations.GET("/:id", obligationHandler.GetObligation)
	obligations.PUT("/:id", obligationHandler.UpdateObligation)
	obligations.DELETE("/:id", obligationHandler.DeleteObligation)
	obligations.POST("/:id/pay", obligationHandler.PayObligation)
	obligations.POST("/:id/unpay", obligationHandler.UnpayObligation)
	obligations.GET("/:id/installments", obligationHandler.GetInstallmentInfo)

	protected.POST("/import/xlsx", importHandler.ImportXLSX)

	reports := protected.Group("/reports")
	reports.GET("/summary", reportHandler.GetSummary)
	reports.GET("/categories", reportHandler.GetCategoryBreakdown)
	reports.GET("/evolution", reportHandler.GetEvolution)

	log.Infof("Starting Minhas Finanças server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
