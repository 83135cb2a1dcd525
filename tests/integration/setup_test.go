package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	"github.com/carlosmourajunior/minhasfinancas/internal/config"
	"github.com/carlosmourajunior/minhasfinancas/internal/handlers"
	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
	"github.com/carlosmourajunior/minhasfinancas/internal/middleware"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
	"github.com/carlosmourajunior/minhasfinancas/internal/testutil"
	"github.com/carlosmourajunior/minhasfinancas/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	config.Get().JWTSecret = "integration-secret"
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite database. today is the day every service sees as the current one.
func setupApp(t *testing.T, today string) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	day, err := time.Parse(time.DateOnly, today)
	if err != nil {
		t.Fatalf("bad test day %q: %v", today, err)
	}
	opts := services.BillingOptions{Clock: billing.FixedClock(day)}

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	categoryService := services.NewCategoryService(db, "")
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

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	cards := protected.Group("/cards")
	cards.POST("", cardHandler.CreateCard)
	cards.GET("", cardHandler.GetCards)
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

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// mustRequest is request that fails the test unless the status matches.
func (app *testApp) mustRequest(t *testing.T, want int, method, path, body, token string) map[string]interface{} {
	t.Helper()
	rec := app.request(method, path, body, token)
	if rec.Code != want {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, want, rec.Code, rec.Body.String())
	}
	if rec.Body.Len() == 0 || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		return nil
	}
	return parseJSON(t, rec)
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected an error object in %s", rec.Body.String())
	}
	return errObj["code"].(string)
}

// registerUser registers a new user and returns the token and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (token, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"name":"Test User"}`, email, password)
	result := app.mustRequest(t, http.StatusCreated, "POST", "/api/v1/auth/register", body, "")
	user := result["user"].(map[string]interface{})
	return result["token"].(string), user["id"].(string)
}

// createCategory creates a category and returns its ID.
func (app *testApp) createCategory(t *testing.T, token, name string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"color":"#4CAF50"}`, name)
	result := app.mustRequest(t, http.StatusCreated, "POST", "/api/v1/categories", body, token)
	return result["category"].(map[string]interface{})["id"].(string)
}

// createCard creates a card and returns its ID.
func (app *testApp) createCard(t *testing.T, token, name string, closingDay, dueDay int) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"brand":"visa","closing_day":%d,"due_day":%d}`, name, closingDay, dueDay)
	result := app.mustRequest(t, http.StatusCreated, "POST", "/api/v1/cards", body, token)
	return result["card"].(map[string]interface{})["id"].(string)
}

// createObligations posts an obligation and returns the generated records.
func (app *testApp) createObligations(t *testing.T, token, body string) []map[string]interface{} {
	t.Helper()
	result := app.mustRequest(t, http.StatusCreated, "POST", "/api/v1/obligations", body, token)
	raw := result["obligations"].([]interface{})
	out := make([]map[string]interface{}, len(raw))
	for i := range raw {
		out[i] = raw[i].(map[string]interface{})
	}
	return out
}

// amount reads a decimal serialized as a JSON string.
func amount(t *testing.T, v interface{}) string {
	t.Helper()
	s, ok := v.(string)
	if !ok {
		t.Fatalf("expected a decimal string, got %T %v", v, v)
	}
	return s
}
