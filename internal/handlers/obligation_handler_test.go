package handlers

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/pagination"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
)

const testObligationID = "0190a1b2-c3d4-7e5f-8a9b-00000000b001"

// --- mock obligation service ---

type mockObligationService struct {
	createObligationFn   func(req billing.SeriesRequest) ([]models.Obligation, error)
	updateObligationFn   func(userID, obligationID string, upd services.ObligationUpdate) ([]models.Obligation, error)
	getObligationByIDFn  func(userID, obligationID string) (*models.Obligation, error)
	getUserObligationsFn func(userID string, page pagination.PageRequest, filter services.ObligationFilter) (*pagination.PageResponse[models.Obligation], error)
	listObligationsFn    func(userID string, filter services.ObligationFilter) ([]models.Obligation, error)
	getDueTodayFn        func(userID string) ([]models.Obligation, error)
	markPaidFn           func(userID, obligationID string, paymentDate *time.Time, paidAmount decimal.NullDecimal) (*models.Obligation, error)
	unmarkPaidFn         func(userID, obligationID string) (*models.Obligation, error)
	deleteObligationFn   func(userID, obligationID string, wholeGroup bool) (int, error)
	getInstallmentInfoFn func(userID, obligationID string) (*services.InstallmentInfo, error)
}

func (m *mockObligationService) CreateObligation(req billing.SeriesRequest) ([]models.Obligation, error) {
	if m.createObligationFn != nil {
		return m.createObligationFn(req)
	}
	return []models.Obligation{{}}, nil
}

func (m *mockObligationService) UpdateObligation(userID, obligationID string, upd services.ObligationUpdate) ([]models.Obligation, error) {
	if m.updateObligationFn != nil {
		return m.updateObligationFn(userID, obligationID, upd)
	}
	return []models.Obligation{{}}, nil
}

func (m *mockObligationService) GetObligationByID(userID, obligationID string) (*models.Obligation, error) {
	if m.getObligationByIDFn != nil {
		return m.getObligationByIDFn(userID, obligationID)
	}
	return &models.Obligation{}, nil
}

func (m *mockObligationService) GetUserObligations(userID string, page pagination.PageRequest, filter services.ObligationFilter) (*pagination.PageResponse[models.Obligation], error) {
	if m.getUserObligationsFn != nil {
		return m.getUserObligationsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Obligation{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockObligationService) ListObligations(userID string, filter services.ObligationFilter) ([]models.Obligation, error) {
	if m.listObligationsFn != nil {
		return m.listObligationsFn(userID, filter)
	}
	return []models.Obligation{}, nil
}

func (m *mockObligationService) GetDueToday(userID string) ([]models.Obligation, error) {
	if m.getDueTodayFn != nil {
		return m.getDueTodayFn(userID)
	}
	return []models.Obligation{}, nil
}

func (m *mockObligationService) MarkPaid(userID, obligationID string, paymentDate *time.Time, paidAmount decimal.NullDecimal) (*models.Obligation, error) {
	if m.markPaidFn != nil {
		return m.markPaidFn(userID, obligationID, paymentDate, paidAmount)
	}
	return &models.Obligation{Status: models.ObligationStatusPaid}, nil
}

func (m *mockObligationService) UnmarkPaid(userID, obligationID string) (*models.Obligation, error) {
	if m.unmarkPaidFn != nil {
		return m.unmarkPaidFn(userID, obligationID)
	}
	return &models.Obligation{Status: models.ObligationStatusPending}, nil
}

func (m *mockObligationService) DeleteObligation(userID, obligationID string, wholeGroup bool) (int, error) {
	if m.deleteObligationFn != nil {
		return m.deleteObligationFn(userID, obligationID, wholeGroup)
	}
	return 1, nil
}

func (m *mockObligationService) GetInstallmentInfo(userID, obligationID string) (*services.InstallmentInfo, error) {
	if m.getInstallmentInfoFn != nil {
		return m.getInstallmentInfoFn(userID, obligationID)
	}
	return &services.InstallmentInfo{}, nil
}

var _ services.ObligationServicer = (*mockObligationService)(nil)

// --- mock import service ---

type mockImportService struct {
	importXLSXFn func(userID string, r io.Reader) (*services.ImportResult, error)
	exportCSVFn  func(userID string, filter services.ObligationFilter, w io.Writer) error
}

func (m *mockImportService) ImportXLSX(userID string, r io.Reader) (*services.ImportResult, error) {
	if m.importXLSXFn != nil {
		return m.importXLSXFn(userID, r)
	}
	return &services.ImportResult{CreatedCategories: []string{}}, nil
}

func (m *mockImportService) ExportCSV(userID string, filter services.ObligationFilter, w io.Writer) error {
	if m.exportCSVFn != nil {
		return m.exportCSVFn(userID, filter, w)
	}
	return nil
}

var _ services.ImportServicer = (*mockImportService)(nil)

func setupObligationRouter(handler *ObligationHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/obligations", handler.CreateObligation)
	auth.GET("/obligations", handler.GetObligations)
	auth.GET("/obligations/due-today", handler.GetDueToday)
	auth.GET("/obligations/export", handler.ExportCSV)
	auth.GET("/obligations/:id", handler.GetObligation)
	auth.PUT("/obligations/:id", handler.UpdateObligation)
	auth.DELETE("/obligations/:id", handler.DeleteObligation)
	auth.POST("/obligations/:id/pay", handler.PayObligation)
	auth.POST("/obligations/:id/unpay", handler.UnpayObligation)
	auth.GET("/obligations/:id/installments", handler.GetInstallmentInfo)
	return r
}

func newTestObligationHandler(svc *mockObligationService, audit *mockAuditService) *ObligationHandler {
	return NewObligationHandler(svc, &mockImportService{}, audit)
}

func TestObligationHandler_CreateObligation(t *testing.T) {
	t.Run("builds the series request", func(t *testing.T) {
		var got billing.SeriesRequest
		svc := &mockObligationService{
			createObligationFn: func(req billing.SeriesRequest) ([]models.Obligation, error) {
				got = req
				return make([]models.Obligation, req.RemainingInstallments), nil
			},
		}
		r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/obligations", `{
			"description":"Notebook","amount":"250.00","due_date":"2025-10-10",
			"category_id":"`+testCategoryID+`","card_id":"`+testCardID+`",
			"is_installment":true,"total_installments":12,"remaining_installments":9}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.UserID != testUserID || got.CardID == nil || *got.CardID != testCardID {
			t.Errorf("unexpected request owner or card %+v", got)
		}
		if !got.DueDate.Equal(billing.Date(2025, 10, 10)) || !got.Amount.Equal(decimal.NewFromInt(250)) {
			t.Errorf("unexpected due date or amount %s %s", got.DueDate, got.Amount)
		}
		if !got.IsInstallment || got.TotalInstallments != 12 || got.RemainingInstallments != 9 {
			t.Errorf("unexpected plan %+v", got)
		}
		if n := len(parseJSON(t, rec)["obligations"].([]interface{})); n != 9 {
			t.Errorf("expected 9 obligations in the response, got %d", n)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing description", body: `{"amount":10,"due_date":"2025-10-10","category_id":"` + testCategoryID + `"}`},
		{name: "bad due date", body: `{"description":"Luz","amount":10,"due_date":"10/10/2025","category_id":"` + testCategoryID + `"}`},
		{name: "bad category id", body: `{"description":"Luz","amount":10,"due_date":"2025-10-10","category_id":"7"}`},
		{name: "too many installments", body: `{"description":"Luz","amount":10,"due_date":"2025-10-10","category_id":"` + testCategoryID + `","is_installment":true,"total_installments":400,"remaining_installments":1}`},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			r := setupObligationRouter(newTestObligationHandler(&mockObligationService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/obligations", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("returns 400 on invalid plan", func(t *testing.T) {
		svc := &mockObligationService{
			createObligationFn: func(_ billing.SeriesRequest) ([]models.Obligation, error) {
				return nil, apperrors.ErrInvalidInstallmentPlan
			},
		}
		r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/obligations", `{"description":"Luz","amount":10,"due_date":"2025-10-10","category_id":"`+testCategoryID+`","is_installment":true,"total_installments":3,"remaining_installments":5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INSTALLMENT_PLAN")
	})
}

func TestObligationHandler_GetObligations(t *testing.T) {
	t.Run("maps query filters", func(t *testing.T) {
		var got services.ObligationFilter
		svc := &mockObligationService{
			getUserObligationsFn: func(_ string, _ pagination.PageRequest, filter services.ObligationFilter) (*pagination.PageResponse[models.Obligation], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.Obligation{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/obligations?status=overdue&card_id="+testCardID+"&month=10&year=2025", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Status == nil || *got.Status != models.ObligationStatusOverdue {
			t.Errorf("expected overdue status filter, got %v", got.Status)
		}
		if got.CardID == nil || *got.CardID != testCardID || *got.Month != 10 || *got.Year != 2025 {
			t.Errorf("unexpected filter %+v", got)
		}
		if got.CategoryID != nil || got.FromDate != nil {
			t.Error("expected unset filters to stay nil")
		}
	})

	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown status", query: "status=late"},
		{name: "month out of range", query: "month=13"},
		{name: "bad from date", query: "from=2025-13-01"},
		{name: "reversed range", query: "from=2025-10-10&to=2025-10-01"},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			r := setupObligationRouter(newTestObligationHandler(&mockObligationService{}, &mockAuditService{}))

			rec := doRequest(r, "GET", "/obligations?"+tt.query, "")

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestObligationHandler_UpdateObligation(t *testing.T) {
	t.Run("converts and audits", func(t *testing.T) {
		group := "0190a1b2-c3d4-7e5f-8a9b-0000000a0001"
		var got services.ObligationUpdate
		svc := &mockObligationService{
			updateObligationFn: func(_, _ string, upd services.ObligationUpdate) ([]models.Obligation, error) {
				got = upd
				series := make([]models.Obligation, 3)
				for i := range series {
					series[i].InstallmentGroupID = &group
				}
				return series, nil
			},
		}
		audit := &mockAuditService{}
		r := setupObligationRouter(newTestObligationHandler(svc, audit))

		rec := doRequest(r, "PUT", "/obligations/"+testObligationID,
			`{"due_date":"2025-11-05","is_installment":true,"total_installments":5,"remaining_installments":3}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.DueDate == nil || !got.DueDate.Equal(billing.Date(2025, 11, 5)) {
			t.Errorf("expected due date 2025-11-05, got %v", got.DueDate)
		}
		if !got.IsInstallment || got.TotalInstallments != 5 || got.RemainingInstallments != 3 {
			t.Errorf("unexpected update %+v", got)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "CONVERT_OBLIGATION" {
			t.Fatalf("expected a CONVERT_OBLIGATION audit entry, got %v", audit.actions())
		}
		if audit.entries[0].changes["group_id"] != group {
			t.Errorf("expected group id in audit changes, got %v", audit.entries[0].changes)
		}
	})

	t.Run("returns 400 when converting a series member", func(t *testing.T) {
		svc := &mockObligationService{
			updateObligationFn: func(_, _ string, _ services.ObligationUpdate) ([]models.Obligation, error) {
				return nil, apperrors.ErrAlreadyInSeries
			},
		}
		r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/obligations/"+testObligationID, `{"is_recurring":true}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ALREADY_IN_SERIES")
	})
}

func TestObligationHandler_PayObligation(t *testing.T) {
	t.Run("accepts an empty body", func(t *testing.T) {
		var gotDate *time.Time
		var gotAmount decimal.NullDecimal
		svc := &mockObligationService{
			markPaidFn: func(_, _ string, paymentDate *time.Time, paidAmount decimal.NullDecimal) (*models.Obligation, error) {
				gotDate, gotAmount = paymentDate, paidAmount
				return &models.Obligation{Status: models.ObligationStatusPaid}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupObligationRouter(newTestObligationHandler(svc, audit))

		rec := doRequest(r, "POST", "/obligations/"+testObligationID+"/pay", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotDate != nil || gotAmount.Valid {
			t.Error("expected defaults to be left to the service")
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "PAY_OBLIGATION" {
			t.Errorf("expected a PAY_OBLIGATION audit entry, got %v", audit.actions())
		}
	})

	t.Run("passes payment date and amount", func(t *testing.T) {
		var gotDate *time.Time
		var gotAmount decimal.NullDecimal
		svc := &mockObligationService{
			markPaidFn: func(_, _ string, paymentDate *time.Time, paidAmount decimal.NullDecimal) (*models.Obligation, error) {
				gotDate, gotAmount = paymentDate, paidAmount
				return &models.Obligation{Status: models.ObligationStatusPaid}, nil
			},
		}
		r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/obligations/"+testObligationID+"/pay",
			`{"payment_date":"2025-10-09","paid_amount":"131.20"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotDate == nil || !gotDate.Equal(billing.Date(2025, 10, 9)) {
			t.Errorf("expected payment date 2025-10-09, got %v", gotDate)
		}
		if !gotAmount.Valid || !gotAmount.Decimal.Equal(decimal.RequireFromString("131.20")) {
			t.Errorf("expected paid amount 131.20, got %+v", gotAmount)
		}
	})

	t.Run("returns 409 for a card purchase", func(t *testing.T) {
		svc := &mockObligationService{
			markPaidFn: func(_, _ string, _ *time.Time, _ decimal.NullDecimal) (*models.Obligation, error) {
				return nil, apperrors.ErrCardPurchaseNotPayable
			},
		}
		audit := &mockAuditService{}
		r := setupObligationRouter(newTestObligationHandler(svc, audit))

		rec := doRequest(r, "POST", "/obligations/"+testObligationID+"/pay", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CARD_PURCHASE_NOT_PAYABLE")
		if len(audit.entries) != 0 {
			t.Error("expected no audit entry on failure")
		}
	})
}

func TestObligationHandler_UnpayObligation(t *testing.T) {
	audit := &mockAuditService{}
	r := setupObligationRouter(newTestObligationHandler(&mockObligationService{}, audit))

	rec := doRequest(r, "POST", "/obligations/"+testObligationID+"/unpay", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	obligation := parseJSON(t, rec)["obligation"].(map[string]interface{})
	if obligation["status"] != "pending" {
		t.Errorf("expected pending, got %v", obligation["status"])
	}
	if len(audit.entries) != 1 || audit.entries[0].action != "UNPAY_OBLIGATION" {
		t.Errorf("expected an UNPAY_OBLIGATION audit entry, got %v", audit.actions())
	}
}

func TestObligationHandler_DeleteObligation(t *testing.T) {
	t.Run("deletes the whole group", func(t *testing.T) {
		var gotWhole bool
		svc := &mockObligationService{
			deleteObligationFn: func(_, _ string, wholeGroup bool) (int, error) {
				gotWhole = wholeGroup
				return 12, nil
			},
		}
		audit := &mockAuditService{}
		r := setupObligationRouter(newTestObligationHandler(svc, audit))

		rec := doRequest(r, "DELETE", "/obligations/"+testObligationID+"?whole_group=true", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotWhole {
			t.Error("expected whole_group to be passed through")
		}
		if parseJSON(t, rec)["deleted"].(float64) != 12 {
			t.Error("expected 12 deleted")
		}
		if len(audit.entries) != 1 || audit.entries[0].changes["deleted"] != 12 {
			t.Errorf("unexpected audit entries %+v", audit.entries)
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockObligationService{
			deleteObligationFn: func(_, _ string, _ bool) (int, error) {
				return 0, apperrors.ErrObligationNotFound
			},
		}
		r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/obligations/"+testObligationID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestObligationHandler_GetInstallmentInfo(t *testing.T) {
	t.Run("returns the plan", func(t *testing.T) {
		svc := &mockObligationService{
			getInstallmentInfoFn: func(_, _ string) (*services.InstallmentInfo, error) {
				return &services.InstallmentInfo{Total: 12, Paid: 3, Pending: 9, TotalAmount: decimal.NewFromInt(1200)}, nil
			},
		}
		r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/obligations/"+testObligationID+"/installments", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		info := parseJSON(t, rec)["installments"].(map[string]interface{})
		if info["total"].(float64) != 12 || info["pending"].(float64) != 9 {
			t.Errorf("unexpected plan %v", info)
		}
	})

	t.Run("returns 400 for a simple obligation", func(t *testing.T) {
		svc := &mockObligationService{
			getInstallmentInfoFn: func(_, _ string) (*services.InstallmentInfo, error) {
				return nil, apperrors.ErrNotInstallment
			},
		}
		r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/obligations/"+testObligationID+"/installments", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "NOT_INSTALLMENT")
	})
}

func TestObligationHandler_ExportCSV(t *testing.T) {
	var gotFilter services.ObligationFilter
	importSvc := &mockImportService{
		exportCSVFn: func(_ string, filter services.ObligationFilter, w io.Writer) error {
			gotFilter = filter
			_, err := io.WriteString(w, "id,description\n1,Luz\n")
			return err
		},
	}
	handler := NewObligationHandler(&mockObligationService{}, importSvc, &mockAuditService{})
	r := setupObligationRouter(handler)

	rec := doRequest(r, "GET", "/obligations/export?status=paid", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("expected text/csv, got %s", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "obligations.csv") {
		t.Errorf("unexpected disposition %s", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != "id,description\n1,Luz\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if gotFilter.Status == nil || *gotFilter.Status != models.ObligationStatusPaid {
		t.Error("expected the paid filter")
	}
}

func TestObligationHandler_GetDueToday(t *testing.T) {
	svc := &mockObligationService{
		getDueTodayFn: func(_ string) ([]models.Obligation, error) {
			return []models.Obligation{{Description: "Luz"}}, nil
		},
	}
	r := setupObligationRouter(newTestObligationHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/obligations/due-today", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if n := len(parseJSON(t, rec)["obligations"].([]interface{})); n != 1 {
		t.Errorf("expected 1 obligation, got %d", n)
	}
}
