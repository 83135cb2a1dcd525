package integration

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows = append([][]any{{"Description", "Amount", "Due_Date", "Category", "Card", "Notes"}}, rows...)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func (app *testApp) upload(t *testing.T, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/import/xlsx", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestImportFlow(t *testing.T) {
	app := setupApp(t, "2025-10-05")
	token, _ := app.registerUser(t, "import@test.com", "password123")
	cardID := app.createCard(t, token, "Nubank", 25, 1)

	t.Run("rejects the whole file when a row fails", func(t *testing.T) {
		rec := app.upload(t, token, "contas.xlsx", buildWorkbook(t, [][]any{
			{"Aluguel", "1500", "2025-10-10", "Moradia", "", ""},
			{"Mercado", "abc", "2025-10-20", "Alimentação", "", ""},
			{"Cinema", "40", "2025-10-21", "Lazer", "Inter", ""},
		}))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if n := len(result["errors"].([]interface{})); n != 2 {
			t.Errorf("expected 2 row errors, got %d", n)
		}
		listed := app.mustRequest(t, http.StatusOK, "GET", "/api/v1/obligations", "", token)
		if len(listed["data"].([]interface{})) != 0 {
			t.Error("expected nothing imported")
		}
		categories := app.mustRequest(t, http.StatusOK, "GET", "/api/v1/categories", "", token)
		if len(categories["data"].([]interface{})) != 0 {
			t.Error("expected no categories left behind")
		}
	})

	t.Run("imports every row", func(t *testing.T) {
		rec := app.upload(t, token, "contas.xlsx", buildWorkbook(t, [][]any{
			{"Aluguel", "1500", "2025-10-10", "Moradia", "", ""},
			{"Mercado", "250,40", "20/10/2025", "Alimentação", "nubank", "semanal"},
		}))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["imported"].(float64) != 2 || len(result["created_categories"].([]interface{})) != 2 {
			t.Errorf("unexpected result %v", result)
		}

		listed := app.mustRequest(t, http.StatusOK, "GET", "/api/v1/obligations?card_id="+cardID, "", token)
		purchases := listed["data"].([]interface{})
		if len(purchases) != 1 {
			t.Fatalf("expected 1 card purchase, got %d", len(purchases))
		}
		p := purchases[0].(map[string]interface{})
		if amount(t, p["amount"]) != "250.4" || p["due_date"] != "2025-10-20T00:00:00Z" {
			t.Errorf("unexpected imported purchase %v", p)
		}
	})

	t.Run("rejects other file types", func(t *testing.T) {
		rec := app.upload(t, token, "contas.csv", []byte("a,b"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
