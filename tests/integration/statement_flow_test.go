package integration

import (
	"net/http"
	"strings"
	"testing"
)

// statementFixture holds a user with a 25/1 card, two purchases in the
// cycle 2025-08-26..2025-09-25 and one in the next cycle.
type statementFixture struct {
	app        *testApp
	token      string
	cardID     string
	categoryID string
	purchases  []string
	nextCycle  string
}

func newStatementFixture(t *testing.T) *statementFixture {
	t.Helper()
	app := setupApp(t, "2025-10-05")
	token, _ := app.registerUser(t, "cards@test.com", "password123")
	f := &statementFixture{
		app:        app,
		token:      token,
		cardID:     app.createCard(t, token, "Nubank", 25, 1),
		categoryID: app.createCategory(t, token, "Mercado"),
	}

	for _, p := range []struct{ amount, due string }{{"100", "2025-08-26"}, {"50.50", "2025-09-25"}} {
		created := app.createObligations(t, token, `{"description":"Compra","amount":"`+p.amount+`","due_date":"`+p.due+
			`","category_id":"`+f.categoryID+`","card_id":"`+f.cardID+`"}`)
		f.purchases = append(f.purchases, created[0]["id"].(string))
	}
	next := app.createObligations(t, token, `{"description":"Compra","amount":"999","due_date":"2025-09-26","category_id":"`+
		f.categoryID+`","card_id":"`+f.cardID+`"}`)
	f.nextCycle = next[0]["id"].(string)
	return f
}

func (f *statementFixture) pending(t *testing.T) []interface{} {
	t.Helper()
	result := f.app.mustRequest(t, http.StatusOK, "GET", "/api/v1/statements/pending", "", f.token)
	return result["statements"].([]interface{})
}

func (f *statementFixture) obligation(t *testing.T, id string) map[string]interface{} {
	t.Helper()
	result := f.app.mustRequest(t, http.StatusOK, "GET", "/api/v1/obligations/"+id, "", f.token)
	return result["obligation"].(map[string]interface{})
}

func (f *statementFixture) statement(t *testing.T, id string) map[string]interface{} {
	t.Helper()
	result := f.app.mustRequest(t, http.StatusOK, "GET", "/api/v1/statements/"+id, "", f.token)
	return result["statement"].(map[string]interface{})
}

func TestStatementFlow_ConfirmPayAndRevert(t *testing.T) {
	f := newStatementFixture(t)

	// Step 1: the closed cycle shows up once, with its predicted amount
	pending := f.pending(t)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending statement, got %d", len(pending))
	}
	stmt := pending[0].(map[string]interface{})
	statementID := stmt["id"].(string)
	if amount(t, stmt["predicted_amount"]) != "150.5" {
		t.Errorf("expected predicted 150.5, got %v", stmt["predicted_amount"])
	}
	if stmt["period_start"] != "2025-08-26T00:00:00Z" || stmt["due_date"] != "2025-10-01T00:00:00Z" {
		t.Errorf("unexpected cycle %v..%v due %v", stmt["period_start"], stmt["period_end"], stmt["due_date"])
	}
	if again := f.pending(t); len(again) != 1 || again[0].(map[string]interface{})["id"] != statementID {
		t.Fatal("expected the same statement on a second call")
	}

	// Step 2: card purchases cannot be paid directly
	rec := f.app.request("POST", "/api/v1/obligations/"+f.purchases[0]+"/pay", "", f.token)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "CARD_PURCHASE_NOT_PAYABLE" {
		t.Fatalf("expected 409 CARD_PURCHASE_NOT_PAYABLE, got %d: %s", rec.Code, rec.Body.String())
	}

	// Step 3: confirm creates the payable
	result := f.app.mustRequest(t, http.StatusOK, "POST", "/api/v1/statements/"+statementID+"/confirm",
		`{"actual_amount":"162.35"}`, f.token)
	confirmed := result["statement"].(map[string]interface{})
	if confirmed["status"] != "confirmed" || confirmed["settlement"] != "awaiting_payment" {
		t.Fatalf("unexpected confirmed statement %v", confirmed)
	}
	payableID := confirmed["obligation_id"].(string)
	payable := f.obligation(t, payableID)
	if payable["kind"] != "card_statement" || amount(t, payable["amount"]) != "162.35" || payable["status"] != "pending" {
		t.Fatalf("unexpected payable %v", payable)
	}
	if len(f.pending(t)) != 0 {
		t.Error("a confirmed statement should no longer be pending")
	}

	// Step 4: paying the payable settles the statement and its purchases
	f.app.mustRequest(t, http.StatusOK, "POST", "/api/v1/obligations/"+payableID+"/pay",
		`{"payment_date":"2025-09-30"}`, f.token)
	if s := f.statement(t, statementID); s["settlement"] != "settled" {
		t.Errorf("expected settled, got %v", s["settlement"])
	}
	for _, id := range f.purchases {
		p := f.obligation(t, id)
		if p["status"] != "paid" || p["payment_date"] != "2025-09-30T00:00:00Z" {
			t.Errorf("purchase %s should be paid on 2025-09-30, got %v %v", id, p["status"], p["payment_date"])
		}
	}
	if p := f.obligation(t, f.nextCycle); p["status"] != "pending" {
		t.Error("a purchase of the next cycle must stay pending")
	}

	// Step 5: unpaying reverts the purchases and reopens the statement
	f.app.mustRequest(t, http.StatusOK, "POST", "/api/v1/obligations/"+payableID+"/unpay", "", f.token)
	s := f.statement(t, statementID)
	if s["status"] != "pending" || s["settlement"] != "open" || s["actual_amount"] != nil {
		t.Errorf("expected the statement reopened, got %v / %v / %v", s["status"], s["settlement"], s["actual_amount"])
	}
	for _, id := range f.purchases {
		if p := f.obligation(t, id); p["status"] != "pending" {
			t.Errorf("purchase %s should be pending again", id)
		}
	}
	if again := f.pending(t); len(again) != 1 || again[0].(map[string]interface{})["id"] != statementID {
		t.Fatal("expected the reopened statement to be pending again")
	}
	rec = f.app.request("POST", "/api/v1/obligations/"+payableID+"/pay", "", f.token)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "STATEMENT_NOT_CONFIRMED" {
		t.Fatalf("expected 409 STATEMENT_NOT_CONFIRMED, got %d: %s", rec.Code, rec.Body.String())
	}

	// Step 6: confirming again reuses the payable
	result = f.app.mustRequest(t, http.StatusOK, "POST", "/api/v1/statements/"+statementID+"/confirm",
		`{"actual_amount":"170"}`, f.token)
	reconfirmed := result["statement"].(map[string]interface{})
	if reconfirmed["obligation_id"] != payableID || amount(t, reconfirmed["actual_amount"]) != "170" {
		t.Fatalf("expected payable %s relinked at 170, got %v", payableID, reconfirmed)
	}
	if p := f.obligation(t, payableID); amount(t, p["amount"]) != "170" || p["status"] != "pending" {
		t.Errorf("expected the payable reset to 170 pending, got %v %v", p["amount"], p["status"])
	}

	// Step 7: deleting the payable reopens the statement
	f.app.mustRequest(t, http.StatusOK, "DELETE", "/api/v1/obligations/"+payableID, "", f.token)
	s = f.statement(t, statementID)
	if s["status"] != "pending" || s["settlement"] != "open" {
		t.Errorf("expected the statement reopened, got %v / %v", s["status"], s["settlement"])
	}
	if _, linked := s["obligation_id"]; linked {
		t.Error("expected the payable link cleared")
	}
	if len(f.pending(t)) != 1 {
		t.Error("expected the reopened statement to be pending again")
	}
}

func TestStatementFlow_ConfirmValidation(t *testing.T) {
	f := newStatementFixture(t)
	statementID := f.pending(t)[0].(map[string]interface{})["id"].(string)

	rec := f.app.request("POST", "/api/v1/statements/"+statementID+"/confirm", `{"actual_amount":"-1"}`, f.token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a negative amount, got %d", rec.Code)
	}

	first := f.app.mustRequest(t, http.StatusOK, "POST", "/api/v1/statements/"+statementID+"/confirm", `{"actual_amount":"0"}`, f.token)
	second := f.app.mustRequest(t, http.StatusOK, "POST", "/api/v1/statements/"+statementID+"/confirm", `{"actual_amount":"10"}`, f.token)
	a := first["statement"].(map[string]interface{})
	b := second["statement"].(map[string]interface{})
	if a["obligation_id"] != b["obligation_id"] {
		t.Error("confirming twice must keep a single payable")
	}
	if amount(t, b["actual_amount"]) != "0" {
		t.Errorf("expected the first confirmation to stand, got %v", b["actual_amount"])
	}

	rec = f.app.request("POST", "/api/v1/statements/0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b/confirm", `{"actual_amount":"1"}`, f.token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatementFlow_EstimateAndExport(t *testing.T) {
	f := newStatementFixture(t)

	result := f.app.mustRequest(t, http.StatusOK, "GET", "/api/v1/cards/"+f.cardID+"/estimate?months=2", "", f.token)
	estimates := result["estimates"].([]interface{})
	if len(estimates) != 2 {
		t.Fatalf("expected 2 estimates, got %d", len(estimates))
	}
	open := estimates[0].(map[string]interface{})
	if open["closing_date"] != "2025-10-25T00:00:00Z" || amount(t, open["predicted_amount"]) != "999" {
		t.Errorf("unexpected open cycle estimate %v", open)
	}

	statementID := f.pending(t)[0].(map[string]interface{})["id"].(string)
	for format, contentType := range map[string]string{
		"pdf":  "application/pdf",
		"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	} {
		rec := f.app.request("GET", "/api/v1/statements/"+statementID+"/export?format="+format, "", f.token)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s export: expected 200, got %d: %s", format, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Content-Type") != contentType || rec.Body.Len() == 0 {
			t.Errorf("%s export: unexpected content type %s", format, rec.Header().Get("Content-Type"))
		}
		if !strings.HasSuffix(rec.Header().Get("Content-Disposition"), "."+format+`"`) {
			t.Errorf("%s export: unexpected disposition %s", format, rec.Header().Get("Content-Disposition"))
		}
	}

	result = f.app.mustRequest(t, http.StatusOK, "GET", "/api/v1/cards/"+f.cardID+"/statements", "", f.token)
	if len(result["data"].([]interface{})) != 1 {
		t.Errorf("expected 1 statement for the card, got %v", result["data"])
	}

	result = f.app.mustRequest(t, http.StatusOK, "GET", "/api/v1/cards/"+f.cardID+"/statements/summary?months=2", "", f.token)
	months := result["months"].([]interface{})
	if len(months) != 2 {
		t.Fatalf("expected 2 summary months, got %d", len(months))
	}
	october := months[0].(map[string]interface{})
	if october["month"] != "2025-10" || october["statements"] != float64(1) || amount(t, october["predicted_amount"]) != "150.5" {
		t.Errorf("unexpected October summary %v", october)
	}

	rec := f.app.request("DELETE", "/api/v1/cards/"+f.cardID, "", f.token)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "CARD_IN_USE" {
		t.Errorf("expected 409 CARD_IN_USE, got %d", rec.Code)
	}
}
