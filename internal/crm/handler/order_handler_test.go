package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/creative780/crm-backend/internal/config"
	"github.com/creative780/crm-backend/internal/crm/notify"
	"github.com/creative780/crm-backend/internal/crm/repository"
	"github.com/creative780/crm-backend/internal/crm/service"
	"github.com/creative780/crm-backend/internal/crm/testutil"
	"go.uber.org/zap"
)

func setupOrderHandlerTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	dispatcher := notify.NewRedisDispatcher(nil, nil, zap.NewNop())
	services := service.NewServices(db, repos, dispatcher, &config.Config{}, zap.NewNop())
	handlers := NewHandlers(services)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api")
	api.POST("/orders/", handlers.Order.CreateOrder)
	api.GET("/orders/", handlers.Order.ListOrders)
	api.GET("/orders/:id/", handlers.Order.GetOrder)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestCreateOrderGeneratesCodeAndItems(t *testing.T) {
	env := setupOrderHandlerTest(t)
	token := testutil.DefaultTestToken()

	body := map[string]interface{}{
		"clientName":  "Mirage Events",
		"companyName": "Mirage Events FZE",
		"phone":       "+971501234567",
		"urgency":     "Urgent",
		"salesPerson": "sales-001",
		"items": []map[string]interface{}{
			{"name": "Backdrop Banner", "quantity": 3, "design_need_custom": true},
			{"name": "Stock Poster"},
		},
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/orders/", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if !strings.HasPrefix(data["order_code"].(string), "ORD-") {
		t.Fatalf("expected generated order code, got %v", data["order_code"])
	}
	if data["status"].(string) != "new" {
		t.Fatalf("expected new order status, got %v", data["status"])
	}

	items := data["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	// quantity defaults to 1 when omitted
	second := items[1].(map[string]interface{})
	if second["quantity"].(float64) != 1 {
		t.Fatalf("expected default quantity 1, got %v", second["quantity"])
	}
}

func TestCreateOrderWithoutClientNameRejected(t *testing.T) {
	env := setupOrderHandlerTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/orders/", map[string]interface{}{
		"companyName": "No Client Co",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without clientName, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetOrderNotFound(t *testing.T) {
	env := setupOrderHandlerTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/orders/no-such-order/", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if int(resp["code"].(float64)) != 40400 {
		t.Fatalf("expected code 40400, got %v", resp["code"])
	}
}

func TestListOrdersPaginated(t *testing.T) {
	env := setupOrderHandlerTest(t)
	token := testutil.DefaultTestToken()

	for i := 0; i < 3; i++ {
		testutil.SeedTestOrder(t, env.DB, "ord-list-"+string(rune('a'+i)), "ORD-LIST-"+string(rune('A'+i)), "Client", "sales-001")
	}

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/orders/?page=1&page_size=2", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 orders on page 1, got %d", len(items))
	}
	pagination := data["pagination"].(map[string]interface{})
	if pagination["total"].(float64) != 3 {
		t.Fatalf("expected total 3, got %v", pagination["total"])
	}
}
