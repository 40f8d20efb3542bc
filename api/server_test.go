package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"folio/domain/book"
	"folio/infra/ledger"
	"folio/infra/registry"
	"folio/service"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := registry.New()
	traded := ledger.NewMemory("TRD")
	base := ledger.NewMemory("BASE")
	bookID, _ := reg.Register("book")
	treasuryID, _ := reg.Register("treasury")

	b := book.New(book.Config{
		PriceTick:    1,
		ContractSize: dec("1"),
		FeeRate:      dec("0.1"),
		Account:      bookID,
		Treasury:     treasuryID,
	}, traded, base, reg)

	svc := service.New(service.Deps{
		Book:     b,
		Registry: reg,
		Traded:   traded,
		Base:     base,
		Genesis: map[string]service.GenesisBalances{
			"0xalice": {Traded: dec("100"), Base: dec("1000")},
			"0xbob":   {Traded: dec("100"), Base: dec("1000")},
		},
	})
	srv := httptest.NewServer(NewServer(slog.Default(), svc).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func register(t *testing.T, srv *httptest.Server, addr string) float64 {
	t.Helper()
	code, body := doJSON(t, srv, "POST", "/api/v1/accounts", map[string]any{"address": addr})
	if code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %v", addr, code, body)
	}
	return body["account_id"].(float64)
}

func TestRegisterAndGetAccount(t *testing.T) {
	srv := newTestServer(t)

	id := register(t, srv, "0xalice")
	if id != 3 {
		t.Fatalf("account id = %v, want 3", id)
	}

	code, body := doJSON(t, srv, "GET", "/api/v1/accounts/0xalice", nil)
	if code != http.StatusOK {
		t.Fatalf("get account: %d", code)
	}
	if body["traded"] != "100" || body["base"] != "1000" {
		t.Fatalf("balances = %v / %v", body["traded"], body["base"])
	}

	code, _ = doJSON(t, srv, "GET", "/api/v1/accounts/0xnobody", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown account: status %d, want 404", code)
	}

	code, _ = doJSON(t, srv, "POST", "/api/v1/accounts", map[string]any{"address": "0xalice"})
	if code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", code)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "0xalice")
	register(t, srv, "0xbob")

	code, body := doJSON(t, srv, "POST", "/api/v1/orders", map[string]any{
		"address": "0xalice", "side": "sell", "price": 10, "amount": "5",
	})
	if code != http.StatusCreated {
		t.Fatalf("place: %d %v", code, body)
	}
	if body["order_id"].(float64) != 1 {
		t.Fatalf("order id = %v", body["order_id"])
	}

	code, body = doJSON(t, srv, "POST", "/api/v1/fills", map[string]any{
		"address": "0xbob", "side": "buy", "max_amount": "3", "max_price": 10, "max_price_points": 5,
	})
	if code != http.StatusOK {
		t.Fatalf("fill: %d %v", code, body)
	}
	if body["filled"] != "3" || body["cost"] != "30" || body["fee"] != "0.3" {
		t.Fatalf("fill body = %v", body)
	}

	code, body = doJSON(t, srv, "GET", "/api/v1/orders/sell/10/1", nil)
	if code != http.StatusOK || body["filled"] != "3" {
		t.Fatalf("get order: %d %v", code, body)
	}

	code, body = doJSON(t, srv, "POST", "/api/v1/orders/claim", map[string]any{
		"address": "0xalice", "side": "sell", "price": 10, "order_id": 1, "max_amount": "3",
	})
	if code != http.StatusOK || body["claimed"] != "3" {
		t.Fatalf("claim: %d %v", code, body)
	}

	code, body = doJSON(t, srv, "POST", "/api/v1/orders/cancel", map[string]any{
		"address": "0xalice", "side": "sell", "price": 10, "order_id": 1, "max_last_order_id": 5,
	})
	if code != http.StatusOK || body["canceled"] != "2" {
		t.Fatalf("cancel: %d %v", code, body)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "0xalice")
	register(t, srv, "0xbob")

	// Placement by a non-owner address resolves, but bad price is 400.
	code, _ := doJSON(t, srv, "POST", "/api/v1/orders", map[string]any{
		"address": "0xalice", "side": "sell", "price": 0, "amount": "1",
	})
	if code != http.StatusBadRequest {
		t.Errorf("bad price: %d, want 400", code)
	}

	doJSON(t, srv, "POST", "/api/v1/orders", map[string]any{
		"address": "0xalice", "side": "sell", "price": 10, "amount": "1",
	})

	// Foreign cancel is forbidden.
	code, _ = doJSON(t, srv, "POST", "/api/v1/orders/cancel", map[string]any{
		"address": "0xbob", "side": "sell", "price": 10, "order_id": 1, "max_last_order_id": 5,
	})
	if code != http.StatusForbidden {
		t.Errorf("foreign cancel: %d, want 403", code)
	}

	// Unknown order is 404.
	code, _ = doJSON(t, srv, "GET", "/api/v1/orders/sell/10/99", nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown order: %d, want 404", code)
	}

	// Crossing placement is a conflict.
	code, _ = doJSON(t, srv, "POST", "/api/v1/orders", map[string]any{
		"address": "0xbob", "side": "buy", "price": 10, "amount": "1",
	})
	if code != http.StatusConflict {
		t.Errorf("crossing placement: %d, want 409", code)
	}

	// Fee claim by a non-treasury caller is forbidden.
	code, _ = doJSON(t, srv, "POST", "/api/v1/fees/claim", map[string]any{"address": "0xalice"})
	if code != http.StatusForbidden {
		t.Errorf("fee claim: %d, want 403", code)
	}
}

func TestBookAndPricePointQueries(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "0xalice")

	for _, p := range []int{12, 10, 15} {
		doJSON(t, srv, "POST", "/api/v1/orders", map[string]any{
			"address": "0xalice", "side": "sell", "price": p, "amount": "1",
		})
	}

	code, body := doJSON(t, srv, "GET", "/api/v1/book?depth=2", nil)
	if code != http.StatusOK {
		t.Fatalf("book: %d", code)
	}
	if body["ask"].(float64) != 10 {
		t.Fatalf("ask = %v", body["ask"])
	}
	asks := body["asks"].([]any)
	if len(asks) != 2 {
		t.Fatalf("asks = %v", asks)
	}
	first := asks[0].(map[string]any)
	if first["price"].(float64) != 10 {
		t.Fatalf("best ask level = %v", first)
	}

	code, body = doJSON(t, srv, "GET", "/api/v1/pricepoints/sell/12", nil)
	if code != http.StatusOK || body["total_placed"] != "1" {
		t.Fatalf("pricepoint: %d %v", code, body)
	}
}

func TestBatchEndpoint(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "0xalice")

	code, body := doJSON(t, srv, "POST", "/api/v1/batch", map[string]any{
		"ops": []map[string]any{
			{"type": "place", "address": "0xalice", "side": "sell", "price": 10, "amount": "1"},
			{"type": "place", "address": "0xalice", "side": "sell", "price": -1, "amount": "1"},
			{"type": "place", "address": "0xalice", "side": "sell", "price": 12, "amount": "1"},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("batch: %d %v", code, body)
	}
	results := body["results"].([]any)
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	r0 := results[0].(map[string]any)
	r1 := results[1].(map[string]any)
	r2 := results[2].(map[string]any)
	if r0["ok"] != true || r2["ok"] != true {
		t.Fatalf("valid legs rejected: %v", results)
	}
	if r1["ok"] != false || r1["error"] == "" {
		t.Fatalf("invalid leg accepted: %v", r1)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	code, body := doJSON(t, srv, "GET", "/health", nil)
	if code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health: %d %v", code, body)
	}
}
