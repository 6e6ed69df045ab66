package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/MikeMC777/product-service/internal/httpx"
	prod "github.com/MikeMC777/product-service/internal/product"
)

// unreachableStore answers CRUD from memory but fails its health check.
type unreachableStore struct {
	*prod.MemoryStore
}

func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

// failingStore fails every read and transaction with a storage error.
type failingStore struct {
	*prod.MemoryStore
	err error
}

func (s failingStore) ListAll(context.Context) ([]prod.Product, error) { return nil, s.err }

func (s failingStore) FindByID(context.Context, int64) (*prod.Product, error) { return nil, s.err }

func (s failingStore) WithTx(context.Context, prod.TxFunc) error { return s.err }

func newTestRouter(t *testing.T, store prod.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := prod.NewService(store,
		tracenoop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"),
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	return newRouter(svc, store, metrics, zerolog.Nop())
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeProduct(t *testing.T, w *httptest.ResponseRecorder) prod.ProductResponse {
	t.Helper()
	var got prod.ProductResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return got
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var got prod.HTTPError
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return got.Error
}

func wantPrice(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("price=%s, want %s", got, want)
	}
}

// POST /products
func TestCreateProduct(t *testing.T) {
	r := newTestRouter(t, prod.NewMemoryStore())

	// no tax
	{
		w := do(r, http.MethodPost, "/products", `{"name":"Monitor","price":1500}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		got := decodeProduct(t, w)
		if got.ID != 1 || got.Name != "Monitor" {
			t.Fatalf("unexpected product: %+v", got)
		}
		wantPrice(t, got.Price, "1500")
	}

	// tax folded into the price
	{
		w := do(r, http.MethodPost, "/products", `{"name":"Monitor","price":1500,"tax":110}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		got := decodeProduct(t, w)
		if got.ID != 2 {
			t.Fatalf("id=%d, want 2", got.ID)
		}
		wantPrice(t, got.Price, "1610")
	}

	// explicit null tax adds nothing
	{
		w := do(r, http.MethodPost, "/products", `{"name":"Cable","price":"9.99","tax":null}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		wantPrice(t, decodeProduct(t, w).Price, "9.99")
	}
}

func TestCreateProduct_Rejected(t *testing.T) {
	store := prod.NewMemoryStore()
	r := newTestRouter(t, store)

	cases := []struct {
		name, body, wantMsg string
	}{
		{"negative price", `{"name":"Monitor","price":-1}`, "Price cannot be negative"},
		{"negative price with tax", `{"name":"Monitor","price":-1,"tax":500}`, "Price cannot be negative"},
		{"missing price", `{"name":"Monitor"}`, "Price"},
		{"missing name", `{"price":10}`, "Name"},
		{"empty name", `{"name":"","price":10}`, "Name"},
		{"malformed json", `{"name":`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/products", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400 body=%s", w.Code, w.Body.String())
			}
			if msg := decodeError(t, w); !strings.Contains(msg, tc.wantMsg) {
				t.Fatalf("error=%q, want it to contain %q", msg, tc.wantMsg)
			}
		})
	}

	all, _ := store.ListAll(context.Background())
	if len(all) != 0 {
		t.Fatalf("rejected requests persisted %d products", len(all))
	}
}

// GET /products
func TestListProducts(t *testing.T) {
	r := newTestRouter(t, prod.NewMemoryStore())

	// empty store answers with an empty array, not null
	{
		w := do(r, http.MethodGet, "/products", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		if body := strings.TrimSpace(w.Body.String()); body != "[]" {
			t.Fatalf("body=%s, want []", body)
		}
	}

	for _, body := range []string{
		`{"name":"A","price":1}`,
		`{"name":"B","price":2}`,
		`{"name":"C","price":3}`,
	} {
		if w := do(r, http.MethodPost, "/products", body); w.Code != http.StatusCreated {
			t.Fatalf("seed failed: %d %s", w.Code, w.Body.String())
		}
	}

	w := do(r, http.MethodGet, "/products", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got []prod.ProductResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	for i, name := range []string{"A", "B", "C"} {
		if got[i].Name != name || got[i].ID != int64(i+1) {
			t.Fatalf("item %d = %+v, want %s with id %d", i, got[i], name, i+1)
		}
	}
}

// GET /products/:id
func TestGetProduct(t *testing.T) {
	r := newTestRouter(t, prod.NewMemoryStore())
	do(r, http.MethodPost, "/products", `{"name":"Headset","price":149.9}`)

	// OK
	{
		w := do(r, http.MethodGet, "/products/1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		got := decodeProduct(t, w)
		if got.ID != 1 || got.Name != "Headset" {
			t.Fatalf("unexpected product: %+v", got)
		}
		wantPrice(t, got.Price, "149.9")
	}

	// 404
	{
		w := do(r, http.MethodGet, "/products/999", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("status=%d, want 404 body=%s", w.Code, w.Body.String())
		}
		if msg := decodeError(t, w); msg != "Product not found" {
			t.Fatalf("error=%q", msg)
		}
	}

	// non-numeric id
	{
		w := do(r, http.MethodGet, "/products/abc", "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status=%d, want 400 body=%s", w.Code, w.Body.String())
		}
	}
}

// PUT /products/:id
func TestUpdateProduct(t *testing.T) {
	r := newTestRouter(t, prod.NewMemoryStore())
	do(r, http.MethodPost, "/products", `{"name":"Monitor","price":1500}`)

	// full replacement with tax
	{
		w := do(r, http.MethodPut, "/products/1", `{"name":"Monitor 4K","price":2000,"tax":100}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		got := decodeProduct(t, w)
		if got.ID != 1 || got.Name != "Monitor 4K" {
			t.Fatalf("unexpected product: %+v", got)
		}
		wantPrice(t, got.Price, "2100")

		stored := decodeProduct(t, do(r, http.MethodGet, "/products/1", ""))
		wantPrice(t, stored.Price, "2100")
	}

	// negative price leaves the product untouched
	{
		w := do(r, http.MethodPut, "/products/1", `{"name":"Broken","price":-5}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status=%d, want 400 body=%s", w.Code, w.Body.String())
		}
		stored := decodeProduct(t, do(r, http.MethodGet, "/products/1", ""))
		if stored.Name != "Monitor 4K" {
			t.Fatalf("product changed after rejected update: %+v", stored)
		}
	}

	// missing product
	{
		w := do(r, http.MethodPut, "/products/42", `{"name":"Ghost","price":1}`)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status=%d, want 404 body=%s", w.Code, w.Body.String())
		}
	}

	// bad id
	{
		w := do(r, http.MethodPut, "/products/x1", `{"name":"Ghost","price":1}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status=%d, want 400 body=%s", w.Code, w.Body.String())
		}
	}
}

// DELETE /products/:id
func TestDeleteProduct(t *testing.T) {
	r := newTestRouter(t, prod.NewMemoryStore())
	do(r, http.MethodPost, "/products", `{"name":"X","price":1}`)

	// OK
	{
		w := do(r, http.MethodDelete, "/products/1", "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		if w.Body.Len() != 0 {
			t.Fatalf("204 with body %q", w.Body.String())
		}
		if w := do(r, http.MethodGet, "/products/1", ""); w.Code != http.StatusNotFound {
			t.Fatalf("deleted product still readable: %d", w.Code)
		}
	}

	// 404 on second delete
	{
		w := do(r, http.MethodDelete, "/products/1", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("status=%d, want 404 body=%s", w.Code, w.Body.String())
		}
	}
}

func TestOperationalEndpoints(t *testing.T) {
	r := newTestRouter(t, prod.NewMemoryStore())

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/swagger/doc.json"} {
		w := do(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status=%d body=%s", path, w.Code, w.Body.String())
		}
	}

	down := newTestRouter(t, unreachableStore{prod.NewMemoryStore()})
	if w := do(down, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status=%d, want 503", w.Code)
	}
	if w := do(down, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz must not depend on the store, got %d", w.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	r := newTestRouter(t, prod.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set(httpx.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(httpx.RequestIDHeader); got != "req-123" {
		t.Fatalf("request id=%q, want req-123", got)
	}

	w = do(r, http.MethodGet, "/products", "")
	if w.Header().Get(httpx.RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestStoreFailure_Returns500WithoutDetails(t *testing.T) {
	const detail = "dial tcp 10.0.0.5:5432: connection refused"
	r := newTestRouter(t, failingStore{MemoryStore: prod.NewMemoryStore(), err: errors.New(detail)})

	cases := []struct{ method, path, body string }{
		{http.MethodGet, "/products", ""},
		{http.MethodGet, "/products/1", ""},
		{http.MethodPost, "/products", `{"name":"Monitor","price":1500}`},
		{http.MethodPut, "/products/1", `{"name":"Monitor","price":1500}`},
		{http.MethodDelete, "/products/1", ""},
	}
	for _, tc := range cases {
		w := do(r, tc.method, tc.path, tc.body)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s status=%d, want 500 body=%s", tc.method, tc.path, w.Code, w.Body.String())
		}
		if msg := decodeError(t, w); msg != "internal server error" {
			t.Fatalf("%s %s error=%q", tc.method, tc.path, msg)
		}
		if strings.Contains(w.Body.String(), "10.0.0.5") {
			t.Fatalf("%s %s leaked the storage error: %s", tc.method, tc.path, w.Body.String())
		}
	}
}
