package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/go-storefront-orderflow/internal/compose"
	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
	"github.com/imrishuroy/go-storefront-orderflow/internal/idempotency"
)

const (
	productsCSV = `CV,DESCRIPCION,PRECIO,IMAGEN,MARCA
A1,Cream,"12,50",crema.jpg,natura
B2,Perfume,abc,,natura
C3,Labial,9.90,,avon
`
	consultantsCSV = `ID,NOMBRE,TELEFONO,EMAIL
5,Lesly,+52 (555) 123-4567,lesly@example.com
`
	validOrder = `{"consultantId":"5","carrito":[{"sku":"A1","descripcion":"Cream","cantidad":2}],"cliente":{"nombre":"Ana","telefono":"5551234567"}}`
)

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []dispatch.Job
	err  error
}

func (s *recordingScheduler) Enqueue(_ context.Context, job dispatch.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *recordingScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func loadCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	dir := t.TempDir()
	products := filepath.Join(dir, "productos.csv")
	consultants := filepath.Join(dir, "consultoras.csv")
	require.NoError(t, os.WriteFile(products, []byte(productsCSV), 0o644))
	require.NoError(t, os.WriteFile(consultants, []byte(consultantsCSV), 0o644))

	store := catalog.NewStore(catalog.Options{
		ProductsFile:    products,
		ConsultantsFile: consultants,
		Resolve: catalog.ResolveOptions{
			StaticPrefix:     "/static",
			PlaceholderImage: "https://via.placeholder.com/300?text=Sin+Imagen",
		},
	}, zap.NewNop())
	require.NoError(t, store.Load())
	return store
}

func newTestRouter(t *testing.T, scheduler Scheduler, ledger idempotency.Ledger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(HandlerConfig{
		Catalog:         loadCatalog(t),
		Ledger:          ledger,
		Scheduler:       scheduler,
		EmailEnabled:    true,
		WhatsAppEnabled: true,
		ChatSuffix:      "@c.us",
		DefaultBrand:    "natura",
		PublicBaseURL:   "https://tienda.example.com/",
	})
}

func do(r http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoot_RedirectsToDefaultBrand(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{}, idempotency.NewMemoryStore(time.Hour))

	w := do(r, http.MethodGet, "/?consultora_id=5", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tienda/natura/5", w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTienda_RendersBrandProducts(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{}, idempotency.NewMemoryStore(time.Hour))

	w := do(r, http.MethodGet, "/tienda/Natura/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Lesly")
	assert.Contains(t, body, "Cream")
	assert.Contains(t, body, "$12.50")
	assert.Contains(t, body, "Consultar")
	assert.Contains(t, body, "/static/crema.jpg")
	assert.NotContains(t, body, "Labial")

	w = do(r, http.MethodGet, "/tienda/natura/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductos(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{}, idempotency.NewMemoryStore(time.Hour))

	w := do(r, http.MethodGet, "/productos?consultora_id=5&marca=AVON", "")
	require.Equal(t, http.StatusOK, w.Code)
	var products []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "C3", products[0]["sku"])

	w = do(r, http.MethodGet, "/productos?consultora_id=5", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Len(t, products, 3)

	w = do(r, http.MethodGet, "/productos?consultora_id=9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConsultorasAndLinks(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{}, idempotency.NewMemoryStore(time.Hour))

	w := do(r, http.MethodGet, "/consultoras", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"nombre":"Lesly"`)

	w = do(r, http.MethodPost, "/links?consultora_id=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var link storeLink
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.Equal(t, "https://tienda.example.com/?consultora_id=5", link.URL)

	w = do(r, http.MethodPost, "/links?consultora_id=nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrder_AcceptsAndSchedules(t *testing.T) {
	for _, path := range []string{"/orders", "/api/orders"} {
		t.Run(path, func(t *testing.T) {
			scheduler := &recordingScheduler{}
			r := newTestRouter(t, scheduler, idempotency.NewMemoryStore(time.Hour))

			w := do(r, http.MethodPost, path, validOrder)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var ack orderAck
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
			assert.Equal(t, "ok", ack.Status)
			assert.NotEmpty(t, ack.OrderID)
			assert.True(t, ack.Notified.Email)
			assert.True(t, ack.Notified.WhatsApp)

			require.Equal(t, 1, scheduler.count())
			job := scheduler.jobs[0]
			assert.Equal(t, ack.OrderID, job.OrderID)
			assert.Equal(t, "Lesly", job.Consultant.Name)
			assert.Equal(t, 2, job.Order.Items[0].Quantity)
			assert.NotEmpty(t, job.RequestID)
		})
	}
}

func TestCreateOrder_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty cart", `{"consultora_id":"5","carrito":[],"cliente":{"nombre":"Ana","telefono":"5551234567"}}`, http.StatusBadRequest, "empty_cart"},
		{"unknown consultant", `{"consultora_id":"99","carrito":[{"sku":"A1","descripcion":"Cream","cantidad":1}],"cliente":{"nombre":"Ana","telefono":"5551234567"}}`, http.StatusNotFound, "unknown_consultant"},
		{"short phone", `{"consultora_id":"5","carrito":[{"sku":"A1","descripcion":"Cream","cantidad":1}],"cliente":{"nombre":"Ana","telefono":"555"}}`, http.StatusBadRequest, "malformed_input"},
		{"zero quantity", `{"consultora_id":"5","carrito":[{"sku":"A1","descripcion":"Cream","cantidad":0}],"cliente":{"nombre":"Ana","telefono":"5551234567"}}`, http.StatusBadRequest, "malformed_input"},
		{"bad json", `{"consultora_id":`, http.StatusBadRequest, "malformed_input"},
		{"string quantity", `{"consultora_id":"5","carrito":[{"sku":"A1","cantidad":"dos"}],"cliente":{"nombre":"Ana","telefono":"5551234567"}}`, http.StatusBadRequest, "malformed_input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scheduler := &recordingScheduler{}
			r := newTestRouter(t, scheduler, idempotency.NewMemoryStore(time.Hour))

			w := do(r, http.MethodPost, "/orders", tc.body)
			assert.Equal(t, tc.status, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["error"])
			assert.Zero(t, scheduler.count(), "no dispatch for rejected orders")
		})
	}
}

func TestCreateOrder_IdempotencyKeyReplays(t *testing.T) {
	scheduler := &recordingScheduler{}
	r := newTestRouter(t, scheduler, idempotency.NewMemoryStore(time.Hour))

	first := do(r, http.MethodPost, "/orders", validOrder, "Idempotency-Key", "cart-123")
	second := do(r, http.MethodPost, "/orders", validOrder, "Idempotency-Key", "cart-123")

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, scheduler.count())

	other := do(r, http.MethodPost, "/orders", validOrder, "Idempotency-Key", "cart-456")
	require.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, 2, scheduler.count())
}

func TestCreateOrder_QueueFullIs503AndRetryable(t *testing.T) {
	scheduler := &recordingScheduler{err: dispatch.ErrQueueFull}
	r := newTestRouter(t, scheduler, idempotency.NewMemoryStore(time.Hour))

	w := do(r, http.MethodPost, "/orders", validOrder, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	scheduler.err = nil
	w = do(r, http.MethodPost, "/orders", validOrder, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, scheduler.count())
}

type failingLedger struct{ *idempotency.MemoryStore }

func (failingLedger) CreateIfNotExists(context.Context, idempotency.Record) (bool, error) {
	return false, errors.New("dynamodb throttled")
}

func TestCreateOrder_LedgerOutage(t *testing.T) {
	scheduler := &recordingScheduler{}
	r := newTestRouter(t, scheduler, failingLedger{idempotency.NewMemoryStore(time.Hour)})

	w := do(r, http.MethodPost, "/orders", validOrder)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, scheduler.count())
}

// brokenMarkLedger loses the FAILED transition after a scheduling error.
type brokenMarkLedger struct{ *idempotency.MemoryStore }

func (brokenMarkLedger) MarkFailed(context.Context, string, string) error {
	return errors.New("dynamodb throttled")
}

func TestCreateOrder_UnscheduledOrderIsNeverReplayedAsAccepted(t *testing.T) {
	scheduler := &recordingScheduler{err: dispatch.ErrQueueFull}
	ledger := brokenMarkLedger{idempotency.NewMemoryStore(time.Hour)}
	r := newTestRouter(t, scheduler, ledger)

	w := do(r, http.MethodPost, "/orders", validOrder, "Idempotency-Key", "k-lost")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	scheduler.err = nil
	w = do(r, http.MethodPost, "/orders", validOrder, "Idempotency-Key", "k-lost")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
	assert.Contains(t, w.Body.String(), "order_not_confirmed")
	assert.Zero(t, scheduler.count())
}

func TestCreateOrder_AckStoredOnlyAfterScheduling(t *testing.T) {
	ledger := idempotency.NewMemoryStore(time.Hour)
	var ackAtEnqueue string
	scheduler := schedulerFunc(func(ctx context.Context, job dispatch.Job) error {
		rec, err := ledger.Get(ctx, job.OrderID)
		require.NoError(t, err)
		require.NotNil(t, rec)
		ackAtEnqueue = rec.Ack
		return nil
	})
	r := newTestRouter(t, scheduler, ledger)

	w := do(r, http.MethodPost, "/orders", validOrder, "Idempotency-Key", "k-order")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, ackAtEnqueue)

	var ack orderAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	rec, err := ledger.Get(context.Background(), ack.OrderID)
	require.NoError(t, err)
	assert.JSONEq(t, w.Body.String(), rec.Ack)
}

type schedulerFunc func(ctx context.Context, job dispatch.Job) error

func (f schedulerFunc) Enqueue(ctx context.Context, job dispatch.Job) error { return f(ctx, job) }

type slowEmail struct{ delay time.Duration }

func (s slowEmail) SendEmail(ctx context.Context, _ compose.Email) error {
	select {
	case <-time.After(s.delay):
		return errors.New("sendgrid unreachable")
	case <-ctx.Done():
		return ctx.Err()
	}
}

type capturingMessenger struct {
	mu    sync.Mutex
	chats []string
}

func (m *capturingMessenger) SendMessage(_ context.Context, chatID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = append(m.chats, chatID)
	return nil
}

// The acknowledgement must not wait for providers, and a failing provider
// only shows up in the ledger.
func TestEndToEnd_AsyncDispatch(t *testing.T) {
	ledger := idempotency.NewMemoryStore(time.Hour)
	wa := &capturingMessenger{}
	d := dispatch.New(dispatch.Options{
		Composer:   compose.Composer{OrdersMailbox: "pedidos@example.com"},
		Email:      slowEmail{delay: 300 * time.Millisecond},
		WhatsApp:   wa,
		ChatSuffix: "@c.us",
		Timeout:    time.Second,
		Ledger:     ledger,
	}, zap.NewNop())
	q, err := dispatch.NewQueue(d, 16, 2, zap.NewNop())
	require.NoError(t, err)
	q.Start()

	r := newTestRouter(t, q, ledger)

	start := time.Now()
	w := do(r, http.MethodPost, "/orders", validOrder)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, elapsed, 200*time.Millisecond)
	var ack orderAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	w = do(r, http.MethodGet, "/orders/"+ack.OrderID+"/notifications", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec idempotency.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, idempotency.StatusDone, rec.Status)
	require.NotNil(t, rec.Email)
	require.NotNil(t, rec.WhatsApp)
	assert.Equal(t, dispatch.StatusFailed, rec.Email.Status)
	assert.Equal(t, dispatch.StatusDelivered, rec.WhatsApp.Status)
	assert.Equal(t, []string{"525551234567@c.us"}, wa.chats)

	w = do(r, http.MethodGet, "/orders/unknown/notifications", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	q, err := dispatch.NewQueue(dispatch.New(dispatch.Options{}, nil), 8, 1, nil)
	require.NoError(t, err)
	r := newTestRouter(t, q, idempotency.NewMemoryStore(time.Hour))

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status  string `json:"status"`
		Catalog struct {
			Version     int64 `json:"version"`
			Products    int   `json:"products"`
			Consultants int   `json:"consultants"`
		} `json:"catalog"`
		Dispatch dispatch.Stats `json:"dispatch"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, int64(1), body.Catalog.Version)
	assert.Equal(t, 3, body.Catalog.Products)
	assert.Equal(t, 1, body.Catalog.Consultants)
	assert.Equal(t, 8, body.Dispatch.Capacity)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{}, idempotency.NewMemoryStore(time.Hour))

	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "https://shop.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type,Idempotency-Key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
