package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/app"
	"pharmaflow/internal/config"
	appctx "pharmaflow/internal/core/context"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/domain/auth"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/infrastructure/export"
	v1 "pharmaflow/internal/infrastructure/http/v1"
	"pharmaflow/internal/infrastructure/http/v1/middleware"
	"pharmaflow/internal/infrastructure/lock"
	"pharmaflow/internal/infrastructure/storage/memory"
)

type api struct {
	t         *testing.T
	handler   http.Handler
	store     *memory.Store
	jwt       *auth.JWTService
	admin     string
	product   *product.Product
	warehouse *warehouse.Warehouse
}

func newAPI(t *testing.T) *api {
	t.Helper()

	cfg := &config.Config{
		Domain: config.DomainConfig{ConflictRetries: 3, ExpiryAlertDays: 30, IdempotencyTTL: time.Hour},
	}
	store := memory.New()
	st := app.NewMemoryStorage(store, cfg)

	authz, err := security.NewPolicyAuthorizer(nil)
	require.NoError(t, err)
	svcs := app.NewServices(st, lock.NewLocal(time.Second), authz, cfg, app.Options{})

	seedCtx := security.WithSystemActor(context.Background())
	prod := product.NewProduct("AMOX-250", "Amoxicillin 250mg", "box")
	require.NoError(t, store.Products().Create(seedCtx, prod))
	wh := warehouse.NewWarehouse("WH-MAIN", "Main warehouse", warehouse.TypeMain)
	require.NoError(t, store.Warehouses().Create(seedCtx, wh))

	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret", "pharmaflow"))
	a := &api{
		t:     t,
		store: store,
		jwt:   jwtSvc,
		handler: v1.NewRouter(v1.RouterConfig{
			JWTValidator:  jwtSvc,
			Authorizer:    authz,
			Idempotency:   st.Idempotency,
			Health:        st,
			StorageDriver: st.Driver,
			QC:            svcs.QC,
			Approvals:     svcs.Approvals,
			Inventory:     svcs.Inventory,
			Products:      svcs.Products,
			Warehouses:    svcs.Warehouses,
		}),
		product:   prod,
		warehouse: wh,
	}
	a.admin = a.token(appctx.UserContext{UserID: "qa-lead", IsAdmin: true})
	return a
}

func (a *api) token(u appctx.UserContext) string {
	a.t.Helper()
	tok, _, err := a.jwt.GenerateAccessToken(u)
	require.NoError(a.t, err)
	return tok
}

func (a *api) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func fields(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	details, ok := body["details"].(map[string]any)
	require.True(t, ok, "details missing: %v", body)
	f, ok := details["fields"].(map[string]any)
	require.True(t, ok, "fields missing: %v", body)
	return f
}

func qcBody(statuses ...string) map[string]any {
	items := make([]map[string]any, len(statuses))
	for i, st := range statuses {
		items[i] = map[string]any{"itemNumber": i + 1, "status": st}
	}
	return map[string]any{
		"qcType":       "incoming",
		"supplierName": "Acme Pharma",
		"products": []map[string]any{{
			"productCode": "AMOX-250",
			"batchNumber": "LOT-7",
			"receivedQty": len(statuses),
			"unitCost":    "0.80",
			"itemDetails": items,
		}},
	}
}

func (a *api) createQC(statuses ...string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/qc", a.admin, qcBody(statuses...))
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(a.t, w)["id"].(string)
}

func TestRouter_Health(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Authentication(t *testing.T) {
	a := newAPI(t)
	reader := a.token(appctx.UserContext{UserID: "auditor", Permissions: []string{"qc:read"}})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/qc", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", http.MethodGet, "/api/v1/qc", "not-a-jwt", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"read allowed", http.MethodGet, "/api/v1/qc", reader, http.StatusOK, ""},
		{"read other resource", http.MethodGet, "/api/v1/inventory", reader, http.StatusForbidden, "FORBIDDEN"},
		{"write denied", http.MethodPost, "/api/v1/qc", reader, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.method == http.MethodPost {
				body = qcBody("passed")
			}
			w := a.do(tt.method, tt.path, tt.token, body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode(t, w)["code"])
			}
		})
	}
}

func TestRouter_ForbiddenNamesPermission(t *testing.T) {
	a := newAPI(t)
	reader := a.token(appctx.UserContext{UserID: "auditor", Permissions: []string{"qc:read"}})

	w := a.do(http.MethodPost, "/api/v1/qc", reader, qcBody("passed"))
	require.Equal(t, http.StatusForbidden, w.Code)
	details := decode(t, w)["details"].(map[string]any)
	assert.Equal(t, "qc:create", details["required_permission"])
}

func TestRouter_Validation(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		field  string
		reason string
	}{
		{"limit too large", http.MethodGet, "/api/v1/qc?limit=500", nil, "limit", "must be at most 100"},
		{"page zero", http.MethodGet, "/api/v1/inventory?page=0", nil, "page", "must be at least 1"},
		{"bad order", http.MethodGet, "/api/v1/qc?order=up", nil, "order", "must be one of: asc, desc"},
		{"bad warehouse filter", http.MethodGet, "/api/v1/warehouse-approvals?warehouseId=x", nil, "warehouseId", "is not a valid identifier"},
		{"invalid id", http.MethodGet, "/api/v1/qc/not-a-uuid", nil, "id", "is not a valid identifier"},
		{"missing products", http.MethodPost, "/api/v1/qc", map[string]any{"qcType": "incoming"}, "products", "is required"},
		{"received qty bound", http.MethodPost, "/api/v1/qc", map[string]any{
			"qcType":   "incoming",
			"products": []map[string]any{{"productCode": "AMOX-250", "batchNumber": "L1", "receivedQty": 10001}},
		}, "products[0].receivedQty", "must be at most 10000"},
		{"reject without reason", http.MethodPost, "/api/v1/qc/" + id.New().String() + "/reject", map[string]any{}, "reason", "is required"},
		{"reject with empty body", http.MethodPost, "/api/v1/warehouse-approvals/" + id.New().String() + "/reject", nil, "reason", "is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(tt.method, tt.path, a.admin, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decode(t, w)
			assert.Equal(t, "VALIDATION_ERROR", body["code"])
			assert.Equal(t, tt.reason, fields(t, body)[tt.field])
		})
	}
}

func TestRouter_RejectsUnknownFields(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/v1/inventory", a.admin, map[string]any{
		"productId":   a.product.ID.String(),
		"warehouseId": a.warehouse.ID.String(),
		"batchNumber": "LOT-1",
		"quantity":    10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	invID := decode(t, w)["id"].(string)

	// A misspelled field must not turn into a silent partial update.
	w = a.do(http.MethodPut, "/api/v1/inventory/"+invID, a.admin, map[string]any{"quantiy": 5, "notes": "n"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "is not a known field", fields(t, body)["quantiy"])

	w = a.do(http.MethodGet, "/api/v1/inventory/"+invID, a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	inv := decode(t, w)
	assert.EqualValues(t, 10, inv["quantity"])
	assert.Nil(t, inv["notes"])

	topLevel := qcBody("pending")
	topLevel["bogus"] = true
	nested := qcBody("pending")
	nested["products"].([]map[string]any)[0]["recievedBy"] = "inspector-1"

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"top level", topLevel, "bogus"},
		{"inside a product", nested, "recievedBy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(http.MethodPost, "/api/v1/qc", a.admin, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "is not a known field", fields(t, decode(t, w))[tt.field])
		})
	}

	w = a.do(http.MethodGet, "/api/v1/qc", a.admin, nil)
	assert.EqualValues(t, 0, decode(t, w)["total"])
}

func TestRouter_NotFound(t *testing.T) {
	a := newAPI(t)

	for _, path := range []string{
		"/api/v1/qc/" + id.New().String(),
		"/api/v1/warehouse-approvals/" + id.New().String(),
		"/api/v1/inventory/" + id.New().String(),
		"/api/v1/catalog/products/" + id.New().String(),
	} {
		w := a.do(http.MethodGet, path, a.admin, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "NOT_FOUND", decode(t, w)["code"], path)
	}
}

func TestRouter_QCToInventory(t *testing.T) {
	a := newAPI(t)

	qcID := a.createQC("passed", "passed", "pending")

	w := a.do(http.MethodPost, "/api/v1/qc/"+qcID+"/submit", a.admin, nil)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "INCOMPLETE_INSPECTION", decode(t, w)["code"])

	w = a.do(http.MethodPost, "/api/v1/qc/"+qcID+"/items", a.admin, map[string]any{
		"productIndex": 0, "itemNumber": 3, "status": "failed", "qcReasons": []string{"broken seal"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/v1/qc/"+qcID+"/submit", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pending_approval", decode(t, w)["status"])

	w = a.do(http.MethodPost, "/api/v1/qc/"+qcID+"/approve", a.admin, map[string]any{"remarks": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decode(t, w)
	assert.Equal(t, "completed", rec["status"])
	assert.Equal(t, "partial_pass", rec["overallResult"])

	w = a.do(http.MethodPost, "/api/v1/warehouse-approvals", a.admin, map[string]any{
		"qcRecordId": qcID, "warehouseId": a.warehouse.ID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	waID := decode(t, w)["id"].(string)

	// A second approval for the same QC record is refused.
	w = a.do(http.MethodPost, "/api/v1/warehouse-approvals", a.admin, map[string]any{
		"qcRecordId": qcID, "warehouseId": a.warehouse.ID.String(),
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "DUPLICATE_APPROVAL", decode(t, w)["code"])

	w = a.do(http.MethodPost, "/api/v1/warehouse-approvals/"+waID+"/storage", a.admin, map[string]any{
		"productIndex": 0, "storageLocation": "A-01-03",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/v1/warehouse-approvals/"+waID+"/submit", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/v1/warehouse-approvals/"+waID+"/approve", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	wa := decode(t, w)
	assert.Equal(t, "approved", wa["status"])
	assert.Equal(t, true, wa["inventoryCreated"])
	invIDs := wa["inventoryRecordIds"].([]any)
	require.Len(t, invIDs, 1)

	w = a.do(http.MethodGet, "/api/v1/inventory/"+invIDs[0].(string), a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	inv := decode(t, w)
	assert.EqualValues(t, 2, inv["quantity"])
	assert.Equal(t, "A-01-03", inv["storageLocation"])

	w = a.do(http.MethodGet, "/api/v1/inventory?warehouseId="+a.warehouse.ID.String(), a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = a.do(http.MethodGet, "/api/v1/inventory/valuation?format=xlsx", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, export.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inventory-valuation-")
}

func TestRouter_BulkAssign(t *testing.T) {
	a := newAPI(t)
	first := a.createQC("pending")
	second := a.createQC("pending")
	missing := id.New().String()

	w := a.do(http.MethodPost, "/api/v1/qc/bulk-assign", a.admin, map[string]any{
		"ids": []string{first, second, missing}, "assignedTo": "inspector-2",
	})
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
	res := decode(t, w)
	assert.EqualValues(t, 2, res["updated"])
	assert.EqualValues(t, 1, res["failed"])

	results := res["results"].([]any)
	require.Len(t, results, 3)
	last := results[2].(map[string]any)
	assert.Equal(t, missing, last["id"])
	assert.Equal(t, false, last["success"])
	assert.Equal(t, "NOT_FOUND", last["error"].(map[string]any)["code"])

	w = a.do(http.MethodGet, "/api/v1/qc/"+first, a.admin, nil)
	assert.Equal(t, "inspector-2", decode(t, w)["assignedTo"])

	w = a.do(http.MethodPost, "/api/v1/qc/bulk-assign", a.admin, map[string]any{
		"ids": []string{}, "assignedTo": "inspector-2",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "EMPTY_ID_LIST", decode(t, w)["code"])
}

func TestRouter_IdempotentCreate(t *testing.T) {
	a := newAPI(t)
	key := id.New().String()

	first := a.do(http.MethodPost, "/api/v1/qc", a.admin, qcBody("pending"), middleware.HeaderIdempotencyKey, key)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := a.do(http.MethodPost, "/api/v1/qc", a.admin, qcBody("pending"), middleware.HeaderIdempotencyKey, key)
	require.Equal(t, http.StatusCreated, replay.Code, replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get(middleware.HeaderReplayed))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	w := a.do(http.MethodGet, "/api/v1/qc", a.admin, nil)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	changed := qcBody("pending", "pending")
	w = a.do(http.MethodPost, "/api/v1/qc", a.admin, changed, middleware.HeaderIdempotencyKey, key)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestRouter_Catalog(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/v1/catalog/warehouses", a.admin, map[string]any{
		"code": "WH-COLD", "name": "Cold room", "type": "igloo",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "must be one of: main, distribution, cold_chain, quarantine", fields(t, decode(t, w))["type"])

	w = a.do(http.MethodPost, "/api/v1/catalog/products", a.admin, map[string]any{
		"code": "PARA-500", "name": "Paracetamol 500mg", "unit": "box",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/v1/catalog/products", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "AMOX-250", items[0].(map[string]any)["code"])
}
