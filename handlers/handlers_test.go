package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/handlers"
	"github.com/mmdatafocus/shop_backend/middlewares"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/models/reports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Defaults()
	cfg.DBDriver = "sqlite"
	cfg.DBPath = filepath.Join(t.TempDir(), "shop.db")
	config.Set(cfg)
	db, err := config.OpenDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	config.SetDB(db)
	config.SetRedisClient(nil)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(nil)
	})

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.SessionMiddleware())
	handlers.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method string, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middlewares.UserNameHeader, "cashier")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

// creates category, sub category and product, returns the product id
func seedProduct(t *testing.T, r http.Handler, name string, stock int) int {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/categories", gin.H{"name": name + " category"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var category models.Category
	decode(t, w, &category)

	w = doJSON(t, r, http.MethodPost, "/sub-categories", gin.H{"category_id": category.ID, "name": name + " sub"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var subCategory models.SubCategory
	decode(t, w, &subCategory)

	w = doJSON(t, r, http.MethodPost, "/products", gin.H{
		"sub_category_id": subCategory.ID,
		"name":            name,
		"stock":           stock,
		"purchase_price":  "4",
		"sale_price":      "10",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var product models.Product
	decode(t, w, &product)
	return product.ID
}

func TestVendorPurchasePaymentFlow(t *testing.T) {
	r := newTestRouter(t)
	productId := seedProduct(t, r, "Soap", 0)

	w := doJSON(t, r, http.MethodPost, "/vendors", gin.H{"name": "Acme", "opening_balance": "0"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var vendor models.Vendor
	decode(t, w, &vendor)

	w = doJSON(t, r, http.MethodPost, "/purchases", gin.H{
		"vendor_id":   vendor.ID,
		"product_id":  productId,
		"quantity":    10,
		"price":       "10",
		"amount_paid": "50",
		"date":        "2024-05-10",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var purchase struct {
		models.Purchase
		Payment *models.Payment `json:"payment"`
	}
	decode(t, w, &purchase)
	require.NotNil(t, purchase.Payment)
	assert.Equal(t, "cashier", purchase.Payment.RecordedBy)
	assert.Equal(t, "2024-05-10", purchase.Date.Format("2006-01-02"))

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/vendors/%d", vendor.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &vendor)
	assert.Equal(t, "50", vendor.Balance.String())

	// the purchase owns its auto payment
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/payments/%d", purchase.Payment.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, r, http.MethodPost, "/payments", gin.H{"vendor_id": vendor.ID, "amount": "20", "date": "2024-05-11T08:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/payments?vendor_id=%d", vendor.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payments []*models.Payment
	decode(t, w, &payments)
	require.Len(t, payments, 2)
	assert.Equal(t, "2024-05-11", payments[0].Date.Format("2006-01-02"))

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/vendors/%d/recompute", vendor.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &vendor)
	assert.Equal(t, "30", vendor.Balance.String())

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/vendors/%d/ledger-events", vendor.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []*models.LedgerEvent
	decode(t, w, &events)
	assert.Len(t, events, 5)
}

func TestErrorStatusCodes(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/vendors/404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/vendors/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/vendors", gin.H{"name": "  "})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "name", body["field"])

	w = doJSON(t, r, http.MethodPost, "/purchases", gin.H{"vendor_id": 1, "product_id": 1, "quantity": 1, "price": "1", "date": "10/05/2024"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, r, http.MethodGet, "/dashboard?start_date=2024-05-10&end_date=2024-05-01", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSalesAndDashboard(t *testing.T) {
	r := newTestRouter(t)
	productId := seedProduct(t, r, "Soap", 5)

	w := doJSON(t, r, http.MethodPost, "/sales", gin.H{"product_id": productId, "quantity": 2, "date": "2024-05-10T09:30:00Z"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sale models.Sale
	decode(t, w, &sale)
	assert.Equal(t, "20", sale.TotalPrice.String())

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/products/%d", productId), nil)
	var product models.Product
	decode(t, w, &product)
	assert.Equal(t, 3, product.Stock)

	w = doJSON(t, r, http.MethodGet, "/products/low-stock?threshold=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lowStock []*models.Product
	decode(t, w, &lowStock)
	assert.Len(t, lowStock, 1)

	w = doJSON(t, r, http.MethodGet, "/dashboard?start_date=2024-05-10&end_date=2024-05-10&today=2024-05-10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var dashboard models.Dashboard
	decode(t, w, &dashboard)
	assert.Equal(t, "20", dashboard.TotalSales.String())
	assert.Equal(t, "12", dashboard.TotalProfit.String())
	assert.EqualValues(t, 1, dashboard.TodaySalesCount)

	w = doJSON(t, r, http.MethodGet, "/sales?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.SalesConnection
	decode(t, w, &page)
	require.Len(t, page.Edges, 1)
	assert.False(t, *page.PageInfo.HasNextPage)

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/sales/%d", sale.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/products/%d", productId), nil)
	decode(t, w, &product)
	assert.Equal(t, 5, product.Stock)
}

func TestSalesReportDownload(t *testing.T) {
	r := newTestRouter(t)
	productId := seedProduct(t, r, "Soap", 5)
	w := doJSON(t, r, http.MethodPost, "/sales", gin.H{"product_id": productId, "quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/reports/sales.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, reports.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sales-")

	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(reports.SalesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Soap", rows[1][2])
}

func TestReconcileEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/vendors", gin.H{"name": "Acme", "opening_balance": "9"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var vendor models.Vendor
	decode(t, w, &vendor)
	require.NoError(t, config.GetDB().Model(&models.Vendor{}).Where("id = ?", vendor.ID).UpdateColumn("balance", 1).Error)

	w = doJSON(t, r, http.MethodPost, "/internal/ops/reconcile?repair=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.ReconciliationResult
	decode(t, w, &result)
	assert.Len(t, result.Drifts, 1)
	assert.Equal(t, 1, result.Repaired)

	w = doJSON(t, r, http.MethodGet, "/internal/ops/reconciliation-reports?check_type=VENDOR_BALANCE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reportRows []*models.ReconciliationReport
	decode(t, w, &reportRows)
	assert.Len(t, reportRows, 1)
}

func TestCreateSaleIdempotencyKey(t *testing.T) {
	r := newTestRouter(t)
	productId := seedProduct(t, r, "Rice", 10)

	post := func() *httptest.ResponseRecorder {
		payload, err := json.Marshal(gin.H{"product_id": productId, "quantity": 3, "date": "2024-05-10T09:30:00Z"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/sales", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "sale-0001")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := post()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	var created models.Sale
	decode(t, first, &created)

	second := post()
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	var replayed models.Sale
	decode(t, second, &replayed)
	assert.Equal(t, created.ID, replayed.ID)

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/products/%d", productId), nil)
	var product models.Product
	decode(t, w, &product)
	assert.Equal(t, 7, product.Stock)
}

func TestCreateSaleIdempotencyKeyRetryAfterFailure(t *testing.T) {
	r := newTestRouter(t)

	post := func(productId int) *httptest.ResponseRecorder {
		payload, err := json.Marshal(gin.H{"product_id": productId, "quantity": 1})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/sales", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "sale-0002")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(999)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	productId := seedProduct(t, r, "Salt", 4)
	w = post(productId)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
