package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
)

// RegisterRoutes mounts the JSON API on r.
func RegisterRoutes(r gin.IRouter) {
	categories := r.Group("/categories")
	categories.GET("", listCategoriesHandler)
	categories.POST("", createCategoryHandler)
	categories.GET("/:id", getCategoryHandler)
	categories.PUT("/:id", updateCategoryHandler)
	categories.DELETE("/:id", deleteCategoryHandler)

	subCategories := r.Group("/sub-categories")
	subCategories.GET("", listSubCategoriesHandler)
	subCategories.POST("", createSubCategoryHandler)
	subCategories.GET("/:id", getSubCategoryHandler)
	subCategories.PUT("/:id", updateSubCategoryHandler)
	subCategories.DELETE("/:id", deleteSubCategoryHandler)

	products := r.Group("/products")
	products.GET("", listProductsHandler)
	products.GET("/low-stock", lowStockProductsHandler)
	products.POST("", createProductHandler)
	products.GET("/:id", getProductHandler)
	products.PUT("/:id", updateProductHandler)
	products.DELETE("/:id", deleteProductHandler)

	vendors := r.Group("/vendors")
	vendors.GET("", listVendorsHandler)
	vendors.POST("", createVendorHandler)
	vendors.GET("/:id", getVendorHandler)
	vendors.PUT("/:id", updateVendorHandler)
	vendors.DELETE("/:id", deleteVendorHandler)
	vendors.POST("/:id/recompute", recomputeVendorBalanceHandler)
	vendors.GET("/:id/ledger-events", vendorLedgerEventsHandler)

	purchases := r.Group("/purchases")
	purchases.GET("", listPurchasesHandler)
	purchases.POST("", createPurchaseHandler)
	purchases.GET("/:id", getPurchaseHandler)
	purchases.PUT("/:id", updatePurchaseHandler)
	purchases.DELETE("/:id", deletePurchaseHandler)

	payments := r.Group("/payments")
	payments.GET("", listPaymentsHandler)
	payments.POST("", createPaymentHandler)
	payments.GET("/:id", getPaymentHandler)
	payments.PUT("/:id", updatePaymentHandler)
	payments.DELETE("/:id", deletePaymentHandler)

	sales := r.Group("/sales")
	sales.GET("", listSalesHandler)
	sales.POST("", createSaleHandler)
	sales.GET("/:id", getSaleHandler)
	sales.PUT("/:id", updateSaleHandler)
	sales.DELETE("/:id", deleteSaleHandler)

	r.GET("/dashboard", dashboardHandler)

	reports := r.Group("/reports")
	reports.GET("/sales.xlsx", exportSalesHandler)
	reports.GET("/purchases.xlsx", exportPurchasesHandler)
	reports.GET("/vendor-balances.xlsx", exportVendorBalancesHandler)

	r.POST("/internal/ops/reconcile", reconcileHandler)
	r.GET("/internal/ops/reconciliation-reports", reconciliationReportsHandler)
}

// respondError maps the error taxonomy onto status codes:
// not found -> 404, validation -> 422, anything else -> 500.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validationErr *utils.ValidationError
	var notFoundErr *utils.NotFoundError
	switch {
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "entity": notFoundErr.Entity, "id": notFoundErr.ID})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "entity": validationErr.Entity, "field": validationErr.Field})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
		body["fields"] = fields
	}
	c.JSON(http.StatusBadRequest, body)
}

func paramId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// accepts 2006-01-02 or RFC 3339
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, utils.NewValidationError("request", "date", "must be YYYY-MM-DD or RFC 3339")
	}
	return &t, nil
}

type pageQuery struct {
	Limit *int    `form:"limit"`
	After *string `form:"after"`
}

func (q pageQuery) paginated() bool {
	return q.Limit != nil || (q.After != nil && *q.After != "")
}

func queryString(c *gin.Context, key string) *string {
	if v, ok := c.GetQuery(key); ok && v != "" {
		return &v
	}
	return nil
}

const idempotencyHeader = "Idempotency-Key"

// createIdempotent runs create at most once per Idempotency-Key header value.
// A repeated key answers 200 with replay(resourceId) of the first result.
func createIdempotent(c *gin.Context, operation string, create func() (int, interface{}, error), replay func(id int) (interface{}, error)) {
	ctx := c.Request.Context()
	key := c.GetHeader(idempotencyHeader)
	if key == "" {
		_, body, err := create()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, body)
		return
	}

	record, isReplay, err := models.BeginIdempotentRequest(ctx, operation, key)
	if err != nil {
		respondError(c, err)
		return
	}
	if isReplay && record.ResourceId != nil {
		body, err := replay(*record.ResourceId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, body)
		return
	}

	id, body, err := create()
	if err != nil {
		if markErr := models.MarkIdempotencyFailed(ctx, record, err); markErr != nil {
			_ = c.Error(markErr)
		}
		respondError(c, err)
		return
	}
	if err := models.MarkIdempotencySucceeded(ctx, record, id); err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusCreated, body)
}
