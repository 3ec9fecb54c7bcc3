package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/shopspring/decimal"
)

type purchaseRequest struct {
	VendorId   int             `json:"vendor_id"`
	ProductId  int             `json:"product_id"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Date       string          `json:"date"`
}

func (req *purchaseRequest) toInput() (*models.NewPurchase, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	return &models.NewPurchase{
		VendorId:   req.VendorId,
		ProductId:  req.ProductId,
		Quantity:   req.Quantity,
		Price:      req.Price,
		AmountPaid: req.AmountPaid,
		Date:       date,
	}, nil
}

type paymentRequest struct {
	VendorId   int             `json:"vendor_id"`
	PurchaseId *int            `json:"purchase_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Note       string          `json:"note"`
}

func (req *paymentRequest) toInput() (*models.NewPayment, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	return &models.NewPayment{
		VendorId:   req.VendorId,
		PurchaseId: req.PurchaseId,
		Amount:     req.Amount,
		Date:       date,
		Note:       req.Note,
	}, nil
}

type purchaseResponse struct {
	*models.Purchase
	Payment *models.Payment `json:"payment,omitempty"`
}

func listVendorsHandler(c *gin.Context) {
	var page pageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}
	name := queryString(c, "name")
	if page.paginated() {
		conn, err := models.PaginateVendors(c.Request.Context(), page.Limit, page.After, name, queryString(c, "phone"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
		return
	}
	results, err := models.ListVendors(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func getVendorHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.GetVendor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createVendorHandler(c *gin.Context) {
	var input models.NewVendor
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := models.CreateVendor(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func updateVendorHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewVendor
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := models.UpdateVendor(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func deleteVendorHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.DeleteVendor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func recomputeVendorBalanceHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.UpdateVendorBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func vendorLedgerEventsHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	if _, err := models.GetVendor(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	results, err := models.ListLedgerEvents(c.Request.Context(), id, queryString(c, "publish_status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func listPurchasesHandler(c *gin.Context) {
	var filter models.PurchaseFilter
	var page pageQuery
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}
	if page.paginated() {
		conn, err := models.PaginatePurchases(c.Request.Context(), page.Limit, page.After, &filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
		return
	}
	results, err := models.ListPurchases(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func getPurchaseHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.GetPurchase(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createPurchaseHandler(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, err)
		return
	}
	createIdempotent(c, "createPurchase", func() (int, interface{}, error) {
		purchase, payment, err := models.CreatePurchase(c.Request.Context(), input)
		if err != nil {
			return 0, nil, err
		}
		return purchase.ID, purchaseResponse{Purchase: purchase, Payment: payment}, nil
	}, func(id int) (interface{}, error) {
		purchase, err := models.GetPurchase(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return purchaseResponse{Purchase: purchase}, nil
	})
}

func updatePurchaseHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, err)
		return
	}
	purchase, payment, err := models.UpdatePurchase(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchaseResponse{Purchase: purchase, Payment: payment})
}

func deletePurchaseHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.DeletePurchase(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func listPaymentsHandler(c *gin.Context) {
	var filter models.PaymentFilter
	var page pageQuery
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}
	if page.paginated() {
		conn, err := models.PaginatePayments(c.Request.Context(), page.Limit, page.After, &filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
		return
	}
	results, err := models.ListPayments(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func getPaymentHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createPaymentHandler(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, err)
		return
	}
	createIdempotent(c, "createPayment", func() (int, interface{}, error) {
		result, err := models.CreatePayment(c.Request.Context(), input)
		if err != nil {
			return 0, nil, err
		}
		return result.ID, result, nil
	}, func(id int) (interface{}, error) {
		return models.GetPayment(c.Request.Context(), id)
	})
}

func updatePaymentHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := models.UpdatePayment(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func deletePaymentHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.DeletePayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
