package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/shopspring/decimal"
)

type saleRequest struct {
	ProductId int              `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
	Date      string           `json:"date"`
}

func (req *saleRequest) toInput() (*models.NewSale, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	return &models.NewSale{
		ProductId: req.ProductId,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Date:      date,
	}, nil
}

func listSalesHandler(c *gin.Context) {
	var filter models.SaleFilter
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
		conn, err := models.PaginateSales(c.Request.Context(), page.Limit, page.After, &filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
		return
	}
	results, err := models.ListSales(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func getSaleHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.GetSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func createSaleHandler(c *gin.Context) {
	var req saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, err)
		return
	}
	createIdempotent(c, "createSale", func() (int, interface{}, error) {
		result, err := models.CreateSale(c.Request.Context(), input)
		if err != nil {
			return 0, nil, err
		}
		return result.ID, result, nil
	}, func(id int) (interface{}, error) {
		return models.GetSale(c.Request.Context(), id)
	})
}

func updateSaleHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var req saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := models.UpdateSale(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func deleteSaleHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := models.DeleteSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
