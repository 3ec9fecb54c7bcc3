package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/models/reports"
	"github.com/mmdatafocus/shop_backend/workflow"
)

func dashboardHandler(c *gin.Context) {
	var input models.DashboardInput
	if err := c.ShouldBindQuery(&input); err != nil {
		badRequest(c, err)
		return
	}
	today, err := parseDate(c.Query("today"))
	if err != nil {
		respondError(c, err)
		return
	}
	input.Today = today
	result, err := models.GetDashboard(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func sendWorkbook(c *gin.Context, name string, write func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("%s-%s.xlsx", name, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, reports.ContentTypeXLSX, buf.Bytes())
}

func exportSalesHandler(c *gin.Context) {
	var filter models.SaleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	sendWorkbook(c, "sales", func(buf *bytes.Buffer) error {
		return reports.ExportSales(c.Request.Context(), buf, &filter)
	})
}

func exportPurchasesHandler(c *gin.Context) {
	var filter models.PurchaseFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	sendWorkbook(c, "purchases", func(buf *bytes.Buffer) error {
		return reports.ExportPurchases(c.Request.Context(), buf, &filter)
	})
}

func exportVendorBalancesHandler(c *gin.Context) {
	sendWorkbook(c, "vendor-balances", func(buf *bytes.Buffer) error {
		return reports.ExportVendorBalances(c.Request.Context(), buf)
	})
}

func reconcileHandler(c *gin.Context) {
	repair, _ := strconv.ParseBool(c.Query("repair"))
	result, err := workflow.RunLedgerReconciliation(c.Request.Context(), config.GetLogger(), repair)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func reconciliationReportsHandler(c *gin.Context) {
	results, err := models.ListReconciliationReports(c.Request.Context(), queryString(c, "correlation_id"), queryString(c, "check_type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
