package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	SalesSheet          = "Sales"
	PurchasesSheet      = "Purchases"
	VendorBalancesSheet = "Vendor Balances"
	ContentTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExcelExporter is one row of an exported sheet.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

type saleRow struct {
	sale        *models.Sale
	productName string
}

func (r saleRow) GetCellValues() []interface{} {
	return []interface{}{
		r.sale.ID,
		r.sale.Date.Format("2006-01-02 15:04:05"),
		r.productName,
		r.sale.Quantity,
		r.sale.Price.InexactFloat64(),
		r.sale.TotalPrice.InexactFloat64(),
	}
}

type purchaseRow struct {
	purchase    *models.Purchase
	vendorName  string
	productName string
}

func (r purchaseRow) GetCellValues() []interface{} {
	return []interface{}{
		r.purchase.ID,
		r.purchase.Date.Format("2006-01-02"),
		r.vendorName,
		r.productName,
		r.purchase.Quantity,
		r.purchase.Price.InexactFloat64(),
		r.purchase.TotalPrice.InexactFloat64(),
		r.purchase.AmountPaid.InexactFloat64(),
	}
}

type vendorBalanceRow struct {
	vendor  *models.Vendor
	pending models.VendorPending
}

func (r vendorBalanceRow) GetCellValues() []interface{} {
	return []interface{}{
		r.vendor.ID,
		r.vendor.Name,
		r.vendor.Phone,
		r.vendor.OpeningBalance.InexactFloat64(),
		r.vendor.Balance.InexactFloat64(),
		r.pending.PendingTotal.InexactFloat64(),
	}
}

func ExportSales(ctx context.Context, w io.Writer, filter *models.SaleFilter) error {
	sales, err := models.ListSales(ctx, filter)
	if err != nil {
		return err
	}
	names, err := productNames(ctx)
	if err != nil {
		return err
	}
	rows := make([]ExcelExporter, 0, len(sales))
	for _, sale := range sales {
		rows = append(rows, saleRow{sale: sale, productName: names[sale.ProductId]})
	}
	return writeWorkbook(w, SalesSheet, rows, "ID", "Date", "Product", "Quantity", "Price", "Total")
}

func ExportPurchases(ctx context.Context, w io.Writer, filter *models.PurchaseFilter) error {
	purchases, err := models.ListPurchases(ctx, filter)
	if err != nil {
		return err
	}
	names, err := productNames(ctx)
	if err != nil {
		return err
	}
	vendors, err := models.ListVendors(ctx, nil)
	if err != nil {
		return err
	}
	vendorNames := make(map[int]string, len(vendors))
	for _, vendor := range vendors {
		vendorNames[vendor.ID] = vendor.Name
	}
	rows := make([]ExcelExporter, 0, len(purchases))
	for _, purchase := range purchases {
		rows = append(rows, purchaseRow{
			purchase:    purchase,
			vendorName:  vendorNames[purchase.VendorId],
			productName: names[purchase.ProductId],
		})
	}
	return writeWorkbook(w, PurchasesSheet, rows, "ID", "Date", "Vendor", "Product", "Quantity", "Price", "Total", "Amount Paid")
}

// ExportVendorBalances lists every vendor with its cached balance and live pending total.
func ExportVendorBalances(ctx context.Context, w io.Writer) error {
	vendors, err := models.ListVendors(ctx, nil)
	if err != nil {
		return err
	}
	rows := make([]ExcelExporter, 0, len(vendors))
	for _, vendor := range vendors {
		pending, err := vendor.PendingTotal(ctx)
		if err != nil {
			return err
		}
		rows = append(rows, vendorBalanceRow{
			vendor:  vendor,
			pending: models.VendorPending{VendorId: vendor.ID, Name: vendor.Name, Balance: vendor.Balance, PendingTotal: pending},
		})
	}
	return writeWorkbook(w, VendorBalancesSheet, rows, "ID", "Vendor", "Phone", "Opening Balance", "Balance", "Pending Total")
}

func productNames(ctx context.Context) (map[int]string, error) {
	products, err := models.ListProducts(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(products))
	for _, product := range products {
		names[product.ID] = product.Name
	}
	return names, nil
}

func writeWorkbook(w io.Writer, sheetName string, data []ExcelExporter, headings ...string) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			config.LogError(config.GetLogger(), "exportExcel.go", "writeWorkbook", "closing workbook", sheetName, err)
		}
	}()

	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	index, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	// Add headers
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	// Add data
	for rowNo, d := range data {
		for i, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNo+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	if len(headings) > 0 {
		lastCol, err := excelize.ColumnNumberToName(len(headings))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, "A", lastCol, 16); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write %s workbook: %w", sheetName, err)
	}
	return nil
}
