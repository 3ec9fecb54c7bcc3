package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	dashboardSeriesDays = 7
	dashboardTopN       = 5
)

type DashboardInput struct {
	StartDate         *time.Time `form:"start_date" time_format:"2006-01-02" time_utc:"1"`
	EndDate           *time.Time `form:"end_date" time_format:"2006-01-02" time_utc:"1"`
	LowStockThreshold *int       `form:"low_stock_threshold"`
	// reference day for today/yesterday counts and the trailing series, defaults to the current date
	Today *time.Time `form:"-"`
}

type Dashboard struct {
	StartDate           *time.Time            `json:"start_date"`
	EndDate             *time.Time            `json:"end_date"`
	TotalSales          decimal.Decimal       `json:"total_sales"`
	TotalPurchase       decimal.Decimal       `json:"total_purchase"`
	TotalProfit         decimal.Decimal       `json:"total_profit"`
	TodaySalesCount     int64                 `json:"today_sales_count"`
	YesterdaySalesCount int64                 `json:"yesterday_sales_count"`
	LowStockThreshold   int                   `json:"low_stock_threshold"`
	LowStock            []*Product            `json:"low_stock"`
	Vendors             []*VendorPending      `json:"vendors"`
	DailySeries         []*DailySales         `json:"daily_series"`
	TopSelling          []*ProductPerformance `json:"top_selling"`
	TopProfit           []*ProductPerformance `json:"top_profit"`
}

type VendorPending struct {
	VendorId     int             `json:"vendor_id"`
	Name         string          `json:"name"`
	Balance      decimal.Decimal `json:"balance"`
	PendingTotal decimal.Decimal `json:"pending_total"`
}

type DailySales struct {
	Date   time.Time       `json:"date"`
	Label  string          `json:"label"`
	Sales  decimal.Decimal `json:"sales"`
	Profit decimal.Decimal `json:"profit"`
}

type ProductPerformance struct {
	ProductId    int             `json:"product_id"`
	Name         string          `json:"name"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
	Profit       decimal.Decimal `json:"profit"`
}

func (input *DashboardInput) today() time.Time {
	if input.Today != nil && !input.Today.IsZero() {
		return utils.DateOnly(*input.Today)
	}
	return utils.DateOnly(time.Now())
}

func (input *DashboardInput) threshold() int {
	if input.LowStockThreshold != nil && *input.LowStockThreshold >= 0 {
		return *input.LowStockThreshold
	}
	return config.LowStockThreshold()
}

func (input *DashboardInput) cacheKey() string {
	day := func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return utils.DateOnly(*t).Format("2006-01-02")
	}
	today := input.today()
	return fmt.Sprintf("dashboard:%s:%s:%s:%d", day(input.StartDate), day(input.EndDate), day(&today), input.threshold())
}

// GetDashboard is read only. Results are cached per input until the next committed write.
func GetDashboard(ctx context.Context, input *DashboardInput) (*Dashboard, error) {
	if input == nil {
		input = &DashboardInput{}
	}
	if input.StartDate != nil && input.EndDate != nil && utils.DateOnly(*input.EndDate).Before(utils.DateOnly(*input.StartDate)) {
		return nil, utils.NewValidationError("dashboard", "end_date", "must not be before start_date")
	}
	return utils.CachedObject(ctx, dashboardCacheSet, input.cacheKey(), config.Get().DashboardCacheTTL, func() (*Dashboard, error) {
		return buildDashboard(ctx, input)
	})
}

func buildDashboard(ctx context.Context, input *DashboardInput) (*Dashboard, error) {
	db := config.GetDB().WithContext(ctx)
	today := input.today()
	result := Dashboard{
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		LowStockThreshold: input.threshold(),
	}

	var products []*Product
	if err := db.Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	costs := make(map[int]decimal.Decimal, len(products))
	for _, product := range products {
		costs[product.ID] = product.PurchasePrice
	}

	// totals over the range
	var sales []*Sale
	if err := applyDateRange(db.Model(&Sale{}), "date", input.StartDate, input.EndDate).Find(&sales).Error; err != nil {
		return nil, err
	}
	result.TotalSales = decimal.Zero
	result.TotalProfit = decimal.Zero
	for _, sale := range sales {
		result.TotalSales = result.TotalSales.Add(sale.TotalPrice)
		result.TotalProfit = result.TotalProfit.Add(saleProfit(sale, costs))
	}
	var purchaseTotals []decimal.Decimal
	if err := applyDateRange(db.Model(&Purchase{}), "date", input.StartDate, input.EndDate).Pluck("total_price", &purchaseTotals).Error; err != nil {
		return nil, err
	}
	result.TotalPurchase = decimal.Sum(decimal.Zero, purchaseTotals...)

	// sales counts
	yesterday := today.AddDate(0, 0, -1)
	if err := db.Model(&Sale{}).Where("date >= ? AND date < ?", today, today.AddDate(0, 0, 1)).Count(&result.TodaySalesCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Sale{}).Where("date >= ? AND date < ?", yesterday, today).Count(&result.YesterdaySalesCount).Error; err != nil {
		return nil, err
	}

	result.LowStock = make([]*Product, 0)
	for _, product := range products {
		if product.Stock <= result.LowStockThreshold {
			result.LowStock = append(result.LowStock, product)
		}
	}
	sort.SliceStable(result.LowStock, func(i, j int) bool {
		return result.LowStock[i].Stock < result.LowStock[j].Stock
	})

	vendors, err := vendorPendingTotals(db)
	if err != nil {
		return nil, err
	}
	result.Vendors = vendors

	series, err := dailySalesSeries(db, today, costs)
	if err != nil {
		return nil, err
	}
	result.DailySeries = series

	topSelling, topProfit, err := productRankings(db, products, costs)
	if err != nil {
		return nil, err
	}
	result.TopSelling = topSelling
	result.TopProfit = topProfit

	return &result, nil
}

// (sale price - current product purchase price) x quantity
func saleProfit(sale *Sale, costs map[int]decimal.Decimal) decimal.Decimal {
	return sale.Price.Sub(costs[sale.ProductId]).Mul(decimal.NewFromInt(int64(sale.Quantity)))
}

// live pending totals, next to the cached balance
func vendorPendingTotals(db *gorm.DB) ([]*VendorPending, error) {
	var vendors []*Vendor
	if err := db.Order("name").Order("id").Find(&vendors).Error; err != nil {
		return nil, err
	}
	var purchases []*Purchase
	if err := db.Select("vendor_id", "total_price").Find(&purchases).Error; err != nil {
		return nil, err
	}
	var payments []*Payment
	if err := db.Select("vendor_id", "amount").Find(&payments).Error; err != nil {
		return nil, err
	}

	pending := make(map[int]decimal.Decimal, len(vendors))
	for _, purchase := range purchases {
		pending[purchase.VendorId] = pending[purchase.VendorId].Add(purchase.TotalPrice)
	}
	for _, payment := range payments {
		pending[payment.VendorId] = pending[payment.VendorId].Sub(payment.Amount)
	}

	results := make([]*VendorPending, 0, len(vendors))
	for _, vendor := range vendors {
		results = append(results, &VendorPending{
			VendorId:     vendor.ID,
			Name:         vendor.Name,
			Balance:      vendor.Balance,
			PendingTotal: vendor.OpeningBalance.Add(pending[vendor.ID]),
		})
	}
	return results, nil
}

// one point per day for the trailing week ending today, oldest first
func dailySalesSeries(db *gorm.DB, today time.Time, costs map[int]decimal.Decimal) ([]*DailySales, error) {
	first := today.AddDate(0, 0, -(dashboardSeriesDays - 1))
	var sales []*Sale
	if err := db.Where("date >= ? AND date < ?", first, today.AddDate(0, 0, 1)).Find(&sales).Error; err != nil {
		return nil, err
	}

	series := make([]*DailySales, 0, dashboardSeriesDays)
	byDay := make(map[string]*DailySales, dashboardSeriesDays)
	for i := 0; i < dashboardSeriesDays; i++ {
		day := first.AddDate(0, 0, i)
		point := &DailySales{
			Date:   day,
			Label:  day.Format("Jan 02"),
			Sales:  decimal.Zero,
			Profit: decimal.Zero,
		}
		series = append(series, point)
		byDay[day.Format("2006-01-02")] = point
	}
	for _, sale := range sales {
		point, ok := byDay[utils.DateOnly(sale.Date.UTC()).Format("2006-01-02")]
		if !ok {
			continue
		}
		point.Sales = point.Sales.Add(sale.TotalPrice)
		point.Profit = point.Profit.Add(saleProfit(sale, costs))
	}
	return series, nil
}

// top products over all sales, by quantity sold and by profit; ties go to the lower id
func productRankings(db *gorm.DB, products []*Product, costs map[int]decimal.Decimal) ([]*ProductPerformance, []*ProductPerformance, error) {
	var sales []*Sale
	if err := db.Select("product_id", "quantity", "price", "total_price").Find(&sales).Error; err != nil {
		return nil, nil, err
	}

	names := make(map[int]string, len(products))
	for _, product := range products {
		names[product.ID] = product.Name
	}
	byProduct := make(map[int]*ProductPerformance)
	for _, sale := range sales {
		perf, ok := byProduct[sale.ProductId]
		if !ok {
			perf = &ProductPerformance{
				ProductId: sale.ProductId,
				Name:      names[sale.ProductId],
				Revenue:   decimal.Zero,
				Profit:    decimal.Zero,
			}
			byProduct[sale.ProductId] = perf
		}
		perf.QuantitySold += sale.Quantity
		perf.Revenue = perf.Revenue.Add(sale.TotalPrice)
		perf.Profit = perf.Profit.Add(saleProfit(sale, costs))
	}

	all := make([]*ProductPerformance, 0, len(byProduct))
	for _, perf := range byProduct {
		all = append(all, perf)
	}

	topSelling := append([]*ProductPerformance(nil), all...)
	sort.Slice(topSelling, func(i, j int) bool {
		if topSelling[i].QuantitySold != topSelling[j].QuantitySold {
			return topSelling[i].QuantitySold > topSelling[j].QuantitySold
		}
		return topSelling[i].ProductId < topSelling[j].ProductId
	})
	topProfit := append([]*ProductPerformance(nil), all...)
	sort.Slice(topProfit, func(i, j int) bool {
		if cmp := topProfit[i].Profit.Cmp(topProfit[j].Profit); cmp != 0 {
			return cmp > 0
		}
		return topProfit[i].ProductId < topProfit[j].ProductId
	})

	if len(topSelling) > dashboardTopN {
		topSelling = topSelling[:dashboardTopN]
	}
	if len(topProfit) > dashboardTopN {
		topProfit = topProfit[:dashboardTopN]
	}
	return topSelling, topProfit, nil
}
