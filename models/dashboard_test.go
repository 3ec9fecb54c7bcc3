package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, value string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return &d
}

func TestDashboardTotalsAndProfit(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	vendor := newVendor(t, ctx, "Acme", "0")
	soap := newProduct(t, ctx, "Soap", 10, "4", "10")
	salt := newProduct(t, ctx, "Salt", 10, "1", "3")
	newProduct(t, ctx, "Rice", 2, "1", "3")

	_, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId: vendor.ID, ProductId: soap.ID, Quantity: 5, Price: dec("4"), Date: day(t, "2024-05-09 00:00"), AmountPaid: dec("5"),
	})
	require.NoError(t, err)

	soapPrice := dec("8")
	sales := []*models.NewSale{
		{ProductId: soap.ID, Quantity: 2, Date: day(t, "2024-05-10 09:00")},
		{ProductId: soap.ID, Quantity: 1, Price: &soapPrice, Date: day(t, "2024-05-09 18:30")},
		{ProductId: salt.ID, Quantity: 6, Date: day(t, "2024-05-10 11:00")},
		{ProductId: salt.ID, Quantity: 1, Date: day(t, "2024-04-01 11:00")},
	}
	for _, input := range sales {
		_, err := models.CreateSale(ctx, input)
		require.NoError(t, err)
	}

	dashboard, err := models.GetDashboard(ctx, &models.DashboardInput{
		StartDate:         day(t, "2024-05-09 00:00"),
		EndDate:           day(t, "2024-05-10 00:00"),
		LowStockThreshold: intPtr(3),
		Today:             day(t, "2024-05-10 00:00"),
	})
	require.NoError(t, err)

	// 2x10 + 1x8 + 6x3
	assert.True(t, dashboard.TotalSales.Equal(dec("46")), "total sales %s", dashboard.TotalSales)
	assert.True(t, dashboard.TotalPurchase.Equal(dec("20")))
	// soap (10-4)x2 + (8-4)x1, salt (3-1)x6
	assert.True(t, dashboard.TotalProfit.Equal(dec("28")), "total profit %s", dashboard.TotalProfit)
	assert.EqualValues(t, 2, dashboard.TodaySalesCount)
	assert.EqualValues(t, 1, dashboard.YesterdaySalesCount)

	require.Len(t, dashboard.LowStock, 2)
	assert.Equal(t, "Rice", dashboard.LowStock[0].Name)
	assert.Equal(t, "Salt", dashboard.LowStock[1].Name)

	require.Len(t, dashboard.Vendors, 1)
	assert.True(t, dashboard.Vendors[0].PendingTotal.Equal(dec("15")))
	assert.True(t, dashboard.Vendors[0].Balance.Equal(dec("15")))

	require.Len(t, dashboard.DailySeries, 7)
	assert.Equal(t, "May 04", dashboard.DailySeries[0].Label)
	last := dashboard.DailySeries[6]
	assert.Equal(t, "May 10", last.Label)
	assert.True(t, last.Sales.Equal(dec("38")))
	assert.True(t, last.Profit.Equal(dec("24")))
	assert.True(t, dashboard.DailySeries[5].Sales.Equal(dec("8")))

	// all-time rankings, products without sales are left out
	require.Len(t, dashboard.TopSelling, 2)
	assert.Equal(t, salt.ID, dashboard.TopSelling[0].ProductId)
	assert.Equal(t, 7, dashboard.TopSelling[0].QuantitySold)
	require.Len(t, dashboard.TopProfit, 2)
	assert.Equal(t, soap.ID, dashboard.TopProfit[0].ProductId)
	assert.True(t, dashboard.TopProfit[0].Profit.Equal(dec("16")))
	assert.True(t, dashboard.TopProfit[1].Profit.Equal(dec("14")))
}

func TestDashboardRejectsInvertedRange(t *testing.T) {
	setupTestDB(t)
	_, err := models.GetDashboard(context.Background(), &models.DashboardInput{
		StartDate: day(t, "2024-05-10 00:00"),
		EndDate:   day(t, "2024-05-09 00:00"),
	})
	require.ErrorIs(t, err, utils.ErrorValidation)
}

func TestDashboardCacheDroppedOnWrite(t *testing.T) {
	setupTestDB(t)
	mr := setupTestRedis(t)
	ctx := context.Background()

	product := newProduct(t, ctx, "Soap", 10, "1", "2")
	input := &models.DashboardInput{Today: day(t, "2024-05-10 00:00")}

	first, err := models.GetDashboard(ctx, input)
	require.NoError(t, err)
	assert.True(t, first.TotalSales.IsZero())
	members, err := mr.SMembers("dashboard:keys")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, mr.Exists(members[0]))

	_, err = models.CreateSale(ctx, &models.NewSale{ProductId: product.ID, Quantity: 1, Date: day(t, "2024-05-10 10:00")})
	require.NoError(t, err)
	assert.False(t, mr.Exists(members[0]))

	second, err := models.GetDashboard(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.TotalSales.Equal(dec("2")))
	assert.EqualValues(t, 1, second.TodaySalesCount)
}
