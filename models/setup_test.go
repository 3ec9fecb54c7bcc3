package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// setupTestDB points the package at a fresh sqlite database and returns the active config,
// which tests may tweak in place.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()
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
		config.SetRedisClient(nil)
	})
	return cfg
}

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	config.SetRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return mr
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func intPtr(v int) *int {
	return &v
}

func newProduct(t *testing.T, ctx context.Context, name string, stock int, purchasePrice string, salePrice string) *models.Product {
	t.Helper()
	category, err := models.CreateCategory(ctx, &models.NewCategory{Name: name + " category"})
	require.NoError(t, err)
	subCategory, err := models.CreateSubCategory(ctx, &models.NewSubCategory{CategoryId: category.ID, Name: name + " sub"})
	require.NoError(t, err)
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		SubCategoryId: subCategory.ID,
		Name:          name,
		Stock:         intPtr(stock),
		PurchasePrice: dec(purchasePrice),
		SalePrice:     dec(salePrice),
	})
	require.NoError(t, err)
	return product
}

func newVendor(t *testing.T, ctx context.Context, name string, openingBalance string) *models.Vendor {
	t.Helper()
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: name, OpeningBalance: dec(openingBalance)})
	require.NoError(t, err)
	return vendor
}

func requireVendorBalance(t *testing.T, ctx context.Context, vendorId int, want string) {
	t.Helper()
	vendor, err := models.GetVendor(ctx, vendorId)
	require.NoError(t, err)
	require.Truef(t, vendor.Balance.Equal(dec(want)), "vendor %d balance = %s, want %s", vendorId, vendor.Balance, want)
}

func requireStock(t *testing.T, ctx context.Context, productId int, want int) {
	t.Helper()
	product, err := models.GetProduct(ctx, productId)
	require.NoError(t, err)
	require.Equalf(t, want, product.Stock, "product %d stock", productId)
}
