// seed-dev fills an empty database with a small demo shop: one category tree,
// a few products, a vendor with purchases and a handful of sales.
//
// Usage (from backend directory):
//
//	DB_DRIVER=sqlite DB_PATH=./shop.db go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
)

type seedProduct struct {
	name          string
	stock         int
	purchasePrice string
	salePrice     string
}

var seedProducts = []seedProduct{
	{name: "Jasmine Rice 5kg", stock: 20, purchasePrice: "9.50", salePrice: "12.00"},
	{name: "Peanut Oil 1L", stock: 12, purchasePrice: "3.20", salePrice: "4.50"},
	{name: "Sea Salt 500g", stock: 3, purchasePrice: "0.80", salePrice: "1.20"},
}

func main() {
	ctx := utils.SetUserNameInContext(context.Background(), "Seed")
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.AutoMigrate(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to count products: %v\n", err)
		os.Exit(1)
	}
	if count > 0 {
		fmt.Println("products already present, nothing to seed")
		return
	}

	if err := seed(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("seeded demo shop")
}

func seed(ctx context.Context) error {
	category, err := models.CreateCategory(ctx, &models.NewCategory{Name: "Groceries"})
	if err != nil {
		return err
	}
	subCategory, err := models.CreateSubCategory(ctx, &models.NewSubCategory{CategoryId: category.ID, Name: "Pantry"})
	if err != nil {
		return err
	}
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Golden Valley Wholesale", OpeningBalance: decimal.NewFromInt(25)})
	if err != nil {
		return err
	}

	today := utils.DateOnly(time.Now())
	for i, p := range seedProducts {
		stock := p.stock
		product, err := models.CreateProduct(ctx, &models.NewProduct{
			SubCategoryId: subCategory.ID,
			Name:          p.name,
			Stock:         &stock,
			PurchasePrice: decimal.RequireFromString(p.purchasePrice),
			SalePrice:     decimal.RequireFromString(p.salePrice),
		})
		if err != nil {
			return err
		}

		date := today.AddDate(0, 0, -i)
		price := decimal.RequireFromString(p.purchasePrice)
		if _, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
			VendorId:   vendor.ID,
			ProductId:  product.ID,
			Quantity:   10,
			Price:      price,
			AmountPaid: price.Mul(decimal.NewFromInt(5)),
			Date:       &date,
		}); err != nil {
			return err
		}

		saleDate := time.Now().UTC().AddDate(0, 0, -i)
		if _, err := models.CreateSale(ctx, &models.NewSale{ProductId: product.ID, Quantity: 2 + i, Date: &saleDate}); err != nil {
			return err
		}
	}
	return nil
}
