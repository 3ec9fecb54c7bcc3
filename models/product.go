package models

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID            int    `gorm:"primary_key" json:"id"`
	SubCategoryId int    `gorm:"index;not null" json:"sub_category_id"`
	Name          string `gorm:"index;size:150;not null" json:"name"`
	Image         string `gorm:"size:255" json:"image"`
	Stock         int    `gorm:"index;not null;default:0" json:"stock"`
	// stock not explained by purchases and sales (initial count, manual adjustments)
	OpeningStock  int             `gorm:"not null;default:0" json:"opening_stock"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	SubCategoryId int             `json:"sub_category_id" validate:"required"`
	Name          string          `json:"name" validate:"required,max=150"`
	Image         string          `json:"image" validate:"omitempty,url,max=255"`
	Stock         *int            `json:"stock" validate:"omitempty,gte=0"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"gte=0"`
	SalePrice     decimal.Decimal `json:"sale_price" validate:"gte=0"`
}

type ProductFilter struct {
	CategoryId    *int    `form:"category_id"`
	SubCategoryId *int    `form:"sub_category_id"`
	Name          *string `form:"name"`
}

type ProductsConnection = Connection[Product]

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetCursor() string {
	return strconv.Itoa(p.ID)
}

func (input *NewProduct) validate(ctx context.Context, db *gorm.DB) error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateInput("product", input); err != nil {
		return err
	}
	// exists sub category
	return utils.ValidateResourceId[SubCategory](ctx, db, "sub_category", input.SubCategoryId)
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}

	stock := 0
	if input.Stock != nil {
		stock = *input.Stock
	}
	product := Product{
		SubCategoryId: input.SubCategoryId,
		Name:          input.Name,
		Image:         input.Image,
		Stock:         stock,
		OpeningStock:  stock,
		PurchasePrice: input.PurchasePrice,
		SalePrice:     input.SalePrice,
	}
	err := runTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&product).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct edits the product. A changed stock is booked as an adjustment to opening stock,
// so the stock can still be re-derived from purchases and sales.
func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}

	var product *Product
	err := runTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		product, err = utils.FetchModelForUpdate[Product](ctx, tx, "product", id)
		if err != nil {
			return err
		}
		product.SubCategoryId = input.SubCategoryId
		product.Name = input.Name
		product.Image = input.Image
		product.PurchasePrice = input.PurchasePrice
		product.SalePrice = input.SalePrice
		if err := tx.Model(product).
			Select("sub_category_id", "name", "image", "purchase_price", "sale_price").
			Updates(product).Error; err != nil {
			return err
		}

		if input.Stock != nil && *input.Stock != product.Stock {
			delta := *input.Stock - product.Stock
			if err := tx.Model(&Product{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
				"stock":         gorm.Expr("stock + ?", delta),
				"opening_stock": gorm.Expr("opening_stock + ?", delta),
			}).Error; err != nil {
				return err
			}
		}
		return tx.First(product, id).Error
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes the product with its purchases (and their payments) and sales,
// then the affected vendor balances are recomputed.
func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	db := config.GetDB()
	product, err := utils.FetchModel[Product](ctx, db, "product", id)
	if err != nil {
		return nil, err
	}

	err = withVendorRecheck(func() error {
		vendorIds, err := vendorIdsForProducts(db.WithContext(ctx), []int{id})
		if err != nil {
			return err
		}
		return runLedgerTransaction(ctx, "product.go", "DeleteProduct", vendorIds, func(tx *gorm.DB) error {
			current, err := vendorIdsForProducts(tx, []int{id})
			if err != nil {
				return err
			}
			if err := ensureVendorsLocked(vendorIds, current); err != nil {
				return err
			}
			return deleteProductTx(tx, product)
		})
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func deleteProductTx(tx *gorm.DB, product *Product) error {
	var purchases []*Purchase
	if err := tx.Where("product_id = ?", product.ID).Order("id").Find(&purchases).Error; err != nil {
		return err
	}
	for _, purchase := range purchases {
		if err := deletePurchaseTx(tx, purchase); err != nil {
			return err
		}
	}

	var sales []*Sale
	if err := tx.Where("product_id = ?", product.ID).Order("id").Find(&sales).Error; err != nil {
		return err
	}
	for _, sale := range sales {
		if err := tx.Delete(sale).Error; err != nil {
			return err
		}
	}

	return tx.Delete(product).Error
}

// stock = opening stock + purchased - sold
func resumProductStock(db *gorm.DB, productId int) (int, error) {
	var product Product
	if err := db.Select("id", "opening_stock").First(&product, productId).Error; err != nil {
		return 0, err
	}
	purchased, err := sumIntColumn(db, &Purchase{}, "quantity", "product_id = ?", productId)
	if err != nil {
		return 0, err
	}
	sold, err := sumIntColumn(db, &Sale{}, "quantity", "product_id = ?", productId)
	if err != nil {
		return 0, err
	}
	stock := product.OpeningStock + purchased - sold
	if err := db.Model(&Product{}).Where("id = ?", productId).UpdateColumn("stock", stock).Error; err != nil {
		return 0, err
	}
	return stock, nil
}

func adjustProductStock(db *gorm.DB, productId int, delta int) (int, error) {
	if err := db.Model(&Product{}).Where("id = ?", productId).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta)).Error; err != nil {
		return 0, err
	}
	var product Product
	if err := db.Select("id", "stock").First(&product, productId).Error; err != nil {
		return 0, err
	}
	return product.Stock, nil
}

func productIdsWhere(db *gorm.DB, condition string, values ...interface{}) ([]int, error) {
	var ids []int
	if err := db.Model(&Product{}).Where(condition, values...).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func vendorIdsForProducts(db *gorm.DB, productIds []int) ([]int, error) {
	if len(productIds) == 0 {
		return nil, nil
	}
	var ids []int
	if err := db.Model(&Purchase{}).Distinct("vendor_id").Where("product_id IN ?", productIds).Pluck("vendor_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, config.GetDB(), "product", id)
}

func filterProducts(dbCtx *gorm.DB, filter *ProductFilter) *gorm.DB {
	if filter == nil {
		return dbCtx
	}
	if filter.CategoryId != nil && *filter.CategoryId > 0 {
		dbCtx = dbCtx.Where("sub_category_id IN (?)",
			dbCtx.Session(&gorm.Session{NewDB: true}).Model(&SubCategory{}).Select("id").Where("category_id = ?", *filter.CategoryId))
	}
	if filter.SubCategoryId != nil && *filter.SubCategoryId > 0 {
		dbCtx = dbCtx.Where("sub_category_id = ?", *filter.SubCategoryId)
	}
	if filter.Name != nil && *filter.Name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*filter.Name+"%")
	}
	return dbCtx
}

func ListProducts(ctx context.Context, filter *ProductFilter) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product
	if err := filterProducts(db.WithContext(ctx), filter).Order("name").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateProducts(ctx context.Context, limit *int, after *string, filter *ProductFilter) (*ProductsConnection, error) {
	db := config.GetDB()
	return FetchPageCompositeCursor[Product](filterProducts(db.WithContext(ctx), filter), pageLimit(limit), after, "id", "<")
}

// ListLowStockProducts returns products with stock <= threshold (config default when nil).
func ListLowStockProducts(ctx context.Context, threshold *int) ([]*Product, error) {
	limit := config.LowStockThreshold()
	if threshold != nil && *threshold >= 0 {
		limit = *threshold
	}
	db := config.GetDB()
	var results []*Product
	if err := db.WithContext(ctx).Where("stock <= ?", limit).Order("stock").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
