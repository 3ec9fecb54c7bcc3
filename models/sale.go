package models

import (
	"context"
	"strconv"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Sale struct {
	ID         int             `gorm:"primary_key" json:"id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	Date       time.Time       `gorm:"index;not null" json:"date"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	previousProductId int
}

type NewSale struct {
	ProductId int `json:"product_id" validate:"required"`
	Quantity  int `json:"quantity" validate:"gt=0"`
	// defaults to the product's sale price
	Price *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Date  *time.Time       `json:"date"`
}

type SaleFilter struct {
	ProductId *int       `form:"product_id"`
	StartDate *time.Time `form:"start_date" time_format:"2006-01-02" time_utc:"1"`
	EndDate   *time.Time `form:"end_date" time_format:"2006-01-02" time_utc:"1"`
}

type SalesConnection = Connection[Sale]

func (s Sale) GetId() int {
	return s.ID
}

func (s Sale) GetCursor() string {
	return strconv.Itoa(s.ID)
}

func (input *NewSale) validate(ctx context.Context, db *gorm.DB) (*Product, error) {
	if err := utils.ValidateInput("sale", input); err != nil {
		return nil, err
	}
	return utils.FetchModel[Product](ctx, db, "product", input.ProductId)
}

func (input *NewSale) price(product *Product) decimal.Decimal {
	if input.Price == nil {
		return product.SalePrice
	}
	return *input.Price
}

func (input *NewSale) date() time.Time {
	if input.Date == nil || input.Date.IsZero() {
		return utils.Timestamp(time.Now())
	}
	return utils.Timestamp(*input.Date)
}

// CreateSale records the sale; the hook takes the quantity off the product's stock.
func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	product, err := input.validate(ctx, config.GetDB())
	if err != nil {
		return nil, err
	}

	price := input.price(product)
	sale := Sale{
		ProductId:  input.ProductId,
		Quantity:   input.Quantity,
		Price:      price,
		TotalPrice: lineTotal(input.Quantity, price),
		Date:       input.date(),
	}
	err = runTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&sale).Error
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func UpdateSale(ctx context.Context, id int, input *NewSale) (*Sale, error) {
	product, err := input.validate(ctx, config.GetDB())
	if err != nil {
		return nil, err
	}

	var sale *Sale
	err = runTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		sale, err = utils.FetchModelForUpdate[Sale](ctx, tx, "sale", id)
		if err != nil {
			return err
		}
		price := input.price(product)
		sale.ProductId = input.ProductId
		sale.Quantity = input.Quantity
		sale.Price = price
		sale.TotalPrice = lineTotal(input.Quantity, price)
		if input.Date != nil && !input.Date.IsZero() {
			sale.Date = utils.Timestamp(*input.Date)
		}
		return tx.Model(sale).
			Select("product_id", "quantity", "price", "total_price", "date").
			Updates(sale).Error
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// DeleteSale removes the sale; the hook puts the quantity back on stock.
func DeleteSale(ctx context.Context, id int) (*Sale, error) {
	var sale *Sale
	err := runTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		sale, err = utils.FetchModelForUpdate[Sale](ctx, tx, "sale", id)
		if err != nil {
			return err
		}
		return tx.Delete(sale).Error
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	return utils.FetchModel[Sale](ctx, config.GetDB(), "sale", id)
}

func filterSales(dbCtx *gorm.DB, filter *SaleFilter) *gorm.DB {
	if filter == nil {
		return dbCtx
	}
	if filter.ProductId != nil && *filter.ProductId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *filter.ProductId)
	}
	return applyDateRange(dbCtx, "date", filter.StartDate, filter.EndDate)
}

func ListSales(ctx context.Context, filter *SaleFilter) ([]*Sale, error) {
	db := config.GetDB()
	var results []*Sale
	if err := filterSales(db.WithContext(ctx), filter).Order("date DESC").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateSales(ctx context.Context, limit *int, after *string, filter *SaleFilter) (*SalesConnection, error) {
	db := config.GetDB()
	return FetchPageCompositeCursor[Sale](filterSales(db.WithContext(ctx), filter), pageLimit(limit), after, "id", "<")
}
