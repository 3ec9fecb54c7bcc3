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

type Purchase struct {
	ID         int             `gorm:"primary_key" json:"id"`
	VendorId   int             `gorm:"index;not null" json:"vendor_id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	Date       time.Time       `gorm:"type:date;index;not null" json:"date"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// stored references before an update, filled by BeforeUpdate
	previousVendorId  int
	previousProductId int
}

type NewPurchase struct {
	VendorId   int             `json:"vendor_id" validate:"required"`
	ProductId  int             `json:"product_id" validate:"required"`
	Quantity   int             `json:"quantity" validate:"gt=0"`
	Price      decimal.Decimal `json:"price" validate:"gte=0"`
	AmountPaid decimal.Decimal `json:"amount_paid" validate:"gte=0"`
	Date       *time.Time      `json:"date"`
}

type PurchaseFilter struct {
	VendorId  *int       `form:"vendor_id"`
	ProductId *int       `form:"product_id"`
	StartDate *time.Time `form:"start_date" time_format:"2006-01-02" time_utc:"1"`
	EndDate   *time.Time `form:"end_date" time_format:"2006-01-02" time_utc:"1"`
}

type PurchasesConnection = Connection[Purchase]

func (p Purchase) GetId() int {
	return p.ID
}

func (p Purchase) GetCursor() string {
	return strconv.Itoa(p.ID)
}

func (input *NewPurchase) validate(ctx context.Context, db *gorm.DB) error {
	if err := utils.ValidateInput("purchase", input); err != nil {
		return err
	}
	// exists vendor
	if err := utils.ValidateResourceId[Vendor](ctx, db, "vendor", input.VendorId); err != nil {
		return err
	}
	// exists product
	if err := utils.ValidateResourceId[Product](ctx, db, "product", input.ProductId); err != nil {
		return err
	}
	if input.AmountPaid.GreaterThan(input.totalPrice()) {
		return utils.NewValidationError("purchase", "amount_paid", "must not exceed total_price")
	}
	return nil
}

func (input *NewPurchase) totalPrice() decimal.Decimal {
	return lineTotal(input.Quantity, input.Price)
}

func (input *NewPurchase) date() time.Time {
	if input.Date == nil || input.Date.IsZero() {
		return utils.DateOnly(time.Now())
	}
	return utils.DateOnly(*input.Date)
}

// CreatePurchase records the purchase and, when something was paid up front, the matching payment.
// Stock and the vendor balance are updated by the model hooks in the same transaction.
func CreatePurchase(ctx context.Context, input *NewPurchase) (*Purchase, *Payment, error) {
	if err := input.validate(ctx, config.GetDB()); err != nil {
		return nil, nil, err
	}

	purchase := Purchase{
		VendorId:   input.VendorId,
		ProductId:  input.ProductId,
		Quantity:   input.Quantity,
		Price:      input.Price,
		TotalPrice: input.totalPrice(),
		AmountPaid: input.AmountPaid,
		Date:       input.date(),
	}
	var payment *Payment

	err := runLedgerTransaction(ctx, "purchase.go", "CreatePurchase", []int{input.VendorId}, func(tx *gorm.DB) error {
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}
		var err error
		payment, err = syncPurchasePayments(tx, &purchase)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &purchase, payment, nil
}

func UpdatePurchase(ctx context.Context, id int, input *NewPurchase) (*Purchase, *Payment, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, nil, err
	}

	var purchase *Purchase
	var payment *Payment
	err := withVendorRecheck(func() error {
		existing, err := utils.FetchModel[Purchase](ctx, db, "purchase", id)
		if err != nil {
			return err
		}
		vendorIds := []int{existing.VendorId, input.VendorId}
		return runLedgerTransaction(ctx, "purchase.go", "UpdatePurchase", vendorIds, func(tx *gorm.DB) error {
			var err error
			purchase, err = utils.FetchModelForUpdate[Purchase](ctx, tx, "purchase", id)
			if err != nil {
				return err
			}
			if err := ensureVendorLocked(vendorIds, purchase.VendorId); err != nil {
				return err
			}
			purchase.VendorId = input.VendorId
			purchase.ProductId = input.ProductId
			purchase.Quantity = input.Quantity
			purchase.Price = input.Price
			purchase.TotalPrice = input.totalPrice()
			purchase.AmountPaid = input.AmountPaid
			purchase.Date = input.date()

			if err := tx.Model(purchase).
				Select("vendor_id", "product_id", "quantity", "price", "total_price", "amount_paid", "date").
				Updates(purchase).Error; err != nil {
				return err
			}
			payment, err = syncPurchasePayments(tx, purchase)
			return err
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return purchase, payment, nil
}

// syncPurchasePayments keeps the auto-created payment equal to amount_paid and keeps
// every linked payment on the purchase's vendor. Returns the auto-created payment, if any.
func syncPurchasePayments(tx *gorm.DB, purchase *Purchase) (*Payment, error) {
	var linked []*Payment
	if err := tx.Where("purchase_id = ?", purchase.ID).Order("id").Find(&linked).Error; err != nil {
		return nil, err
	}

	var auto *Payment
	for _, payment := range linked {
		if payment.AutoCreated && auto == nil {
			auto = payment
			continue
		}
		if payment.VendorId != purchase.VendorId {
			payment.VendorId = purchase.VendorId
			if err := tx.Model(payment).Select("vendor_id").Updates(payment).Error; err != nil {
				return nil, err
			}
		}
	}

	switch {
	case purchase.AmountPaid.IsPositive() && auto == nil:
		purchaseId := purchase.ID
		auto = &Payment{
			VendorId:    purchase.VendorId,
			PurchaseId:  &purchaseId,
			Amount:      purchase.AmountPaid,
			Date:        purchase.Date,
			AutoCreated: true,
			RecordedBy:  recordedBy(tx.Statement.Context),
		}
		if err := tx.Create(auto).Error; err != nil {
			return nil, err
		}
	case purchase.AmountPaid.IsPositive():
		if auto.VendorId == purchase.VendorId && auto.Amount.Equal(purchase.AmountPaid) && auto.Date.Equal(purchase.Date) {
			return auto, nil
		}
		auto.VendorId = purchase.VendorId
		auto.Amount = purchase.AmountPaid
		auto.Date = purchase.Date
		if err := tx.Model(auto).Select("vendor_id", "amount", "date").Updates(auto).Error; err != nil {
			return nil, err
		}
	case auto != nil:
		if err := tx.Delete(auto).Error; err != nil {
			return nil, err
		}
		auto = nil
	}
	return auto, nil
}

// DeletePurchase removes the purchase with its payments; the hooks reverse the stock
// increment and recompute the vendor balance.
func DeletePurchase(ctx context.Context, id int) (*Purchase, error) {
	db := config.GetDB()
	var purchase *Purchase
	err := withVendorRecheck(func() error {
		existing, err := utils.FetchModel[Purchase](ctx, db, "purchase", id)
		if err != nil {
			return err
		}
		vendorIds := []int{existing.VendorId}
		return runLedgerTransaction(ctx, "purchase.go", "DeletePurchase", vendorIds, func(tx *gorm.DB) error {
			locked, err := utils.FetchModelForUpdate[Purchase](ctx, tx, "purchase", id)
			if err != nil {
				return err
			}
			if err := ensureVendorLocked(vendorIds, locked.VendorId); err != nil {
				return err
			}
			purchase = locked
			return deletePurchaseTx(tx, purchase)
		})
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func deletePurchaseTx(tx *gorm.DB, purchase *Purchase) error {
	var payments []*Payment
	if err := tx.Where("purchase_id = ?", purchase.ID).Order("id").Find(&payments).Error; err != nil {
		return err
	}
	for _, payment := range payments {
		if err := tx.Delete(payment).Error; err != nil {
			return err
		}
	}
	return tx.Delete(purchase).Error
}

func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	return utils.FetchModel[Purchase](ctx, config.GetDB(), "purchase", id)
}

func filterPurchases(dbCtx *gorm.DB, filter *PurchaseFilter) *gorm.DB {
	if filter == nil {
		return dbCtx
	}
	if filter.VendorId != nil && *filter.VendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", *filter.VendorId)
	}
	if filter.ProductId != nil && *filter.ProductId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *filter.ProductId)
	}
	return applyDateRange(dbCtx, "date", filter.StartDate, filter.EndDate)
}

func ListPurchases(ctx context.Context, filter *PurchaseFilter) ([]*Purchase, error) {
	db := config.GetDB()
	var results []*Purchase
	if err := filterPurchases(db.WithContext(ctx), filter).Order("date DESC").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func PaginatePurchases(ctx context.Context, limit *int, after *string, filter *PurchaseFilter) (*PurchasesConnection, error) {
	db := config.GetDB()
	return FetchPageCompositeCursor[Purchase](filterPurchases(db.WithContext(ctx), filter), pageLimit(limit), after, "id", "<")
}
