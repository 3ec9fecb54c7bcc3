package models

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Vendor struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:150;not null" json:"name"`
	Phone          string          `gorm:"size:20" json:"phone"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_balance"`
	// cached pending total, written only by recomputeVendorBalance
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	Name           string          `json:"name" validate:"required,max=150"`
	Phone          string          `json:"phone" validate:"max=20"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type VendorsConnection = Connection[Vendor]

func (v Vendor) GetId() int {
	return v.ID
}

func (v Vendor) GetCursor() string {
	return strconv.Itoa(v.ID)
}

func (input *NewVendor) validate(ctx context.Context) error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateInput("vendor", input); err != nil {
		return err
	}
	if input.Phone != "" {
		phone, err := utils.NormalizePhoneNumber(input.Phone, config.Get().PhoneRegion)
		if err != nil {
			return utils.NewValidationError("vendor", "phone", err.Error())
		}
		input.Phone = phone
	}
	return nil
}

// PendingTotal = opening balance + purchases - payments, read live from source records.
func (v *Vendor) PendingTotal(ctx context.Context) (decimal.Decimal, error) {
	return pendingTotal(config.GetDB().WithContext(ctx), v.ID, v.OpeningBalance)
}

func pendingTotal(db *gorm.DB, vendorId int, openingBalance decimal.Decimal) (decimal.Decimal, error) {
	purchased, err := sumDecimalColumn(db, &Purchase{}, "total_price", "vendor_id = ?", vendorId)
	if err != nil {
		return decimal.Zero, err
	}
	paid, err := sumDecimalColumn(db, &Payment{}, "amount", "vendor_id = ?", vendorId)
	if err != nil {
		return decimal.Zero, err
	}
	return openingBalance.Add(purchased).Sub(paid), nil
}

// lock the vendor row, resum its ledger and write the cached balance
func recomputeVendorBalance(db *gorm.DB, vendorId int) (decimal.Decimal, error) {
	var vendor Vendor
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&vendor, vendorId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, utils.NewNotFound("vendor", vendorId)
		}
		return decimal.Zero, err
	}
	balance, err := pendingTotal(db, vendor.ID, vendor.OpeningBalance)
	if err != nil {
		return decimal.Zero, err
	}
	if err := db.Model(&Vendor{}).Where("id = ?", vendor.ID).UpdateColumn("balance", balance).Error; err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// UpdateVendorBalance recomputes and stores the vendor's cached balance.
func UpdateVendorBalance(ctx context.Context, vendorId int) (*Vendor, error) {
	err := runLedgerTransaction(ctx, "vendor.go", "UpdateVendorBalance", []int{vendorId}, func(tx *gorm.DB) error {
		balance, err := recomputeVendorBalance(tx, vendorId)
		if err != nil {
			return err
		}
		return recordLedgerEvent(tx, vendorId, LedgerReferenceTypeVendor, vendorId, LedgerActionUpdate, balance)
	})
	if err != nil {
		return nil, err
	}
	return GetVendor(ctx, vendorId)
}

func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	vendor := Vendor{
		Name:           input.Name,
		Phone:          input.Phone,
		OpeningBalance: input.OpeningBalance,
		Balance:        input.OpeningBalance,
	}
	err := runTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&vendor).Error
	})
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func UpdateVendor(ctx context.Context, id int, input *NewVendor) (*Vendor, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	var vendor *Vendor
	err := runLedgerTransaction(ctx, "vendor.go", "UpdateVendor", []int{id}, func(tx *gorm.DB) error {
		var err error
		vendor, err = utils.FetchModelForUpdate[Vendor](tx.Statement.Context, tx, "vendor", id)
		if err != nil {
			return err
		}
		vendor.Name = input.Name
		vendor.Phone = input.Phone
		vendor.OpeningBalance = input.OpeningBalance
		// AfterUpdate recomputes the balance
		if err := tx.Model(vendor).Select("name", "phone", "opening_balance").Updates(vendor).Error; err != nil {
			return err
		}
		return tx.First(vendor, id).Error
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

// DeleteVendor removes the vendor with its purchases (reversing their stock) and payments.
func DeleteVendor(ctx context.Context, id int) (*Vendor, error) {
	var vendor *Vendor
	err := runLedgerTransaction(ctx, "vendor.go", "DeleteVendor", []int{id}, func(tx *gorm.DB) error {
		var err error
		vendor, err = utils.FetchModelForUpdate[Vendor](tx.Statement.Context, tx, "vendor", id)
		if err != nil {
			return err
		}
		return deleteVendorTx(tx, vendor)
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

func deleteVendorTx(tx *gorm.DB, vendor *Vendor) error {
	var purchases []*Purchase
	if err := tx.Where("vendor_id = ?", vendor.ID).Order("id").Find(&purchases).Error; err != nil {
		return err
	}
	for _, purchase := range purchases {
		if err := deletePurchaseTx(tx, purchase); err != nil {
			return err
		}
	}

	var payments []*Payment
	if err := tx.Where("vendor_id = ?", vendor.ID).Order("id").Find(&payments).Error; err != nil {
		return err
	}
	for _, payment := range payments {
		if err := tx.Delete(payment).Error; err != nil {
			return err
		}
	}

	return tx.Delete(vendor).Error
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	return utils.FetchModel[Vendor](ctx, config.GetDB(), "vendor", id)
}

func ListVendors(ctx context.Context, name *string) ([]*Vendor, error) {
	db := config.GetDB()
	var results []*Vendor

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateVendors(ctx context.Context, limit *int, after *string, name *string, phone *string) (*VendorsConnection, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if name != nil && *name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if phone != nil && *phone != "" {
		dbCtx = dbCtx.Where("phone LIKE ?", "%"+*phone+"%")
	}
	return FetchPageCompositeCursor[Vendor](dbCtx, pageLimit(limit), after, "id", "<")
}
