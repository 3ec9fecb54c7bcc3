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

type Payment struct {
	ID         int             `gorm:"primary_key" json:"id"`
	VendorId   int             `gorm:"index;not null" json:"vendor_id"`
	PurchaseId *int            `gorm:"index" json:"purchase_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Date       time.Time       `gorm:"type:date;index;not null" json:"date"`
	// created from a purchase's amount_paid and kept in sync with it
	AutoCreated bool      `gorm:"not null;default:false" json:"auto_created"`
	Note        string    `gorm:"type:text" json:"note"`
	RecordedBy  string    `gorm:"size:100" json:"recorded_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	previousVendorId int
}

type NewPayment struct {
	VendorId   int             `json:"vendor_id" validate:"required"`
	PurchaseId *int            `json:"purchase_id" validate:"omitempty,gt=0"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	Date       *time.Time      `json:"date"`
	Note       string          `json:"note" validate:"max=500"`
}

type PaymentFilter struct {
	VendorId   *int       `form:"vendor_id"`
	PurchaseId *int       `form:"purchase_id"`
	StartDate  *time.Time `form:"start_date" time_format:"2006-01-02" time_utc:"1"`
	EndDate    *time.Time `form:"end_date" time_format:"2006-01-02" time_utc:"1"`
}

type PaymentsConnection = Connection[Payment]

func (p Payment) GetId() int {
	return p.ID
}

func (p Payment) GetCursor() string {
	return strconv.Itoa(p.ID)
}

func (input *NewPayment) validate(ctx context.Context, db *gorm.DB) error {
	input.Note = strings.TrimSpace(input.Note)
	if err := utils.ValidateInput("payment", input); err != nil {
		return err
	}
	// exists vendor
	if err := utils.ValidateResourceId[Vendor](ctx, db, "vendor", input.VendorId); err != nil {
		return err
	}
	if input.PurchaseId != nil {
		purchase, err := utils.FetchModel[Purchase](ctx, db, "purchase", *input.PurchaseId)
		if err != nil {
			return err
		}
		if purchase.VendorId != input.VendorId {
			return utils.NewValidationError("payment", "purchase_id", "purchase belongs to another vendor")
		}
	}
	return nil
}

func (input *NewPayment) date() time.Time {
	if input.Date == nil || input.Date.IsZero() {
		return utils.DateOnly(time.Now())
	}
	return utils.DateOnly(*input.Date)
}

func recordedBy(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userName, _ := utils.GetUserNameFromContext(ctx)
	return userName
}

func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	if err := input.validate(ctx, config.GetDB()); err != nil {
		return nil, err
	}

	payment := Payment{
		VendorId:   input.VendorId,
		PurchaseId: input.PurchaseId,
		Amount:     input.Amount,
		Date:       input.date(),
		Note:       input.Note,
		RecordedBy: recordedBy(ctx),
	}
	err := runLedgerTransaction(ctx, "payment.go", "CreatePayment", []int{input.VendorId}, func(tx *gorm.DB) error {
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment edits a manual payment. The balance of the old and new vendor is
// recomputed from scratch by the hooks, never adjusted by the difference.
func UpdatePayment(ctx context.Context, id int, input *NewPayment) (*Payment, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}

	var payment *Payment
	err := withVendorRecheck(func() error {
		existing, err := utils.FetchModel[Payment](ctx, db, "payment", id)
		if err != nil {
			return err
		}
		if existing.AutoCreated {
			return errAutoPaymentManaged()
		}
		vendorIds := []int{existing.VendorId, input.VendorId}
		return runLedgerTransaction(ctx, "payment.go", "UpdatePayment", vendorIds, func(tx *gorm.DB) error {
			var err error
			payment, err = utils.FetchModelForUpdate[Payment](ctx, tx, "payment", id)
			if err != nil {
				return err
			}
			if err := ensureVendorLocked(vendorIds, payment.VendorId); err != nil {
				return err
			}
			payment.VendorId = input.VendorId
			payment.PurchaseId = input.PurchaseId
			payment.Amount = input.Amount
			payment.Date = input.date()
			payment.Note = input.Note
			return tx.Model(payment).
				Select("vendor_id", "purchase_id", "amount", "date", "note").
				Updates(payment).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func DeletePayment(ctx context.Context, id int) (*Payment, error) {
	db := config.GetDB()
	var payment *Payment
	err := withVendorRecheck(func() error {
		existing, err := utils.FetchModel[Payment](ctx, db, "payment", id)
		if err != nil {
			return err
		}
		if existing.AutoCreated {
			return errAutoPaymentManaged()
		}
		vendorIds := []int{existing.VendorId}
		return runLedgerTransaction(ctx, "payment.go", "DeletePayment", vendorIds, func(tx *gorm.DB) error {
			locked, err := utils.FetchModelForUpdate[Payment](ctx, tx, "payment", id)
			if err != nil {
				return err
			}
			if err := ensureVendorLocked(vendorIds, locked.VendorId); err != nil {
				return err
			}
			payment = locked
			return tx.Delete(payment).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func errAutoPaymentManaged() error {
	return utils.NewValidationError("payment", "id", "payment is managed by its purchase, edit the purchase instead")
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	return utils.FetchModel[Payment](ctx, config.GetDB(), "payment", id)
}

func filterPayments(dbCtx *gorm.DB, filter *PaymentFilter) *gorm.DB {
	if filter == nil {
		return dbCtx
	}
	if filter.VendorId != nil && *filter.VendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", *filter.VendorId)
	}
	if filter.PurchaseId != nil && *filter.PurchaseId > 0 {
		dbCtx = dbCtx.Where("purchase_id = ?", *filter.PurchaseId)
	}
	return applyDateRange(dbCtx, "date", filter.StartDate, filter.EndDate)
}

func ListPayments(ctx context.Context, filter *PaymentFilter) ([]*Payment, error) {
	db := config.GetDB()
	var results []*Payment
	if err := filterPayments(db.WithContext(ctx), filter).Order("date DESC").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func PaginatePayments(ctx context.Context, limit *int, after *string, filter *PaymentFilter) (*PaymentsConnection, error) {
	db := config.GetDB()
	return FetchPageCompositeCursor[Payment](filterPayments(db.WithContext(ctx), filter), pageLimit(limit), after, "id", "<")
}
