package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
)

const (
	ReconciliationCheckVendorBalance = "VENDOR_BALANCE"
	ReconciliationCheckProductStock  = "PRODUCT_STOCK"
)

// ReconciliationReport is one drift found by a reconciliation run.
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // VENDOR_BALANCE, PRODUCT_STOCK
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // vendor, product
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Expected      string    `gorm:"size:50" json:"expected"`
	Actual        string    `gorm:"size:50" json:"actual"`
	Details       string    `gorm:"type:text" json:"details"`
	Repaired      bool      `gorm:"not null;default:false" json:"repaired"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func ListReconciliationReports(ctx context.Context, correlationId *string, checkType *string) ([]*ReconciliationReport, error) {
	db := config.GetDB()
	var results []*ReconciliationReport

	dbCtx := db.WithContext(ctx)
	if correlationId != nil && *correlationId != "" {
		dbCtx = dbCtx.Where("correlation_id = ?", *correlationId)
	}
	if checkType != nil && *checkType != "" {
		dbCtx = dbCtx.Where("check_type = ?", *checkType)
	}
	if err := dbCtx.Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
